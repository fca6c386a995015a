package patterns

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/askiguard/internal/model"
)

// Tables holds the raw pattern strings organized by category.
type Tables struct {
	Safe                 []string                `yaml:"safe"                  json:"safe_patterns"`
	FakeCapabilities     []string                `yaml:"fake_capabilities"     json:"fake_capabilities"`
	FalsePromises        []string                `yaml:"false_promises"        json:"false_promises"`
	ArchitectureLeak     []string                `yaml:"architecture_leak"     json:"architecture_leak"`
	HallucinationMarkers []string                `yaml:"hallucination_markers" json:"hallucination_markers"`
	Manipulation         []string                `yaml:"manipulation"          json:"manipulation"`
	Fallbacks            map[model.Reason]string `yaml:"fallbacks"             json:"fallbacks,omitempty"`
}

// Category is one blacklist table with the reason it reports.
type Category struct {
	Name    string
	Reason  model.Reason
	Needles []string
}

// Set holds folded needles in scan order.
type Set struct {
	safe       []string
	categories []Category
	fallbacks  map[model.Reason]string
	raw        Tables
}

// Fold returns the case-folded form used for all matching.
// A Caser is stateful, so one is created per call.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// Normalize folds and trims a pattern.
func Normalize(s string) string {
	return strings.TrimSpace(Fold(s))
}

// New creates a Set from raw tables. Blank and duplicate needles are dropped.
func New(t Tables) *Set {
	s := &Set{
		safe:      foldAll(t.Safe),
		fallbacks: maps.Clone(DefaultFallbacks),
		raw:       t,
	}
	for reason, text := range t.Fallbacks {
		if strings.TrimSpace(text) != "" {
			s.fallbacks[reason] = text
		}
	}

	// Scan priority: the first category that matches decides the reason.
	s.categories = []Category{
		{Name: "fake_capabilities", Reason: model.ReasonFakeCapability, Needles: foldAll(t.FakeCapabilities)},
		{Name: "false_promises", Reason: model.ReasonFalsePromise, Needles: foldAll(t.FalsePromises)},
		{Name: "architecture_leak", Reason: model.ReasonArchitectureLeak, Needles: foldAll(t.ArchitectureLeak)},
		{Name: "hallucination_markers", Reason: model.ReasonHallucination, Needles: foldAll(t.HallucinationMarkers)},
		{Name: "manipulation", Reason: model.ReasonManipulation, Needles: foldAll(t.Manipulation)},
	}
	return s
}

// NewDefault creates a Set with the shipped tables.
func NewDefault() *Set {
	return New(DefaultTables)
}

// Load reads pattern tables from a YAML file. Lists present in the file
// replace the shipped ones; absent lists keep the defaults. An empty path or
// a missing file yields the defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return NewDefault(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}

	t := DefaultTables.clone()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse patterns: %w", err)
	}
	return New(t), nil
}

// MatchSafe returns the first safe pattern contained in folded text.
func (s *Set) MatchSafe(folded string) (string, bool) {
	return firstContained(folded, s.safe)
}

// Categories returns the blacklist categories in scan order.
func (s *Set) Categories() []Category {
	return s.categories
}

// Fallback returns the canned replacement text for a reason.
func (s *Set) Fallback(reason model.Reason) string {
	if text, ok := s.fallbacks[reason]; ok {
		return text
	}
	return s.fallbacks[model.ReasonLearnedPattern]
}

// Tables returns a copy of the raw tables the set was built from.
func (s *Set) Tables() Tables {
	return s.raw.clone()
}

// Match returns the first needle of c contained in folded text.
func (c Category) Match(folded string) (string, bool) {
	return firstContained(folded, c.Needles)
}

// FirstContained returns the first needle contained in folded text.
func FirstContained(folded string, needles []string) (string, bool) {
	return firstContained(folded, needles)
}

func firstContained(folded string, needles []string) (string, bool) {
	for _, n := range needles {
		if strings.Contains(folded, n) {
			return n, true
		}
	}
	return "", false
}

func foldAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		n := Normalize(p)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func (t Tables) clone() Tables {
	return Tables{
		Safe:                 slices.Clone(t.Safe),
		FakeCapabilities:     slices.Clone(t.FakeCapabilities),
		FalsePromises:        slices.Clone(t.FalsePromises),
		ArchitectureLeak:     slices.Clone(t.ArchitectureLeak),
		HallucinationMarkers: slices.Clone(t.HallucinationMarkers),
		Manipulation:         slices.Clone(t.Manipulation),
		Fallbacks:            maps.Clone(t.Fallbacks),
	}
}
