// Package output gates free-text assistant responses before they reach the
// user. Matching is case-insensitive substring containment over the shipped
// tables and the learned patterns of the rule database.
package output

import (
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/patterns"
	"github.com/ppiankov/askiguard/internal/rules"
)

// assertionPattern counts categorical statements. Case-sensitive on the
// original text.
var assertionPattern = regexp.MustCompile(`это|является|будет|можно|нужно`)

// Validator checks assistant output against the pattern tables.
type Validator struct {
	mu  sync.RWMutex
	set *patterns.Set
	cfg config.OutputConfig
	db  *rules.Database
}

// New creates a Validator. A nil set uses the shipped tables.
func New(set *patterns.Set, db *rules.Database, cfg config.OutputConfig) *Validator {
	if set == nil {
		set = patterns.NewDefault()
	}
	return &Validator{set: set, cfg: cfg, db: db}
}

// Reload swaps the pattern set and tuning. In-flight checks finish with the
// previous values.
func (v *Validator) Reload(set *patterns.Set, cfg config.OutputConfig) {
	if set == nil {
		set = patterns.NewDefault()
	}
	v.mu.Lock()
	v.set = set
	v.cfg = cfg
	v.mu.Unlock()
}

// Rules returns the rule database backing the learned patterns.
func (v *Validator) Rules() *rules.Database {
	return v.db
}

func (v *Validator) current() (*patterns.Set, config.OutputConfig) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.set, v.cfg
}

// Validate checks a response. The first matching rule decides:
// length, safe patterns, blacklist categories in priority order, learned
// bad patterns, then confidence scoring of whatever passed.
func (v *Validator) Validate(text string, ctx model.Context) model.ValidationResult {
	start := time.Now()
	set, cfg := v.current()

	res := v.scan(set, cfg, text, ctx)
	v.record(res)
	res.ProcessingTimeMs = elapsedMs(start)
	return res
}

func (v *Validator) scan(set *patterns.Set, cfg config.OutputConfig, text string, ctx model.Context) model.ValidationResult {
	if utf8.RuneCountInString(text) > cfg.MaxOutputLength {
		return blocked(set, text, model.ReasonTooLong, "")
	}

	folded := patterns.Fold(text)

	if _, ok := set.MatchSafe(folded); ok {
		return passed(text, cfg.SafeConfidence, nil)
	}
	if v.db != nil {
		if _, ok := v.db.MatchLearnedGood(folded); ok {
			return passed(text, cfg.LearnedSafeConfidence, nil)
		}
	}

	for _, cat := range set.Categories() {
		for _, needle := range cat.Needles {
			if !strings.Contains(folded, needle) {
				continue
			}
			if cat.Reason == model.ReasonHallucination && verifyClaim(folded, needle, ctx, cfg) {
				continue
			}
			return blocked(set, text, cat.Reason, needle)
		}
	}

	if v.db != nil {
		if p, ok := v.db.MatchLearnedBad(folded); ok {
			return blocked(set, text, model.ReasonLearnedPattern, p)
		}
	}

	confidence := 1.0
	var warnings []string
	if utf8.RuneCountInString(text) > cfg.LongResponseLength {
		confidence = cfg.LongResponseConfidence
		warnings = append(warnings, model.WarnLongResponse)
	}
	if n := len(assertionPattern.FindAllStringIndex(text, -1)); n > cfg.AssertionLimit {
		confidence = min(confidence, cfg.AssertionConfidence)
		warnings = append(warnings, model.WarnManyAssertions)
	}
	return passed(text, confidence, warnings)
}

// ValidateInput checks user input before it is sent upstream. Only the
// length cap applies.
func (v *Validator) ValidateInput(text string) model.ValidationResult {
	start := time.Now()
	set, cfg := v.current()

	var res model.ValidationResult
	if utf8.RuneCountInString(text) > cfg.MaxInputLength {
		res = blocked(set, text, model.ReasonInputTooLong, "")
	} else {
		res = passed(text, 1.0, nil)
	}
	v.record(res)
	res.ProcessingTimeMs = elapsedMs(start)
	return res
}

func (v *Validator) record(res model.ValidationResult) {
	if v.db == nil {
		return
	}
	if res.Blocked {
		v.db.RecordBlock(res.Original, res.Reason, res.MatchedPattern)
		return
	}
	v.db.RecordPass()
}

// verifyClaim reports whether a claim about past conversation is backed by
// the supplied context. Up to VerifyKeywords words following the marker are
// looked up in the joined history and feed text; one hit is enough.
func verifyClaim(folded, marker string, ctx model.Context, cfg config.OutputConfig) bool {
	if ctx.Empty() {
		return false
	}
	i := strings.Index(folded, marker)
	if i < 0 {
		return false
	}

	keywords := followingWords(folded[i+len(marker):], cfg.VerifyKeywords, cfg.VerifyMinWordLength)
	if len(keywords) == 0 {
		return false
	}

	corpus := contextCorpus(ctx)
	for _, w := range keywords {
		if strings.Contains(corpus, w) {
			return true
		}
	}
	return false
}

func followingWords(rest string, limit, minLen int) []string {
	var out []string
	for _, f := range strings.Fields(rest) {
		if len(out) >= limit {
			break
		}
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if utf8.RuneCountInString(w) >= minLen {
			out = append(out, w)
		}
	}
	return out
}

func contextCorpus(ctx model.Context) string {
	var b strings.Builder
	for _, t := range ctx.History {
		b.WriteString(t.Text)
		b.WriteByte('\n')
	}
	for _, f := range ctx.Feed {
		b.WriteString(f.Text)
		b.WriteByte('\n')
	}
	return patterns.Fold(b.String())
}

func blocked(set *patterns.Set, text string, reason model.Reason, matched string) model.ValidationResult {
	return model.ValidationResult{
		Valid:          false,
		Blocked:        true,
		Reason:         reason,
		MatchedPattern: matched,
		Original:       text,
		Sanitized:      set.Fallback(reason),
		Confidence:     0,
		Warnings:       []string{},
	}
}

func passed(text string, confidence float64, warnings []string) model.ValidationResult {
	if warnings == nil {
		warnings = []string{}
	}
	return model.ValidationResult{
		Valid:      true,
		Original:   text,
		Sanitized:  text,
		Confidence: confidence,
		Warnings:   warnings,
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// Unavailable is the fail-closed result used when no validator can be
// reached. The text is never passed through.
func Unavailable(text string) model.ValidationResult {
	return model.ValidationResult{
		Blocked:   true,
		Reason:    model.ReasonUnavailable,
		Original:  text,
		Sanitized: patterns.DefaultFallbacks[model.ReasonUnavailable],
		Warnings:  []string{},
	}
}
