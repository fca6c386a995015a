// Package timeparse extracts the time a user asked for from a Russian
// request such as "напомни через 5 минут" or "завтра в 10". Only a small
// ordered rule set is recognized; anything else is reported as not found,
// which callers treat as "cannot verify".
package timeparse

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Match is a recognized time expression.
type Match struct {
	Expected time.Time `json:"expected"`
	Rule     string    `json:"rule"`
	Phrase   string    `json:"phrase"`
}

type rule struct {
	name    string
	pattern *regexp.Regexp
	resolve func(m []string, now time.Time) (time.Time, bool)
}

// maxAmountDigits bounds "через N ..." so durations cannot overflow.
const maxAmountDigits = 6

// rules are tried in order; the first one that matches and resolves wins.
// Longer phrases come before their prefixes ("завтра в 10" before "в 10:00",
// "полчаса" before "час").
var rules = []rule{
	{
		name:    "minutes",
		pattern: regexp.MustCompile(`через\s+(\d+)\s*мин`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			return after(m[1], now, time.Minute)
		},
	},
	{
		name:    "one_minute",
		pattern: regexp.MustCompile(`через\s+минуту`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			return now.Add(time.Minute), true
		},
	},
	{
		name:    "half_hour",
		pattern: regexp.MustCompile(`через\s+пол\s?часа`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			return now.Add(30 * time.Minute), true
		},
	},
	{
		name:    "hours",
		pattern: regexp.MustCompile(`через\s+(\d+)\s*час`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			return after(m[1], now, time.Hour)
		},
	},
	{
		name:    "one_hour",
		pattern: regexp.MustCompile(`через\s+час`),
		resolve: func(_ []string, now time.Time) (time.Time, bool) {
			return now.Add(time.Hour), true
		},
	},
	{
		name:    "tomorrow_at",
		pattern: regexp.MustCompile(`завтра\s+(?:в\s+)?(\d{1,2})(?::(\d{2}))?`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			h, mm, ok := clock(m[1], m[2])
			if !ok {
				return time.Time{}, false
			}
			y, mo, d := now.Date()
			return time.Date(y, mo, d+1, h, mm, 0, 0, now.Location()), true
		},
	},
	{
		name:    "at",
		pattern: regexp.MustCompile(`(?:^|\s)в\s+(\d{1,2}):(\d{2})`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			h, mm, ok := clock(m[1], m[2])
			if !ok {
				return time.Time{}, false
			}
			y, mo, d := now.Date()
			t := time.Date(y, mo, d, h, mm, 0, 0, now.Location())
			if t.Before(now) {
				t = time.Date(y, mo, d+1, h, mm, 0, 0, now.Location())
			}
			return t, true
		},
	},
	{
		name:    "days",
		pattern: regexp.MustCompile(`через\s+(\d+)\s*(?:день|дня|дней)`),
		resolve: func(m []string, now time.Time) (time.Time, bool) {
			n, ok := amount(m[1])
			if !ok {
				return time.Time{}, false
			}
			return now.AddDate(0, 0, n), true
		},
	},
}

// Parser resolves expressions in a fixed location.
type Parser struct {
	loc *time.Location
}

// New creates a Parser. A nil location means time.Local.
func New(loc *time.Location) *Parser {
	if loc == nil {
		loc = time.Local
	}
	return &Parser{loc: loc}
}

// Parse finds the first recognized time expression in text, resolved
// relative to now.
func (p *Parser) Parse(text string, now time.Time) (Match, bool) {
	lower := strings.ToLower(text)
	now = now.In(p.loc)

	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		t, ok := r.resolve(m, now)
		if !ok {
			continue
		}
		return Match{Expected: t, Rule: r.name, Phrase: strings.TrimSpace(m[0])}, true
	}
	return Match{}, false
}

// Parse resolves text with a process-local Parser.
func Parse(text string, now time.Time) (Match, bool) {
	return New(time.Local).Parse(text, now)
}

func after(digits string, now time.Time, unit time.Duration) (time.Time, bool) {
	n, ok := amount(digits)
	if !ok {
		return time.Time{}, false
	}
	return now.Add(time.Duration(n) * unit), true
}

func amount(digits string) (int, bool) {
	if len(digits) > maxAmountDigits {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}
	return n, true
}

func clock(hour, minute string) (int, int, bool) {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	if minute == "" {
		return h, 0, true
	}
	m, err := strconv.Atoi(minute)
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}
