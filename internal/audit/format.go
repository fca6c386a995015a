package audit

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a ReplayResult as a human-readable text timeline.
func FormatTimeline(result *ReplayResult) string {
	if len(result.Entries) == 0 {
		return "No entries found.\n"
	}

	var b strings.Builder

	first := formatDateTime(result.Summary.FirstTimestamp)
	last := formatTimeOnly(result.Summary.LastTimestamp)
	fmt.Fprintf(&b, "Audit: %d entries | %s–%s UTC\n", result.Summary.Total, first, last)
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		fmt.Fprintf(&b, "%-10s %-8s %-18s %-24s %s\n",
			formatTimeOnly(e.Timestamp),
			e.Kind,
			strings.ToUpper(e.Decision),
			truncate(e.Reason, 24),
			truncate(e.Subject, 40))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a ReplayResult as indented JSON.
func FormatJSON(result *ReplayResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal replay result: %w", err)
	}
	return string(data), nil
}

func formatDateTime(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s ReplaySummary) string {
	parts := []string{}
	if s.PassCount > 0 {
		parts = append(parts, fmt.Sprintf("%d pass", s.PassCount))
	}
	if s.BlockCount > 0 {
		parts = append(parts, fmt.Sprintf("%d block", s.BlockCount))
	}
	if s.ApprovalCount > 0 {
		parts = append(parts, fmt.Sprintf("%d approval", s.ApprovalCount))
	}
	if s.LearnCount > 0 {
		parts = append(parts, fmt.Sprintf("%d learn", s.LearnCount))
	}

	line := fmt.Sprintf("Summary: %s | Max risk: %d\n", strings.Join(parts, ", "), s.MaxRisk)
	if len(s.ByReason) > 0 {
		var reasons []string
		for _, r := range slices.Sorted(maps.Keys(s.ByReason)) {
			reasons = append(reasons, fmt.Sprintf("%s=%d", r, s.ByReason[r]))
		}
		line += "Blocked by: " + strings.Join(reasons, ", ") + "\n"
	}
	return line
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
