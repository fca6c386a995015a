package command

import (
	"fmt"
	"strings"

	"github.com/ppiankov/askiguard/internal/model"
)

// FormatUser returns a one-line summary suitable for the end user.
func FormatUser(res *model.CommandValidationResult) string {
	if res.Blocked {
		if e := res.FirstError(); e != nil {
			return e.Message
		}
		return "Команда отклонена"
	}
	if res.ApprovalRequired {
		return "Нужно подтверждение: " + res.ApprovalReason
	}
	return "Команда принята"
}

// FormatOperator returns a multi-line report with every issue and check.
func FormatOperator(res *model.CommandValidationResult) string {
	var b strings.Builder

	status := "PASSED"
	if res.Blocked {
		status = "BLOCKED"
		if res.BlockedAtLevel != nil {
			status = fmt.Sprintf("BLOCKED at level %d (%s)", *res.BlockedAtLevel, model.LevelName(*res.BlockedAtLevel))
		}
	}
	fmt.Fprintf(&b, "status: %s\n", status)
	fmt.Fprintf(&b, "risk: %d (%s)\n", res.RiskScore, res.RiskLevel)
	fmt.Fprintf(&b, "levels passed: %v\n", res.Metadata.LevelsPassed)
	if res.ApprovalRequired {
		fmt.Fprintf(&b, "approval: required by %s: %s\n", res.ApprovalVerifier, res.ApprovalReason)
	}

	for _, e := range res.Errors {
		fmt.Fprintf(&b, "  error   L%d %-24s %s\n", e.Level, e.Code, e.Message)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "  warning L%d %-24s %s\n", w.Level, w.Code, w.Message)
	}
	fmt.Fprintf(&b, "checks: %d, errors: %d, warnings: %d, %.2fms\n",
		res.Metadata.TotalChecks, res.Metadata.TotalErrors, res.Metadata.TotalWarnings, res.Metadata.DurationMs)
	return b.String()
}
