package command

import "github.com/ppiankov/askiguard/internal/model"

// Approval is the outcome of the approval decision table.
type Approval struct {
	Required bool
	Reason   string
	Verifier string
}

// DecideApproval evaluates the decision table in order; the first matching
// row wins.
func DecideApproval(cmd model.Command) Approval {
	switch {
	case cmd.SenseType == model.SenseManagement:
		return Approval{Required: true, Reason: "Управляющая команда требует подтверждения", Verifier: "user"}
	case cmd.SenseType == model.SenseAssignment:
		verifier := cmd.Acceptor
		if verifier == "" {
			verifier = "user"
		}
		return Approval{Required: true, Reason: "Поручение требует подтверждения исполнителя", Verifier: verifier}
	case cmd.SenseType == model.SenseAction && cmd.ActionType == model.ActionWebhook:
		return Approval{Required: true, Reason: "Вызов внешнего webhook требует подтверждения", Verifier: "user"}
	default:
		return Approval{}
	}
}

// checkApproval is level 4. It never blocks.
func checkApproval(r *run) {
	a := DecideApproval(r.cmd)
	r.res.Record(model.LevelApproval, "approval", map[string]any{"required": a.Required})
	if !a.Required {
		return
	}
	r.res.ApprovalRequired = true
	r.res.ApprovalReason = a.Reason
	r.res.ApprovalVerifier = a.Verifier
	r.res.AddRisk(r.cfg.RiskWeights.ApprovalRequired)
}
