package command

import (
	"github.com/google/uuid"

	"github.com/ppiankov/askiguard/internal/model"
)

// writeLog is level 5. It never blocks.
func (v *Validator) writeLog(r *run, dryRun bool) {
	res := r.res
	entry := model.ExecutionLogEntry{
		ID:               uuid.NewString(),
		CommandID:        r.cmd.ID,
		Title:            r.cmd.Title,
		SenseType:        r.cmd.SenseType,
		ActionType:       r.cmd.ActionType,
		ScheduledAt:      r.cmd.ScheduledAt,
		RiskScore:        res.RiskScore,
		RiskLevel:        model.RiskLevelFor(res.RiskScore, r.cfg.RiskLevels.MediumMin, r.cfg.RiskLevels.HighMin),
		ApprovalRequired: res.ApprovalRequired,
		Checks:           len(res.Checks) + 1,
		Warnings:         len(res.Warnings),
		Timestamp:        r.now.UTC(),
	}
	res.Record(model.LevelExecutionLog, "execution_log", map[string]any{"entry_id": entry.ID, "recorded": !dryRun && v.recorder != nil})
	res.Metadata.ExecutionLog = &entry

	if !dryRun && v.recorder != nil {
		v.recorder.Append(entry)
	}
}
