package command

import (
	"time"

	"github.com/ppiankov/askiguard/internal/model"
)

// checkLogic is level 2: time window, actors and type combinations.
func checkLogic(r *run) {
	res, cmd, cfg := r.res, r.cmd, r.cfg
	lvl := model.LevelLogic

	if cmd.RuntimeType == model.RuntimeInstant {
		res.Record(lvl, "time_in_future", map[string]any{"skipped": true})
	} else {
		res.Record(lvl, "time_in_future", nil)
		if r.scheduled.Before(r.now.Add(-cfg.PastTolerance)) {
			res.Fail(lvl, CodeTimeInPast, "Время выполнения уже прошло",
				map[string]any{
					"scheduled_at": r.scheduled.Format(time.RFC3339),
					"now":          r.now.Format(time.RFC3339),
				})
		}
	}

	ahead := r.scheduled.Sub(r.now)
	res.Record(lvl, "horizon", map[string]any{"days_ahead": int(ahead.Hours() / 24)})
	switch {
	case ahead > cfg.MaxHorizon:
		res.Fail(lvl, CodeScheduleTooFar, "Команда запланирована слишком далеко",
			map[string]any{"days_ahead": int(ahead.Hours() / 24), "max_days": int(cfg.MaxHorizon.Hours() / 24)})
	case ahead > cfg.FarAheadWarning:
		res.Warn(lvl, CodeScheduleFarAhead, "Команда запланирована больше чем на месяц вперёд",
			map[string]any{"days_ahead": int(ahead.Hours() / 24)})
		res.AddRisk(cfg.RiskWeights.FarAhead)
	}

	res.Record(lvl, "actors", nil)
	if cmd.Creator != "" && !r.known[cmd.Creator] {
		res.Warn(lvl, CodeUnknownCreator, "Неизвестный создатель команды",
			map[string]any{"creator": cmd.Creator})
		res.AddRisk(cfg.RiskWeights.UnknownActor)
	}
	if cmd.Acceptor != "" && !r.known[cmd.Acceptor] {
		res.Warn(lvl, CodeUnknownAcceptor, "Неизвестный исполнитель команды",
			map[string]any{"acceptor": cmd.Acceptor})
		res.AddRisk(cfg.RiskWeights.UnknownActor)
	}

	res.Record(lvl, "type_consistency", nil)
	if cmd.SenseType == model.SenseReminder && cmd.RuntimeType == model.RuntimeInstant {
		res.Warn(lvl, CodeReminderInstant, "Напоминание с мгновенным выполнением",
			map[string]any{"sense_type": cmd.SenseType, "runtime_type": cmd.RuntimeType})
		res.AddRisk(cfg.RiskWeights.UnusualCombination)
	}
	if cmd.SenseType == model.SenseManagement && cmd.RuntimeType != model.RuntimeScripted {
		res.Warn(lvl, CodeManagementScript, "Управляющая команда без сценария",
			map[string]any{"sense_type": cmd.SenseType, "runtime_type": cmd.RuntimeType})
		res.AddRisk(cfg.RiskWeights.UnusualCombination)
	}
}
