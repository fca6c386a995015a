package command

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/askiguard/internal/model"
)

var userIDPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// scheduleLayouts are tried in order. Layouts without an offset are read in
// the configured location.
var scheduleLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// dateOnlyLayout values mean midnight UTC of that day.
const dateOnlyLayout = "2006-01-02"

// ParseScheduledAt parses an ISO-8601 timestamp.
func ParseScheduledAt(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// checkSyntax is level 1. Missing required fields stop the level at once;
// the remaining checks collect every error before blocking.
func checkSyntax(r *run) {
	res, cmd := r.res, r.cmd
	lvl := model.LevelSyntax

	var missing []string
	if strings.TrimSpace(cmd.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(cmd.ScheduledAt) == "" {
		missing = append(missing, "scheduled_at")
	}
	if cmd.ActionType == "" {
		missing = append(missing, "action_type")
	}
	if cmd.SenseType == "" {
		missing = append(missing, "sense_type")
	}
	res.Record(lvl, "required_fields", map[string]any{"missing": len(missing)})
	if len(missing) > 0 {
		res.Fail(lvl, CodeMissingFields,
			"Не заполнены обязательные поля: "+strings.Join(missing, ", "),
			map[string]any{"missing": missing})
		return
	}

	scheduled, err := ParseScheduledAt(cmd.ScheduledAt, r.loc)
	if err != nil {
		res.Fail(lvl, CodeInvalidDate, "Некорректный формат даты",
			map[string]any{"scheduled_at": cmd.ScheduledAt})
	} else {
		r.scheduled = scheduled
	}
	if cmd.UserID != "" && !userIDPattern.MatchString(cmd.UserID) {
		res.Fail(lvl, CodeInvalidUserID, "Некорректный идентификатор пользователя",
			map[string]any{"user_id": cmd.UserID})
	}
	res.Record(lvl, "formats", nil)

	if !cmd.SenseType.Known() {
		res.Fail(lvl, CodeInvalidSenseType, "Неизвестный тип команды",
			map[string]any{"sense_type": cmd.SenseType})
	}
	if cmd.RuntimeType != "" && !cmd.RuntimeType.Known() {
		res.Fail(lvl, CodeInvalidRuntimeType, "Неизвестный способ выполнения",
			map[string]any{"runtime_type": cmd.RuntimeType})
	}
	if cmd.RelationType != "" && !cmd.RelationType.Known() {
		res.Fail(lvl, CodeInvalidRelation, "Неизвестный тип связи",
			map[string]any{"relation_type": cmd.RelationType})
	}
	if cmd.Status != "" && !cmd.Status.Known() {
		res.Fail(lvl, CodeInvalidStatus, "Неизвестный статус",
			map[string]any{"status": cmd.Status})
	}
	if !cmd.ActionType.Known() {
		res.Warn(lvl, CodeUnknownActionType, "Неизвестный канал доставки",
			map[string]any{"action_type": cmd.ActionType})
		res.AddRisk(r.cfg.RiskWeights.UnknownActionType)
	}
	res.Record(lvl, "enums", nil)

	if n := utf8.RuneCountInString(cmd.Title); n > r.cfg.MaxTitleLength {
		res.Fail(lvl, CodeTitleTooLong, "Слишком длинный заголовок",
			map[string]any{"length": n, "max": r.cfg.MaxTitleLength})
	}
	if n := utf8.RuneCountInString(cmd.Content); n > r.cfg.MaxContentLength {
		res.Fail(lvl, CodeContentTooLong, "Слишком длинное содержание",
			map[string]any{"length": n, "max": r.cfg.MaxContentLength})
	}
	res.Record(lvl, "lengths", nil)
}
