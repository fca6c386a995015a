package command

import (
	"math"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ppiankov/askiguard/internal/model"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}\s]`)

// stopWords are dropped before comparing a request with a title. Command
// verbs and time words are included because they describe scheduling, not
// the subject.
var stopWords = map[string]bool{
	"что": true, "как": true, "это": true, "для": true, "про": true,
	"при": true, "над": true, "под": true, "без": true, "или": true,
	"мне": true, "меня": true, "мой": true, "моя": true, "моё": true,
	"мои": true, "мою": true, "тебе": true, "тебя": true, "твой": true,
	"его": true, "её": true, "она": true, "они": true, "оно": true,
	"нам": true, "нас": true, "вам": true, "вас": true, "их": true,
	"все": true, "всё": true, "так": true, "там": true, "тут": true,
	"уже": true, "ещё": true, "еще": true, "чтобы": true, "если": true,
	"пожалуйста": true, "надо": true, "нужно": true, "можно": true,
	"напомни": true, "напомнить": true, "напоминание": true,
	"создай": true, "создать": true, "поставь": true, "поставить": true,
	"добавь": true, "добавить": true, "запиши": true, "записать": true,
	"сделай": true, "сделать": true, "отправь": true, "отправить": true,
	"через": true, "завтра": true, "сегодня": true, "послезавтра": true,
	"минут": true, "минуты": true, "минуту": true, "час": true,
	"часа": true, "часов": true, "полчаса": true, "пол": true,
	"день": true, "дня": true, "дней": true, "утром": true,
	"вечером": true, "днём": true, "днем": true, "ночью": true,
}

// checkContext is level 3. Without the original request there is nothing
// to compare against and the level passes.
func checkContext(r *run) {
	lvl := model.LevelContext
	if strings.TrimSpace(r.request) == "" {
		r.res.Record(lvl, "context", map[string]any{"skipped": true})
		return
	}
	checkDeviation(r)
	checkRelevance(r)
}

// checkDeviation compares the scheduled time with the time named in the
// request. An unrecognized request is not suspicious; the check is skipped.
func checkDeviation(r *run) {
	res, lvl := r.res, model.LevelContext

	m, ok := r.parser.Parse(r.request, r.now)
	if !ok {
		res.Record(lvl, "time_deviation", map[string]any{"parsed": false})
		return
	}

	deviation := r.scheduled.Sub(m.Expected).Abs()
	minutes := deviation.Minutes()
	res.Record(lvl, "time_deviation", map[string]any{
		"parsed":            true,
		"rule":              m.Rule,
		"deviation_minutes": minutes,
	})

	if deviation > r.cfg.DeviationThreshold {
		res.Fail(lvl, CodeTimeDeviation, "Время команды не совпадает с запросом",
			map[string]any{
				"expected":          m.Expected.Format(time.RFC3339),
				"scheduled_at":      r.scheduled.Format(time.RFC3339),
				"deviation_minutes": minutes,
				"threshold_minutes": r.cfg.DeviationThreshold.Minutes(),
				"phrase":            m.Phrase,
			})
		return
	}
	r.res.AddRisk(int(math.Round(minutes)))
}

// checkRelevance warns when the title shares almost no words with the
// request. It never blocks.
func checkRelevance(r *run) {
	res, lvl := r.res, model.LevelContext

	requestWords := SignificantWords(r.request)
	titleWords := SignificantWords(r.cmd.Title)

	common := 0
	for _, w := range requestWords {
		if slices.Contains(titleWords, w) {
			common++
		}
	}
	relevance := float64(common) / float64(max(len(requestWords), 1))
	res.Record(lvl, "content_relevance", map[string]any{"relevance": relevance})

	if relevance < r.cfg.RelevanceThreshold && len(requestWords) > r.cfg.RelevanceMinWords {
		res.Warn(lvl, CodeLowRelevance, "Заголовок команды мало связан с запросом",
			map[string]any{
				"request_words": requestWords,
				"title_words":   titleWords,
				"relevance":     relevance,
			})
	}
}

// SignificantWords lowercases text, strips punctuation and returns the
// distinct words longer than two letters that are not stop words, in order
// of first appearance.
func SignificantWords(text string) []string {
	clean := nonWord.ReplaceAllString(strings.ToLower(text), "")
	var out []string
	for _, w := range strings.Fields(clean) {
		if utf8.RuneCountInString(w) <= 2 || stopWords[w] || slices.Contains(out, w) {
			continue
		}
		out = append(out, w)
	}
	return out
}
