// Package metrics exposes Prometheus instruments for both validators.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/askiguard/internal/model"
)

// Validator names used as the "validator" label.
const (
	ValidatorOutput  = "output"
	ValidatorInput   = "input"
	ValidatorCommand = "command"
)

var (
	outputChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askiguard_output_checks_total",
		Help: "Output and input checks by result and block reason",
	}, []string{"result", "reason"})

	commandValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "askiguard_command_validations_total",
		Help: "Command validations by result and blocking level",
	}, []string{"result", "level"})

	commandRisk = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "askiguard_command_risk_score",
		Help:    "Risk score of validated commands",
		Buckets: []float64{0, 2, 5, 10, 15, 20, 30, 50},
	})

	learnedPatterns = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "askiguard_learned_patterns",
		Help: "Number of learned patterns by kind",
	}, []string{"kind"})

	validationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "askiguard_validation_duration_seconds",
		Help:    "Validation latency by validator",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}, []string{"validator"})
)

// ObserveOutput records an output or input check.
func ObserveOutput(validator string, res model.ValidationResult) {
	result := "pass"
	if res.Blocked {
		result = "block"
	}
	outputChecks.WithLabelValues(result, string(res.Reason)).Inc()
	validationDuration.WithLabelValues(validator).Observe(res.ProcessingTimeMs / 1000)
}

// ObserveCommand records a command validation.
func ObserveCommand(res *model.CommandValidationResult, elapsed time.Duration) {
	result, level := "pass", ""
	switch {
	case res.Blocked:
		result = "block"
		if res.BlockedAtLevel != nil {
			level = strconv.Itoa(*res.BlockedAtLevel)
		}
	case res.ApprovalRequired:
		result = "approval_required"
	}
	commandValidations.WithLabelValues(result, level).Inc()
	commandRisk.Observe(float64(res.RiskScore))
	validationDuration.WithLabelValues(ValidatorCommand).Observe(elapsed.Seconds())
}

// SetLearnedPatterns updates the learned pattern gauges.
func SetLearnedPatterns(bad, good int) {
	learnedPatterns.WithLabelValues("bad").Set(float64(bad))
	learnedPatterns.WithLabelValues("good").Set(float64(good))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
