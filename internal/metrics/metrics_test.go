package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/askiguard/internal/model"
)

func TestObserveOutput(t *testing.T) {
	before := testutil.ToFloat64(outputChecks.WithLabelValues("block", "manipulation"))
	ObserveOutput(ValidatorOutput, model.ValidationResult{Blocked: true, Reason: model.ReasonManipulation})
	after := testutil.ToFloat64(outputChecks.WithLabelValues("block", "manipulation"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}
}

func TestObserveCommand(t *testing.T) {
	level := 2
	res := &model.CommandValidationResult{Blocked: true, BlockedAtLevel: &level, RiskScore: 3}

	before := testutil.ToFloat64(commandValidations.WithLabelValues("block", "2"))
	ObserveCommand(res, time.Millisecond)
	after := testutil.ToFloat64(commandValidations.WithLabelValues("block", "2"))
	if after-before != 1 {
		t.Errorf("counter delta = %v, want 1", after-before)
	}

	before = testutil.ToFloat64(commandValidations.WithLabelValues("approval_required", ""))
	ObserveCommand(&model.CommandValidationResult{ApprovalRequired: true}, time.Millisecond)
	after = testutil.ToFloat64(commandValidations.WithLabelValues("approval_required", ""))
	if after-before != 1 {
		t.Errorf("approval counter delta = %v, want 1", after-before)
	}
}

func TestSetLearnedPatterns(t *testing.T) {
	SetLearnedPatterns(4, 2)
	if got := testutil.ToFloat64(learnedPatterns.WithLabelValues("bad")); got != 4 {
		t.Errorf("bad = %v", got)
	}
	if got := testutil.ToFloat64(learnedPatterns.WithLabelValues("good")); got != 2 {
		t.Errorf("good = %v", got)
	}
}
