package scenario

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/askiguard/internal/command"
	"github.com/ppiankov/askiguard/internal/config"
	"github.com/ppiankov/askiguard/internal/model"
	"github.com/ppiankov/askiguard/internal/output"
	"github.com/ppiankov/askiguard/internal/patterns"
	"github.com/ppiankov/askiguard/internal/rules"
	"github.com/ppiankov/askiguard/internal/store"
)

// Case kinds reported in results.
const (
	KindOutput  = "output"
	KindInput   = "input"
	KindCommand = "command"
)

// Runner evaluates scenarios against validators built from one config.
// Learned rules live in memory only, so runs never touch persisted state
// and cases stay independent of each other.
type Runner struct {
	output  *output.Validator
	command *command.Validator
	now     func() time.Time
}

// NewRunner builds validators from cfg and its pattern file.
func NewRunner(cfg *config.Config) (*Runner, error) {
	set, err := patterns.Load(cfg.Output.PatternsPath)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	cmd, err := command.New(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("command validator: %w", err)
	}
	db := rules.New(store.NewMemoryStore(), cfg.Rules)
	return &Runner{
		output:  output.New(set, db, cfg.Output),
		command: cmd,
		now:     time.Now,
	}, nil
}

// Run evaluates all cases in a scenario.
func (r *Runner) Run(s *Scenario) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
	}

	for i, c := range s.Cases {
		cr := r.runCase(s, c)
		cr.Index = i + 1
		cr.Expected = strings.ToLower(strings.TrimSpace(c.Expect))
		if strings.EqualFold(cr.Actual, cr.Expected) && cr.Kind != "" {
			cr.Passed = true
			result.Passed++
		} else {
			result.Failed++
		}
		result.Cases = append(result.Cases, cr)
	}

	return result
}

func (r *Runner) runCase(s *Scenario, c Case) CaseResult {
	switch {
	case c.Output != nil && c.Command != nil:
		return CaseResult{Subject: c.Name, Actual: "invalid", Detail: "case sets both output and command"}
	case c.Output != nil:
		return r.runOutput(c.Output)
	case c.Command != nil:
		return r.runCommand(s, c.Command)
	default:
		return CaseResult{Subject: c.Name, Actual: "invalid", Detail: "case sets neither output nor command"}
	}
}

func (r *Runner) runOutput(oc *OutputCase) CaseResult {
	cr := CaseResult{Kind: KindOutput, Subject: oc.Text}
	var res model.ValidationResult
	if oc.Input {
		cr.Kind = KindInput
		res = r.output.ValidateInput(oc.Text)
	} else {
		res = r.output.Validate(oc.Text, contextOf(oc))
	}
	if res.Blocked {
		cr.Actual = string(res.Reason)
		cr.Detail = res.MatchedPattern
	} else {
		cr.Actual = ExpectPass
	}
	return cr
}

func (r *Runner) runCommand(s *Scenario, cc *CommandCase) CaseResult {
	cr := CaseResult{Kind: KindCommand, Subject: cc.Command.Title}
	now, err := r.caseNow(s.Now, cc.Now)
	if err != nil {
		cr.Kind = ""
		cr.Actual = "invalid"
		cr.Detail = err.Error()
		return cr
	}

	res := r.command.Validate(cc.Command, cc.UserRequest, command.Options{Now: now, DryRun: true})
	switch {
	case res.Blocked:
		first := res.FirstError()
		cr.Actual = first.Code
		cr.Detail = first.Message
	case res.ApprovalRequired:
		cr.Actual = ExpectApproval
		cr.Detail = res.ApprovalReason
	default:
		cr.Actual = ExpectPass
	}
	return cr
}

// caseNow picks the case clock, then the scenario clock, then wall time.
func (r *Runner) caseNow(scenarioNow, caseNow string) (time.Time, error) {
	for _, s := range []string{caseNow, scenarioNow} {
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid now %q: %w", s, err)
		}
		return t, nil
	}
	return r.now(), nil
}

func contextOf(oc *OutputCase) model.Context {
	var ctx model.Context
	for _, h := range oc.History {
		ctx.History = append(ctx.History, model.Turn{Role: "user", Text: h})
	}
	for _, f := range oc.Feed {
		ctx.Feed = append(ctx.Feed, model.FeedItem{Text: f})
	}
	return ctx
}

// Load reads a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		return nil, errors.New("scenario " + path + " has no name")
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file and runs it.
func (r *Runner) LoadAndRun(path string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}
	result := r.Run(s)
	result.File = path
	return result, nil
}
