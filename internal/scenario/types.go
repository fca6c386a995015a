package scenario

import "github.com/ppiankov/askiguard/internal/model"

// Expectation values shared by both case kinds. Anything else is a block
// reason (output cases) or an error code (command cases).
const (
	ExpectPass     = "pass"
	ExpectApproval = "approval"
)

// OutputCase is a text sent through the output validator, or through the
// input validator when Input is set.
type OutputCase struct {
	Text    string   `yaml:"text"`
	Input   bool     `yaml:"input,omitempty"`
	History []string `yaml:"history,omitempty"`
	Feed    []string `yaml:"feed,omitempty"`
}

// CommandCase is a command sent through every validation level.
type CommandCase struct {
	Command     model.Command `yaml:"command"`
	UserRequest string        `yaml:"request,omitempty"`
	Now         string        `yaml:"now,omitempty"`
}

// Case is one test case within a scenario. Exactly one of Output and
// Command is set.
type Case struct {
	Name    string       `yaml:"name,omitempty"`
	Output  *OutputCase  `yaml:"output,omitempty"`
	Command *CommandCase `yaml:"command,omitempty"`
	Expect  string       `yaml:"expect"`
}

// Scenario is a named collection of validator test cases. Now anchors
// every command case that does not set its own.
type Scenario struct {
	Name  string `yaml:"name"`
	Now   string `yaml:"now,omitempty"`
	Cases []Case `yaml:"cases"`
}

// CaseResult is the outcome of evaluating one test case.
type CaseResult struct {
	Index    int    `json:"index"`
	Passed   bool   `json:"passed"`
	Kind     string `json:"kind"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Detail   string `json:"detail,omitempty"`
}

// RunResult is the outcome of running all cases in one scenario file.
type RunResult struct {
	File   string       `json:"file"`
	Name   string       `json:"name"`
	Total  int          `json:"total"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Cases  []CaseResult `json:"cases"`
}
