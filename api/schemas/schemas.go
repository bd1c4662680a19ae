// File: api/schemas/schemas.go
package schemas

import (
	"time"

	"github.com/google/uuid"
)

// Params is the free-form parameter bag attached to intents, steps and
// results. Handlers decode it into typed structs before use.
type Params map[string]any

// Intent is the externally derived action the user wants performed. It is
// produced by the understanding layer and is immutable to the execution core.
type Intent struct {
	Action     string  `json:"action"`
	Target     string  `json:"target,omitempty"`
	Parameters Params  `json:"parameters,omitempty"`
	Confidence float64 `json:"confidence"`
	RawCommand string  `json:"raw_command"`
}

// StepStatus tracks the lifecycle of a single plan step. Statuses only ever
// advance; the executor never moves a step backwards.
type StepStatus string

const (
	StepPending   StepStatus = "PENDING"
	StepRunning   StepStatus = "RUNNING"
	StepCompleted StepStatus = "COMPLETED"
	StepFailed    StepStatus = "FAILED"
	StepSkipped   StepStatus = "SKIPPED"
)

// Terminal reports whether the status is an end state for the step.
func (s StepStatus) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// Step is a single unit of work inside a Plan.
type Step struct {
	ID          string     `json:"id"`
	Action      string     `json:"action"`
	Parameters  Params     `json:"parameters,omitempty"`
	Description string     `json:"description,omitempty"`
	Status      StepStatus `json:"status"`
	Result      Params     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at,omitempty"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`

	// Verification outcome is observational metadata only. It never gates
	// step success.
	Verified           bool   `json:"verified"`
	VerificationMethod string `json:"verification_method,omitempty"`
}

// NewStep builds a pending step with a fresh ID.
func NewStep(action string, params Params, description string) *Step {
	return &Step{
		ID:          uuid.NewString(),
		Action:      action,
		Parameters:  params,
		Description: description,
		Status:      StepPending,
	}
}

// DurationMS returns the wall-clock duration of the step in milliseconds, or
// zero if the step has not finished.
func (s *Step) DurationMS() float64 {
	if s.StartedAt.IsZero() || s.CompletedAt.IsZero() {
		return 0
	}
	return float64(s.CompletedAt.Sub(s.StartedAt)) / float64(time.Millisecond)
}

// Plan is an ordered sequence of steps chosen to satisfy an Intent.
type Plan struct {
	Steps     []*Step   `json:"steps"`
	Strategy  string    `json:"strategy,omitempty"`
	Reasoning string    `json:"reasoning,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NewPlan constructs a plan around the given steps.
func NewPlan(strategy, reasoning string, steps ...*Step) *Plan {
	return &Plan{
		Steps:     steps,
		Strategy:  strategy,
		Reasoning: reasoning,
		CreatedAt: time.Now(),
	}
}

// CurrentStepIndex is the index of the first step that has not reached a
// terminal status. Equals len(Steps) when every step is done.
func (p *Plan) CurrentStepIndex() int {
	for i, s := range p.Steps {
		if !s.Status.Terminal() {
			return i
		}
	}
	return len(p.Steps)
}

// CurrentStep returns the step at CurrentStepIndex, or nil when the plan has
// run out of work.
func (p *Plan) CurrentStep() *Step {
	if i := p.CurrentStepIndex(); i < len(p.Steps) {
		return p.Steps[i]
	}
	return nil
}

// IsComplete reports whether every step ended COMPLETED or SKIPPED. An empty
// plan is complete by definition.
func (p *Plan) IsComplete() bool {
	for _, s := range p.Steps {
		if s.Status != StepCompleted && s.Status != StepSkipped {
			return false
		}
	}
	return true
}

// HasFailed reports whether any step ended FAILED.
func (p *Plan) HasFailed() bool {
	for _, s := range p.Steps {
		if s.Status == StepFailed {
			return true
		}
	}
	return false
}

// Progress returns the percentage of steps in a terminal COMPLETED/SKIPPED
// state, 0-100.
func (p *Plan) Progress() float64 {
	if len(p.Steps) == 0 {
		return 100
	}
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepCompleted || s.Status == StepSkipped {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps)) * 100
}

// ActionResult is the only way a handler communicates its outcome. Handlers
// catch their own errors and encode them here; nothing crosses the executor
// boundary as a panic.
type ActionResult struct {
	Success    bool   `json:"success"`
	Data       Params `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	MethodUsed string `json:"method_used,omitempty"`
}

// Failure builds a failed result with the given human-readable error.
func Failure(err string) ActionResult {
	return ActionResult{Success: false, Error: err}
}

// VerifyResult is an advisory post-condition check. It carries a confidence
// score but does not gate step success.
type VerifyResult struct {
	Verified   bool    `json:"verified"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// ExecutionRecord is the persisted account of one ExecutePlan run.
type ExecutionRecord struct {
	ID            string         `json:"id"`
	RawCommand    string         `json:"raw_command"`
	Intent        Intent         `json:"intent"`
	Strategy      string         `json:"strategy,omitempty"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Steps         []StepRecord   `json:"steps"`
	Variables     map[string]any `json:"variables,omitempty"`
	WindowTitle   string         `json:"window_title,omitempty"`
	Success       bool           `json:"success"`
	FailureReason string         `json:"failure_reason,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	DurationMS    float64        `json:"duration_ms"`
}

// StepRecord is the flattened per-step outcome stored with an execution.
type StepRecord struct {
	Index      int        `json:"index"`
	Action     string     `json:"action"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	MethodUsed string     `json:"method_used,omitempty"`
	DurationMS float64    `json:"duration_ms"`
	Verified   bool       `json:"verified"`
}
