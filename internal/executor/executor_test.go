// File: internal/executor/executor_test.go
package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/config"
	"github.com/xkilldash9x/handsfree/internal/events"
	"github.com/xkilldash9x/handsfree/internal/state"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeHandler is a scriptable ActionHandler for exercising the dispatch path.
type fakeHandler struct {
	schemas.BaseHandler
	name      string
	verifies  bool
	validate  func(schemas.Params) (bool, string)
	execute   func(schemas.Params, schemas.ExecContext) schemas.ActionResult
	verifyFn  func(schemas.Params, schemas.ExecContext, schemas.ActionResult) schemas.VerifyResult
	execCalls int
}

func (h *fakeHandler) ActionName() string { return h.name }

func (h *fakeHandler) SupportsVerification() bool { return h.verifies }

func (h *fakeHandler) Validate(p schemas.Params) (bool, string) {
	if h.validate != nil {
		return h.validate(p)
	}
	return true, ""
}

func (h *fakeHandler) Execute(p schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	h.execCalls++
	if h.execute != nil {
		return h.execute(p, execCtx)
	}
	return schemas.ActionResult{Success: true, MethodUsed: "fake"}
}

func (h *fakeHandler) Verify(p schemas.Params, execCtx schemas.ExecContext, result schemas.ActionResult) schemas.VerifyResult {
	if h.verifyFn != nil {
		return h.verifyFn(p, execCtx, result)
	}
	return h.BaseHandler.Verify(p, execCtx, result)
}

// fakeRecorder captures the execution records the executor persists.
type fakeRecorder struct {
	records []*schemas.ExecutionRecord
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, rec *schemas.ExecutionRecord) error {
	r.records = append(r.records, rec)
	return r.err
}

func testConfig() *config.Config {
	cfg := config.NewDefault()
	cfg.ExecutorCfg.StepDelay = 0
	cfg.SafetyCfg.MaxActionsPerMinute = 0
	return cfg
}

type harness struct {
	exec     *Executor
	bus      *events.Bus
	machine  *state.Machine
	recorder *fakeRecorder
}

func newHarness(t *testing.T, cfg *config.Config, handlers ...schemas.ActionHandler) *harness {
	t.Helper()
	bus := events.NewBus(zap.NewNop())
	machine := state.NewMachine(zap.NewNop(), bus)
	reg, err := NewRegistry(zap.NewNop(), handlers)
	require.NoError(t, err)
	rec := &fakeRecorder{}
	exec, err := New(cfg, zap.NewNop(), bus, machine, reg, rec)
	require.NoError(t, err)
	exec.sleep = func(time.Duration) {}
	return &harness{exec: exec, bus: bus, machine: machine, recorder: rec}
}

// collect subscribes to the given event types and returns the accumulating
// slice. Dispatch is synchronous, so reads after an Emit are safe.
func (h *harness) collect(types ...events.Type) *[]events.Event {
	var got []events.Event
	for _, t := range types {
		h.bus.Subscribe(t, func(ev events.Event) {
			got = append(got, ev)
		})
	}
	return &got
}

func testIntent(action string) schemas.Intent {
	return schemas.Intent{Action: action, RawCommand: "please " + action, Confidence: 0.9}
}

func TestNewRejectsNilCollaborators(t *testing.T) {
	bus := events.NewBus(zap.NewNop())
	machine := state.NewMachine(zap.NewNop(), bus)
	reg, err := NewRegistry(zap.NewNop())
	require.NoError(t, err)

	_, err = New(nil, zap.NewNop(), bus, machine, reg, nil)
	assert.Error(t, err)
	_, err = New(testConfig(), nil, bus, machine, reg, nil)
	assert.Error(t, err)
	_, err = New(testConfig(), zap.NewNop(), nil, machine, reg, nil)
	assert.Error(t, err)
	_, err = New(testConfig(), zap.NewNop(), bus, nil, reg, nil)
	assert.Error(t, err)
	_, err = New(testConfig(), zap.NewNop(), bus, machine, nil, nil)
	assert.Error(t, err)

	exec, err := New(testConfig(), zap.NewNop(), bus, machine, reg, nil)
	require.NoError(t, err, "nil recorder is allowed")
	assert.NotNil(t, exec)
}

func TestExecuteEmptyPlanSucceeds(t *testing.T) {
	h := newHarness(t, testConfig())
	completed := h.collect(events.PlanCompleted)
	failed := h.collect(events.PlanFailed)

	ok := h.exec.ExecutePlan(schemas.NewPlan("noop", "nothing to do"), testIntent("noop"))

	assert.True(t, ok)
	assert.Len(t, *completed, 1)
	assert.Empty(t, *failed)
	assert.Equal(t, state.Idle, h.machine.State())
	assert.False(t, h.exec.IsExecuting())
}

func TestExecutePlanAllStepsComplete(t *testing.T) {
	wait := &fakeHandler{name: "wait"}
	h := newHarness(t, testConfig(), wait)
	completed := h.collect(events.PlanCompleted)
	stepDone := h.collect(events.PlanStepCompleted)

	plan := schemas.NewPlan("sequential", "two pauses",
		schemas.NewStep("wait", schemas.Params{"seconds": 0.1}, "first pause"),
		schemas.NewStep("wait", schemas.Params{"seconds": 0.1}, "second pause"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("wait"))

	assert.True(t, ok)
	assert.Equal(t, 2, wait.execCalls)
	for _, step := range plan.Steps {
		assert.Equal(t, schemas.StepCompleted, step.Status)
		assert.False(t, step.CompletedAt.IsZero())
	}
	assert.True(t, plan.IsComplete())
	assert.Len(t, *completed, 1, "exactly one PLAN_COMPLETED")
	assert.Len(t, *stepDone, 2)
	assert.Equal(t, state.Idle, h.machine.State())

	require.Len(t, h.recorder.records, 1)
	rec := h.recorder.records[0]
	assert.True(t, rec.Success)
	assert.NotEmpty(t, rec.ID)
	assert.Len(t, rec.Steps, 2)
}

func TestUnknownActionFailsPlan(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{name: "wait"})
	stepFailed := h.collect(events.PlanStepFailed)
	planFailed := h.collect(events.PlanFailed)
	completed := h.collect(events.PlanCompleted)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("teleport", schemas.Params{}, "impossible"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("teleport"))

	assert.False(t, ok)
	assert.Equal(t, schemas.StepFailed, plan.Steps[0].Status)
	assert.Contains(t, plan.Steps[0].Error, `no handler registered for action "teleport"`)
	require.Len(t, *stepFailed, 1)
	require.Len(t, *planFailed, 1)
	assert.Empty(t, *completed)
	assert.Equal(t, (*planFailed)[0].Data["error"], plan.Steps[0].Error)
	assert.Equal(t, state.Idle, h.machine.State())

	require.Len(t, h.recorder.records, 1)
	assert.False(t, h.recorder.records[0].Success)
}

func TestValidationFailurePreventsExecute(t *testing.T) {
	strict := &fakeHandler{
		name: "type_text",
		validate: func(p schemas.Params) (bool, string) {
			if _, ok := p["text"]; !ok {
				return false, "missing required parameter: text"
			}
			return true, ""
		},
	}
	h := newHarness(t, testConfig(), strict)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("type_text", schemas.Params{}, "type nothing"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("type_text"))

	assert.False(t, ok)
	assert.Zero(t, strict.execCalls, "Execute must not run when Validate rejects")
	assert.Equal(t, "validation failed: missing required parameter: text", plan.Steps[0].Error)
}

func TestFailFastSkipsRemainingSteps(t *testing.T) {
	good := &fakeHandler{name: "wait"}
	bad := &fakeHandler{
		name: "click",
		execute: func(schemas.Params, schemas.ExecContext) schemas.ActionResult {
			return schemas.Failure("element not found")
		},
	}
	h := newHarness(t, testConfig(), good, bad)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("wait", schemas.Params{}, "settle"),
		schemas.NewStep("click", schemas.Params{}, "press the button"),
		schemas.NewStep("wait", schemas.Params{}, "never reached"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("click"))

	assert.False(t, ok)
	assert.Equal(t, schemas.StepCompleted, plan.Steps[0].Status)
	assert.Equal(t, schemas.StepFailed, plan.Steps[1].Status)
	assert.Equal(t, schemas.StepPending, plan.Steps[2].Status, "later steps are never attempted")
	assert.Equal(t, 1, good.execCalls)
	assert.True(t, plan.HasFailed())
}

func TestHandlerPanicBecomesFailedStep(t *testing.T) {
	volatile := &fakeHandler{
		name: "launch_app",
		execute: func(schemas.Params, schemas.ExecContext) schemas.ActionResult {
			panic("driver exploded")
		},
	}
	h := newHarness(t, testConfig(), volatile)
	planFailed := h.collect(events.PlanFailed)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("launch_app", schemas.Params{"target": "notepad"}, "open notepad"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("launch_app"))

	assert.False(t, ok)
	assert.Equal(t, schemas.StepFailed, plan.Steps[0].Status)
	assert.Contains(t, plan.Steps[0].Error, "handler panic: driver exploded")
	assert.Len(t, *planFailed, 1)
	assert.False(t, h.exec.IsExecuting(), "executor must recover and reset")

	// Still usable for the next plan.
	ok = h.exec.ExecutePlan(schemas.NewPlan("noop", ""), testIntent("noop"))
	assert.True(t, ok)
}

func TestPlanTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.ExecutorCfg.MaxPlanDuration = time.Nanosecond
	wait := &fakeHandler{name: "wait"}
	h := newHarness(t, cfg, wait)
	planFailed := h.collect(events.PlanFailed)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("wait", schemas.Params{}, "never starts"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("wait"))

	assert.False(t, ok)
	assert.Zero(t, wait.execCalls, "budget is checked before each step")
	assert.Equal(t, schemas.StepPending, plan.Steps[0].Status)
	require.Len(t, *planFailed, 1)
	assert.Equal(t, "plan execution timeout", (*planFailed)[0].Data["error"])
}

func TestConcurrentPlanIsDropped(t *testing.T) {
	h := newHarness(t, testConfig())

	var nested bool
	reentrant := &fakeHandler{
		name: "wait",
		execute: func(schemas.Params, schemas.ExecContext) schemas.ActionResult {
			// A plan arriving mid-execution must be dropped, not queued.
			nested = h.exec.ExecutePlan(schemas.NewPlan("noop", ""), testIntent("noop"))
			return schemas.ActionResult{Success: true}
		},
	}
	reg, err := NewRegistry(zap.NewNop(), []schemas.ActionHandler{reentrant})
	require.NoError(t, err)
	h.exec.registry = reg

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("wait", schemas.Params{}, "outer step"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("wait"))

	assert.True(t, ok, "outer plan completes normally")
	assert.False(t, nested, "inner plan was dropped")
	require.Len(t, h.recorder.records, 1, "only the outer plan was recorded")
}

func TestVerificationIsAdvisory(t *testing.T) {
	verifier := &fakeHandler{
		name:     "focus_window",
		verifies: true,
		verifyFn: func(schemas.Params, schemas.ExecContext, schemas.ActionResult) schemas.VerifyResult {
			return schemas.VerifyResult{Verified: false, Confidence: 0.3, Reason: "window title mismatch"}
		},
	}
	h := newHarness(t, testConfig(), verifier)
	stepDone := h.collect(events.PlanStepCompleted)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("focus_window", schemas.Params{"title": "Editor"}, "focus"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("focus_window"))

	assert.True(t, ok, "failed verification never fails the step")
	assert.Equal(t, schemas.StepCompleted, plan.Steps[0].Status)
	assert.False(t, plan.Steps[0].Verified)
	assert.Equal(t, "handler_verify", plan.Steps[0].VerificationMethod)
	require.Len(t, *stepDone, 1)
	assert.Equal(t, false, (*stepDone)[0].Data["verified"])

	require.Len(t, h.recorder.records, 1)
	diag, found := h.recorder.records[0].Variables["step_0_verify_failed"]
	require.True(t, found, "failed verification is recorded for diagnostics")
	assert.Equal(t, "window title mismatch", diag)
}

func TestVerificationSuccessMarksStep(t *testing.T) {
	verifier := &fakeHandler{
		name:     "focus_window",
		verifies: true,
		verifyFn: func(schemas.Params, schemas.ExecContext, schemas.ActionResult) schemas.VerifyResult {
			return schemas.VerifyResult{Verified: true, Confidence: 0.95, Reason: "foreground window matches"}
		},
	}
	h := newHarness(t, testConfig(), verifier)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("focus_window", schemas.Params{"title": "Editor"}, "focus"),
	)

	require.True(t, h.exec.ExecutePlan(plan, testIntent("focus_window")))
	assert.True(t, plan.Steps[0].Verified)
	assert.Equal(t, "handler_verify", plan.Steps[0].VerificationMethod)
}

func TestVerifyPanicIsSwallowed(t *testing.T) {
	verifier := &fakeHandler{
		name:     "focus_window",
		verifies: true,
		verifyFn: func(schemas.Params, schemas.ExecContext, schemas.ActionResult) schemas.VerifyResult {
			panic("verify exploded")
		},
	}
	h := newHarness(t, testConfig(), verifier)

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("focus_window", schemas.Params{}, "focus"),
	)

	ok := h.exec.ExecutePlan(plan, testIntent("focus_window"))
	assert.True(t, ok)
	assert.Equal(t, schemas.StepCompleted, plan.Steps[0].Status)
	assert.Empty(t, plan.Steps[0].VerificationMethod, "verification simply did not happen")
}

func TestRecorderFailureDoesNotFailPlan(t *testing.T) {
	h := newHarness(t, testConfig(), &fakeHandler{name: "wait"})
	h.recorder.err = errors.New("disk full")

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("wait", schemas.Params{}, "pause"),
	)

	assert.True(t, h.exec.ExecutePlan(plan, testIntent("wait")))
	assert.False(t, h.exec.IsExecuting())
}

func TestPlanCreatedEventTriggersExecution(t *testing.T) {
	wait := &fakeHandler{name: "wait"}
	h := newHarness(t, testConfig(), wait)
	completed := h.collect(events.PlanCompleted)

	h.exec.Start()
	defer h.exec.Stop()

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("wait", schemas.Params{}, "pause"),
	)
	h.bus.EmitSimple(events.PlanCreated, "planner", schemas.Params{
		"plan":   plan,
		"intent": testIntent("wait"),
	})

	// The bus is synchronous, so the run finished before Emit returned.
	assert.Equal(t, 1, wait.execCalls)
	assert.Len(t, *completed, 1)
	assert.True(t, plan.IsComplete())
}

func TestMalformedPlanCreatedEmitsError(t *testing.T) {
	h := newHarness(t, testConfig())
	errs := h.collect(events.Error)

	h.exec.Start()
	defer h.exec.Stop()

	h.bus.EmitSimple(events.PlanCreated, "planner", schemas.Params{"plan": "not a plan"})

	require.Len(t, *errs, 1)
	assert.Contains(t, (*errs)[0].Data["error"], "missing plan or intent")
}

func TestStopUnsubscribes(t *testing.T) {
	wait := &fakeHandler{name: "wait"}
	h := newHarness(t, testConfig(), wait)

	h.exec.Start()
	h.exec.Stop()

	h.bus.EmitSimple(events.PlanCreated, "planner", schemas.Params{
		"plan":   schemas.NewPlan("sequential", "", schemas.NewStep("wait", schemas.Params{}, "")),
		"intent": testIntent("wait"),
	})
	assert.Zero(t, wait.execCalls)
}

func TestExecuteSingleAction(t *testing.T) {
	wait := &fakeHandler{name: "wait"}
	h := newHarness(t, testConfig(), wait)
	started := h.collect(events.PlanStepStarted)

	res := h.exec.ExecuteSingleAction("wait", schemas.Params{"seconds": 0.5})
	assert.True(t, res.Success)
	assert.Equal(t, 1, wait.execCalls)
	assert.Empty(t, *started, "ad hoc execution emits no plan events")
	assert.Empty(t, h.recorder.records, "ad hoc execution is not persisted")

	res = h.exec.ExecuteSingleAction("teleport", schemas.Params{})
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no handler registered")
}

func TestStepDelayBetweenStepsOnly(t *testing.T) {
	cfg := testConfig()
	cfg.ExecutorCfg.StepDelay = 100 * time.Millisecond
	h := newHarness(t, cfg, &fakeHandler{name: "wait"})

	var slept []time.Duration
	h.exec.sleep = func(d time.Duration) { slept = append(slept, d) }

	plan := schemas.NewPlan("sequential", "",
		schemas.NewStep("wait", schemas.Params{}, "a"),
		schemas.NewStep("wait", schemas.Params{}, "b"),
		schemas.NewStep("wait", schemas.Params{}, "c"),
	)

	require.True(t, h.exec.ExecutePlan(plan, testIntent("wait")))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}, slept,
		"no settle pause after the final step")
}
