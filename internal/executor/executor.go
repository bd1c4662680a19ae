// File: internal/executor/executor.go
// Description: Drives a Plan to completion. Ordered step execution,
// fail-fast on any step failure, one wall-clock budget for the whole plan,
// advisory post-condition verification, and a guaranteed log-and-reset on
// every exit path.
package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/handsfree/api/schemas"
	"github.com/xkilldash9x/handsfree/internal/config"
	"github.com/xkilldash9x/handsfree/internal/events"
	"github.com/xkilldash9x/handsfree/internal/state"
)

const source = "executor"

// reasonTimeout is the whole-plan failure reason carried by PLAN_FAILED
// when a run exceeds its wall-clock budget. Step-level failures use the
// step's own error message.
const reasonTimeout = "plan execution timeout"

// persistTimeout bounds how long the always-log path may block execution
// reset on a slow store.
const persistTimeout = 5 * time.Second

// Recorder persists one execution record per run. The store implements it;
// tests substitute a capture.
type Recorder interface {
	Record(ctx context.Context, rec *schemas.ExecutionRecord) error
}

// Executor consumes PLAN_CREATED events and runs plans one at a time. At
// most one plan is in flight; a plan submitted while another executes is
// dropped, never queued.
type Executor struct {
	cfg      config.ExecutorConfig
	logger   *zap.Logger
	bus      *events.Bus
	machine  *state.Machine
	registry *Registry
	recorder Recorder
	limiter  *rate.Limiter

	// inFlight is the single-plan guard. Claimed with a compare-and-swap so
	// two PLAN_CREATED events arriving back to back cannot both start.
	inFlight atomic.Bool

	mu      sync.Mutex
	current *Context
	sub     events.Subscription
	started bool

	// sleep is injectable so tests do not wait out real settle delays.
	sleep func(time.Duration)
}

// New wires an executor. The recorder may be nil, in which case execution
// records are not persisted (used by ad hoc invocations and some tests).
func New(
	cfg config.Interface,
	logger *zap.Logger,
	bus *events.Bus,
	machine *state.Machine,
	registry *Registry,
	recorder Recorder,
) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus cannot be nil")
	}
	if machine == nil {
		return nil, fmt.Errorf("state machine cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	e := &Executor{
		cfg:      cfg.Executor(),
		logger:   logger.Named("executor"),
		bus:      bus,
		machine:  machine,
		registry: registry,
		recorder: recorder,
		sleep:    time.Sleep,
	}
	if n := cfg.Safety().MaxActionsPerMinute; n > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
	return e, nil
}

// Start subscribes the executor to PLAN_CREATED events.
func (e *Executor) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return
	}
	e.sub = e.bus.Subscribe(events.PlanCreated, e.onPlanCreated)
	e.started = true
	e.logger.Info("listening for PLAN_CREATED events",
		zap.Strings("actions", e.registry.Actions()))
}

// Stop unsubscribes from the bus. A plan already in flight runs to
// completion; there is no cancellation.
func (e *Executor) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return
	}
	e.bus.Unsubscribe(events.PlanCreated, e.sub)
	e.started = false
}

// IsExecuting reports whether a plan is currently in flight.
func (e *Executor) IsExecuting() bool { return e.inFlight.Load() }

// CurrentContext returns the context of the in-flight run, or nil.
func (e *Executor) CurrentContext() *Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Actions returns the registered action names.
func (e *Executor) Actions() []string { return e.registry.Actions() }

func (e *Executor) onPlanCreated(ev events.Event) {
	plan, planOK := ev.Data["plan"].(*schemas.Plan)
	intent, intentOK := ev.Data["intent"].(schemas.Intent)
	if !planOK || !intentOK {
		e.logger.Error("PLAN_CREATED event missing plan or intent",
			zap.String("event_id", ev.ID))
		e.bus.EmitSimple(events.Error, source, schemas.Params{
			"error": "PLAN_CREATED event missing plan or intent",
		})
		return
	}
	e.ExecutePlan(plan, intent)
}

// ExecutePlan runs every step of the plan in order. It returns true only
// when all steps completed. Whatever happens, the execution record is
// persisted, a PLAN_COMPLETED or PLAN_FAILED event is emitted, the state
// machine returns to IDLE and the in-flight flag is cleared before this
// method returns.
func (e *Executor) ExecutePlan(plan *schemas.Plan, intent schemas.Intent) bool {
	if plan == nil {
		e.logger.Error("refusing to execute a nil plan")
		return false
	}

	// Claim the single-plan slot atomically. Losing the race means another
	// plan is mid-flight; this one is dropped, not queued.
	if !e.inFlight.CompareAndSwap(false, true) {
		e.logger.Warn("already executing a plan, dropping new plan",
			zap.String("intent_action", intent.Action),
			zap.Int("steps", len(plan.Steps)))
		return false
	}

	// Best effort: execution proceeds even if the transition is rejected.
	if !e.machine.SetState(state.Executing) {
		e.logger.Warn("could not transition to EXECUTING",
			zap.String("current_state", string(e.machine.State())))
	}

	execCtx := NewContext(plan, intent, StalenessPolicy{
		MaxAge:        e.cfg.ElementMaxAge,
		MinConfidence: e.cfg.ElementMinConfidence,
	})
	e.mu.Lock()
	e.current = execCtx
	e.mu.Unlock()

	e.logger.Info("starting plan execution",
		zap.String("intent_action", intent.Action),
		zap.String("intent_target", intent.Target),
		zap.String("strategy", plan.Strategy),
		zap.Int("steps", len(plan.Steps)))

	var failureReason string
	func() {
		for i, step := range plan.Steps {
			if execCtx.Elapsed() > e.cfg.MaxPlanDuration {
				failureReason = reasonTimeout
				e.logger.Error("plan exceeded its wall-clock budget",
					zap.Duration("budget", e.cfg.MaxPlanDuration),
					zap.Int("next_step", i))
				return
			}
			e.throttle()

			ok, stepErr := e.executeStep(step, i, execCtx)
			if !ok {
				// Fail fast: remaining steps are never attempted.
				failureReason = stepErr
				return
			}
			if i < len(plan.Steps)-1 {
				e.sleep(e.cfg.StepDelay)
			}
		}
	}()

	success := failureReason == ""
	e.finish(execCtx, success, failureReason)
	return success
}

// finish is the always-log, always-reset tail of a run. It executes on every
// exit path so the executor can never stay stuck in EXECUTING.
func (e *Executor) finish(execCtx *Context, success bool, failureReason string) {
	executionID := e.persist(execCtx, success, failureReason)
	durationMS := float64(execCtx.Elapsed()) / float64(time.Millisecond)

	if success {
		e.bus.EmitSimple(events.PlanCompleted, source, schemas.Params{
			"execution_id": executionID,
			"duration_ms":  durationMS,
		})
	} else {
		e.bus.EmitSimple(events.PlanFailed, source, schemas.Params{
			"execution_id": executionID,
			"error":        failureReason,
			"duration_ms":  durationMS,
		})
	}

	e.machine.SetState(state.Idle)

	e.mu.Lock()
	e.current = nil
	e.mu.Unlock()
	e.inFlight.Store(false)

	e.logger.Info("plan execution finished",
		zap.Bool("success", success),
		zap.String("failure_reason", failureReason),
		zap.String("execution_id", executionID),
		zap.Float64("duration_ms", durationMS))
}

func (e *Executor) persist(execCtx *Context, success bool, failureReason string) string {
	rec := execCtx.Record(success, failureReason)
	rec.ID = uuid.NewString()
	if e.recorder == nil {
		return rec.ID
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := e.recorder.Record(ctx, rec); err != nil {
		// Persistence failures must not fail the plan or block the reset.
		e.logger.Error("failed to persist execution record",
			zap.String("execution_id", rec.ID),
			zap.Error(err))
	}
	return rec.ID
}

// executeStep runs the per-step algorithm: mark RUNNING, dispatch to the
// handler, record the result, optionally verify, and mark the terminal
// status. It returns ok=false with a human-readable error when the step
// fails for any reason.
func (e *Executor) executeStep(step *schemas.Step, index int, execCtx *Context) (bool, string) {
	execCtx.setStepIndex(index)
	step.Status = schemas.StepRunning
	step.StartedAt = time.Now()

	e.logger.Info("executing step",
		zap.Int("step", index+1),
		zap.Int("of", len(execCtx.Plan().Steps)),
		zap.String("action", step.Action),
		zap.String("description", step.Description))

	e.bus.EmitSimple(events.PlanStepStarted, source, schemas.Params{
		"step_index":  index,
		"action":      step.Action,
		"parameters":  step.Parameters,
		"description": step.Description,
	})

	handler, found := e.registry.Lookup(step.Action)
	if !found {
		return e.failStep(step, index, fmt.Sprintf("no handler registered for action %q", step.Action), "")
	}

	if ok, reason := handler.Validate(step.Parameters); !ok {
		return e.failStep(step, index, "validation failed: "+reason, "")
	}

	result := e.runHandler(handler, step.Parameters, execCtx)
	execCtx.AddStepResult(result)
	step.Result = result.Data

	if !result.Success {
		return e.failStep(step, index, result.Error, result.MethodUsed)
	}

	verifyConfidence := 0.0
	if e.cfg.VerifySteps && handler.SupportsVerification() {
		if vr, ok := e.runVerify(handler, step.Parameters, execCtx, result); ok {
			step.Verified = vr.Verified
			step.VerificationMethod = "handler_verify"
			verifyConfidence = vr.Confidence
			if !vr.Verified && e.cfg.LogVerificationFailures {
				execCtx.SetVariable(fmt.Sprintf("step_%d_verify_failed", index), vr.Reason)
			}
		}
	}

	step.Status = schemas.StepCompleted
	step.CompletedAt = time.Now()

	e.bus.EmitSimple(events.PlanStepCompleted, source, schemas.Params{
		"step_index":        index,
		"action":            step.Action,
		"method_used":       result.MethodUsed,
		"duration_ms":       step.DurationMS(),
		"data":              result.Data,
		"verified":          step.Verified,
		"verify_confidence": verifyConfidence,
	})
	return true, ""
}

// runHandler is the defensive boundary: handlers are contractually expected
// to return failures as ActionResults, but an escaped panic is still
// converted into one here rather than taking the executor down.
func (e *Executor) runHandler(h schemas.ActionHandler, params schemas.Params, execCtx *Context) (result schemas.ActionResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("handler panicked during execute",
				zap.String("action", h.ActionName()),
				zap.Any("panic", r))
			result = schemas.Failure(fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return h.Execute(params, execCtx)
}

// runVerify calls the handler's post-condition check. A panic inside Verify
// is swallowed: verification simply does not happen, it never fails a step.
func (e *Executor) runVerify(h schemas.ActionHandler, params schemas.Params, execCtx *Context, result schemas.ActionResult) (vr schemas.VerifyResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("handler panicked during verify",
				zap.String("action", h.ActionName()),
				zap.Any("panic", r))
			vr, ok = schemas.VerifyResult{}, false
		}
	}()
	return h.Verify(params, execCtx, result), true
}

func (e *Executor) failStep(step *schemas.Step, index int, errMsg, methodUsed string) (bool, string) {
	step.Status = schemas.StepFailed
	step.Error = errMsg
	step.CompletedAt = time.Now()

	e.logger.Error("step failed",
		zap.Int("step_index", index),
		zap.String("action", step.Action),
		zap.String("error", errMsg))

	e.bus.EmitSimple(events.PlanStepFailed, source, schemas.Params{
		"step_index":  index,
		"action":      step.Action,
		"error":       errMsg,
		"method_used": methodUsed,
		"duration_ms": step.DurationMS(),
	})
	return false, errMsg
}

// throttle enforces the actions-per-minute safety cap by waiting out the
// limiter's delay before the next step.
func (e *Executor) throttle() {
	if e.limiter == nil {
		return
	}
	if d := e.limiter.Reserve().Delay(); d > 0 {
		e.logger.Debug("rate limit reached, pausing before next action",
			zap.Duration("delay", d))
		e.sleep(d)
	}
}

// ExecuteSingleAction bypasses the plan machinery for ad hoc calls: it
// builds throwaway intent/step/plan/context objects, runs validate and
// execute, and returns the raw result. No events are emitted and no
// verification runs.
func (e *Executor) ExecuteSingleAction(action string, params schemas.Params) schemas.ActionResult {
	handler, found := e.registry.Lookup(action)
	if !found {
		return schemas.Failure(fmt.Sprintf("no handler registered for action %q", action))
	}
	if ok, reason := handler.Validate(params); !ok {
		return schemas.Failure("validation failed: " + reason)
	}

	intent := schemas.Intent{
		Action:     action,
		Parameters: params,
		Confidence: 0.1,
		RawCommand: "direct:" + action,
	}
	step := schemas.NewStep(action, params, "direct execution of "+action)
	plan := schemas.NewPlan("direct_execution", "ad hoc action", step)
	execCtx := NewContext(plan, intent, StalenessPolicy{
		MaxAge:        e.cfg.ElementMaxAge,
		MinConfidence: e.cfg.ElementMinConfidence,
	})

	return e.runHandler(handler, params, execCtx)
}
