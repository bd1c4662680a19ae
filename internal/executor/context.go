// File: internal/executor/context.go
package executor

import (
	"strings"
	"time"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// StalenessPolicy decides when a cached element reference may no longer be
// trusted.
type StalenessPolicy struct {
	MaxAge        time.Duration
	MinConfidence float64
}

// Context is the mutable per-run scratch space shared by every handler
// invocation within one plan execution. It is created exactly once per
// ExecutePlan call and discarded at the end; it is never shared across runs.
//
// Context is not safe for concurrent use. The executor is fully serialized,
// so only one goroutine ever touches a given context.
type Context struct {
	plan   *schemas.Plan
	intent schemas.Intent

	currentWindow *schemas.WindowInfo
	foundElements map[string]schemas.ElementReference
	stepResults   []schemas.ActionResult
	variables     map[string]any

	stepIndex int
	startTime time.Time
	staleness StalenessPolicy
}

// NewContext builds a fresh context for one run.
func NewContext(plan *schemas.Plan, intent schemas.Intent, staleness StalenessPolicy) *Context {
	return &Context{
		plan:          plan,
		intent:        intent,
		foundElements: make(map[string]schemas.ElementReference),
		variables:     make(map[string]any),
		startTime:     time.Now(),
		staleness:     staleness,
	}
}

func (c *Context) Plan() *schemas.Plan    { return c.plan }
func (c *Context) Intent() schemas.Intent { return c.intent }

// CurrentWindow returns the window this run is operating on, or nil.
func (c *Context) CurrentWindow() *schemas.WindowInfo { return c.currentWindow }

// SetCurrentWindow stores the active window. Cached element coordinates are
// window-relative, so a change of window identity clears the cache in full.
// Setting a window with the same handle leaves the cache untouched.
func (c *Context) SetCurrentWindow(w *schemas.WindowInfo) {
	var oldHandle, newHandle int64
	if c.currentWindow != nil {
		oldHandle = c.currentWindow.Handle
	}
	if w != nil {
		newHandle = w.Handle
	}
	if oldHandle != newHandle {
		clear(c.foundElements)
	}
	c.currentWindow = w
}

// StoreElement caches an element reference under a normalized name.
func (c *Context) StoreElement(name string, ref schemas.ElementReference) {
	c.foundElements[normalizeName(name)] = ref
}

// GetElement returns a cached reference. A stale entry is evicted and
// reported as absent even while still present in the map, so callers must
// not assume repeated calls are free of side effects.
func (c *Context) GetElement(name string) (schemas.ElementReference, bool) {
	key := normalizeName(name)
	ref, ok := c.foundElements[key]
	if !ok {
		return schemas.ElementReference{}, false
	}
	if ref.Stale(time.Now(), c.staleness.MaxAge, c.staleness.MinConfidence) {
		delete(c.foundElements, key)
		return schemas.ElementReference{}, false
	}
	return ref, true
}

// HasElement reports whether a fresh reference is cached under name. It
// shares GetElement's eviction behaviour.
func (c *Context) HasElement(name string) bool {
	_, ok := c.GetElement(name)
	return ok
}

// ClearElements drops every cached reference.
func (c *Context) ClearElements() {
	clear(c.foundElements)
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// AddStepResult appends to the append-only log of per-step outcomes.
func (c *Context) AddStepResult(result schemas.ActionResult) {
	c.stepResults = append(c.stepResults, result)
}

// LastResult returns the most recent step result.
func (c *Context) LastResult() (schemas.ActionResult, bool) {
	if len(c.stepResults) == 0 {
		return schemas.ActionResult{}, false
	}
	return c.stepResults[len(c.stepResults)-1], true
}

// StepResults returns a copy of every result recorded so far.
func (c *Context) StepResults() []schemas.ActionResult {
	out := make([]schemas.ActionResult, len(c.stepResults))
	copy(out, c.stepResults)
	return out
}

// SetVariable stores ad hoc data for later steps of the same plan, e.g. a
// launched PID.
func (c *Context) SetVariable(key string, value any) {
	c.variables[key] = value
}

// Variable fetches a previously stored value.
func (c *Context) Variable(key string) (any, bool) {
	v, ok := c.variables[key]
	return v, ok
}

// Variables returns a copy of the variable bag.
func (c *Context) Variables() map[string]any {
	out := make(map[string]any, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}

// StepIndex returns the index of the step currently executing.
func (c *Context) StepIndex() int { return c.stepIndex }

func (c *Context) setStepIndex(i int) { c.stepIndex = i }

// Elapsed is the wall-clock time since the context was created, used for the
// whole-plan timeout check.
func (c *Context) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// StartTime returns when the run began.
func (c *Context) StartTime() time.Time { return c.startTime }

// Record flattens the run into a persistable execution record. The ID is
// assigned by the caller.
func (c *Context) Record(success bool, failureReason string) *schemas.ExecutionRecord {
	rec := &schemas.ExecutionRecord{
		RawCommand:    c.intent.RawCommand,
		Intent:        c.intent,
		Strategy:      c.plan.Strategy,
		Reasoning:     c.plan.Reasoning,
		Variables:     c.Variables(),
		Success:       success,
		FailureReason: failureReason,
		StartedAt:     c.startTime,
		DurationMS:    float64(c.Elapsed()) / float64(time.Millisecond),
	}
	if c.currentWindow != nil {
		rec.WindowTitle = c.currentWindow.Title
	}
	for i, step := range c.plan.Steps {
		sr := schemas.StepRecord{
			Index:      i,
			Action:     step.Action,
			Status:     step.Status,
			Error:      step.Error,
			DurationMS: step.DurationMS(),
			Verified:   step.Verified,
		}
		if i < len(c.stepResults) {
			sr.MethodUsed = c.stepResults[i].MethodUsed
		}
		rec.Steps = append(rec.Steps, sr)
	}
	return rec
}

// The executor's context is the concrete implementation handlers see.
var _ schemas.ExecContext = (*Context)(nil)
