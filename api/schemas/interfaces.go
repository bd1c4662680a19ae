// File: api/schemas/interfaces.go
// Shared contracts between the execution core, the action handlers and the
// OS-specific driver layer. Keeping them here avoids import cycles and lets
// every side be mocked independently.
package schemas

import "time"

// ExecContext is the view of the per-run execution context that handlers
// receive. The concrete implementation lives in the executor package; the
// contract lives here so handlers stay decoupled from it.
type ExecContext interface {
	Plan() *Plan
	Intent() Intent

	// CurrentWindow returns the window the run is operating on, or nil when
	// none has been established yet.
	CurrentWindow() *WindowInfo
	// SetCurrentWindow records the active window. When the window identity
	// changes, every cached element reference is invalidated.
	SetCurrentWindow(w *WindowInfo)

	// StoreElement caches a discovered element under a normalized name.
	StoreElement(name string, ref ElementReference)
	// GetElement returns a cached element. A stale entry is evicted and
	// reported as absent, so repeated calls are not side-effect free.
	GetElement(name string) (ElementReference, bool)

	AddStepResult(result ActionResult)
	LastResult() (ActionResult, bool)

	SetVariable(key string, value any)
	Variable(key string) (any, bool)

	// Elapsed is the wall-clock time since the context was created.
	Elapsed() time.Duration
}

// ActionHandler is the per-action-kind strategy the executor dispatches to.
// New action kinds are added by registering a new implementation; the
// executor never special-cases a specific action.
type ActionHandler interface {
	// ActionName is the unique dispatch key, e.g. "focus_window".
	ActionName() string

	// SupportsVerification reports whether Verify is meaningful for this
	// handler. The executor skips Verify when false.
	SupportsVerification() bool

	// Validate is a pure precondition check on the parameters. It must not
	// have side effects. When it reports ok=false, Execute is never called.
	Validate(params Params) (ok bool, reason string)

	// Execute performs the action. It is the only place allowed to touch the
	// OS, and it must encode every failure in the returned ActionResult
	// rather than panicking.
	Execute(params Params, execCtx ExecContext) ActionResult

	// Verify is an advisory post-condition check with a confidence score.
	// Its outcome is recorded but never fails the step.
	Verify(params Params, execCtx ExecContext, result ActionResult) VerifyResult
}

// BaseHandler supplies the default no-verification behaviour. Handlers embed
// it and override what they support.
type BaseHandler struct{}

func (BaseHandler) SupportsVerification() bool { return false }

func (BaseHandler) Verify(Params, ExecContext, ActionResult) VerifyResult {
	return VerifyResult{
		Verified:   false,
		Confidence: 0.5,
		Reason:     "verification not supported by this handler",
	}
}

// -- OS driver contracts --
//
// The handlers below the executor talk to the operating system exclusively
// through these interfaces. The platform bindings implement them; tests and
// dry runs substitute recording fakes.

// WindowManager exposes top-level window control.
type WindowManager interface {
	ForegroundWindow() (*WindowInfo, error)
	FindWindow(query string) (*WindowInfo, error)
	WindowByHandle(handle int64) (*WindowInfo, error)
	FocusWindow(handle int64) error
	MinimizeWindow(handle int64) error
	MaximizeWindow(handle int64) error
	RestoreWindow(handle int64) error
	CloseWindow(handle int64) error
	WindowExists(handle int64) bool
}

// ProcessManager exposes application lifecycle control.
type ProcessManager interface {
	Launch(target string, args ...string) (*ProcessInfo, error)
	Terminate(pid int) error
	FindProcess(name string) (*ProcessInfo, error)
	IsRunning(pid int) bool
}

// InputDriver injects keyboard and mouse input.
type InputDriver interface {
	TypeText(text string) error
	Hotkey(keys ...string) error
	Click(x, y int, button string, clicks int) error
	Scroll(dx, dy int) error
}

// Navigator opens URLs in the default browser.
type Navigator interface {
	OpenURL(url string) error
}

// ElementFinder locates UI elements inside a window.
type ElementFinder interface {
	FindElement(query string, window *WindowInfo) (*ElementReference, error)
}
