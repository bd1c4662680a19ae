// File: internal/handlers/window.go
package handlers

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// methodWindowManager tags results produced through the WindowManager driver.
const methodWindowManager = "window_manager"

// windowParams selects the window an operation applies to. When neither field
// is set the operation falls back to the run's current window.
type windowParams struct {
	Title  string `mapstructure:"title"`
	Handle int64  `mapstructure:"handle"`
}

// NewWindowHandlers returns the window-control handler group.
func NewWindowHandlers(logger *zap.Logger, wm schemas.WindowManager) []schemas.ActionHandler {
	logger = logger.Named("handlers").With(zap.String("group", "window"))
	return []schemas.ActionHandler{
		&focusWindowHandler{wm: wm, logger: logger},
		&windowCommandHandler{
			wm: wm, logger: logger, name: "minimize_window",
			apply: schemas.WindowManager.MinimizeWindow,
		},
		&windowCommandHandler{
			wm: wm, logger: logger, name: "maximize_window",
			apply: schemas.WindowManager.MaximizeWindow,
		},
		&windowCommandHandler{
			wm: wm, logger: logger, name: "restore_window",
			apply: schemas.WindowManager.RestoreWindow,
		},
		&closeWindowHandler{wm: wm, logger: logger},
	}
}

// resolveWindow finds the target window: explicit handle first, then a title
// search, then the context's current window.
func resolveWindow(wm schemas.WindowManager, p windowParams, execCtx schemas.ExecContext) (*schemas.WindowInfo, error) {
	if p.Handle != 0 {
		return wm.WindowByHandle(p.Handle)
	}
	if p.Title != "" {
		return wm.FindWindow(p.Title)
	}
	if w := execCtx.CurrentWindow(); w != nil {
		return w, nil
	}
	return wm.ForegroundWindow()
}

// focusWindowHandler brings a window to the foreground and makes it the
// run's current window.
type focusWindowHandler struct {
	schemas.BaseHandler
	wm     schemas.WindowManager
	logger *zap.Logger
}

func (h *focusWindowHandler) ActionName() string { return "focus_window" }

func (h *focusWindowHandler) SupportsVerification() bool { return true }

func (h *focusWindowHandler) Validate(params schemas.Params) (bool, string) {
	var p windowParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.Title == "" && p.Handle == 0 {
		return false, "either title or handle is required"
	}
	return true, ""
}

func (h *focusWindowHandler) Execute(params schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	var p windowParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	win, err := resolveWindow(h.wm, p, execCtx)
	if err != nil {
		return failf("window not found: %v", err)
	}
	if err := h.wm.FocusWindow(win.Handle); err != nil {
		return failf("failed to focus window %q: %v", win.Title, err)
	}
	execCtx.SetCurrentWindow(win)
	h.logger.Debug("focused window",
		zap.Int64("handle", win.Handle),
		zap.String("title", win.Title))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodWindowManager,
		Data: schemas.Params{
			"handle": win.Handle,
			"title":  win.Title,
		},
	}
}

func (h *focusWindowHandler) Verify(_ schemas.Params, execCtx schemas.ExecContext, _ schemas.ActionResult) schemas.VerifyResult {
	target := execCtx.CurrentWindow()
	if target == nil {
		return schemas.VerifyResult{Confidence: 0.2, Reason: "no current window recorded"}
	}
	fg, err := h.wm.ForegroundWindow()
	if err != nil || fg == nil {
		return schemas.VerifyResult{Confidence: 0.3, Reason: "could not read foreground window"}
	}
	if fg.Handle == target.Handle {
		return schemas.VerifyResult{Verified: true, Confidence: 0.95, Reason: "target window is foreground"}
	}
	return schemas.VerifyResult{Confidence: 0.9, Reason: "a different window holds focus"}
}

// windowCommandHandler covers minimize, maximize and restore, which share
// the same shape: resolve the window, apply one WindowManager call.
type windowCommandHandler struct {
	schemas.BaseHandler
	wm     schemas.WindowManager
	logger *zap.Logger
	name   string
	apply  func(schemas.WindowManager, int64) error
}

func (h *windowCommandHandler) ActionName() string { return h.name }

func (h *windowCommandHandler) Validate(params schemas.Params) (bool, string) {
	var p windowParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	return true, ""
}

func (h *windowCommandHandler) Execute(params schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	var p windowParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	win, err := resolveWindow(h.wm, p, execCtx)
	if err != nil {
		return failf("window not found: %v", err)
	}
	if err := h.apply(h.wm, win.Handle); err != nil {
		return failf("%s failed for %q: %v", h.name, win.Title, err)
	}
	h.logger.Debug("window command applied",
		zap.String("action", h.name),
		zap.Int64("handle", win.Handle))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodWindowManager,
		Data:       schemas.Params{"handle": win.Handle, "title": win.Title},
	}
}

// closeWindowHandler closes a window and can verify the close by checking
// the handle no longer exists.
type closeWindowHandler struct {
	schemas.BaseHandler
	wm     schemas.WindowManager
	logger *zap.Logger
}

func (h *closeWindowHandler) ActionName() string { return "close_window" }

func (h *closeWindowHandler) SupportsVerification() bool { return true }

func (h *closeWindowHandler) Validate(params schemas.Params) (bool, string) {
	var p windowParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	return true, ""
}

func (h *closeWindowHandler) Execute(params schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	var p windowParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	win, err := resolveWindow(h.wm, p, execCtx)
	if err != nil {
		return failf("window not found: %v", err)
	}
	if err := h.wm.CloseWindow(win.Handle); err != nil {
		return failf("failed to close window %q: %v", win.Title, err)
	}
	if cur := execCtx.CurrentWindow(); cur != nil && cur.Handle == win.Handle {
		execCtx.SetCurrentWindow(nil)
	}
	h.logger.Debug("closed window",
		zap.Int64("handle", win.Handle),
		zap.String("title", win.Title))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodWindowManager,
		Data:       schemas.Params{"handle": win.Handle, "title": win.Title},
	}
}

func (h *closeWindowHandler) Verify(_ schemas.Params, _ schemas.ExecContext, result schemas.ActionResult) schemas.VerifyResult {
	handle, ok := result.Data["handle"].(int64)
	if !ok {
		return schemas.VerifyResult{Confidence: 0.2, Reason: "no handle recorded for closed window"}
	}
	if h.wm.WindowExists(handle) {
		return schemas.VerifyResult{Confidence: 0.9, Reason: "window still exists"}
	}
	return schemas.VerifyResult{Verified: true, Confidence: 0.95, Reason: "window is gone"}
}
