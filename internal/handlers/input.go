// File: internal/handlers/input.go
package handlers

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

const (
	methodInputDriver   = "input_driver"
	methodElementFinder = "element_finder"
)

// NewInputHandlers returns the keyboard/mouse handler group. The finder is
// used by click to resolve element names into coordinates; it may be nil, in
// which case clicks require explicit coordinates or a cached element.
func NewInputHandlers(logger *zap.Logger, input schemas.InputDriver, finder schemas.ElementFinder) []schemas.ActionHandler {
	logger = logger.Named("handlers").With(zap.String("group", "input"))
	return []schemas.ActionHandler{
		&typeTextHandler{input: input, logger: logger},
		&hotkeyHandler{input: input, logger: logger},
		&clickHandler{input: input, finder: finder, logger: logger},
		&scrollHandler{input: input, logger: logger},
	}
}

type typeTextParams struct {
	Text string `mapstructure:"text"`
}

type typeTextHandler struct {
	schemas.BaseHandler
	input  schemas.InputDriver
	logger *zap.Logger
}

func (h *typeTextHandler) ActionName() string { return "type_text" }

func (h *typeTextHandler) Validate(params schemas.Params) (bool, string) {
	var p typeTextParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.Text == "" {
		return false, "text is required"
	}
	return true, ""
}

func (h *typeTextHandler) Execute(params schemas.Params, _ schemas.ExecContext) schemas.ActionResult {
	var p typeTextParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	if err := h.input.TypeText(p.Text); err != nil {
		return failf("failed to type text: %v", err)
	}
	// The text itself stays out of the result: it may be a password.
	h.logger.Debug("typed text", zap.Int("chars", len(p.Text)))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodInputDriver,
		Data:       schemas.Params{"chars": len(p.Text)},
	}
}

type hotkeyParams struct {
	Keys []string `mapstructure:"keys"`
}

type hotkeyHandler struct {
	schemas.BaseHandler
	input  schemas.InputDriver
	logger *zap.Logger
}

func (h *hotkeyHandler) ActionName() string { return "hotkey" }

func (h *hotkeyHandler) Validate(params schemas.Params) (bool, string) {
	var p hotkeyParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if len(p.Keys) == 0 {
		return false, "keys is required"
	}
	return true, ""
}

func (h *hotkeyHandler) Execute(params schemas.Params, _ schemas.ExecContext) schemas.ActionResult {
	var p hotkeyParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	if err := h.input.Hotkey(p.Keys...); err != nil {
		return failf("hotkey failed: %v", err)
	}
	h.logger.Debug("pressed hotkey", zap.Strings("keys", p.Keys))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodInputDriver,
		Data:       schemas.Params{"keys": p.Keys},
	}
}

type clickParams struct {
	// Element names a UI element to click; X/Y are explicit screen
	// coordinates. Exactly one addressing mode must be present.
	Element string `mapstructure:"element"`
	X       *int   `mapstructure:"x"`
	Y       *int   `mapstructure:"y"`
	Button  string `mapstructure:"button"`
	Clicks  int    `mapstructure:"clicks"`
}

type clickHandler struct {
	schemas.BaseHandler
	input  schemas.InputDriver
	finder schemas.ElementFinder
	logger *zap.Logger
}

func (h *clickHandler) ActionName() string { return "click" }

func (h *clickHandler) Validate(params schemas.Params) (bool, string) {
	var p clickParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	hasCoords := p.X != nil && p.Y != nil
	if p.Element == "" && !hasCoords {
		return false, "either element or x and y are required"
	}
	if p.Element != "" && hasCoords {
		return false, "element and coordinates are mutually exclusive"
	}
	switch p.Button {
	case "", "left", "right", "middle":
	default:
		return false, "button must be left, right or middle"
	}
	return true, ""
}

func (h *clickHandler) Execute(params schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	var p clickParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	if p.Button == "" {
		p.Button = "left"
	}
	if p.Clicks <= 0 {
		p.Clicks = 1
	}

	x, y := 0, 0
	method := methodInputDriver
	if p.Element != "" {
		ref, err := h.resolveElement(p.Element, execCtx)
		if err != nil {
			return failf("element %q not found: %v", p.Element, err)
		}
		x, y = ref.BoundingBox.Center()
		method = methodElementFinder
	} else {
		x, y = *p.X, *p.Y
	}

	if err := h.input.Click(x, y, p.Button, p.Clicks); err != nil {
		return failf("click failed at (%d,%d): %v", x, y, err)
	}
	h.logger.Debug("clicked",
		zap.Int("x", x), zap.Int("y", y),
		zap.String("button", p.Button),
		zap.Int("clicks", p.Clicks))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: method,
		Data:       schemas.Params{"x": x, "y": y, "button": p.Button},
	}
}

// resolveElement prefers the run's cache and falls back to a fresh search,
// storing the hit for later steps.
func (h *clickHandler) resolveElement(name string, execCtx schemas.ExecContext) (schemas.ElementReference, error) {
	if ref, ok := execCtx.GetElement(name); ok {
		return ref, nil
	}
	if h.finder == nil {
		return schemas.ElementReference{}, errNoFinder
	}
	found, err := h.finder.FindElement(name, execCtx.CurrentWindow())
	if err != nil {
		return schemas.ElementReference{}, err
	}
	execCtx.StoreElement(name, *found)
	return *found, nil
}

type scrollParams struct {
	DX int `mapstructure:"dx"`
	DY int `mapstructure:"dy"`
}

type scrollHandler struct {
	schemas.BaseHandler
	input  schemas.InputDriver
	logger *zap.Logger
}

func (h *scrollHandler) ActionName() string { return "scroll" }

func (h *scrollHandler) Validate(params schemas.Params) (bool, string) {
	var p scrollParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.DX == 0 && p.DY == 0 {
		return false, "dx or dy must be non-zero"
	}
	return true, ""
}

func (h *scrollHandler) Execute(params schemas.Params, _ schemas.ExecContext) schemas.ActionResult {
	var p scrollParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	if err := h.input.Scroll(p.DX, p.DY); err != nil {
		return failf("scroll failed: %v", err)
	}
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodInputDriver,
		Data:       schemas.Params{"dx": p.DX, "dy": p.DY},
	}
}
