// File: internal/handlers/utility.go
package handlers

import (
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// maxWaitSeconds caps a single wait step. The whole-plan budget is the real
// backstop, but a typo like 3000 seconds should fail validation, not eat the
// budget.
const maxWaitSeconds = 60

// NewUtilityHandlers returns the wait and element-lookup handler group.
func NewUtilityHandlers(logger *zap.Logger, finder schemas.ElementFinder) []schemas.ActionHandler {
	logger = logger.Named("handlers").With(zap.String("group", "utility"))
	return []schemas.ActionHandler{
		&waitHandler{logger: logger, sleep: time.Sleep},
		&findElementHandler{finder: finder, logger: logger},
	}
}

type waitParams struct {
	Seconds float64 `mapstructure:"seconds"`
}

type waitHandler struct {
	schemas.BaseHandler
	logger *zap.Logger
	sleep  func(time.Duration)
}

func (h *waitHandler) ActionName() string { return "wait" }

func (h *waitHandler) Validate(params schemas.Params) (bool, string) {
	var p waitParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.Seconds <= 0 {
		return false, "seconds must be positive"
	}
	if p.Seconds > maxWaitSeconds {
		return false, "seconds must not exceed 60"
	}
	return true, ""
}

func (h *waitHandler) Execute(params schemas.Params, _ schemas.ExecContext) schemas.ActionResult {
	var p waitParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	d := time.Duration(p.Seconds * float64(time.Second))
	h.logger.Debug("waiting", zap.Duration("duration", d))
	h.sleep(d)
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: "wait",
		Data:       schemas.Params{"seconds": p.Seconds},
	}
}

type findElementParams struct {
	Query string `mapstructure:"query"`
}

// findElementHandler locates a UI element and caches the reference so later
// steps can click it by name.
type findElementHandler struct {
	schemas.BaseHandler
	finder schemas.ElementFinder
	logger *zap.Logger
}

func (h *findElementHandler) ActionName() string { return "find_element" }

func (h *findElementHandler) Validate(params schemas.Params) (bool, string) {
	var p findElementParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if p.Query == "" {
		return false, "query is required"
	}
	return true, ""
}

func (h *findElementHandler) Execute(params schemas.Params, execCtx schemas.ExecContext) schemas.ActionResult {
	var p findElementParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	if h.finder == nil {
		return schemas.Failure(errNoFinder.Error())
	}
	ref, err := h.finder.FindElement(p.Query, execCtx.CurrentWindow())
	if err != nil {
		return failf("element %q not found: %v", p.Query, err)
	}
	execCtx.StoreElement(p.Query, *ref)
	x, y := ref.BoundingBox.Center()
	h.logger.Debug("found element",
		zap.String("query", p.Query),
		zap.Float64("confidence", ref.Confidence))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodElementFinder,
		Data: schemas.Params{
			"name":       ref.Name,
			"x":          x,
			"y":          y,
			"confidence": ref.Confidence,
		},
	}
}
