// File: internal/handlers/navigation.go
package handlers

import (
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

const methodNavigator = "navigator"

// NewNavigationHandlers returns the browser navigation handler group.
func NewNavigationHandlers(logger *zap.Logger, nav schemas.Navigator) []schemas.ActionHandler {
	logger = logger.Named("handlers").With(zap.String("group", "navigation"))
	return []schemas.ActionHandler{
		&navigateURLHandler{nav: nav, logger: logger},
	}
}

type navigateParams struct {
	URL string `mapstructure:"url"`
}

type navigateURLHandler struct {
	schemas.BaseHandler
	nav    schemas.Navigator
	logger *zap.Logger
}

func (h *navigateURLHandler) ActionName() string { return "navigate_url" }

func (h *navigateURLHandler) Validate(params schemas.Params) (bool, string) {
	var p navigateParams
	if err := decode(params, &p); err != nil {
		return false, err.Error()
	}
	if strings.TrimSpace(p.URL) == "" {
		return false, "url is required"
	}
	return true, ""
}

func (h *navigateURLHandler) Execute(params schemas.Params, _ schemas.ExecContext) schemas.ActionResult {
	var p navigateParams
	if err := decode(params, &p); err != nil {
		return schemas.Failure(err.Error())
	}
	url := normalizeURL(p.URL)
	if err := h.nav.OpenURL(url); err != nil {
		return failf("failed to open %q: %v", url, err)
	}
	h.logger.Info("opened url", zap.String("url", url))
	return schemas.ActionResult{
		Success:    true,
		MethodUsed: methodNavigator,
		Data:       schemas.Params{"url": url},
	}
}

// normalizeURL defaults bare domains to https. The planner routinely emits
// "github.com" rather than a full URL.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}
