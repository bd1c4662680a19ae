// File: internal/executor/registry.go
package executor

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// Registry maps action names to their handlers. It is assembled once at
// startup by merging the handler groups the collaborators supply, and is
// read-only afterwards.
type Registry struct {
	logger   *zap.Logger
	handlers map[string]schemas.ActionHandler
}

// NewRegistry merges the given handler groups. A duplicate action name is a
// hard startup error: two handlers competing for one name means the caller's
// wiring is ambiguous, and silently keeping either one would hide it.
func NewRegistry(logger *zap.Logger, groups ...[]schemas.ActionHandler) (*Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		logger:   logger.Named("registry"),
		handlers: make(map[string]schemas.ActionHandler),
	}
	for _, group := range groups {
		for _, h := range group {
			if err := r.register(h); err != nil {
				return nil, err
			}
		}
	}
	r.logger.Info("action handlers registered", zap.Int("count", len(r.handlers)))
	return r, nil
}

func (r *Registry) register(h schemas.ActionHandler) error {
	if h == nil {
		return fmt.Errorf("cannot register a nil handler")
	}
	name := h.ActionName()
	if name == "" {
		return fmt.Errorf("handler %T has an empty action name", h)
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("duplicate handler registered for action %q", name)
	}
	r.handlers[name] = h
	r.logger.Debug("registered handler",
		zap.String("action", name),
		zap.Bool("supports_verification", h.SupportsVerification()))
	return nil
}

// Lookup returns the handler for an action name.
func (r *Registry) Lookup(action string) (schemas.ActionHandler, bool) {
	h, ok := r.handlers[action]
	return h, ok
}

// Actions returns every registered action name, sorted.
func (r *Registry) Actions() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int { return len(r.handlers) }
