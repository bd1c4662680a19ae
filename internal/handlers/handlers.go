// File: internal/handlers/handlers.go
// Description: Action handler implementations, one per action kind the
// planner may emit. Handlers validate their parameters up front, perform the
// action through the OS driver interfaces, and report every failure inside
// the returned ActionResult.
package handlers

import (
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// errNoFinder is returned when an element lookup is requested but no
// ElementFinder was wired in.
var errNoFinder = errors.New("no element finder configured")

// decode maps loosely typed step parameters onto a typed parameter struct.
// Weak typing is deliberate: plans arrive from an LLM planner that may send
// "5" where we want 5.
func decode(params schemas.Params, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build parameter decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(params)); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}

// failf is shorthand for a formatted failure result.
func failf(format string, args ...any) schemas.ActionResult {
	return schemas.Failure(fmt.Sprintf(format, args...))
}
