// File: internal/handlers/navigation_test.go
package handlers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

func navHandler(t *testing.T, nav schemas.Navigator) schemas.ActionHandler {
	t.Helper()
	group := NewNavigationHandlers(zap.NewNop(), nav)
	require.Len(t, group, 1)
	return group[0]
}

func TestNavigateURL(t *testing.T) {
	nav := &fakeNavigator{}
	h := navHandler(t, nav)

	res := h.Execute(schemas.Params{"url": "https://example.com/docs"}, newExecContext())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"https://example.com/docs"}, nav.opened)
	assert.Equal(t, "navigator", res.MethodUsed)
}

func TestNavigateURLDefaultsToHTTPS(t *testing.T) {
	nav := &fakeNavigator{}
	h := navHandler(t, nav)

	res := h.Execute(schemas.Params{"url": "github.com"}, newExecContext())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, []string{"https://github.com"}, nav.opened)

	res = h.Execute(schemas.Params{"url": "http://legacy.local"}, newExecContext())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "http://legacy.local", nav.opened[1], "explicit scheme is preserved")
}

func TestNavigateURLValidation(t *testing.T) {
	h := navHandler(t, &fakeNavigator{})
	ok, reason := h.Validate(schemas.Params{"url": "   "})
	assert.False(t, ok)
	assert.Contains(t, reason, "url is required")
}

func TestNavigateURLDriverError(t *testing.T) {
	nav := &fakeNavigator{failWith: errors.New("no default browser")}
	h := navHandler(t, nav)

	res := h.Execute(schemas.Params{"url": "example.com"}, newExecContext())
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no default browser")
}
