// File: api/schemas/schemas_test.go
package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanDerivedProperties(t *testing.T) {
	t.Run("empty plan is complete", func(t *testing.T) {
		p := NewPlan("noop", "nothing to do")
		assert.True(t, p.IsComplete())
		assert.False(t, p.HasFailed())
		assert.Equal(t, 0, p.CurrentStepIndex())
		assert.Nil(t, p.CurrentStep())
		assert.Equal(t, 100.0, p.Progress())
	})

	t.Run("current step skips terminal statuses", func(t *testing.T) {
		s1 := NewStep("wait", Params{"seconds": 0.1}, "first")
		s2 := NewStep("wait", Params{"seconds": 0.1}, "second")
		s3 := NewStep("wait", Params{"seconds": 0.1}, "third")
		p := NewPlan("sequential", "test", s1, s2, s3)

		require.Equal(t, 0, p.CurrentStepIndex())

		s1.Status = StepCompleted
		assert.Equal(t, 1, p.CurrentStepIndex())
		assert.Same(t, s2, p.CurrentStep())

		s2.Status = StepSkipped
		assert.Equal(t, 2, p.CurrentStepIndex())
		assert.InDelta(t, 66.6, p.Progress(), 1.0)

		s3.Status = StepCompleted
		assert.Equal(t, 3, p.CurrentStepIndex())
		assert.Nil(t, p.CurrentStep())
		assert.True(t, p.IsComplete())
	})

	t.Run("failed step marks the plan failed, not complete", func(t *testing.T) {
		s := NewStep("click", nil, "")
		p := NewPlan("", "", s)
		s.Status = StepFailed
		assert.True(t, p.HasFailed())
		assert.False(t, p.IsComplete())
		// A FAILED step is terminal, so the cursor moves past it.
		assert.Equal(t, 1, p.CurrentStepIndex())
	})
}

func TestStepDuration(t *testing.T) {
	s := NewStep("wait", nil, "")
	assert.Zero(t, s.DurationMS())

	s.StartedAt = time.Now()
	assert.Zero(t, s.DurationMS(), "unfinished step has no duration")

	s.CompletedAt = s.StartedAt.Add(250 * time.Millisecond)
	assert.InDelta(t, 250, s.DurationMS(), 0.001)
}

func TestStepStatusTerminal(t *testing.T) {
	assert.False(t, StepPending.Terminal())
	assert.False(t, StepRunning.Terminal())
	assert.True(t, StepCompleted.Terminal())
	assert.True(t, StepFailed.Terminal())
	assert.True(t, StepSkipped.Terminal())
}

func TestElementReferenceStale(t *testing.T) {
	now := time.Now()
	ref := ElementReference{
		Name:       "save button",
		Source:     "ui_automation",
		Confidence: 0.9,
		FoundAt:    now,
	}

	assert.False(t, ref.Stale(now, 5*time.Second, 0.5))
	assert.True(t, ref.Stale(now.Add(6*time.Second), 5*time.Second, 0.5), "age threshold exceeded")
	assert.True(t, ref.Stale(now, 5*time.Second, 0.95), "confidence below threshold")
	assert.False(t, ref.Stale(now.Add(time.Hour), 0, 0.5), "zero maxAge disables the age check")
}

func TestBoundingBoxCenter(t *testing.T) {
	x, y := BoundingBox{X: 10, Y: 20, Width: 100, Height: 40}.Center()
	assert.Equal(t, 60, x)
	assert.Equal(t, 40, y)
}

func TestBaseHandlerDefaults(t *testing.T) {
	var b BaseHandler
	assert.False(t, b.SupportsVerification())
	v := b.Verify(nil, nil, ActionResult{})
	assert.False(t, v.Verified)
	assert.Equal(t, 0.5, v.Confidence)
}
