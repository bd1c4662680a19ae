// File: internal/events/events.go
// Typed publish/subscribe bus. Components never call each other directly;
// they emit events here and subscribe to what they care about.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// Type is the closed enumeration of every event the system can emit.
type Type string

const (
	// Lifecycle
	AgentStarted Type = "AGENT_STARTED"
	AgentStopped Type = "AGENT_STOPPED"
	StateChanged Type = "STATE_CHANGED"

	// Audio
	WakeWordDetected    Type = "WAKE_WORD_DETECTED"
	SpeechStarted       Type = "SPEECH_STARTED"
	SpeechEnded         Type = "SPEECH_ENDED"
	CommandReceived     Type = "COMMAND_RECEIVED"
	SpeechReceived      Type = "SPEECH_RECEIVED"
	TranscribeCompleted Type = "TRANSCRIBE_COMPLETED"

	// Screen capture
	MonitorRefreshed   Type = "MONITOR_REFRESHED"
	MonitorScreenshot  Type = "MONITOR_SCREENSHOT"
	RegionScreenshot   Type = "REGION_SCREENSHOT"
	WindowCaptured     Type = "WINDOW_CAPTURED"
	ScreenshotCompared Type = "SCREENSHOT_COMPARED"
	ScreenshotSaved    Type = "SCREENSHOT_SAVED"

	// Visual analysis
	VisualAnalysisStarted   Type = "VISUAL_ANALYSIS_STARTED"
	VisualAnalysisCompleted Type = "VISUAL_ANALYSIS_COMPLETED"
	VisualElementFound      Type = "VISUAL_ELEMENT_FOUND"
	VisualElementNotFound   Type = "VISUAL_ELEMENT_NOT_FOUND"
	VisualTextExtracted     Type = "VISUAL_TEXT_EXTRACTED"
	OCRCompleted            Type = "OCR_COMPLETED"

	// Model lifecycle
	LLMLoading  Type = "LLM_LOADING"
	LLMLoaded   Type = "LLM_LOADED"
	LLMUnloaded Type = "LLM_UNLOADED"

	// Understanding
	IntentRecognized  Type = "INTENT_RECOGNIZED"
	EntitiesExtracted Type = "ENTITIES_EXTRACTED"

	// Planning and execution
	PlanCreated       Type = "PLAN_CREATED"
	PlanStepStarted   Type = "PLAN_STEP_STARTED"
	PlanStepCompleted Type = "PLAN_STEP_COMPLETED"
	PlanStepFailed    Type = "PLAN_STEP_FAILED"
	PlanCompleted     Type = "PLAN_COMPLETED"
	PlanFailed        Type = "PLAN_FAILED"
	ActionStarted     Type = "ACTION_STARTED"
	ActionCompleted   Type = "ACTION_COMPLETED"
	ActionFailed      Type = "ACTION_FAILED"

	// System
	WindowChanged Type = "WINDOW_CHANGED"
	WindowClosed  Type = "WINDOW_CLOSED"
	TabOpened     Type = "TAB_OPENED"
	TabClosed     Type = "TAB_CLOSED"
	AppLaunched   Type = "APP_LAUNCHED"
	AppClosed     Type = "APP_CLOSED"

	// Memory
	MemoryStored    Type = "MEMORY_STORED"
	MemoryRetrieved Type = "MEMORY_RETRIEVED"

	// User interaction
	ConfirmationNeeded   Type = "CONFIRMATION_NEEDED"
	ConfirmationReceived Type = "CONFIRMATION_RECEIVED"

	// Errors
	Error Type = "ERROR"
)

// Event is a single occurrence on the bus. Events are immutable once
// emitted; subscribers must not mutate Data.
type Event struct {
	Type      Type           `json:"type"`
	Data      schemas.Params `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	ID        string         `json:"id"`
	Source    string         `json:"source"`
}

// New builds an event with a fresh ID and the current timestamp.
func New(t Type, source string, data schemas.Params) Event {
	return Event{
		Type:      t,
		Data:      data,
		Timestamp: time.Now(),
		ID:        uuid.NewString(),
		Source:    source,
	}
}

// Handler receives events. Handlers run synchronously on the emitting
// goroutine, so they should return quickly.
type Handler func(Event)
