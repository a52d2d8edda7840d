// Package progress defines the events emitted while a discovery runs.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Name is the SSE event name.
type Name string

// Supported event names, in the order a successful stream emits them.
const (
	NameStep     Name = "step"
	NameSession  Name = "session"
	NameBusiness Name = "business"
	NameComplete Name = "complete"
	NameError    Name = "error"
)

// Step labels carried by step events.
const (
	StepConnecting     = "connecting"
	StepExtractingInfo = "extracting_info"
	StepAnalyzing      = "analyzing"
	StepComplete       = "complete"
)

// Event is a single progress notification for one discovery run.
type Event struct {
	// RunID correlates events that belong to the same request.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Name selects the SSE event type.
	Name Name
	// Data is marshalled to JSON as the SSE payload.
	Data any
}

// StepData is the payload of a step event.
type StepData struct {
	Step    string `json:"step"`
	Message string `json:"message"`
}

// SessionData is the payload of a session event.
type SessionData struct {
	SessionID   string `json:"session_id"`
	SessionURL  string `json:"session_url"`
	LiveViewURL string `json:"live_view_url,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Message string `json:"message"`
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Name {
	case NameStep, NameSession, NameBusiness, NameComplete, NameError:
	default:
		return fmt.Errorf("unknown event %q", e.Name)
	}
	if e.Data == nil {
		return errors.New("data is required")
	}
	return nil
}

// Step builds a step event.
func Step(runID string, ts time.Time, step, message string) Event {
	return Event{RunID: runID, TS: ts, Name: NameStep, Data: StepData{Step: step, Message: message}}
}

// Session builds a session event.
func Session(runID string, ts time.Time, id, url string) Event {
	return Event{RunID: runID, TS: ts, Name: NameSession, Data: SessionData{SessionID: id, SessionURL: url}}
}

// SessionWithLiveView builds a session event that also carries an embeddable
// live view.
func SessionWithLiveView(runID string, ts time.Time, id, url, liveView string) Event {
	return Event{RunID: runID, TS: ts, Name: NameSession, Data: SessionData{SessionID: id, SessionURL: url, LiveViewURL: liveView}}
}

// Failure builds an error event.
func Failure(runID string, ts time.Time, message string) Event {
	return Event{RunID: runID, TS: ts, Name: NameError, Data: ErrorData{Message: message}}
}
