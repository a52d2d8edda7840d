// Package publisher defines the outbound notification boundary used to
// announce finished discoveries.
package publisher

import "context"

// Publisher sends a JSON-serializable payload to a named topic and returns the
// broker-assigned message id.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ProfileCompleted is published once a discovery run yields a profile.
type ProfileCompleted struct {
	RunID        string `json:"run_id"`
	BusinessID   string `json:"business_id"`
	Name         string `json:"name"`
	Provider     string `json:"provider"`
	Tasks        int    `json:"tasks"`
	MockAnalysis bool   `json:"mock_analysis"`
	SessionID    string `json:"remote_session_id,omitempty"`
}

// RunFailed is published when a streamed run ends in an error event.
type RunFailed struct {
	RunID   string `json:"run_id"`
	Message string `json:"message"`
}

// Event attribute values.
const (
	EventProfileCompleted = "profile.completed"
	EventRunFailed        = "run.failed"
)

// Attributed payloads carry message attributes that subscribers can filter on
// without decoding the body.
type Attributed interface {
	Attributes() map[string]string
}

// Attributes implements Attributed.
func (p ProfileCompleted) Attributes() map[string]string {
	return compact(map[string]string{
		"event":       EventProfileCompleted,
		"run_id":      p.RunID,
		"business_id": p.BusinessID,
		"provider":    p.Provider,
	})
}

// Attributes implements Attributed.
func (f RunFailed) Attributes() map[string]string {
	return compact(map[string]string{"event": EventRunFailed, "run_id": f.RunID})
}

// AttributesOf returns a fresh attribute map for payload. It is never nil.
func AttributesOf(payload any) map[string]string {
	out := make(map[string]string)
	if a, ok := payload.(Attributed); ok {
		for k, v := range a.Attributes() {
			out[k] = v
		}
	}
	return out
}

func compact(attrs map[string]string) map[string]string {
	for k, v := range attrs {
		if v == "" {
			delete(attrs, k)
		}
	}
	return attrs
}
