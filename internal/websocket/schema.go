package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFlag   Action = "flag"
	ActionGoto   Action = "goto"
	ActionSubmit Action = "submit"
	ActionState  Action = "state"
	ActionPing   Action = "ping"
)

// RequestPayload is the single client message shape. Fields beyond
// Action apply only to the actions that use them.
type RequestPayload struct {
	Action Action `json:"action"`
	QID    string `json:"q_id,omitempty"`
	Answer string `json:"ans,omitempty"`
	Index  *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventSaved        Event = "saved"
	EventState        Event = "state"
	EventLowTime      Event = "low_time"
	EventExpired      Event = "expired"
	EventCompleted    Event = "completed"
	EventSubmitFailed Event = "submit_failed"
	EventPong         Event = "pong"
)

// ResponsePayload is the single server message shape: an event name and
// a payload whose shape depends on the event.
type ResponsePayload struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
