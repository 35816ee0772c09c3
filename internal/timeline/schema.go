package timeline

import (
	"time"
)

// Turn is one recorded chat turn: the user's message, the decoded
// assistant reply, or the error bubble shown instead of a reply.
type Turn struct {
	ID          int64     `json:"id"`
	TurnID      string    `json:"turn_id"`              // Unique per turn
	TraceID     string    `json:"trace_id"`             // Shared by a user turn and its answer
	UserID      string    `json:"user_id"`              // Webhook user identifier
	Role        string    `json:"role"`                 // user, assistant, error
	MessageType string    `json:"message_type"`         // text, audio
	Content     string    `json:"content"`              // Message, decoded reply, or error text
	RawPayload  string    `json:"raw_payload,omitempty"` // Undecoded webhook body
	DecodeStage string    `json:"decode_stage,omitempty"`
	Shape       string    `json:"shape,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

// StageCount is the number of assistant turns decoded by one stage.
type StageCount struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// Schema is applied on open. Columns added later are migrated in
// NewTimelineService.
const Schema = `
CREATE TABLE IF NOT EXISTS turns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	turn_id TEXT UNIQUE NOT NULL,
	trace_id TEXT NOT NULL,
	user_id TEXT,
	role TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	content TEXT,
	raw_payload TEXT,
	decode_stage TEXT,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turns_trace ON turns(trace_id);
CREATE INDEX IF NOT EXISTS idx_turns_created ON turns(created_at);

CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT,
	updated_at DATETIME
);
`
