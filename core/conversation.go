package core

import "time"

// Turn is one answered follow-up question.
type Turn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"asked_at"`
}

// ConversationContext binds a session to its most recent report and the
// follow-up turns asked against it. The report is shared, never copied.
type ConversationContext struct {
	SessionID string    `json:"session_id"`
	Report    *Report   `json:"report"`
	Turns     []Turn    `json:"turns"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// ContextStore holds one ConversationContext per session.
//
// Contract:
//   - Put creates the context implicitly on first use and replaces the report
//     (resetting turns) on later calls
//   - Get returns a snapshot; absent sessions yield (nil, false)
//   - AppendTurn is serialized per session; concurrent appends on the same
//     session never lose a write
//   - Delete ends the session
type ContextStore interface {
	Put(sessionID string, report *Report) error
	Get(sessionID string) (*ConversationContext, bool)
	AppendTurn(sessionID, question, answer string) error
	Delete(sessionID string) error
}
