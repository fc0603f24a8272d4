package domain

type MessageKind string

const (
	KindChat     MessageKind = "chat"
	KindSystem   MessageKind = "system"
	KindPresence MessageKind = "presence"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindChat, KindSystem, KindPresence:
		return true
	}

	return false
}

// ChatMessage is a single immutable entry in a room's log. Timestamp is
// assigned by the relay at ingestion, in unix milliseconds, strictly
// increasing per room. ID is client-generated and used for deduplication.
type ChatMessage struct {
	ID        string      `json:"id" redis:"id"`
	Sender    string      `json:"sender" redis:"sender"`
	Content   string      `json:"content" redis:"content"`
	Timestamp int64       `json:"timestamp" redis:"timestamp"`
	Kind      MessageKind `json:"kind" redis:"kind"`
}

// IsDisplayable reports whether the message belongs in a chat view.
// Presence heartbeats share the log but are never displayed.
func (m ChatMessage) IsDisplayable() bool {
	return m.Kind != KindPresence
}
