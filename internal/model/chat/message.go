package chat

import "time"

// Role attributes a turn to a participant.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem turns are synthesized per completion call and never stored.
	RoleSystem Role = "system"
)

// TimestampLayout renders turn timestamps in a sortable form.
const TimestampLayout = "2006-01-02 15:04:05"

// Turn is one utterance in a conversation.
type Turn struct {
	Role      Role   `json:"role" bson:"role" firestore:"role"`
	Content   string `json:"content" bson:"content" firestore:"content"`
	Timestamp string `json:"timestamp" bson:"timestamp" firestore:"timestamp"`
}

// NewTurn stamps a turn with t rendered in loc.
func NewTurn(role Role, content string, t time.Time, loc *time.Location) Turn {
	if loc != nil {
		t = t.In(loc)
	}
	return Turn{
		Role:      role,
		Content:   content,
		Timestamp: t.Format(TimestampLayout),
	}
}
