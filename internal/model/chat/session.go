package chat

import (
	"fmt"
	"time"
)

// Session is the unit of persistence: one conversation and its transcript.
type Session struct {
	SessionID string    `json:"sessionId" bson:"sessionId" firestore:"sessionId"`
	UserEmail string    `json:"userEmail,omitempty" bson:"userEmail,omitempty" firestore:"userEmail"`
	Messages  []Turn    `json:"messages" bson:"messages" firestore:"messages"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt" firestore:"updatedAt"`
	// Revision orders writes that share an UpdatedAt value. Larger is newer.
	Revision int64 `json:"revision" bson:"revision" firestore:"revision"`
}

// Clone returns a copy whose Messages slice does not alias the receiver's.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Turn(nil), s.Messages...)
	return &out
}

// NewerThan reports whether s was written after other.
func (s *Session) NewerThan(other *Session) bool {
	if other == nil {
		return true
	}
	if !s.UpdatedAt.Equal(other.UpdatedAt) {
		return s.UpdatedAt.After(other.UpdatedAt)
	}
	return s.Revision > other.Revision
}

// Validate rejects documents that cannot be a stored session.
func (s *Session) Validate() error {
	if s.SessionID == "" {
		return fmt.Errorf("%w: session id is empty", ErrInvalidDocument)
	}
	for i, turn := range s.Messages {
		switch turn.Role {
		case RoleUser, RoleAssistant:
		case RoleSystem:
			return fmt.Errorf("%w: session %s stores a system turn at %d", ErrInvalidDocument, s.SessionID, i)
		default:
			return fmt.Errorf("%w: session %s has unknown role %q at %d", ErrInvalidDocument, s.SessionID, turn.Role, i)
		}
	}
	return nil
}
