package chat

// TurnRequest is the payload of a conversational turn. Field names follow the
// public client contract.
type TurnRequest struct {
	Question  string `json:"pregunta"`
	SessionID string `json:"sessionId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
	UserName  string `json:"userName,omitempty"`
}

// TurnResponse carries the assistant reply and the session it belongs to.
type TurnResponse struct {
	Answer    string `json:"respuesta"`
	SessionID string `json:"sessionId"`
}

// LatestSessionRequest asks for the most recent session of a user.
type LatestSessionRequest struct {
	UserEmail string `json:"userEmail"`
}

// LatestSessionResponse is empty when the user has no live session.
type LatestSessionResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	Messages  []Turn `json:"messages,omitempty"`
}

// FinalizeRequest closes a session and mails its transcript.
type FinalizeRequest struct {
	SessionID string `json:"sessionId"`
	UserEmail string `json:"userEmail"`
}

// FinalizeResponse acknowledges a completed finalization.
type FinalizeResponse struct {
	OK bool `json:"ok"`
}
