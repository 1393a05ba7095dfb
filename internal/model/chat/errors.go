package chat

import "errors"

var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("validation failed")
	// ErrStorage marks a repository read or write failure.
	ErrStorage = errors.New("storage failure")
	// ErrConnection marks an unreachable durable store.
	ErrConnection = errors.New("store unreachable")
	// ErrCompletion marks a failure of the language-model backend.
	ErrCompletion = errors.New("completion failed")
	// ErrNotFound marks an unknown session.
	ErrNotFound = errors.New("session not found")
	// ErrDelivery marks a failed transcript export or send.
	ErrDelivery = errors.New("delivery failed")
	// ErrInvalidDocument marks a stored record with an unexpected shape.
	ErrInvalidDocument = errors.New("invalid session document")
)

// Error codes exposed to transports.
const (
	CodeValidation = "VALIDATION"
	CodeStorage    = "STORAGE"
	CodeCompletion = "COMPLETION"
	CodeNotFound   = "NOT_FOUND"
	CodeDelivery   = "DELIVERY"
	CodeInternal   = "INTERNAL"
)

// ErrorCode maps an error returned by the core onto a stable code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCompletion):
		return CodeCompletion
	case errors.Is(err, ErrDelivery):
		return CodeDelivery
	case errors.Is(err, ErrStorage), errors.Is(err, ErrConnection), errors.Is(err, ErrInvalidDocument):
		return CodeStorage
	default:
		return CodeInternal
	}
}
