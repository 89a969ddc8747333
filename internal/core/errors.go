package core

// Error codes delivered to clients in room-error payloads.
const (
	ErrCodeRoomNotFound      = "room_not_found"
	ErrCodeRoomInactive      = "room_inactive"
	ErrCodeRoomFull          = "room_full"
	ErrCodePasswordRequired  = "password_required"
	ErrCodePasswordIncorrect = "password_incorrect"
	ErrCodeAlreadyJoining    = "already_joining"
	ErrCodeAlreadyJoined     = "already_joined"
	ErrCodeNotInRoom         = "not_in_room"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeInternal          = "internal_error"
)

// CoreError wraps a code and human-readable message. It is delivered to the
// requesting connection only, never broadcast.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
