package api

import "time"

// BindUserRequest binds a subject to a session before its first turn.
type BindUserRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	UserID    string `json:"user_id" validate:"required"`
}

// BindUserResponse acknowledges a subject binding.
type BindUserResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	BoundAt   time.Time `json:"bound_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
