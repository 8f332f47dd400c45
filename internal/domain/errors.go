package domain

import "errors"

// Common errors shared by the service and transport layers.
var (
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrInvalidRequest  = errors.New("invalid request body")
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidKind     = errors.New("only human and ai turns can be persisted")
)
