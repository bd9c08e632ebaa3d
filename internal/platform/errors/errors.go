package apperrors

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrNoActiveSession    = errors.New("no active session")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrUnsupportedFormat  = errors.New("unsupported format")
	ErrUnsupportedSchema  = errors.New("unsupported schema version")
)
