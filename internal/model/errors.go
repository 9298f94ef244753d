package model

import "errors"

// Error taxonomy shared by the engine, the service layer and the API.
var (
	// ErrValidation marks input rejected before any storage access.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a lookup by id that matched nothing.
	ErrNotFound = errors.New("not found")
	// ErrCodeConflict marks an insert that lost a race for a unique code.
	ErrCodeConflict = errors.New("code already in use")
	// ErrStorageUnavailable marks a failure to reach or query the store.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
