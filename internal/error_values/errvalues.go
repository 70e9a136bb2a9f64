package errorvalues

import "errors"

var (
	// Progression engine
	ErrInvalidInput = errors.New("invalid input")

	// Storage
	ErrRemoteUnavailable = errors.New("remote store unavailable")
	ErrLocalStorage      = errors.New("local storage error")
	ErrDocumentNotFound  = errors.New("document doesn't exist")
	ErrBlobNotFound      = errors.New("blob doesn't exist")

	// Tracker
	ErrStaleLoad    = errors.New("load superseded by a newer state")
	ErrSyncInFlight = errors.New("offline queue sync already in progress")
	ErrNotLoaded    = errors.New("user data isn't loaded")

	// Auth
	ErrInvalidToken = errors.New("invalid token")
)
