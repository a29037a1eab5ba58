package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Stream Specific Errors
	ErrConnectionFailed     = errors.New("failed to connect to the stream endpoint")
	ErrAuthenticationFailed = errors.New("stream authentication failed (check token)")
	ErrNotConnected         = errors.New("stream connection is not established")
	ErrStreamClosed         = errors.New("stream connection closed")
	ErrSubscriptionFailed   = errors.New("failed to send subscription request")

	// Database Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
	ErrNotFound     = errors.New("resource not found")
)
