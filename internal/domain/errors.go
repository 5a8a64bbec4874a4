package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or invalid.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidStatus is returned when a task status is not one of the
	// recognized values.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrMalformedIntent is returned when a queue payload matches neither
	// the single nor the batch intent shape. Malformed intents are a
	// permanent classification failure and must never be requeued.
	ErrMalformedIntent = errors.New("malformed intent")
)
