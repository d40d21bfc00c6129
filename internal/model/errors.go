package model

import "errors"

var (
	// ErrEmptyMessage is returned when a message with no text is stored.
	ErrEmptyMessage = errors.New("message text is required")

	// ErrReservedMessage is returned when the history control token is stored as a message.
	ErrReservedMessage = errors.New("message text is a reserved control token")

	// ErrMessageNotFound is returned when a message is not found.
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotConnected is returned when an operation needs an open connection.
	ErrNotConnected = errors.New("no connection to server")
)
