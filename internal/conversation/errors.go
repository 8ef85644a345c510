// ABOUTME: Sentinel errors for the conversation domain model.
// ABOUTME: State machines wrap ErrInvalidTransition with the offending states.

package conversation

import "errors"

var (
	// ErrInvalidTransition is returned when a state machine receives a call
	// that its current state does not allow.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyCommitted is returned when a streaming response already has
	// an assistant message committed for it.
	ErrAlreadyCommitted = errors.New("assistant message already committed")

	// ErrInvalidMessage is returned when a message cannot be constructed or
	// appended.
	ErrInvalidMessage = errors.New("invalid message")
)
