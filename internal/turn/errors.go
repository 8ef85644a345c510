// ABOUTME: Error taxonomy for turn failures.

package turn

import (
	"errors"
	"fmt"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrStreamPreparation    = errors.New("failed to prepare streaming response")
	ErrProviderStream       = errors.New("provider stream failed")
	ErrPersistence          = errors.New("persisting conversation")

	// ErrIncompleteStream means the provider stopped without a usage or
	// error chunk.
	ErrIncompleteStream = fmt.Errorf("%w: stream ended without usage", ErrProviderStream)
)
