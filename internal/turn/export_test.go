package turn

import "github.com/2389/socrates-gateway/internal/conversation"

// ObserveResponse registers fn to receive each turn's streaming response
// once the turn has settled.
func (c *Coordinator) ObserveResponse(fn func(*conversation.StreamingResponse)) {
	c.settled = fn
}
