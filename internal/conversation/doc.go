// Package conversation holds the domain model of a single conversational turn.
//
// # Overview
//
// A Conversation is an append-only, ordered list of Messages. Messages are
// immutable once built and are created only through factories:
//
//	conv := conversation.New(id)
//	_ = conv.AddMessage(conversation.NewUserMessage("hola"))
//
// # State Machines
//
// Two entities carry explicit lifecycles and reject out-of-order calls with
// ErrInvalidTransition:
//
//   - StreamingResponse: idle -> streaming -> completed | failed
//   - ToolInvocation: pending -> executing -> completed | failed
//
// # Orchestrator
//
// The Orchestrator allocates a StreamingResponse for a conversation and later
// commits the finished assistant Message into it:
//
//	sc, _ := orch.PrepareForStreaming(conv)
//	_ = sc.Response.Start()
//	// ... stream ...
//	_ = orch.ProcessAssistantMessage(conv, msg, sc.Response)
//
// # Records
//
// Record, MessageRecord and InvocationRecord are the plain forms used by the
// store and the HTTP API. Restore rebuilds the aggregate from them.
package conversation
