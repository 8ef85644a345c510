// ABOUTME: ToolInvocation tracks one model-requested tool call through its lifecycle.
// ABOUTME: States move pending -> executing -> completed|failed and never go back.

package conversation

import (
	"fmt"
	"maps"
	"sync"
)

// InvocationState is the lifecycle state of a ToolInvocation.
type InvocationState string

const (
	InvocationPending   InvocationState = "pending"
	InvocationExecuting InvocationState = "executing"
	InvocationCompleted InvocationState = "completed"
	InvocationFailed    InvocationState = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s InvocationState) IsTerminal() bool {
	return s == InvocationCompleted || s == InvocationFailed
}

// ToolInvocation is a single tool call declared by the assistant.
// The owning assistant Message holds it; the turn coordinator drives its
// transitions while executing tools.
type ToolInvocation struct {
	mu      sync.Mutex
	id      string
	name    string
	args    map[string]any
	state   InvocationState
	result  any
	failure string
}

// NewToolInvocation creates an invocation in the pending state.
func NewToolInvocation(id, name string, args map[string]any) (*ToolInvocation, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: tool invocation requires a call id", ErrInvalidMessage)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: tool invocation %s requires a tool name", ErrInvalidMessage, id)
	}
	if args == nil {
		args = map[string]any{}
	}
	return &ToolInvocation{
		id:    id,
		name:  name,
		args:  maps.Clone(args),
		state: InvocationPending,
	}, nil
}

// ID returns the provider-assigned call id.
func (t *ToolInvocation) ID() string { return t.id }

// Name returns the requested tool name.
func (t *ToolInvocation) Name() string { return t.name }

// Args returns a copy of the argument payload.
func (t *ToolInvocation) Args() map[string]any { return maps.Clone(t.args) }

// State returns the current lifecycle state.
func (t *ToolInvocation) State() InvocationState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// IsExecuting reports whether the invocation is currently executing.
func (t *ToolInvocation) IsExecuting() bool { return t.State() == InvocationExecuting }

// IsCompleted reports whether the invocation settled successfully.
func (t *ToolInvocation) IsCompleted() bool { return t.State() == InvocationCompleted }

// Result returns the success payload, nil unless completed.
func (t *ToolInvocation) Result() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.result
}

// FailureReason returns the recorded failure, empty unless failed.
func (t *ToolInvocation) FailureReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failure
}

// MarkAsExecuting moves a pending invocation to executing.
func (t *ToolInvocation) MarkAsExecuting() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.transitionLocked(InvocationPending, InvocationExecuting)
}

// Complete stores the result and settles the invocation as completed.
func (t *ToolInvocation) Complete(result any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(InvocationExecuting, InvocationCompleted); err != nil {
		return err
	}
	t.result = result
	return nil
}

// Fail records the failure reason and settles the invocation as failed.
// A completed invocation can never be failed.
func (t *ToolInvocation) Fail(cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.transitionLocked(InvocationExecuting, InvocationFailed); err != nil {
		return err
	}
	if cause != nil {
		t.failure = cause.Error()
	}
	return nil
}

func (t *ToolInvocation) transitionLocked(from, to InvocationState) error {
	if t.state != from {
		return fmt.Errorf("%w: tool invocation %s cannot move %s -> %s", ErrInvalidTransition, t.id, t.state, to)
	}
	t.state = to
	return nil
}
