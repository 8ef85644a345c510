// ABOUTME: Coordinator runs one conversational turn: provider stream, commit, tools, frames.
// ABOUTME: Persists after every commit point and always releases the sink.

package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/store"
)

const defaultSaveTimeout = 5 * time.Second

// Options configures a Coordinator.
type Options struct {
	Persona Persona
	Model   string

	// Usage, when set, receives token usage for each committed assistant
	// message. Failures are logged and do not affect the turn.
	Usage UsageRecorder

	// SaveTimeout bounds each save. Saves are detached from the request
	// context so committed steps survive a client disconnect.
	SaveTimeout time.Duration
}

// Coordinator drives single turns over a conversation.
type Coordinator struct {
	provider     Provider
	tools        ToolRegistry
	repo         Repository
	orchestrator *conversation.Orchestrator
	opts         Options
	logger       *slog.Logger

	// settled observes the streaming response after cleanup.
	settled func(*conversation.StreamingResponse)
}

// NewCoordinator creates a Coordinator. A nil logger uses slog.Default().
func NewCoordinator(provider Provider, tools ToolRegistry, repo Repository, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = defaultSaveTimeout
	}
	return &Coordinator{
		provider:     provider,
		tools:        tools,
		repo:         repo,
		orchestrator: conversation.NewOrchestrator(logger),
		opts:         opts,
		logger:       logger.With("component", "turn"),
	}
}

// Model returns the model name sent with each request.
func (c *Coordinator) Model() string { return c.opts.Model }

// run holds the per-turn state.
type run struct {
	conv    *conversation.Conversation
	resp    *conversation.StreamingResponse
	sink    Sink
	logger  *slog.Logger
	text    strings.Builder
	pending []*conversation.ToolInvocation
}

// Run executes one turn for conversationID, writing frames to sink. The sink
// is closed on every path. On failure one error frame is written before the
// close and the error is returned.
func (c *Coordinator) Run(ctx context.Context, conversationID string, sink Sink) (err error) {
	r := &run{
		sink:   sink,
		logger: c.logger.With("conversation_id", conversationID),
	}
	started := time.Now()

	defer func() {
		if err != nil {
			if r.resp != nil && r.resp.IsStreaming() {
				if ferr := r.resp.Fail(err); ferr != nil {
					r.logger.Warn("failing streaming response", "error", ferr)
				}
			}
			c.emit(r, ErrorFrame{ErrorPayload{Error: err.Error()}})
			r.logger.Error("turn failed", "error", err, "duration", time.Since(started))
		}
		if cerr := sink.Close(); cerr != nil {
			r.logger.Warn("closing sink", "error", cerr)
		}
		if c.settled != nil && r.resp != nil {
			c.settled(r.resp)
		}
	}()

	conv, err := c.repo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
		}
		return fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	r.conv = conv

	sc, err := c.orchestrator.PrepareForStreaming(conv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamPreparation, err)
	}
	r.resp = sc.Response
	if err := r.resp.Start(); err != nil {
		return fmt.Errorf("%w: %w", ErrStreamPreparation, err)
	}

	req := c.buildRequest(conv)
	r.logger.Info("turn started",
		"model", req.Model,
		"messages", len(req.Messages),
		"tools", len(req.Tools),
	)

	for chunk, serr := range c.provider.Stream(ctx, req) {
		if serr != nil {
			return fmt.Errorf("%w: %w", ErrProviderStream, serr)
		}
		if cerr := ctx.Err(); cerr != nil {
			return fmt.Errorf("%w: %w", ErrProviderStream, cerr)
		}

		switch ch := chunk.(type) {
		case TextChunk:
			if err := c.handleText(r, ch); err != nil {
				return err
			}
		case ToolCallChunk:
			if err := c.handleToolCall(r, ch); err != nil {
				return err
			}
		case UsageChunk:
			if err := c.finish(ctx, r, ch); err != nil {
				return err
			}
			r.logger.Info("turn completed",
				"finish_reason", r.resp.FinishReason(),
				"tool_calls", len(r.pending),
				"duration", time.Since(started),
			)
			return nil
		case ErrorChunk:
			return fmt.Errorf("%w: %s", ErrProviderStream, ch.Message)
		default:
			return fmt.Errorf("%w: unexpected chunk %T", ErrProviderStream, chunk)
		}
	}

	if cerr := ctx.Err(); cerr != nil {
		return fmt.Errorf("%w: %w", ErrProviderStream, cerr)
	}
	return ErrIncompleteStream
}

// buildRequest copies the history and prepends the persona. The user
// message counter is taken once, before anything is appended.
func (c *Coordinator) buildRequest(conv *conversation.Conversation) Request {
	history := conv.Messages()
	userMessages := conv.UserMessageCount()

	messages := make([]*conversation.Message, 0, len(history)+1)
	messages = append(messages, conversation.NewSystemMessage(c.opts.Persona.Render(userMessages)))
	messages = append(messages, history...)

	var tools []ToolDefinition
	if c.tools != nil {
		tools = c.tools.Definitions()
	}
	return Request{
		Model:    c.opts.Model,
		Messages: messages,
		Tools:    tools,
	}
}

func (c *Coordinator) handleText(r *run, ch TextChunk) error {
	r.text.WriteString(ch.Content)
	if err := r.resp.AppendText(ch.Content); err != nil {
		return err
	}
	c.emit(r, TextFrame{Text: ch.Content})
	return nil
}

func (c *Coordinator) handleToolCall(r *run, ch ToolCallChunk) error {
	inv, err := conversation.NewToolInvocation(ch.ID, ch.Name, ch.Arguments)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProviderStream, err)
	}
	r.pending = append(r.pending, inv)
	if err := r.resp.RecordToolCall(inv.ID(), inv.Name(), inv.Args()); err != nil {
		return err
	}
	c.emit(r, ToolCallFrame{ToolCallPayload{
		ToolCallID: inv.ID(),
		ToolName:   inv.Name(),
		Args:       inv.Args(),
	}})
	return nil
}

// finish handles the end-of-turn signal: commit, persist, run tools, then
// complete the response and emit the finish frame.
func (c *Coordinator) finish(ctx context.Context, r *run, ch UsageChunk) error {
	if len(r.pending) == 0 {
		if err := r.resp.Complete(ch.Usage, ch.FinishReason); err != nil {
			return err
		}
	}

	msg := conversation.NewAssistantMessage(r.text.String(), r.pending)
	if err := c.orchestrator.ProcessAssistantMessage(r.conv, msg, r.resp); err != nil {
		return fmt.Errorf("committing assistant message: %w", err)
	}
	if err := c.save(ctx, r.conv); err != nil {
		return err
	}
	c.recordUsage(ctx, r, msg.ID(), ch.Usage)

	if len(r.pending) > 0 {
		if err := c.executeTools(ctx, r); err != nil {
			return err
		}
		if err := r.resp.Complete(ch.Usage, ch.FinishReason); err != nil {
			return err
		}
	}

	c.emit(r, FinishFrame{FinishPayload{
		FinishReason: r.resp.FinishReason(),
		Usage:        r.resp.Usage(),
		IsContinued:  false,
	}})
	return nil
}

// executeTools runs pending invocations one at a time in declaration order.
// A failing tool is recorded and the loop moves on; only persistence
// failures abort.
func (c *Coordinator) executeTools(ctx context.Context, r *run) error {
	toolCtx := conversation.WithConversationID(ctx, r.conv.ID())

	for _, inv := range r.pending {
		result, toolMsg, err := c.executeTool(toolCtx, inv)
		if err != nil {
			if err := c.recordToolFailure(ctx, r, inv, err); err != nil {
				return err
			}
			continue
		}

		if err := r.resp.RecordToolResult(inv.ID(), inv.Name(), result); err != nil {
			return err
		}
		c.emit(r, ToolResultFrame{ToolResultPayload{
			ToolCallID: inv.ID(),
			ToolName:   inv.Name(),
			Args:       inv.Args(),
			Result:     result,
		}})

		if err := r.conv.AddMessage(toolMsg); err != nil {
			return err
		}
		if err := c.save(ctx, r.conv); err != nil {
			return err
		}
	}
	return nil
}

// executeTool runs one invocation and builds its tool-role message. The
// invocation completes only once the result has been serialized, so a
// result that cannot be encoded fails the call instead.
func (c *Coordinator) executeTool(ctx context.Context, inv *conversation.ToolInvocation) (any, *conversation.Message, error) {
	if err := inv.MarkAsExecuting(); err != nil {
		return nil, nil, err
	}
	if c.tools == nil {
		return nil, nil, fmt.Errorf("no tool registry configured for %s", inv.Name())
	}
	result, err := c.tools.Execute(ctx, inv.Name(), inv.Args())
	if err != nil {
		return nil, nil, err
	}
	toolMsg, err := conversation.NewToolMessage(inv.ID(), inv.Name(), result)
	if err != nil {
		return nil, nil, err
	}
	if err := inv.Complete(result); err != nil {
		return nil, nil, err
	}
	return result, toolMsg, nil
}

// recordToolFailure settles inv as failed unless it already completed,
// persists a tool-role error message and emits the error as its result.
func (c *Coordinator) recordToolFailure(ctx context.Context, r *run, inv *conversation.ToolInvocation, cause error) error {
	r.logger.Warn("tool execution failed",
		"tool", inv.Name(),
		"tool_call_id", inv.ID(),
		"error", cause,
	)
	if inv.IsExecuting() {
		if err := inv.Fail(cause); err != nil {
			r.logger.Warn("failing tool invocation", "tool_call_id", inv.ID(), "error", err)
		}
	}

	payload := ToolErrorResult{
		Error:   true,
		Message: "Tool execution failed: " + cause.Error(),
	}
	toolMsg, err := conversation.NewToolMessage(inv.ID(), inv.Name(), payload)
	if err != nil {
		return err
	}
	if err := r.conv.AddMessage(toolMsg); err != nil {
		return err
	}
	if err := c.save(ctx, r.conv); err != nil {
		return err
	}
	c.emit(r, ToolResultFrame{ToolResultPayload{
		ToolCallID: inv.ID(),
		ToolName:   inv.Name(),
		Args:       inv.Args(),
		Result:     payload,
	}})
	return nil
}

func (c *Coordinator) save(ctx context.Context, conv *conversation.Conversation) error {
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SaveTimeout)
	defer cancel()

	if err := c.repo.Save(saveCtx, conv); err != nil {
		return fmt.Errorf("%w %s: %w", ErrPersistence, conv.ID(), err)
	}
	return nil
}

func (c *Coordinator) recordUsage(ctx context.Context, r *run, messageID string, usage conversation.TokenUsage) {
	if c.opts.Usage == nil {
		return
	}
	usageCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.SaveTimeout)
	defer cancel()

	if err := c.opts.Usage.RecordUsage(usageCtx, r.conv.ID(), messageID, usage); err != nil {
		r.logger.Error("failed to record usage", "message_id", messageID, "error", err)
	}
}

// emit writes a frame. Write failures are logged and the turn carries on;
// the persisted conversation stays authoritative.
func (c *Coordinator) emit(r *run, f Frame) {
	if err := r.sink.Write(f); err != nil {
		r.logger.Warn("writing frame", "frame", f.Type(), "error", err)
	}
}
