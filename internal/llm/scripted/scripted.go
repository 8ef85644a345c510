// ABOUTME: Scripted provider replays queued chunk sequences or echoes the user.
// ABOUTME: Used for local development without an API key and in transport tests.

package scripted

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/turn"
)

// Provider is a deterministic turn.Provider.
type Provider struct {
	mu     sync.Mutex
	queue  [][]turn.Chunk
	delay  time.Duration
	logger *slog.Logger
}

// New creates a scripted provider that waits delay between chunks.
func New(delay time.Duration, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		delay:  delay,
		logger: logger.With("component", "scripted-provider"),
	}
}

// Enqueue queues the chunks to replay for the next turn. Queued turns are
// consumed in order before falling back to echo replies.
func (p *Provider) Enqueue(chunks ...turn.Chunk) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, slices.Clone(chunks))
}

// Stream implements turn.Provider.
func (p *Provider) Stream(ctx context.Context, req turn.Request) iter.Seq2[turn.Chunk, error] {
	chunks := p.next(req)

	return func(yield func(turn.Chunk, error) bool) {
		for i, c := range chunks {
			if i > 0 && p.delay > 0 {
				select {
				case <-ctx.Done():
					yield(nil, ctx.Err())
					return
				case <-time.After(p.delay):
				}
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (p *Provider) next(req turn.Request) []turn.Chunk {
	p.mu.Lock()
	if len(p.queue) > 0 {
		chunks := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()
		p.logger.Debug("replaying scripted turn", "chunks", len(chunks))
		return chunks
	}
	p.mu.Unlock()

	return reply(req)
}

// reply builds an echo turn for the last history message.
func reply(req turn.Request) []turn.Chunk {
	var last *conversation.Message
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1]
	}

	var text string
	switch {
	case last == nil || last.Role() == conversation.RoleSystem:
		text = "Hola. ¿En qué plan quieres trabajar hoy?"
	case last.Role() == conversation.RoleTool:
		text = "Gracias. Con eso en mente, ¿cuál sería tu siguiente paso?"
	case wantsTime(last.Content()) && hasTool(req.Tools, "current_time"):
		return []turn.Chunk{
			turn.ToolCallChunk{ID: fmt.Sprintf("call_%d", len(req.Messages)), Name: "current_time", Arguments: map[string]any{}},
			usage(req, 0, "tool_calls"),
		}
	default:
		text = fmt.Sprintf("Echo: %s\n\n¿Qué te hace pensar eso?", last.Content())
	}

	words := strings.SplitAfter(text, " ")
	chunks := make([]turn.Chunk, 0, len(words)+1)
	for _, w := range words {
		chunks = append(chunks, turn.TextChunk{Content: w})
	}
	return append(chunks, usage(req, len(words), "stop"))
}

func wantsTime(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "qué hora") || strings.Contains(lower, "what time")
}

func hasTool(defs []turn.ToolDefinition, name string) bool {
	for _, d := range defs {
		if d.Name == name {
			return true
		}
	}
	return false
}

func usage(req turn.Request, completion int, reason string) turn.UsageChunk {
	prompt := 0
	for _, m := range req.Messages {
		prompt += len(strings.Fields(m.Content()))
	}
	return turn.UsageChunk{
		Usage: conversation.TokenUsage{
			PromptTokens:     int64(prompt),
			CompletionTokens: int64(completion),
			TotalTokens:      int64(prompt + completion),
		},
		FinishReason: reason,
	}
}
