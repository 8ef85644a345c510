// ABOUTME: OpenAI Responses API provider streaming turn chunks.
// ABOUTME: Maps conversation history to response input items and stream events to chunks.

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/turn"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Config configures the provider.
type Config struct {
	APIKey     string
	BaseURL    string
	MaxRetries int
}

// Provider streams completions from the OpenAI Responses API.
type Provider struct {
	client openai.Client
	logger *slog.Logger
}

var _ turn.Provider = (*Provider)(nil)

// New creates a provider for cfg.
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Provider{
		client: openai.NewClient(opts...),
		logger: logger.With("component", "openai-provider"),
	}, nil
}

// Stream implements turn.Provider.
func (p *Provider) Stream(ctx context.Context, req turn.Request) iter.Seq2[turn.Chunk, error] {
	return func(yield func(turn.Chunk, error) bool) {
		input, err := inputItems(req.Messages)
		if err != nil {
			yield(nil, err)
			return
		}
		tools, err := toolParams(req.Tools)
		if err != nil {
			yield(nil, err)
			return
		}

		stream := p.client.Responses.NewStreaming(ctx, responses.ResponseNewParams{
			Model: req.Model,
			Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
			Tools: tools,
		})
		defer stream.Close()

		sawToolCall := false
		for stream.Next() {
			event := stream.Current()

			var chunk turn.Chunk
			switch event.Type {
			case "response.output_text.delta":
				if event.Delta == "" {
					continue
				}
				chunk = turn.TextChunk{Content: event.Delta}

			case "response.output_item.done":
				if event.Item.Type != "function_call" {
					continue
				}
				call := event.Item.AsFunctionCall()
				args, err := parseArguments(call.Arguments)
				if err != nil {
					yield(nil, fmt.Errorf("tool call %s: %w", call.CallID, err))
					return
				}
				sawToolCall = true
				chunk = turn.ToolCallChunk{ID: call.CallID, Name: call.Name, Arguments: args}

			case "response.completed", "response.incomplete":
				reason := "stop"
				switch {
				case event.Type == "response.incomplete":
					reason = "length"
				case sawToolCall:
					reason = "tool_calls"
				}
				usage := event.Response.Usage
				chunk = turn.UsageChunk{
					Usage: conversation.TokenUsage{
						PromptTokens:     usage.InputTokens,
						CompletionTokens: usage.OutputTokens,
						TotalTokens:      usage.TotalTokens,
					},
					FinishReason: reason,
				}

			case "response.failed":
				chunk = turn.ErrorChunk{Message: event.Response.Error.Message}

			case "error":
				chunk = turn.ErrorChunk{Message: event.Message}

			default:
				continue
			}

			if !yield(chunk, nil) {
				return
			}
		}

		if err := stream.Err(); err != nil {
			p.logger.Warn("response stream failed", "error", err)
			yield(nil, err)
		}
	}
}

// inputItems maps history onto Responses input items. Every function call
// needs a matching output, so invocations left without a tool message by an
// interrupted turn get a synthetic error output.
func inputItems(messages []*conversation.Message) ([]responses.ResponseInputItemUnionParam, error) {
	items := make([]responses.ResponseInputItemUnionParam, 0, len(messages))

	answered := make(map[string]bool)
	for _, m := range messages {
		if m.Role() == conversation.RoleTool {
			answered[m.ToolCallID()] = true
		}
	}

	for _, m := range messages {
		switch m.Role() {
		case conversation.RoleSystem:
			items = append(items, textItem(responses.EasyInputMessageRoleSystem, m.Content()))

		case conversation.RoleUser:
			items = append(items, textItem(responses.EasyInputMessageRoleUser, m.Content()))

		case conversation.RoleAssistant:
			if m.Content() != "" {
				items = append(items, textItem(responses.EasyInputMessageRoleAssistant, m.Content()))
			}
			for _, inv := range m.ToolInvocations() {
				args, err := json.Marshal(inv.Args())
				if err != nil {
					return nil, fmt.Errorf("encode arguments for %s: %w", inv.ID(), err)
				}
				items = append(items, responses.ResponseInputItemUnionParam{
					OfFunctionCall: &responses.ResponseFunctionToolCallParam{
						CallID:    inv.ID(),
						Name:      inv.Name(),
						Arguments: string(args),
					},
				})
				if !answered[inv.ID()] {
					items = append(items, outputItem(inv.ID(), interruptedOutput))
				}
			}

		case conversation.RoleTool:
			items = append(items, outputItem(m.ToolCallID(), m.Content()))
		}
	}

	return items, nil
}

// interruptedOutput answers a call whose turn ended before the tool ran.
var interruptedOutput = mustJSON(turn.ToolErrorResult{
	Error:   true,
	Message: "Tool execution failed: the turn was interrupted before a result was recorded",
})

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}

func outputItem(callID, output string) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemUnionParam{
		OfFunctionCallOutput: &responses.ResponseInputItemFunctionCallOutputParam{
			CallID: callID,
			Output: responses.ResponseInputItemFunctionCallOutputOutputUnionParam{
				OfString: openai.String(output),
			},
		},
	}
}

func textItem(role responses.EasyInputMessageRole, text string) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemUnionParam{
		OfMessage: &responses.EasyInputMessageParam{
			Role:    role,
			Content: responses.EasyInputMessageContentUnionParam{OfString: openai.String(text)},
		},
	}
}

// toolParams advertises each tool with the same schema the registry
// validates against. A schema that cannot be encoded fails the request.
func toolParams(defs []turn.ToolDefinition) ([]responses.ToolUnionParam, error) {
	var result []responses.ToolUnionParam

	for _, d := range defs {
		params := map[string]any{"type": "object"}
		if d.Schema != nil {
			data, err := json.Marshal(d.Schema)
			if err != nil {
				return nil, fmt.Errorf("encode schema for %s: %w", d.Name, err)
			}
			params = nil
			if err := json.Unmarshal(data, &params); err != nil {
				return nil, fmt.Errorf("decode schema for %s: %w", d.Name, err)
			}
		}

		tool := responses.ToolParamOfFunction(d.Name, params, false)
		if tool.OfFunction != nil && d.Description != "" {
			tool.OfFunction.Description = openai.String(d.Description)
		}
		result = append(result, tool)
	}

	return result, nil
}

func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	return args, nil
}
