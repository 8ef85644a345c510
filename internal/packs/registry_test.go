// ABOUTME: Tests for the tool registry including registration, collision detection and execution.
// ABOUTME: Validates schema checking and conversation scoping of handlers.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/turn"
)

func echoTool(name string) *BuiltinTool {
	return &BuiltinTool{
		Definition: turn.ToolDefinition{
			Name:        name,
			Description: "Echo the input",
			Schema: ObjectSchema(map[string]*jsonschema.Schema{
				"text":  StringProperty("Text to echo"),
				"times": {Type: "integer"},
			}, "text"),
		},
		Handler: func(_ context.Context, conversationID string, input json.RawMessage) (json.RawMessage, error) {
			var in map[string]any
			if err := json.Unmarshal(input, &in); err != nil {
				return nil, err
			}
			in["conversation"] = conversationID
			return json.Marshal(in)
		},
	}
}

func TestRegistryRegisterBuiltinPack(t *testing.T) {
	t.Run("registers pack successfully", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		err := registry.RegisterBuiltinPack(&BuiltinPack{
			ID:    "builtin:test",
			Tools: []*BuiltinTool{echoTool("echo_b"), echoTool("echo_a")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		defs := registry.Definitions()
		if len(defs) != 2 {
			t.Fatalf("expected 2 definitions, got %d", len(defs))
		}
		if defs[0].Name != "echo_a" || defs[1].Name != "echo_b" {
			t.Errorf("definitions not sorted: %s, %s", defs[0].Name, defs[1].Name)
		}

		packs := registry.ListBuiltinPacks()
		if len(packs) != 1 || packs[0].ID != "builtin:test" || len(packs[0].Tools) != 2 {
			t.Errorf("unexpected pack listing: %+v", packs)
		}
	})

	t.Run("returns error for colliding tool", func(t *testing.T) {
		registry := NewRegistry(nil)
		if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p1", Tools: []*BuiltinTool{echoTool("echo")}}); err != nil {
			t.Fatalf("unexpected error on first register: %v", err)
		}

		err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p2", Tools: []*BuiltinTool{echoTool("other"), echoTool("echo")}})
		if !errors.Is(err, ErrToolCollision) {
			t.Fatalf("expected ErrToolCollision, got %v", err)
		}
		// Nothing from the failed pack is registered
		if _, err := registry.Execute(context.Background(), "other", nil); !errors.Is(err, ErrToolNotFound) {
			t.Errorf("expected partial pack not to be registered, got %v", err)
		}
	})

	t.Run("returns error for duplicate inside pack", func(t *testing.T) {
		registry := NewRegistry(nil)
		err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{echoTool("x"), echoTool("x")}})
		if !errors.Is(err, ErrToolCollision) {
			t.Fatalf("expected ErrToolCollision, got %v", err)
		}
	})
}

func TestRegistryExecute(t *testing.T) {
	registry := NewRegistry(nil)
	if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{echoTool("echo")}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := conversation.WithConversationID(context.Background(), "conv-7")

	t.Run("executes with conversation scope", func(t *testing.T) {
		result, err := registry.Execute(ctx, "echo", map[string]any{"text": "hola", "times": 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m, ok := result.(map[string]any)
		if !ok {
			t.Fatalf("expected object result, got %T", result)
		}
		if m["text"] != "hola" || m["conversation"] != "conv-7" || m["times"] != float64(2) {
			t.Errorf("unexpected result: %v", m)
		}
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := registry.Execute(ctx, "nope", nil)
		if !errors.Is(err, ErrToolNotFound) {
			t.Errorf("expected ErrToolNotFound, got %v", err)
		}
	})

	t.Run("missing required argument", func(t *testing.T) {
		_, err := registry.Execute(ctx, "echo", map[string]any{})
		if !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("expected ErrInvalidArguments, got %v", err)
		}
	})

	t.Run("wrong argument type", func(t *testing.T) {
		_, err := registry.Execute(ctx, "echo", map[string]any{"text": 42})
		if !errors.Is(err, ErrInvalidArguments) {
			t.Errorf("expected ErrInvalidArguments, got %v", err)
		}
	})

	t.Run("handler error passes through", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewRegistry(nil)
		_ = r.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{{
			Definition: turn.ToolDefinition{Name: "fail"},
			Handler: func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
				return nil, boom
			},
		}}})
		_, err := r.Execute(ctx, "fail", nil)
		if !errors.Is(err, boom) {
			t.Errorf("expected handler error, got %v", err)
		}
	})
}
