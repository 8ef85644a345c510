// ABOUTME: Built-in tool support for tools that execute in-process.
// ABOUTME: A pack groups related tools under one ID for registration.

package packs

import (
	"context"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/socrates-gateway/internal/turn"
)

// ToolHandler is a function that executes a built-in tool.
// It receives the owning conversation's ID and the tool input as JSON.
// Returns the result as JSON or an error.
type ToolHandler func(ctx context.Context, conversationID string, input json.RawMessage) (json.RawMessage, error)

// BuiltinTool represents a tool that executes in the gateway process.
type BuiltinTool struct {
	Definition turn.ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a collection of built-in tools with a pack ID.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}

// builtinEntry stores a builtin tool with its pack ID and resolved schema.
type builtinEntry struct {
	Tool     *BuiltinTool
	PackID   string
	resolved *jsonschema.Resolved
}

// ObjectSchema builds an object schema from string-typed properties. Names
// in required must be present.
func ObjectSchema(properties map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if properties == nil {
		properties = map[string]*jsonschema.Schema{}
	}
	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// StringProperty is a string schema with a description.
func StringProperty(description string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: description}
}
