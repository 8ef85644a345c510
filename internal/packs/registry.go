// ABOUTME: Registry holds the built-in tool packs and executes tools by name.
// ABOUTME: Arguments are validated against each tool's JSON schema before execution.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/2389/socrates-gateway/internal/conversation"
	"github.com/2389/socrates-gateway/internal/turn"
)

// ErrToolCollision is returned when a tool name is registered twice.
var ErrToolCollision = errors.New("tool name collision")

// ErrToolNotFound is returned when executing an unknown tool.
var ErrToolNotFound = errors.New("tool not found")

// ErrInvalidArguments is returned when arguments fail schema validation.
var ErrInvalidArguments = errors.New("invalid tool arguments")

// Ensure Registry satisfies the coordinator's tool contract.
var _ turn.ToolRegistry = (*Registry)(nil)

// Registry maintains the registered builtin tools.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*builtinEntry // tool name -> builtin entry
	logger   *slog.Logger
}

// NewRegistry creates a new Registry instance.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		builtins: make(map[string]*builtinEntry),
		logger:   logger.With("component", "packs"),
	}
}

// RegisterBuiltinPack registers a pack of built-in tools that execute in-process.
// Returns error if any tool name collides with existing tools or a schema
// cannot be resolved.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make(map[string]*builtinEntry, len(pack.Tools))
	for _, tool := range pack.Tools {
		name := tool.Definition.Name
		if name == "" {
			return fmt.Errorf("pack %s: tool without a name", pack.ID)
		}
		if _, exists := r.builtins[name]; exists {
			return fmt.Errorf("%w: tool '%s' already registered", ErrToolCollision, name)
		}
		if _, exists := entries[name]; exists {
			return fmt.Errorf("%w: tool '%s' declared twice in pack %s", ErrToolCollision, name, pack.ID)
		}

		entry := &builtinEntry{Tool: tool, PackID: pack.ID}
		if tool.Definition.Schema != nil {
			resolved, err := tool.Definition.Schema.Resolve(nil)
			if err != nil {
				return fmt.Errorf("resolving schema for %s: %w", name, err)
			}
			entry.resolved = resolved
		}
		entries[name] = entry
	}

	for name, entry := range entries {
		r.builtins[name] = entry
	}

	r.logger.Info("=== BUILTIN PACK REGISTERED ===",
		"pack_id", pack.ID,
		"tool_count", len(pack.Tools),
	)
	return nil
}

// Definitions returns the catalogue of tools sorted by name.
func (r *Registry) Definitions() []turn.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]turn.ToolDefinition, 0, len(r.builtins))
	for _, entry := range r.builtins {
		defs = append(defs, entry.Tool.Definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// BuiltinPackInfo contains information about a registered builtin pack for display.
type BuiltinPackInfo struct {
	ID    string
	Tools []string
}

// ListBuiltinPacks returns the registered packs with their tool names.
func (r *Registry) ListBuiltinPacks() []BuiltinPackInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	packTools := make(map[string][]string)
	for name, entry := range r.builtins {
		packTools[entry.PackID] = append(packTools[entry.PackID], name)
	}

	result := make([]BuiltinPackInfo, 0, len(packTools))
	for packID, tools := range packTools {
		sort.Strings(tools)
		result = append(result, BuiltinPackInfo{ID: packID, Tools: tools})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Execute validates args and runs the named tool. The conversation ID is
// taken from ctx. The decoded JSON result is returned.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (any, error) {
	r.mu.RLock()
	entry, ok := r.builtins[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	input, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encoding arguments for %s: %w", name, err)
	}

	if entry.resolved != nil {
		// Validate the JSON form so Go numeric types match schema types
		var instance any
		if err := json.Unmarshal(input, &instance); err != nil {
			return nil, fmt.Errorf("decoding arguments for %s: %w", name, err)
		}
		if err := entry.resolved.Validate(instance); err != nil {
			return nil, fmt.Errorf("%w for %s: %w", ErrInvalidArguments, name, err)
		}
	}

	conversationID, _ := conversation.ConversationIDFromContext(ctx)
	r.logger.Debug("executing builtin tool",
		"tool", name,
		"pack_id", entry.PackID,
		"conversation_id", conversationID,
	)

	output, err := entry.Tool.Handler(ctx, conversationID, input)
	if err != nil {
		return nil, err
	}
	if len(output) == 0 {
		return nil, nil
	}

	var result any
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("decoding result of %s: %w", name, err)
	}
	return result, nil
}
