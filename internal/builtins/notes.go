// ABOUTME: Notes pack provides a key-value scratchpad scoped to one conversation.
// ABOUTME: Lets the model keep track of goals and facts the user stated earlier.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/socrates-gateway/internal/packs"
	"github.com/2389/socrates-gateway/internal/store"
	"github.com/2389/socrates-gateway/internal/turn"
)

// ErrNoConversation is returned when a notes tool runs outside a turn.
var ErrNoConversation = errors.New("notes require a conversation")

// NotesPack creates the notes pack with key-value storage tools.
func NotesPack(s store.NoteStore) *packs.BuiltinPack {
	n := &notesHandlers{store: s}
	keyOnly := packs.ObjectSchema(map[string]*jsonschema.Schema{
		"key": packs.StringProperty("Note key"),
	}, "key")

	return &packs.BuiltinPack{
		ID: "builtin:notes",
		Tools: []*packs.BuiltinTool{
			{
				Definition: turn.ToolDefinition{
					Name:        "note_set",
					Description: "Store a note about the user's plan under a key",
					Schema: packs.ObjectSchema(map[string]*jsonschema.Schema{
						"key":   packs.StringProperty("Note key"),
						"value": packs.StringProperty("Note content"),
					}, "key", "value"),
				},
				Handler: n.Set,
			},
			{
				Definition: turn.ToolDefinition{
					Name:        "note_get",
					Description: "Retrieve a note",
					Schema:      keyOnly,
				},
				Handler: n.Get,
			},
			{
				Definition: turn.ToolDefinition{
					Name:        "note_list",
					Description: "List all note keys",
					Schema:      packs.ObjectSchema(nil),
				},
				Handler: n.List,
			},
			{
				Definition: turn.ToolDefinition{
					Name:        "note_delete",
					Description: "Delete a note",
					Schema:      keyOnly,
				},
				Handler: n.Delete,
			},
		},
	}
}

type notesHandlers struct {
	store store.NoteStore
}

type noteSetInput struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (n *notesHandlers) Set(ctx context.Context, conversationID string, input json.RawMessage) (json.RawMessage, error) {
	if conversationID == "" {
		return nil, ErrNoConversation
	}
	var in noteSetInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	note := &store.Note{
		ConversationID: conversationID,
		Key:            in.Key,
		Value:          in.Value,
	}
	if err := n.store.SetNote(ctx, note); err != nil {
		return nil, err
	}

	return json.Marshal(map[string]string{"key": in.Key, "status": "saved"})
}

type noteKeyInput struct {
	Key string `json:"key"`
}

func (n *notesHandlers) Get(ctx context.Context, conversationID string, input json.RawMessage) (json.RawMessage, error) {
	if conversationID == "" {
		return nil, ErrNoConversation
	}
	var in noteKeyInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	note, err := n.store.GetNote(ctx, conversationID, in.Key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("note %q not found", in.Key)
		}
		return nil, err
	}

	return json.Marshal(map[string]string{"key": note.Key, "value": note.Value})
}

func (n *notesHandlers) List(ctx context.Context, conversationID string, _ json.RawMessage) (json.RawMessage, error) {
	if conversationID == "" {
		return nil, ErrNoConversation
	}
	notes, err := n.store.ListNotes(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	keys := make([]string, len(notes))
	for i, note := range notes {
		keys[i] = note.Key
	}

	return json.Marshal(map[string]any{"keys": keys, "count": len(keys)})
}

func (n *notesHandlers) Delete(ctx context.Context, conversationID string, input json.RawMessage) (json.RawMessage, error) {
	if conversationID == "" {
		return nil, ErrNoConversation
	}
	var in noteKeyInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}

	if err := n.store.DeleteNote(ctx, conversationID, in.Key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("note %q not found", in.Key)
		}
		return nil, err
	}

	return json.Marshal(map[string]string{"key": in.Key, "status": "deleted"})
}
