// ABOUTME: Tests for MemoryStore snapshot semantics.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/socrates-gateway/internal/conversation"
)

func TestMemoryStore_SnapshotsAreDetached(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	conv := conversation.New("conv-1")
	require.NoError(t, conv.AddMessage(conversation.NewUserMessage("hola")))
	require.NoError(t, store.CreateConversation(ctx, conv))

	// Unsaved appends are not visible
	require.NoError(t, conv.AddMessage(conversation.NewUserMessage("sin guardar")))
	loaded, err := store.FindByID(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	// Mutating a loaded copy does not touch the stored snapshot
	require.NoError(t, loaded.AddMessage(conversation.NewUserMessage("copia")))
	again, err := store.FindByID(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Len())

	require.NoError(t, store.Save(ctx, conv))
	again, err = store.FindByID(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Len())
}

func TestMemoryStore_Errors(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.CreateConversation(ctx, conversation.New("x")))
	assert.ErrorIs(t, store.CreateConversation(ctx, conversation.New("x")), ErrDuplicate)
}

func TestMemoryStore_ListConversations(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateConversation(ctx, conversation.New("a")))
	require.NoError(t, store.CreateConversation(ctx, conversation.New("b")))

	list, err := store.ListConversations(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = store.ListConversations(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
