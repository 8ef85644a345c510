// ABOUTME: Tests for the NoteStore implementations.

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Notes(t *testing.T) {
	for name, store := range allStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			require.NoError(t, store.SetNote(ctx, &Note{ConversationID: "c1", Key: "goal", Value: "correr 10k"}))
			require.NoError(t, store.SetNote(ctx, &Note{ConversationID: "c1", Key: "blocker", Value: "tiempo"}))
			require.NoError(t, store.SetNote(ctx, &Note{ConversationID: "c2", Key: "goal", Value: "otra"}))

			got, err := store.GetNote(ctx, "c1", "goal")
			require.NoError(t, err)
			assert.Equal(t, "correr 10k", got.Value)
			firstID := got.ID

			// Upsert keeps the identity and replaces the value
			require.NoError(t, store.SetNote(ctx, &Note{ConversationID: "c1", Key: "goal", Value: "correr 21k"}))
			got, err = store.GetNote(ctx, "c1", "goal")
			require.NoError(t, err)
			assert.Equal(t, "correr 21k", got.Value)
			assert.Equal(t, firstID, got.ID)

			list, err := store.ListNotes(ctx, "c1")
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "blocker", list[0].Key)
			assert.Equal(t, "goal", list[1].Key)

			require.NoError(t, store.DeleteNote(ctx, "c1", "blocker"))
			assert.ErrorIs(t, store.DeleteNote(ctx, "c1", "blocker"), ErrNotFound)

			_, err = store.GetNote(ctx, "c1", "blocker")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
