// ABOUTME: Tests for the clock pack.

package builtins

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentTime(t *testing.T) {
	fixed := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	handler := handlerFor(ClockPack(func() time.Time { return fixed }), "current_time")
	require.NotNil(t, handler)

	out, err := handler(context.Background(), "", json.RawMessage(`{}`))
	require.NoError(t, err)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(out, &resp))
	assert.Equal(t, "2026-03-14T09:30:00Z", resp["time"])
	assert.Equal(t, "UTC", resp["timezone"])
	assert.Equal(t, "Saturday", resp["weekday"])
}

func TestCurrentTime_UnknownTimezone(t *testing.T) {
	handler := handlerFor(ClockPack(nil), "current_time")
	_, err := handler(context.Background(), "", json.RawMessage(`{"timezone": "Mars/Olympus"}`))
	assert.Error(t, err)
}
