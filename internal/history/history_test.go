package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	log, err := Open(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, log.Close()) })
	return log
}

func TestRecordAndRecent(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, Event{Action: ActionQueue, BookID: "1", Format: "eBook"}))
	require.NoError(t, log.Record(ctx, Event{Action: ActionAdd, BookID: "2"}))
	require.NoError(t, log.Record(ctx, Event{Action: ActionQueue, BookID: "1", Format: "AudioBook", Skipped: true}))

	events, err := log.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)

	// newest first
	assert.Equal(t, ActionQueue, events[0].Action)
	assert.True(t, events[0].Skipped)
	assert.Equal(t, ActionAdd, events[1].Action)
	assert.False(t, events[0].CreatedAt.IsZero())
}

func TestRecentDefaultLimit(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		require.NoError(t, log.Record(ctx, Event{Action: ActionSearch, BookID: "b"}))
	}

	events, err := log.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 50)
}

func TestForBook(t *testing.T) {
	log := openTestLog(t)
	ctx := context.Background()

	require.NoError(t, log.Record(ctx, Event{Action: ActionQueue, BookID: "1"}))
	require.NoError(t, log.Record(ctx, Event{Action: ActionQueue, BookID: "2"}))
	require.NoError(t, log.Record(ctx, Event{Action: ActionUnqueue, BookID: "1"}))

	events, err := log.ForBook(ctx, "1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, ActionUnqueue, events[0].Action)
	assert.Equal(t, ActionQueue, events[1].Action)
}
