package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	base := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)

	second := &SessionRecord{ID: "b", RemoteAddr: "10.0.0.2:5000", ConnectedAt: base.Add(time.Minute)}
	first := &SessionRecord{ID: "a", RemoteAddr: "10.0.0.1:5000", ConnectedAt: base, Functions: []string{"uplink_ping"}}
	require.NoError(t, store.Save(ctx, second))
	require.NoError(t, store.Save(ctx, first))

	// the store keeps its own copy
	first.Functions[0] = "mutated"

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID, "oldest first")
	assert.Equal(t, []string{"uplink_ping"}, list[0].Functions)
	assert.Equal(t, "b", list[1].ID)

	// saving again replaces
	require.NoError(t, store.Save(ctx, &SessionRecord{ID: "b", ConnectedAt: second.ConnectedAt, Functions: []string{"report"}}))
	require.NoError(t, store.Delete(ctx, "a"))
	require.NoError(t, store.Delete(ctx, "missing"))

	list, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"report"}, list[0].Functions)
}

func TestRecordFromFields(t *testing.T) {
	connected := time.Date(2026, 2, 17, 9, 0, 0, 123, time.UTC)

	rec := recordFromFields(map[string]string{
		"id":           "session-1",
		"remote_addr":  "127.0.0.1:4242",
		"connected_at": connected.Format(time.RFC3339Nano),
		"functions":    "uplink_ping,report",
	})
	assert.Equal(t, "session-1", rec.ID)
	assert.Equal(t, "127.0.0.1:4242", rec.RemoteAddr)
	assert.True(t, connected.Equal(rec.ConnectedAt))
	assert.Equal(t, []string{"uplink_ping", "report"}, rec.Functions)

	empty := recordFromFields(map[string]string{"id": "session-2", "functions": ""})
	assert.Nil(t, empty.Functions)
	assert.True(t, empty.ConnectedAt.IsZero())
}
