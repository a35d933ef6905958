// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package changelog

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog_AppendAssignsMonotonicSequence(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, l.Append("playlist_refresh", nil, "refreshed", now))
	require.NoError(t, l.Append("matching", nil, "matched", now.Add(time.Second)))

	entries := l.Since(1, now.Add(time.Hour))
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(0), entries[0].Sequence)
	assert.Equal(t, uint64(1), entries[1].Sequence)
	assert.NotEmpty(t, entries[0].ID)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
}

func TestLog_SinceFiltersByWindow(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, l.Append("old", nil, "old entry", now.AddDate(0, 0, -10)))
	require.NoError(t, l.Append("recent", nil, "recent entry", now))

	entries := l.Since(1, now)
	require.Len(t, entries, 1)
	assert.Equal(t, "recent", entries[0].Category)
}

func TestLog_ConcurrentAppendsAreAllRecorded(t *testing.T) {
	l, err := Open(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	now := time.Now()
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Append("probe", nil, "probed", now)
		}()
	}
	wg.Wait()

	entries := l.Since(1, now.Add(time.Hour))
	assert.Len(t, entries, 50)

	seen := map[uint64]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.Sequence], "sequence numbers must be unique")
		seen[e.Sequence] = true
	}
}
