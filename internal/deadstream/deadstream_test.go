// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package deadstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_MarkDeadPreservesFirstSeenAcrossRepeatSightings(t *testing.T) {
	tr, err := Open(t.TempDir())
	require.NoError(t, err)

	first := time.Now()
	require.NoError(t, tr.MarkDead(1, "zero bitrate", first))

	second := first.Add(time.Hour)
	require.NoError(t, tr.MarkDead(1, "zero resolution", second))

	list := tr.List()
	require.Len(t, list, 1)
	assert.Equal(t, first, list[0].FirstSeenAt)
	assert.Equal(t, second, list[0].LastSeenAt)
	assert.Equal(t, "zero resolution", list[0].Reason)
}

func TestTracker_ReviveRemovesEntry(t *testing.T) {
	tr, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tr.MarkDead(1, "dead", time.Now()))
	assert.True(t, tr.IsDead(1))

	require.NoError(t, tr.Revive(1))
	assert.False(t, tr.IsDead(1))
}

func TestTracker_ClearAllWipesEverything(t *testing.T) {
	tr, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, tr.MarkDead(1, "dead", time.Now()))
	require.NoError(t, tr.MarkDead(2, "dead", time.Now()))
	require.NoError(t, tr.ClearAll())

	assert.Equal(t, 0, tr.Count())
}

func TestTracker_ReviveUnknownStreamIsNoop(t *testing.T) {
	tr, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.NoError(t, tr.Revive(999))
}
