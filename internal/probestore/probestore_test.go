// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package probestore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamforge/controller/internal/models"
)

func TestStore_SetAndGet(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	_, ok := s.Get(1)
	assert.False(t, ok)

	now := time.Now()
	require.NoError(t, s.Set(1, models.ProbeResult{Status: models.ProbeStatusOK, ResolutionW: 1920, ResolutionH: 1080, LastCheckedAt: now}))

	r, ok := s.Get(1)
	require.True(t, ok)
	assert.Equal(t, 1920, r.ResolutionW)
}

func TestStore_ImmuneWithinWindow(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	now := time.Now()
	assert.False(t, s.Immune(1, 2*time.Hour, now), "never-probed stream is never immune")

	require.NoError(t, s.Set(1, models.ProbeResult{Status: models.ProbeStatusOK, LastCheckedAt: now}))
	assert.True(t, s.Immune(1, 2*time.Hour, now.Add(time.Hour)))
	assert.False(t, s.Immune(1, 2*time.Hour, now.Add(3*time.Hour)))
}

func TestStore_AllReturnsSnapshotCopy(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set(1, models.ProbeResult{Status: models.ProbeStatusOK}))
	snap := s.All()
	require.Len(t, snap, 1)

	require.NoError(t, s.Set(2, models.ProbeResult{Status: models.ProbeStatusOK}))
	assert.Len(t, snap, 1, "earlier snapshot must not observe later writes")
}
