// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamforge/controller/internal/validation"
)

type sampleBlob struct {
	Name  string `json:"name"`
	Count int    `json:"count" validate:"min=0"`
}

func TestJSONStore_CreatesFileWithDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, "sample.json", sampleBlob{Name: "default", Count: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, "default", s.Get().Name)

	_, err = os.Stat(filepath.Join(dir, "sample.json"))
	require.NoError(t, err)
}

func TestJSONStore_RoundTripsThroughReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, "sample.json", sampleBlob{Name: "default", Count: 1}, nil)
	require.NoError(t, err)

	require.NoError(t, s.Set(sampleBlob{Name: "updated", Count: 5}))

	reopened, err := NewJSONStore(dir, "sample.json", sampleBlob{Name: "default", Count: 1}, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleBlob{Name: "updated", Count: 5}, reopened.Get()); diff != "" {
		t.Errorf("reopened blob mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONStore_MissingKeysFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sample.json"), []byte(`{"name":"partial"}`), 0o644))

	s, err := NewJSONStore(dir, "sample.json", sampleBlob{Name: "default", Count: 7}, nil)
	require.NoError(t, err)
	assert.Equal(t, sampleBlob{Name: "partial", Count: 7}, s.Get())
}

func TestJSONStore_RejectsInvalidWriteWithoutMutatingState(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, "sample.json", sampleBlob{Name: "ok", Count: 1}, validation.GetValidator())
	require.NoError(t, err)

	err = s.Set(sampleBlob{Name: "bad", Count: -1})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "ok", s.Get().Name, "rejected write must not mutate in-memory state")
}

func TestJSONStore_UpdateIsAtomicUnderConcurrency(t *testing.T) {
	dir := t.TempDir()
	s, err := NewJSONStore(dir, "sample.json", sampleBlob{Count: 0}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(func(cur sampleBlob) (sampleBlob, error) {
				cur.Count++
				return cur, nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Get().Count)
}

func TestOpen_InitializesAllBlobsWithDefaults(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(dir, validation.GetValidator())
	require.NoError(t, err)

	assert.Equal(t, DefaultAutomationConfig(), st.Automation.Get())
	assert.Equal(t, DefaultStreamCheckerConfig(), st.StreamChecker.Get())
	assert.Equal(t, DefaultProfileConfig(), st.Profile.Get())
}

func TestAccountStreamLimits_EffectiveLimit(t *testing.T) {
	limits := AccountStreamLimits{GlobalLimit: 3, PerAccount: map[int64]int{7: 10}}
	assert.Equal(t, 10, limits.EffectiveLimit(7))
	assert.Equal(t, 3, limits.EffectiveLimit(1))
}
