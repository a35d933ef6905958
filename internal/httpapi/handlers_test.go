// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamforge/controller/internal/models"
)

func decodeEnvelope(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env))
	return env
}

func TestStatus_ReturnsEngineSnapshot(t *testing.T) {
	rig := newTestRig(t)
	rec := doRequest(t, rig.router(), http.MethodGet, "/status", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	assert.True(t, env.Success)
}

func TestListChannels_ReturnsPaginatedEnvelope(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1, Name: "ESPN"}

	rec := doRequest(t, rig.router(), http.MethodGet, "/channels", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.NotNil(t, env.Meta)
	require.NotNil(t, env.Meta.Pagination)
	assert.Equal(t, 1, env.Meta.Pagination.Count)
}

func TestAddRegexPattern_PersistsAndReturnsChannelPatterns(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1, Name: "ESPN"}

	body, err := json.Marshal(addPatternRequest{
		ChannelID: 1,
		Pattern:   models.RegexPatternRecord{Pattern: "^ESPN", Enabled: true},
	})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/regex-patterns", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	patterns := rig.rx.ChannelPatterns(1)
	require.Len(t, patterns, 1)
	assert.Equal(t, "^ESPN", patterns[0].Pattern)
}

func TestAddRegexPattern_MissingChannelIDFailsValidation(t *testing.T) {
	rig := newTestRig(t)

	body, err := json.Marshal(map[string]interface{}{
		"pattern": models.RegexPatternRecord{Pattern: "^ESPN"},
	})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/regex-patterns", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env := decodeEnvelope(t, rec.Body.Bytes())
	assert.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, codeValidationFailed, env.Error.Code)
}

func TestGetChannelSettings_UnknownChannelReturns404(t *testing.T) {
	rig := newTestRig(t)

	rec := doRequest(t, rig.router(), http.MethodGet, "/channel-settings/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPutChannelSettings_OverridesEffectiveSettings(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1, Name: "ESPN"}

	body, err := json.Marshal(settingsRequest{CheckingMode: models.ModeDisabled})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPut, "/channel-settings/1", body)
	require.Equal(t, http.StatusOK, rec.Code)

	eff := rig.set.Effective(1, rig.handler.membership())
	assert.Equal(t, models.ModeDisabled, eff.CheckingMode)
	assert.Equal(t, models.ModeEnabled, eff.MatchingMode)
}

func TestCheckSingleChannel_UnknownChannelReturns404(t *testing.T) {
	rig := newTestRig(t)

	body, err := json.Marshal(checkSingleChannelRequest{ChannelID: 42, Force: true})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/stream-checker/check-single-channel", body)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckSingleChannel_EnqueuesKnownChannel(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[7] = models.Channel{ID: 7, Name: "CNN"}

	body, err := json.Marshal(checkSingleChannelRequest{ChannelID: 7, Force: true})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/stream-checker/check-single-channel", body)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, rig.q.IsQueued(7) || rig.q.IsInProgress(7))
}

func TestQueueAddAndGet_RoundTrips(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1}
	rig.idx.channels[2] = models.Channel{ID: 2}

	body, err := json.Marshal(queueAddRequest{ChannelIDs: []int64{1, 2}, Priority: 3})
	require.NoError(t, err)
	rec := doRequest(t, rig.router(), http.MethodPost, "/stream-checker/queue/add", body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, rig.router(), http.MethodGet, "/stream-checker/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec.Body.Bytes())
	require.NotNil(t, env.Meta.Pagination)
	assert.Equal(t, 2, env.Meta.Pagination.Count)
}

func TestQueueClear_EmptiesQueue(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1}
	rig.q.Enqueue(1, 5, false, time.Now())

	rec := doRequest(t, rig.router(), http.MethodPost, "/stream-checker/queue/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, rig.q.Size())
}

func TestMassEditPreview_DoesNotPersist(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1}
	require.NoError(t, rig.rx.AddPattern(1, models.RegexPatternRecord{Pattern: "^OLD_NAME", Enabled: true}))

	body, err := json.Marshal(massEditRequest{Find: "OLD_NAME", Replace: "NEW_NAME"})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/regex-patterns/mass-edit-preview", body)
	require.Equal(t, http.StatusOK, rec.Code)

	patterns := rig.rx.ChannelPatterns(1)
	assert.Equal(t, "^OLD_NAME", patterns[0].Pattern)
}

func TestMassEdit_Persists(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1}
	require.NoError(t, rig.rx.AddPattern(1, models.RegexPatternRecord{Pattern: "^OLD_NAME", Enabled: true}))

	body, err := json.Marshal(massEditRequest{Find: "OLD_NAME", Replace: "NEW_NAME"})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/regex-patterns/mass-edit", body)
	require.Equal(t, http.StatusOK, rec.Code)

	patterns := rig.rx.ChannelPatterns(1)
	assert.Equal(t, "^NEW_NAME", patterns[0].Pattern)
}

func TestTestRegexLive_MatchesStreamsByChannel(t *testing.T) {
	rig := newTestRig(t)
	rig.idx.channels[1] = models.Channel{ID: 1, Name: "ESPN"}
	rig.idx.streams[10] = models.Stream{ID: 10, Name: "ESPN HD"}
	rig.idx.streams[11] = models.Stream{ID: 11, Name: "CNN HD"}

	channelID := int64(1)
	body, err := json.Marshal(testRegexLiveRequest{
		Patterns:  []string{"^ESPN"},
		ChannelID: &channelID,
	})
	require.NoError(t, err)

	rec := doRequest(t, rig.router(), http.MethodPost, "/test-regex-live", body)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, rec.Body.Bytes())
	data, ok := env.Data.([]interface{})
	require.True(t, ok)
	require.Len(t, data, 1)
}

func TestDeleteRegexPattern_OutOfRangeReturnsInternalError(t *testing.T) {
	rig := newTestRig(t)
	require.NoError(t, rig.rx.SetPatterns(1, []models.RegexPatternRecord{{Pattern: "a"}}))

	rec := doRequest(t, rig.router(), http.MethodDelete, "/regex-patterns/1/5", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGlobalAction_Succeeds(t *testing.T) {
	rig := newTestRig(t)

	rec := doRequest(t, rig.router(), http.MethodPost, "/stream-checker/global-action", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
