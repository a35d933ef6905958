// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package matcher

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/streamforge/controller/internal/models"
)

func compileStd(pattern, _ string) (Matcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return re, nil
}

func acct(id int64) *int64 { return &id }

func TestMatch_RetainsOrderAndAppendsAdded(t *testing.T) {
	streams := []models.Stream{
		{ID: 1, Name: "ESPN HD"},
		{ID: 2, Name: "ESPN2 HD"},
		{ID: 3, Name: "CNN"},
	}
	result := Match(Options{
		ChannelID:        10,
		ChannelName:      "ESPN",
		CurrentStreamIDs: []int64{2},
		Patterns:         []models.RegexPatternRecord{{Pattern: `^ESPN`, Enabled: true}},
		Compile:          compileStd,
		AllStreams:       streams,
	})

	assert.False(t, result.Unchanged)
	assert.Equal(t, []int64{2, 1}, result.NewStreams)
	assert.Equal(t, []int64{1}, result.Added)
	assert.Empty(t, result.Removed)
}

func TestMatch_DisabledPatternIsIgnored(t *testing.T) {
	streams := []models.Stream{{ID: 1, Name: "ESPN HD"}}
	result := Match(Options{
		ChannelID:   10,
		ChannelName: "ESPN",
		Patterns:    []models.RegexPatternRecord{{Pattern: `^ESPN`, Enabled: false}},
		Compile:     compileStd,
		AllStreams:  streams,
	})
	assert.True(t, result.Unchanged)
	assert.Empty(t, result.NewStreams)
}

func TestMatch_ExcludesDeadPrefixedStreams(t *testing.T) {
	streams := []models.Stream{
		{ID: 1, Name: "[DEAD] ESPN HD"},
		{ID: 2, Name: "ESPN2 HD"},
	}
	result := Match(Options{
		ChannelID:   10,
		ChannelName: "ESPN",
		Patterns:    []models.RegexPatternRecord{{Pattern: `ESPN`, Enabled: true}},
		Compile:     compileStd,
		AllStreams:  streams,
	})
	assert.Equal(t, []int64{2}, result.Added)
}

func TestMatch_AccountFilterRestrictsPattern(t *testing.T) {
	streams := []models.Stream{
		{ID: 1, Name: "ESPN HD", M3UAccountID: acct(1)},
		{ID: 2, Name: "ESPN HD", M3UAccountID: acct(2)},
	}
	result := Match(Options{
		ChannelID:   10,
		ChannelName: "ESPN",
		Patterns: []models.RegexPatternRecord{{
			Pattern:     `ESPN`,
			Enabled:     true,
			M3UAccounts: map[int64]struct{}{1: {}},
		}},
		Compile:    compileStd,
		AllStreams: streams,
	})
	assert.Equal(t, []int64{1}, result.Added)
}

func TestMatch_GloballyEnabledAccountsFiltersOutOthers(t *testing.T) {
	streams := []models.Stream{
		{ID: 1, Name: "ESPN HD", M3UAccountID: acct(1)},
		{ID: 2, Name: "ESPN HD", M3UAccountID: acct(2)},
	}
	result := Match(Options{
		ChannelID:               10,
		ChannelName:             "ESPN",
		Patterns:                []models.RegexPatternRecord{{Pattern: `ESPN`, Enabled: true}},
		Compile:                 compileStd,
		AllStreams:              streams,
		GloballyEnabledAccounts: map[int64]struct{}{2: {}},
	})
	assert.Equal(t, []int64{2}, result.Added)
}

func TestMatch_RemoveNonMatchingStreamsDropsStaleMembership(t *testing.T) {
	streams := []models.Stream{{ID: 1, Name: "ESPN HD"}}
	result := Match(Options{
		ChannelID:         10,
		ChannelName:       "ESPN",
		CurrentStreamIDs:  []int64{1, 99},
		Patterns:          []models.RegexPatternRecord{{Pattern: `ESPN`, Enabled: true}},
		Compile:           compileStd,
		AllStreams:        streams,
		RemoveNonMatching: true,
	})
	assert.Equal(t, []int64{1}, result.NewStreams)
	assert.Equal(t, []int64{99}, result.Removed)
}

func TestMatch_RemoveNonMatchingOffKeepsStaleMembership(t *testing.T) {
	streams := []models.Stream{{ID: 1, Name: "ESPN HD"}}
	result := Match(Options{
		ChannelID:        10,
		ChannelName:      "ESPN",
		CurrentStreamIDs: []int64{1, 99},
		Patterns:         []models.RegexPatternRecord{{Pattern: `ESPN`, Enabled: true}},
		Compile:          compileStd,
		AllStreams:       streams,
	})
	assert.True(t, result.Unchanged)
	assert.Equal(t, []int64{1, 99}, result.NewStreams)
}

func TestMatch_InvalidPatternSkippedNotFatal(t *testing.T) {
	streams := []models.Stream{{ID: 1, Name: "ESPN HD"}}
	result := Match(Options{
		ChannelID:   10,
		ChannelName: "ESPN",
		Patterns:    []models.RegexPatternRecord{{Pattern: `(unclosed`, Enabled: true}},
		Compile:     compileStd,
		AllStreams:  streams,
	})
	assert.True(t, result.Unchanged)
}
