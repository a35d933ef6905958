// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"github.com/streamforge/controller/internal/changelog"
	"github.com/streamforge/controller/internal/deadstream"
	"github.com/streamforge/controller/internal/models"
	"github.com/streamforge/controller/internal/queue"
	"github.com/streamforge/controller/internal/regexstore"
	"github.com/streamforge/controller/internal/scheduler"
	"github.com/streamforge/controller/internal/settings"
	"github.com/streamforge/controller/internal/store"
)

// Index is the read surface of the Unified Data Index the HTTP
// Control Surface needs directly (beyond what it reaches through the
// Scheduler): channel/group listings and lookups for settings
// resolution and the GET /channels, /m3u-accounts endpoints.
type Index interface {
	GetChannel(id int64) (models.Channel, bool)
	ListChannels() []models.Channel
	ListStreams() []models.Stream
	ListAccounts() []models.M3UAccount
	ListGroups(onlyNonEmpty bool) []models.ChannelGroup
}

// Handler bundles every engine dependency the HTTP Control Surface
// calls into. It holds no state of its own beyond these references —
// all mutable state lives in the engine packages.
type Handler struct {
	idx       Index
	sched     *scheduler.Scheduler
	store     *store.Store
	settings  *settings.Store
	regex     *regexstore.Store
	dead      *deadstream.Tracker
	changelog *changelog.Log
	queue     *queue.Queue
}

// NewHandler wires a Handler's dependencies.
func NewHandler(
	idx Index,
	sched *scheduler.Scheduler,
	storeBundle *store.Store,
	settingsStore *settings.Store,
	regex *regexstore.Store,
	dead *deadstream.Tracker,
	cl *changelog.Log,
	q *queue.Queue,
) *Handler {
	return &Handler{
		idx:       idx,
		sched:     sched,
		store:     storeBundle,
		settings:  settingsStore,
		regex:     regex,
		dead:      dead,
		changelog: cl,
		queue:     q,
	}
}

// udiMembership adapts Index to settings.GroupMembership, the same
// shape internal/scheduler and internal/prober each duplicate against
// their own (narrower) Index interfaces.
type udiMembership struct{ idx Index }

func (m udiMembership) GroupIDFor(channelID int64) (int64, bool) {
	ch, ok := m.idx.GetChannel(channelID)
	if !ok || ch.ChannelGroupID == nil {
		return 0, false
	}
	return *ch.ChannelGroupID, true
}

func (m udiMembership) NonEmptyGroupIDs() []int64 {
	groups := m.idx.ListGroups(true)
	out := make([]int64, len(groups))
	for i, g := range groups {
		out[i] = g.ID
	}
	return out
}
