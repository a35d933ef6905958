// StreamForge Controller — IPTV playlist automation engine
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queue implements the Channel Queue (spec §4.5): a
// concurrent priority FIFO ordered by (-priority, enqueued_at),
// structured as a mutex-protected binary heap with a parallel map for
// O(1) dedup lookups — the same shape as the teacher's timestamp-keyed
// MinHeap, generalized from a single timestamp ordering key to the
// (priority, enqueued_at) comparator the spec requires.
package queue

import (
	"sync"
	"time"

	"github.com/streamforge/controller/internal/models"
)

type entry struct {
	models.ChannelQueueEntry
	index int
}

// pendingRequeue holds an enqueue request that arrived for a channel
// already in flight. It is applied by Complete once the in-progress
// probe finishes, so a channel is never simultaneously queued and
// in-progress (spec §8).
type pendingRequeue struct {
	priority int
	force    bool
}

// Queue is the Channel Queue.
type Queue struct {
	mu         sync.Mutex
	heap       []*entry
	byChannel  map[int64]*entry
	inProgress map[int64]struct{}
	pending    map[int64]*pendingRequeue
	completed  uint64
	failed     uint64
}

// New returns an empty Queue.
func New() *Queue {
	return &Queue{
		byChannel:  make(map[int64]*entry),
		inProgress: make(map[int64]struct{}),
		pending:    make(map[int64]*pendingRequeue),
	}
}

// less implements the strict ordering from spec §4.5: higher priority
// first, then earlier enqueued_at first.
func less(a, b *entry) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return a.EnqueuedAt.Before(b.EnqueuedAt)
}

// Enqueue adds channelID to the queue. If it is already queued, its
// priority is raised to max(old,new) and force is OR'd in rather than
// creating a duplicate entry (spec §4.5). If channelID is currently
// in progress, the request is held as a pending requeue and applied
// by Complete once the in-flight probe finishes, so the channel never
// appears in both the queued and in-progress sets at once (spec §8).
func (q *Queue) Enqueue(channelID int64, priority int, force bool, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, inFlight := q.inProgress[channelID]; inFlight {
		if p, ok := q.pending[channelID]; ok {
			if priority > p.priority {
				p.priority = priority
			}
			p.force = p.force || force
		} else {
			q.pending[channelID] = &pendingRequeue{priority: priority, force: force}
		}
		return
	}

	q.enqueueLocked(channelID, priority, force, now)
}

// enqueueLocked adds or merges channelID into the heap. Caller must
// hold q.mu and must not call this while channelID is in progress.
func (q *Queue) enqueueLocked(channelID int64, priority int, force bool, now time.Time) {
	if existing, ok := q.byChannel[channelID]; ok {
		if priority > existing.Priority {
			existing.Priority = priority
		}
		existing.ForceCheck = existing.ForceCheck || force
		q.fix(existing.index)
		return
	}

	e := &entry{
		ChannelQueueEntry: models.ChannelQueueEntry{
			ChannelID:  channelID,
			Priority:   priority,
			EnqueuedAt: now,
			ForceCheck: force,
		},
		index: len(q.heap),
	}
	q.heap = append(q.heap, e)
	q.byChannel[channelID] = e
	q.bubbleUp(e.index)
}

// Dequeue removes and returns the head of the queue, moving it into
// the in-progress set. A channel-id is never both queued and
// in-progress simultaneously.
func (q *Queue) Dequeue() (models.ChannelQueueEntry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return models.ChannelQueueEntry{}, false
	}
	e := q.removeAt(0)
	q.inProgress[e.ChannelID] = struct{}{}
	return e.ChannelQueueEntry, true
}

// Complete clears channelID from the in-progress set once its probe
// task finishes (successfully, with an error, or via cancellation),
// recording the outcome in the completed/failed counters GET /status
// surfaces. If an Enqueue arrived while channelID was in flight, it is
// applied now rather than having been dropped or double-queued.
func (q *Queue) Complete(channelID int64, success bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inProgress, channelID)
	if success {
		q.completed++
	} else {
		q.failed++
	}

	if p, ok := q.pending[channelID]; ok {
		delete(q.pending, channelID)
		q.enqueueLocked(channelID, p.priority, p.force, time.Now())
	}
}

// Clear empties the queued set and any pending requeues. In-progress
// entries are untouched — they are released individually by Complete
// as their workers finish.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.heap = nil
	q.byChannel = make(map[int64]*entry)
	q.pending = make(map[int64]*pendingRequeue)
}

// Size returns the number of queued (not in-progress) entries.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// InProgressCount returns the number of channels currently being probed.
func (q *Queue) InProgressCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inProgress)
}

// IsQueued reports whether channelID currently has a queued entry.
func (q *Queue) IsQueued(channelID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byChannel[channelID]
	return ok
}

// IsInProgress reports whether channelID is currently being probed.
func (q *Queue) IsInProgress(channelID int64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.inProgress[channelID]
	return ok
}

// Stats returns the queue:{size,in_progress,completed,failed} snapshot
// spec §6's GET /status surfaces.
func (q *Queue) Stats() (size, inProgress int, completed, failed uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap), len(q.inProgress), q.completed, q.failed
}

// Snapshot returns every currently queued entry in heap order (not
// necessarily priority-sorted beyond the heap invariant), for GET
// /stream-checker/queue. In-progress entries are not included; callers
// needing that count use Stats.
func (q *Queue) Snapshot() []models.ChannelQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.ChannelQueueEntry, len(q.heap))
	for i, e := range q.heap {
		out[i] = e.ChannelQueueEntry
	}
	return out
}

// Internal heap operations (caller must hold q.mu).

func (q *Queue) fix(i int) {
	if q.bubbleUp(i) {
		return
	}
	q.bubbleDown(i)
}

func (q *Queue) bubbleUp(i int) bool {
	moved := false
	for i > 0 {
		parent := (i - 1) / 2
		if !less(q.heap[i], q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
		moved = true
	}
	return moved
}

func (q *Queue) bubbleDown(i int) {
	n := len(q.heap)
	for {
		best := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && less(q.heap[left], q.heap[best]) {
			best = left
		}
		if right < n && less(q.heap[right], q.heap[best]) {
			best = right
		}
		if best == i {
			break
		}
		q.swap(i, best)
		i = best
	}
}

func (q *Queue) removeAt(i int) *entry {
	n := len(q.heap) - 1
	e := q.heap[i]
	delete(q.byChannel, e.ChannelID)

	if i == n {
		q.heap = q.heap[:n]
		return e
	}

	q.heap[i] = q.heap[n]
	q.heap[i].index = i
	q.heap = q.heap[:n]
	q.fix(i)
	return e
}

func (q *Queue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}
