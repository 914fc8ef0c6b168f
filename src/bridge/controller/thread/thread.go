// Package thread implements the thread registry: per-thread running/paused
// state, the active paused thread selection used for step/resume defaults,
// and the payload shape for the client's threadsUpdated event.
package thread

import (
	"strconv"
	"sync"

	"github.com/uber/dbg-bridge/src/bridge/entity"
)

const owningProcessID = -1

// ThreadSummary is one entry of a describe() response.
type ThreadSummary struct {
	ID              int
	Name            string
	Address         string
	SourcePath      string
	Line            int
	Column          int
	StopReason      string
	HasSource       bool
	OwningProcessID int
}

// Registry tracks every known thread for one session.
type Registry struct {
	mu sync.Mutex

	threads map[int]*entity.ThreadInfo
	order   []int

	active         *int
	activePrevious *int
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{threads: make(map[int]*entity.ThreadInfo)}
}

// Upsert sets state for every id in ids, adding threads not yet known.
// Moving to running clears any cached call frames.
func (r *Registry) Upsert(ids []int, state entity.ThreadState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.upsertLocked(id, state)
	}
}

func (r *Registry) upsertLocked(id int, state entity.ThreadState) *entity.ThreadInfo {
	t, ok := r.threads[id]
	if !ok {
		t = &entity.ThreadInfo{ID: id}
		r.threads[id] = t
		r.order = append(r.order, id)
	}
	t.State = state
	if state == entity.ThreadStateRunning {
		t.CallFrames = nil
		t.CallStackLoaded = false
		t.StopReason = ""
	}
	return t
}

// MarkPaused transitions thread id to paused, recording its call frames and
// whether that fetch was unbounded.
func (r *Registry) MarkPaused(id int, reason string, callFrames []entity.StackFrame, fullyLoaded bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.upsertLocked(id, entity.ThreadStatePaused)
	t.StopReason = reason
	t.CallFrames = callFrames
	t.CallStackLoaded = fullyLoaded
}

// Remove drops thread id. If it was the active paused thread, clears active
// without promoting activePrevious.
func (r *Registry) Remove(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.threads, id)
	for i, tid := range r.order {
		if tid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if r.active != nil && *r.active == id {
		r.active = nil
	}
	if r.activePrevious != nil && *r.activePrevious == id {
		r.activePrevious = nil
	}
}

// SetActive updates the active paused thread. If a different thread was
// previously active, it is retained as activePrevious so a caller can build
// a thread-switch notice.
func (r *Registry) SetActive(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil && *r.active != id {
		prev := *r.active
		r.activePrevious = &prev
	}
	active := id
	r.active = &active
}

// ClearActive unsets the active paused thread without touching activePrevious.
func (r *Registry) ClearActive() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = nil
}

// Active returns the active paused thread id, or false if none is set.
func (r *Registry) Active() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return 0, false
	}
	return *r.active, true
}

// ActivePrevious returns the previously active thread id, non-nil only once
// at least two distinct threads have been active.
func (r *Registry) ActivePrevious() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.activePrevious == nil {
		return 0, false
	}
	return *r.activePrevious, true
}

// Get returns a copy of thread id's info.
func (r *Registry) Get(id int) (entity.ThreadInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.threads[id]
	if !ok {
		return entity.ThreadInfo{}, false
	}
	return *t, true
}

// KnownIDs returns every tracked thread id, in insertion order.
func (r *Registry) KnownIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.order...)
}

// Describe builds the payload for a threadsUpdated event: one summary per
// known thread.
func (r *Registry) Describe() []ThreadSummary {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ThreadSummary, 0, len(r.order))
	for _, id := range r.order {
		t := r.threads[id]
		summary := ThreadSummary{
			ID:              id,
			Name:            threadName(id),
			Address:         "N/A",
			SourcePath:      "N/A",
			StopReason:      "running",
			OwningProcessID: owningProcessID,
		}
		if t.StopReason != "" {
			summary.StopReason = t.StopReason
		}
		if len(t.CallFrames) > 0 {
			top := t.CallFrames[0]
			summary.Address = top.Name
			summary.SourcePath = "N/A"
			if top.HasSource {
				summary.SourcePath = top.SourcePath
			}
			summary.Line = top.Line
			summary.Column = top.Column
			summary.HasSource = top.HasSource
		}
		out = append(out, summary)
	}
	return out
}

func threadName(id int) string {
	return "Thread " + strconv.Itoa(id)
}
