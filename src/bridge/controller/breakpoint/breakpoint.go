// Package breakpoint implements the canonical breakpoint ledger: the
// client stages breakpoints one line at a time, but the adapter protocol
// requires a full bulk replacement per source file. The ledger tracks the
// desired set per file and reconciles adapter-assigned ids, resolution, and
// relocated lines back into client-visible events.
package breakpoint

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/uber/dbg-bridge/src/bridge/entity"
	bridgeerrors "github.com/uber/dbg-bridge/src/bridge/internal/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AdapterBreakpoints is the slice of the adapter.Session contract the
// ledger needs, kept narrow so it can be faked in tests without importing
// the full adapter package.
type AdapterBreakpoints interface {
	SetBreakpoints(ctx context.Context, path string, lines []BreakpointRequest) ([]BreakpointResult, error)
}

// BreakpointRequest mirrors adapter.BreakpointRequest; redeclared here so
// this package has no import-time dependency on the adapter gateway.
type BreakpointRequest struct {
	Line      int
	Condition string
}

// BreakpointResult mirrors adapter.BreakpointResult.
type BreakpointResult struct {
	ID       int
	Verified bool
	Line     int
}

// AdapterEvent mirrors adapter.BreakpointEvent, the body of an adapter
// `breakpoint` event.
type AdapterEvent struct {
	ID           *int
	Verified     bool
	Line         int
	OriginalLine int
	HitCount     *int
	SourcePath   string
}

// ResolvedNotice describes a client-visible breakpoint state change: either
// a first resolution or a hit-count update.
type ResolvedNotice struct {
	Method  string // "Debugger.breakpointResolved" or "Debugger.breakpointHitCountChanged"
	Record  entity.BreakpointRecord
}

const syntheticIDPrefix = "synthetic-"

// Ledger is the breakpoint controller's public contract.
type Ledger struct {
	adapter AdapterBreakpoints
	logger  *zap.SugaredLogger

	mu          sync.Mutex
	byPathLine  map[string]*entity.BreakpointRecord // key: path + "\x00" + line
	byID        map[string]*entity.BreakpointRecord
	order       map[string][]*entity.BreakpointRecord // path -> insertion order
	syntheticID int

	syncGroup singleflight.Group
}

// New returns an empty Ledger bound to one adapter session.
func New(adapter AdapterBreakpoints, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{
		adapter:    adapter,
		logger:     logger,
		byPathLine: make(map[string]*entity.BreakpointRecord),
		byID:       make(map[string]*entity.BreakpointRecord),
		order:      make(map[string][]*entity.BreakpointRecord),
	}
}

func key(path string, line int) string {
	return fmt.Sprintf("%s\x00%d", path, line)
}

// Stage creates or replaces the record at (path, line). Per key-by-last-write
// semantics, staging over an existing line drops that record's prior id and
// resolution state — the next sync round assigns it fresh. Does not contact
// the adapter.
func (l *Ledger) Stage(path string, line int, condition string) *entity.BreakpointRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	k := key(path, line)
	rec := &entity.BreakpointRecord{SourcePath: path, Line: line, OriginalLine: line, Condition: condition}

	if existing, ok := l.byPathLine[k]; ok {
		if existing.HasID() {
			delete(l.byID, existing.ID)
		}
		l.replaceInOrder(path, existing, rec)
	} else {
		l.order[path] = append(l.order[path], rec)
	}
	l.byPathLine[k] = rec
	return rec
}

func (l *Ledger) replaceInOrder(path string, old, new *entity.BreakpointRecord) {
	for i, r := range l.order[path] {
		if r == old {
			l.order[path][i] = new
			return
		}
	}
	l.order[path] = append(l.order[path], new)
}

// Get returns the current record at (path, line): the record staged at
// that line or, failing that, the record the adapter relocated to it.
func (l *Ledger) Get(path string, line int) (entity.BreakpointRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.byPathLine[key(path, line)]
	if !ok {
		for _, r := range l.order[path] {
			if r.Line == line {
				return *r, true
			}
		}
		return entity.BreakpointRecord{}, false
	}
	return *rec, true
}

// SyncFile bulk-replaces the adapter's breakpoints for path with the
// ledger's current set. Concurrent calls for the same path collapse into
// one round trip.
func (l *Ledger) SyncFile(ctx context.Context, path string) error {
	_, err, _ := l.syncGroup.Do(path, func() (interface{}, error) {
		return nil, l.syncFileLocked(ctx, path)
	})
	return err
}

func (l *Ledger) syncFileLocked(ctx context.Context, path string) error {
	l.mu.Lock()
	records := append([]*entity.BreakpointRecord(nil), l.order[path]...)
	l.mu.Unlock()

	reqs := make([]BreakpointRequest, len(records))
	for i, r := range records {
		reqs[i] = BreakpointRequest{Line: r.Line, Condition: r.Condition}
	}

	results, err := l.adapter.SetBreakpoints(ctx, path, reqs)
	if err != nil {
		return fmt.Errorf("syncing breakpoints for %q: %w", path, err)
	}
	if len(results) != len(records) {
		return &bridgeerrors.BreakpointMismatchError{SourcePath: path, Sent: len(records), Got: len(results)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for i, res := range results {
		rec := records[i]
		if !rec.HasID() {
			id := strconv.Itoa(res.ID)
			if res.ID == 0 {
				id = l.nextSyntheticID()
			}
			rec.ID = id
			l.byID[id] = rec
		}
		if res.Verified && !rec.Resolved {
			rec.Resolved = true
		}
		if res.Line != 0 && res.Line != rec.Line {
			rec.Line = res.Line
		}
	}
	return nil
}

func (l *Ledger) nextSyntheticID() string {
	l.syntheticID++
	return fmt.Sprintf("%s%d", syntheticIDPrefix, l.syntheticID)
}

// Remove drops the record for id and re-syncs its file so the adapter's
// breakpoint set matches.
func (l *Ledger) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	rec, ok := l.byID[id]
	if !ok {
		l.mu.Unlock()
		return bridgeerrors.New(fmt.Sprintf("no breakpoint with id %q", id))
	}
	delete(l.byID, id)
	delete(l.byPathLine, key(rec.SourcePath, rec.OriginalLine))
	l.order[rec.SourcePath] = removeRecord(l.order[rec.SourcePath], rec)
	path := rec.SourcePath
	l.mu.Unlock()

	return l.SyncFile(ctx, path)
}

func removeRecord(list []*entity.BreakpointRecord, target *entity.BreakpointRecord) []*entity.BreakpointRecord {
	out := list[:0]
	for _, r := range list {
		if r != target {
			out = append(out, r)
		}
	}
	return out
}

// SyncAll re-syncs every file that currently has at least one record. Used
// after the adapter signals a restart via a second `initialized` event.
func (l *Ledger) SyncAll(ctx context.Context) error {
	l.mu.Lock()
	paths := make([]string, 0, len(l.order))
	for path, records := range l.order {
		if len(records) > 0 {
			paths = append(paths, path)
		}
	}
	l.mu.Unlock()

	for _, path := range paths {
		if err := l.SyncFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

// OnAdapterBreakpointEvent reconciles an out-of-band adapter breakpoint
// event against the ledger, per the match rule: by id if present, else by
// (path, originalLine-or-line) against a record with no id yet, scoped to
// the event's source path when the adapter provided one. Returns a notice
// to forward to the client, or nil if nothing changed (or nothing matched).
func (l *Ledger) OnAdapterBreakpointEvent(evt AdapterEvent) *ResolvedNotice {
	l.mu.Lock()
	defer l.mu.Unlock()

	var rec *entity.BreakpointRecord
	if evt.ID != nil {
		rec = l.byID[strconv.Itoa(*evt.ID)]
	}
	if rec == nil {
		matchLine := evt.Line
		if evt.OriginalLine != 0 {
			matchLine = evt.OriginalLine
		}
		if evt.SourcePath != "" {
			for _, r := range l.order[evt.SourcePath] {
				if !r.HasID() && r.Line == matchLine {
					rec = r
					break
				}
			}
		} else {
			// The adapter didn't tell us which file this breakpoint belongs
			// to; fall back to a cross-file line match rather than dropping
			// the event outright.
			for _, candidates := range l.order {
				for _, r := range candidates {
					if !r.HasID() && r.Line == matchLine {
						rec = r
						break
					}
				}
				if rec != nil {
					break
				}
			}
		}
	}
	if rec == nil {
		l.logger.Warnw("dropping unmatched adapter breakpoint event", "line", evt.Line, "id", evt.ID)
		return nil
	}

	if evt.ID != nil {
		id := strconv.Itoa(*evt.ID)
		if !rec.HasID() {
			rec.ID = id
			l.byID[id] = rec
		}
	}

	if evt.Verified && !rec.Resolved {
		rec.Resolved = true
		return &ResolvedNotice{Method: "Debugger.breakpointResolved", Record: *rec}
	}
	if evt.HitCount != nil && *evt.HitCount != rec.HitCount {
		rec.HitCount = *evt.HitCount
		return &ResolvedNotice{Method: "Debugger.breakpointHitCountChanged", Record: *rec}
	}
	return nil
}
