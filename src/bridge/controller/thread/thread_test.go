package thread

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/dbg-bridge/src/bridge/entity"
	"github.com/uber/dbg-bridge/src/bridge/factory"
)

func TestRegistry_UpsertAndGet(t *testing.T) {
	r := New()
	r.Upsert([]int{1, 2}, entity.ThreadStateRunning)

	info, ok := r.Get(1)
	require.True(t, ok)
	assert.Equal(t, entity.ThreadStateRunning, info.State)

	_, ok = r.Get(99)
	assert.False(t, ok)
}

func TestRegistry_MarkPausedThenRunningClearsFrames(t *testing.T) {
	r := New()
	frames := []entity.StackFrame{factory.StackFrame(1, "main", 3)}
	r.MarkPaused(1, "breakpoint", frames, true)

	info, _ := r.Get(1)
	assert.Equal(t, entity.ThreadStatePaused, info.State)
	assert.True(t, info.CallStackLoaded)
	assert.Len(t, info.CallFrames, 1)

	r.Upsert([]int{1}, entity.ThreadStateRunning)
	info, _ = r.Get(1)
	assert.Equal(t, entity.ThreadStateRunning, info.State)
	assert.Empty(t, info.CallFrames)
	assert.False(t, info.CallStackLoaded)
}

func TestRegistry_SetActiveTracksPrevious(t *testing.T) {
	r := New()
	r.Upsert([]int{1, 2}, entity.ThreadStateRunning)

	_, ok := r.ActivePrevious()
	assert.False(t, ok)

	r.SetActive(1)
	active, ok := r.Active()
	require.True(t, ok)
	assert.Equal(t, 1, active)

	_, ok = r.ActivePrevious()
	assert.False(t, ok, "no previous until a second distinct thread becomes active")

	r.SetActive(2)
	prev, ok := r.ActivePrevious()
	require.True(t, ok)
	assert.Equal(t, 1, prev)

	active, _ = r.Active()
	assert.Equal(t, 2, active)
}

func TestRegistry_RemoveClearsActive(t *testing.T) {
	r := New()
	r.Upsert([]int{1}, entity.ThreadStateRunning)
	r.SetActive(1)

	r.Remove(1)
	_, ok := r.Active()
	assert.False(t, ok)
	_, ok = r.Get(1)
	assert.False(t, ok)
}

func TestRegistry_DescribeDefaultsAndTopFrame(t *testing.T) {
	r := New()
	r.Upsert([]int{1}, entity.ThreadStateRunning)
	r.MarkPaused(2, "breakpoint", []entity.StackFrame{
		{ID: 10, Name: "main.run", SourcePath: "main.go", HasSource: true, Line: 4, Column: 1},
	}, true)

	summaries := r.Describe()
	require.Len(t, summaries, 2)

	byID := map[int]ThreadSummary{}
	for _, s := range summaries {
		byID[s.ID] = s
	}

	assert.Equal(t, "Thread 1", byID[1].Name)
	assert.Equal(t, "running", byID[1].StopReason)
	assert.Equal(t, "N/A", byID[1].Address)
	assert.Equal(t, owningProcessID, byID[1].OwningProcessID)

	assert.Equal(t, "breakpoint", byID[2].StopReason)
	assert.Equal(t, "main.run", byID[2].Address)
	assert.Equal(t, "main.go", byID[2].SourcePath)
	assert.True(t, byID[2].HasSource)
}
