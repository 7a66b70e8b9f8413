package history

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuns_Eviction(t *testing.T) {
	r := NewRuns(2)
	r.Put("a", &Run{ID: "1"})
	r.Put("b", &Run{ID: "2"})
	r.Put("a", &Run{ID: "3"}) // 覆盖后 a 变为最新
	r.Put("c", &Run{ID: "4"})

	assert.Equal(t, 2, r.Len())
	_, ok := r.Get("b")
	assert.False(t, ok)

	run, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "3", run.ID)
}

func TestRuns_SetReply(t *testing.T) {
	r := NewRuns(0)
	assert.False(t, r.SetReply("missing", "x"))

	r.Put("s", &Run{ID: NewRunID()})
	assert.True(t, r.SetReply("s", "see [2]"))
	run, _ := r.Get("s")
	assert.Equal(t, "see [2]", run.Reply)
	assert.Len(t, run.ID, 36)
}

func TestRuns_GetReturnsCopy(t *testing.T) {
	r := NewRuns(0)
	r.Put("s", &Run{ID: "1"})
	before, ok := r.Get("s")
	require.True(t, ok)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.SetReply("s", "see [1]")
		}()
		go func() {
			defer wg.Done()
			run, _ := r.Get("s")
			_ = run.Reply
		}()
	}
	wg.Wait()

	assert.Empty(t, before.Reply)
	after, _ := r.Get("s")
	assert.Equal(t, "see [1]", after.Reply)
}

func TestTranscript(t *testing.T) {
	tr, err := OpenTranscript(filepath.Join(t.TempDir(), "som.db"))
	require.NoError(t, err)
	defer tr.Close()

	ctx := context.Background()
	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, tr.Append(ctx, Turn{RunID: "r1", Role: RoleUser, Content: "which one is the cup?", CreatedAt: start}))
	require.NoError(t, tr.Append(ctx, Turn{RunID: "r1", Role: RoleAssistant, Content: "[3]", Marks: "3", CreatedAt: start.Add(time.Second)}))
	require.NoError(t, tr.Append(ctx, Turn{RunID: "r2", Role: RoleUser, Content: "other"}))

	turns, err := tr.List(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "3", turns[1].Marks)
	assert.True(t, turns[0].CreatedAt.Equal(start), "created_at %v", turns[0].CreatedAt)

	none, err := tr.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}
