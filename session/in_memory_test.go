package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/diligence/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ core.ContextStore = (*InMemoryStore)(nil)

func acme() *core.Report {
	return &core.Report{SubjectName: "Acme Ltd", OverallStatus: core.OverallComplete}
}

func TestInMemoryStore_Lifecycle(t *testing.T) {
	s := NewInMemoryStore()

	_, ok := s.Get("s1")
	assert.False(t, ok)
	assert.ErrorIs(t, s.AppendTurn("s1", "q", "a"), core.ErrSessionNotFound)

	report := acme()
	require.NoError(t, s.Put("s1", report))
	require.NoError(t, s.AppendTurn("s1", "Who are the directors?", "Jane Doe."))

	ctx, ok := s.Get("s1")
	require.True(t, ok)
	assert.Same(t, report, ctx.Report)
	require.Len(t, ctx.Turns, 1)
	assert.Equal(t, "Jane Doe.", ctx.Turns[0].Answer)

	ctx.Turns[0].Answer = "mutated"
	again, _ := s.Get("s1")
	assert.Equal(t, "Jane Doe.", again.Turns[0].Answer)

	require.NoError(t, s.Put("s1", acme()))
	fresh, _ := s.Get("s1")
	assert.Empty(t, fresh.Turns)
	assert.Equal(t, ctx.Created, fresh.Created)

	require.NoError(t, s.Delete("s1"))
	_, ok = s.Get("s1")
	assert.False(t, ok)
	assert.ErrorIs(t, s.Delete("s1"), core.ErrSessionNotFound)
}

func TestInMemoryStore_PutValidation(t *testing.T) {
	s := NewInMemoryStore()
	assert.Error(t, s.Put("", acme()))
	assert.Error(t, s.Put("s1", nil))
	assert.Equal(t, 0, s.Len())
}

func TestInMemoryStore_ConcurrentAppendsKeepEveryTurn(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Put("s1", acme()))
	require.NoError(t, s.Put("s2", acme()))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendTurn("s1", fmt.Sprintf("q%d", i), "a"))
		}(i)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.AppendTurn("s2", fmt.Sprintf("q%d", i), "a"))
		}(i)
	}
	wg.Wait()

	for _, id := range []string{"s1", "s2"} {
		ctx, ok := s.Get(id)
		require.True(t, ok)
		require.Len(t, ctx.Turns, n)

		seen := make(map[string]bool, n)
		for _, turn := range ctx.Turns {
			seen[turn.Question] = true
		}
		assert.Len(t, seen, n)
	}
}

func TestInMemoryStore_MaxTurns(t *testing.T) {
	s := NewInMemoryStore(func(o *Options) { o.MaxTurns = 2 })
	require.NoError(t, s.Put("s1", acme()))
	for _, q := range []string{"q1", "q2", "q3"} {
		require.NoError(t, s.AppendTurn("s1", q, "a"))
	}

	ctx, _ := s.Get("s1")
	require.Len(t, ctx.Turns, 2)
	assert.Equal(t, "q2", ctx.Turns[0].Question)
	assert.Equal(t, "q3", ctx.Turns[1].Question)
}

func TestInMemoryStore_EndedEntryRejectsWrites(t *testing.T) {
	s := NewInMemoryStore()
	require.NoError(t, s.Put("s1", &core.Report{SubjectName: "Acme Ltd"}))

	stale, ok := s.lookup("s1")
	require.True(t, ok)
	require.NoError(t, s.Delete("s1"))

	// Put the ended entry back as an append that looked it up before
	// Delete would still see it.
	s.mu.Lock()
	s.sessions["s1"] = stale
	s.mu.Unlock()

	err := s.AppendTurn("s1", "Who runs it?", "Jane Doe.")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
	_, ok = s.Get("s1")
	assert.False(t, ok)
	assert.Empty(t, stale.ctx.Turns)

	require.NoError(t, s.Put("s1", &core.Report{SubjectName: "Acme Ltd"}))
	fresh, ok := s.lookup("s1")
	require.True(t, ok)
	assert.NotSame(t, stale, fresh)
	require.NoError(t, s.AppendTurn("s1", "Who runs it?", "Jane Doe."))
}

func TestInMemoryStore_AppendRacingDelete(t *testing.T) {
	for i := 0; i < 50; i++ {
		s := NewInMemoryStore()
		require.NoError(t, s.Put("s1", &core.Report{SubjectName: "Acme Ltd"}))

		var (
			wg        sync.WaitGroup
			appendErr error
		)
		wg.Add(2)
		go func() { defer wg.Done(); appendErr = s.AppendTurn("s1", "q", "a") }()
		go func() { defer wg.Done(); _ = s.Delete("s1") }()
		wg.Wait()

		if appendErr != nil {
			assert.ErrorIs(t, appendErr, core.ErrSessionNotFound)
		}
		assert.Zero(t, s.Len())
	}
}
