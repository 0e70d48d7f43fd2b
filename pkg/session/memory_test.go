package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendAndHistory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", Entry{Question: "q1", Answer: "a1", Timestamp: time.Now()}))
	require.NoError(t, store.Append(ctx, "s1", Entry{Question: "q2", Answer: "a2", Timestamp: time.Now()}))
	require.NoError(t, store.Append(ctx, "s2", Entry{Question: "other", Answer: "x", Timestamp: time.Now()}))

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q1", history[0].Question)
	assert.Equal(t, "q2", history[1].Question)

	other, err := store.History(ctx, "s2")
	require.NoError(t, err)
	require.Len(t, other, 1)
}

func TestMemoryStoreCapsHistory(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < MaxEntries+3; i++ {
		require.NoError(t, store.Append(ctx, "s1", Entry{
			Question: fmt.Sprintf("q%d", i),
		}))
	}

	history, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, MaxEntries)
	// Oldest entries were evicted, order preserved.
	assert.Equal(t, "q3", history[0].Question)
	assert.Equal(t, fmt.Sprintf("q%d", MaxEntries+2), history[MaxEntries-1].Question)
}

func TestMemoryStoreUnknownSessionIsEmpty(t *testing.T) {
	store := NewMemoryStore()

	history, err := store.History(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessionID := fmt.Sprintf("s%d", i%4)
			_ = store.Append(ctx, sessionID, Entry{Question: "q", Answer: "a"})
			_, _ = store.History(ctx, sessionID)
		}(i)
	}
	wg.Wait()

	history, err := store.History(ctx, "s0")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(history), MaxEntries)
}
