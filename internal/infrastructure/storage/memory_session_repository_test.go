package storage

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anemia-screen/internal/domain/entity"
)

type countingHandle struct{ released atomic.Int32 }

func (h *countingHandle) Release() { h.released.Add(1) }

func TestMemorySessionRepository_GetCreatesOnce(t *testing.T) {
	repo := NewMemorySessionRepository(time.Minute)
	defer repo.Close()
	ctx := context.Background()

	s1, err := repo.Get(ctx, "a", 7)
	require.NoError(t, err)
	s2, err := repo.Get(ctx, "a", 7)
	require.NoError(t, err)

	require.Same(t, s1, s2)
	require.Equal(t, int64(7), s1.ChatID)
	require.Equal(t, 1, repo.Count())
}

func TestMemorySessionRepository_EmptyID(t *testing.T) {
	repo := NewMemorySessionRepository(time.Minute)
	defer repo.Close()

	_, err := repo.Get(context.Background(), "", 0)
	require.Error(t, err)
}

func TestMemorySessionRepository_DeleteReleasesStream(t *testing.T) {
	repo := NewMemorySessionRepository(time.Minute)
	defer repo.Close()
	ctx := context.Background()

	s, err := repo.Get(ctx, "a", 0)
	require.NoError(t, err)
	h := &countingHandle{}
	require.True(t, s.AttachStream(h))

	require.NoError(t, repo.Delete(ctx, "a"))
	require.Equal(t, int32(1), h.released.Load())
	require.Equal(t, 0, repo.Count())
}

func TestMemorySessionRepository_ExpiredSessionReleased(t *testing.T) {
	repo := NewMemorySessionRepository(20 * time.Millisecond)
	defer repo.Close()
	ctx := context.Background()

	old, err := repo.Get(ctx, "a", 0)
	require.NoError(t, err)
	h := &countingHandle{}
	require.True(t, old.AttachStream(h))

	time.Sleep(40 * time.Millisecond)

	fresh, err := repo.Get(ctx, "a", 0)
	require.NoError(t, err)
	require.NotSame(t, old, fresh)
	require.Equal(t, int32(1), h.released.Load())
	require.Equal(t, entity.StateIdle, fresh.View().State)
}
