package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStatusRoundTrip(t *testing.T) {
	s := NewMemoryStatus(time.Hour)
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	now := time.Now()
	in := QuoteStatus{
		Status:   StatusAnalyzing,
		Progress: 40,
		Message:  "2/5 files analyzed",
		Start:    &now,
		Metadata: map[string]interface{}{"files": 5},
	}
	require.NoError(t, s.Set(ctx, "q1", in))

	out, found, err := s.Get(ctx, "q1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, StatusAnalyzing, out.Status)
	assert.Equal(t, 40, out.Progress)
	assert.Equal(t, "2/5 files analyzed", out.Message)
}

func TestMemoryStatusExpiry(t *testing.T) {
	s := NewMemoryStatus(10 * time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "q1", QuoteStatus{Status: StatusReady}))
	time.Sleep(25 * time.Millisecond)

	_, found, err := s.Get(ctx, "q1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestNewFallsBackToMemory(t *testing.T) {
	s := New("redis://127.0.0.1:1/0", time.Minute)
	defer s.Close()

	_, ok := s.(*MemoryStatus)
	assert.True(t, ok, "unreachable redis must yield the in-memory store")
}
