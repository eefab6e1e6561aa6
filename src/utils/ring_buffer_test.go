package utils

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------

func rbBar(i int) models.MBar {
	return models.MBar{
		Symbol: "AAPL", Interval: "1m",
		Open: float64(i), High: float64(i) + 1, Low: float64(i) - 1,
		Close: float64(i) + 0.5, Volume: 100,
		StartTime: int64(i) * 60, EndTime: int64(i+1) * 60,
	}
}

// -----------------------------------------------------------------------------

func TestRingBufferAppendAndWrap(t *testing.T) {
	rb := NewRingBuffer("AAPL", "1m", 3)

	require.Equal(t, 3, rb.Capacity())
	require.Equal(t, 0, rb.Size())
	require.False(t, rb.IsFull())

	for i := 0; i < 5; i++ {
		rb.Append(rbBar(i))
	}

	// Wrapped: only the last 3 survive, oldest first.
	require.True(t, rb.IsFull())
	all := rb.GetAll()
	require.Len(t, all, 3)
	require.Equal(t, int64(120), all[0].StartTime)
	require.Equal(t, int64(240), all[2].StartTime)

	// Identity is restored on read-out.
	require.Equal(t, "AAPL", all[0].Symbol)
	require.Equal(t, "1m", all[0].Interval)
}

// -----------------------------------------------------------------------------

func TestRingBufferGetLatest(t *testing.T) {
	rb := NewRingBuffer("AAPL", "1m", 5)
	for i := 0; i < 4; i++ {
		rb.Append(rbBar(i))
	}

	latest := rb.GetLatest(2)
	require.Len(t, latest, 2)
	require.Equal(t, int64(120), latest[0].StartTime)
	require.Equal(t, int64(180), latest[1].StartTime)

	// Asking for more than stored returns what exists.
	require.Len(t, rb.GetLatest(10), 4)
	require.Empty(t, rb.GetLatest(0))
}

// -----------------------------------------------------------------------------

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer("AAPL", "1m", 3)
	rb.Append(rbBar(0))
	rb.Clear()

	require.Equal(t, 0, rb.Size())
	require.Empty(t, rb.GetAll())
}

// -----------------------------------------------------------------------------

func TestRingBufferDefaultCapacity(t *testing.T) {
	rb := NewRingBuffer("AAPL", "1m", 0)
	require.Equal(t, 1000, rb.Capacity())
}

// -----------------------------------------------------------------------------

func TestBarsPerSession(t *testing.T) {
	require.Equal(t, 780, BarsPerSession(30))
	require.Equal(t, 390, BarsPerSession(60))
	require.Equal(t, 78, BarsPerSession(300))
	require.Equal(t, 7, BarsPerSession(3600))
	require.Equal(t, 1, BarsPerSession(86400))
	require.Equal(t, 0, BarsPerSession(0))
}

// -----------------------------------------------------------------------------

func TestBufferCapacity(t *testing.T) {
	require.Equal(t, 390*7+16, BufferCapacity(7, 60))
	require.Equal(t, 390+16, BufferCapacity(0, 60)) // clamped to one day
}
