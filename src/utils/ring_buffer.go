package utils

import (
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// RingBuffer is a fixed-size circular buffer of OHLCV rows.
// True ring buffer - no resizing allowed during normal operation!
// -----------------------------------------------------------------------------

type RingBuffer struct {
	// Identity of the bars held, restored on read-out
	symbol   string
	interval string

	// Data storage as 2D slice (rows x features)
	data     [][models.RB_NUM_FEATURES]float64
	capacity int
	index    int // Next write position
	size     int // Current number of elements
}

// -----------------------------------------------------------------------------

// NewRingBuffer creates a new buffer with fixed capacity
func NewRingBuffer(symbol, interval string, capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000 // Default reasonable size
	}

	return &RingBuffer{
		symbol:   symbol,
		interval: interval,
		data:     make([][models.RB_NUM_FEATURES]float64, capacity),
		capacity: capacity,
		index:    0,
		size:     0,
	}
}

// -----------------------------------------------------------------------------

// Append adds one bar (Strict Type)
func (rb *RingBuffer) Append(bar models.MBar) {
	rb.data[rb.index] = [models.RB_NUM_FEATURES]float64{
		float64(bar.StartTime),
		bar.Open,
		bar.High,
		bar.Low,
		bar.Close,
		bar.Volume,
	}

	rb.index = (rb.index + 1) % rb.capacity

	// Update size (never exceeds capacity)
	if rb.size < rb.capacity {
		rb.size++
	}
}

// -----------------------------------------------------------------------------

// GetLatest returns the n latest bars, oldest first
func (rb *RingBuffer) GetLatest(n int) []models.MBar {
	if rb.size == 0 || n <= 0 {
		return []models.MBar{}
	}

	count := n
	if n > rb.size {
		count = rb.size
	}

	result := make([]models.MBar, count)

	// Latest data is at index-1
	startIdx := (rb.index - count + rb.capacity) % rb.capacity

	for i := 0; i < count; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.barAt(idx)
	}

	return result
}

// -----------------------------------------------------------------------------

// GetAll returns all bars in insertion order (oldest to newest)
func (rb *RingBuffer) GetAll() []models.MBar {
	if rb.size == 0 {
		return []models.MBar{}
	}

	result := make([]models.MBar, rb.size)

	// When full the oldest element sits at the write index (wrap-around)
	var startIdx int
	if rb.size == rb.capacity {
		startIdx = rb.index
	} else {
		startIdx = 0
	}

	for i := 0; i < rb.size; i++ {
		idx := (startIdx + i) % rb.capacity
		result[i] = rb.barAt(idx)
	}

	return result
}

// -----------------------------------------------------------------------------

func (rb *RingBuffer) barAt(idx int) models.MBar {
	row := rb.data[idx]
	return models.MBar{
		Symbol:    rb.symbol,
		Interval:  rb.interval,
		StartTime: int64(row[models.RB_IDX_TIMESTAMP]),
		Open:      row[models.RB_IDX_OPEN],
		High:      row[models.RB_IDX_HIGH],
		Low:       row[models.RB_IDX_LOW],
		Close:     row[models.RB_IDX_CLOSE],
		Volume:    row[models.RB_IDX_VOLUME],
	}
}

// -----------------------------------------------------------------------------

// Size returns current number of elements
func (rb *RingBuffer) Size() int {
	return rb.size
}

// -----------------------------------------------------------------------------

// Capacity returns buffer capacity (fixed)
func (rb *RingBuffer) Capacity() int {
	return rb.capacity
}

// -----------------------------------------------------------------------------

// IsFull returns whether buffer is full
func (rb *RingBuffer) IsFull() bool {
	return rb.size == rb.capacity
}

// -----------------------------------------------------------------------------

// Clear resets the buffer
func (rb *RingBuffer) Clear() {
	rb.index = 0
	rb.size = 0
}
