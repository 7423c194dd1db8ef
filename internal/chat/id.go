package chat

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	timestampWidth = 10
	sequenceWidth  = 3
	// maxSequence is 36^3 - 1, the largest sequence that fits its width
	maxSequence = 46655
)

// Generator produces message ids whose lexicographic order equals their
// creation order. An id is the millisecond timestamp and a per-millisecond
// sequence, both base-36 and zero-padded.
type Generator struct {
	mu       sync.Mutex
	now      func() int64
	last     int64
	sequence int64
}

// NewGenerator creates a generator on the wall clock
func NewGenerator() *Generator {
	return NewGeneratorWithClock(func() int64 { return time.Now().UnixMilli() })
}

// NewGeneratorWithClock creates a generator reading milliseconds from now
func NewGeneratorWithClock(now func() int64) *Generator {
	return &Generator{now: now}
}

// NextID returns an id strictly greater than every id returned before.
// When the wall clock is at or behind the last used millisecond the
// sequence advances instead; sequence overflow advances the virtual clock.
func (g *Generator) NextID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now <= g.last {
		g.sequence++
	} else {
		g.last = now
		g.sequence = 0
	}

	if g.sequence > maxSequence {
		g.sequence = 0
		g.last++
	}

	return pad(g.last, timestampWidth) + pad(g.sequence, sequenceWidth)
}

func pad(v int64, width int) string {
	s := strconv.FormatInt(v, 36)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}
