package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// SeqClock hands out logical sequence numbers for store writes.
// The first call to Next returns start+1. Safe for concurrent use.
type SeqClock struct {
	mu  sync.Mutex
	seq int64
}

// NewSeqClock creates a clock whose next value is start+1.
func NewSeqClock(start int64) *SeqClock {
	return &SeqClock{seq: start}
}

// Next advances the clock and returns the new value.
func (c *SeqClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last value handed out.
func (c *SeqClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// FixedIDGenerator produces sequential UUIDv7-shaped ids so saved chart
// uuids are stable across runs:
//
//	00000000-0000-7000-8000-000000000001
//	00000000-0000-7000-8000-000000000002
type FixedIDGenerator struct {
	mu sync.Mutex
	n  uint64
}

// NewFixedIDGenerator creates a generator starting at ...0001.
func NewFixedIDGenerator() *FixedIDGenerator {
	return &FixedIDGenerator{}
}

// NewID returns the next id.
func (g *FixedIDGenerator) NewID() string {
	g.mu.Lock()
	g.n++
	n := g.n
	g.mu.Unlock()

	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], n)
	id[6] = 0x70  // version 7
	id[8] |= 0x80 // RFC 4122 variant
	return id.String()
}
