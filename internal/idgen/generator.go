package idgen

import (
	"fmt"
	"sync"
	"time"
)

// Bit layout of a generated ID, most significant first:
// 41 bits of milliseconds since Epoch, 10 bits of node, 12 bits of sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	MaxNode     = 1<<nodeBits - 1
	maxSequence = 1<<sequenceBits - 1

	timestampShift = nodeBits + sequenceBits
	nodeShift      = sequenceBits
)

// Epoch is the custom epoch (2023-01-01T00:00:00Z) IDs are measured from.
var Epoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Generator issues unique, strictly increasing 64-bit identifiers.
// It is safe for concurrent use.
//
// If the wall clock moves backward the generator keeps its last logical
// millisecond and continues from the sequence counter, so every ID is greater
// than every ID issued before it by the same Generator.
type Generator struct {
	mu       sync.Mutex
	node     int64
	epochMS  int64
	lastMS   int64
	sequence int64
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator for the given node number (0..MaxNode).
// Distinct processes must use distinct node numbers.
func NewGenerator(node int64, opts ...Option) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, fmt.Errorf("idgen: node %d out of range [0, %d]", node, MaxNode)
	}
	g := &Generator{
		node:    node,
		epochMS: Epoch.UnixMilli(),
		lastMS:  -1,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate returns the next identifier. It never fails.
func (g *Generator) Generate() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli() - g.epochMS
	if ms < 0 {
		ms = 0
	}

	switch {
	case ms > g.lastMS:
		g.lastMS = ms
		g.sequence = 0
	default:
		// Same millisecond or the clock went backward: stay on the logical
		// clock and advance the sequence, rolling into the next millisecond
		// when it is exhausted.
		g.sequence++
		if g.sequence > maxSequence {
			g.lastMS++
			g.sequence = 0
		}
	}

	return g.lastMS<<timestampShift | g.node<<nodeShift | g.sequence
}

// Node returns the node number embedded in every ID from g.
func (g *Generator) Node() int64 { return g.node }

// Time extracts the creation time encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli(id>>timestampShift + Epoch.UnixMilli()).UTC()
}

// NodeOf extracts the node number encoded in id.
func NodeOf(id int64) int64 {
	return id >> nodeShift & MaxNode
}
