// Package cache reconciles delta and image updates from the streaming
// protocol into per-market and per-order-book caches: available
// ladders, runner caches, and the market/order book caches that own
// them. Mutation is synchronous and CPU-bound, with no suspension
// points, so a single server message is reconciled atomically relative
// to any other.
package cache

import (
	"fmt"

	"github.com/shopspring/decimal"

	"betfair-streamcache/pkg/price"
)

// Entry is one (price, size) pair held in a Ladder or LevelLadder.
type Entry struct {
	Price price.Price
	Size  price.Size
}

// Ladder is the unkeyed available-to-back/lay/traded/starting-price
// ladder: entries are (price, size) pairs keyed by price. A size of
// zero in an incoming update removes the entry at that price; any
// other size inserts or replaces it.
type Ladder struct {
	entries map[string]Entry
}

// NewLadder returns an empty ladder.
func NewLadder() *Ladder {
	return &Ladder{entries: make(map[string]Entry)}
}

// Clone returns an independent copy. Callers holding a shared-ownership
// reference to a ladder must Clone before mutating, so snapshots handed
// to subscribers are never mutated out from under them.
func (l *Ladder) Clone() *Ladder {
	cloned := make(map[string]Entry, len(l.entries))
	for k, v := range l.entries {
		cloned[k] = v
	}
	return &Ladder{entries: cloned}
}

// Update applies a batch of [price, size] tuples as received on the
// wire. Malformed tuples (wrong arity, a price outside the valid tick
// ladder, or a size that fails validation) are skipped and reported to
// onError, which may be nil; nothing else in the batch is affected.
func (l *Ladder) Update(tuples [][]decimal.Decimal, onError func(error)) {
	for _, t := range tuples {
		if len(t) != 2 {
			reportError(onError, &malformedTupleError{kind: "ladder", arity: len(t), want: 2})
			continue
		}
		p, err := price.New(t[0])
		if err != nil {
			reportError(onError, err)
			continue
		}
		key := priceKey(p)
		if t[1].IsZero() {
			delete(l.entries, key)
			continue
		}
		sz, err := price.NewSize(t[1])
		if err != nil {
			reportError(onError, err)
			continue
		}
		l.entries[key] = Entry{Price: p, Size: sz}
	}
}

// Entries returns a snapshot slice of the ladder's current entries in
// no particular order.
func (l *Ladder) Entries() []Entry {
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	return out
}

// Len reports the number of priced levels currently held.
func (l *Ladder) Len() int { return len(l.entries) }

// LevelLadder is the level-indexed best-available-to-back/lay ladder:
// entries are (level, price, size) triples keyed by level. A size of
// zero removes the entry at that level; any other size replaces
// whatever price was previously stored there, regardless of what price
// that was.
type LevelLadder struct {
	entries map[int64]Entry
}

// NewLevelLadder returns an empty level-indexed ladder.
func NewLevelLadder() *LevelLadder {
	return &LevelLadder{entries: make(map[int64]Entry)}
}

// Clone returns an independent copy.
func (l *LevelLadder) Clone() *LevelLadder {
	cloned := make(map[int64]Entry, len(l.entries))
	for k, v := range l.entries {
		cloned[k] = v
	}
	return &LevelLadder{entries: cloned}
}

// Update applies a batch of [level, price, size] triples.
func (l *LevelLadder) Update(triples [][]decimal.Decimal, onError func(error)) {
	for _, t := range triples {
		if len(t) != 3 {
			reportError(onError, &malformedTupleError{kind: "level ladder", arity: len(t), want: 3})
			continue
		}
		level := t[0].IntPart()
		if t[2].IsZero() {
			delete(l.entries, level)
			continue
		}
		p, err := price.New(t[1])
		if err != nil {
			reportError(onError, err)
			continue
		}
		sz, err := price.NewSize(t[2])
		if err != nil {
			reportError(onError, err)
			continue
		}
		l.entries[level] = Entry{Price: p, Size: sz}
	}
}

// EntryAt returns the entry at the given level, if any.
func (l *LevelLadder) EntryAt(level int64) (Entry, bool) {
	e, ok := l.entries[level]
	return e, ok
}

// Len reports the number of levels currently held.
func (l *LevelLadder) Len() int { return len(l.entries) }

// Entries returns a snapshot map of level to entry.
func (l *LevelLadder) Entries() map[int64]Entry {
	out := make(map[int64]Entry, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// priceKey projects a validated price to a canonical map key. Prices on
// the exchange's tick ladder never need more than 2 decimal places.
func priceKey(p price.Price) string {
	return p.Decimal().StringFixed(2)
}

func reportError(onError func(error), err error) {
	if onError != nil {
		onError(err)
	}
}

type malformedTupleError struct {
	kind  string
	arity int
	want  int
}

func (e *malformedTupleError) Error() string {
	return fmt.Sprintf("cache: malformed %s tuple: got %d elements, want %d", e.kind, e.arity, e.want)
}
