// Package tracehash digests a completed execution's result shape into a
// content hash, adapted from the teacher's cas package (farm hash over
// a msgpack encoding) for a different purpose: not content-addressed
// storage of interpreter state, but deduplicating result shapes so the
// explorer can answer testable property D1 ("every distinct
// result-shape ... appears in the output").
package tracehash

import (
	"container/list"
	"sync"

	farm "github.com/dgryski/go-farm"
	msgpack "github.com/shamaton/msgpack/v2"
)

// Hash is a structural digest of one execution's result shape.
type Hash uint64

// Shape is the plain, msgpack-encodable projection of an execution's
// outcome: its failure classification (empty string for success), the
// final value's textual form, and the final CRef/TVar cell values —
// everything property D1 cares about distinguishing. Value.String()
// stands in for the teacher's recursive decomposeValue: our Values are
// small enough that a canonical string form is already a faithful
// structural key, so no recursive CAS-style decomposition is needed.
type Shape struct {
	Failure string
	Value   string
	Cells   []string // sorted "id=value" pairs for final CRef/TVar state
}

// Digest hashes s via msgpack + farm hash, matching cas.putDirect's
// approach (serialize, then farm.Hash64 the bytes) without the
// teacher's content-addressed storage layer, since nothing here needs
// to be fetched back by hash later.
func Digest(s Shape) (Hash, error) {
	b, err := msgpack.Marshal(s)
	if err != nil {
		return 0, err
	}
	return Hash(farm.Hash64(b)), nil
}

// ShapeSet counts distinct result shapes seen across an exploration,
// backed by an LRU so a very long-running exploration doesn't grow the
// set unboundedly, mirroring cas.LRUCache's eviction shape — eviction
// here only affects the stored Shape value for inspection/logging, not
// the running distinct-count, which is exact and never decreases.
type ShapeSet struct {
	mu      sync.Mutex
	seen    map[Hash]int // count per shape
	recent  map[Hash]*list.Element
	order   *list.List
	maxKept int
}

type shapeEntry struct {
	hash  Hash
	shape Shape
}

// NewShapeSet returns a set that remembers at most maxKept shapes' full
// detail for reporting (0 or negative means a sane default of 1000,
// matching cas.NewLRUCache's default).
func NewShapeSet(maxKept int) *ShapeSet {
	if maxKept <= 0 {
		maxKept = 1000
	}
	return &ShapeSet{
		seen:    make(map[Hash]int),
		recent:  make(map[Hash]*list.Element),
		order:   list.New(),
		maxKept: maxKept,
	}
}

// Observe records one execution's shape, returning whether it is the
// first time this exact shape has been seen.
func (s *ShapeSet) Observe(shape Shape) (Hash, bool, error) {
	h, err := Digest(shape)
	if err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	count := s.seen[h]
	s.seen[h] = count + 1
	fresh := count == 0

	if elem, ok := s.recent[h]; ok {
		s.order.MoveToFront(elem)
	} else {
		elem := s.order.PushFront(shapeEntry{hash: h, shape: shape})
		s.recent[h] = elem
		if s.order.Len() > s.maxKept {
			oldest := s.order.Back()
			if oldest != nil {
				s.order.Remove(oldest)
				delete(s.recent, oldest.Value.(shapeEntry).hash)
			}
		}
	}
	return h, fresh, nil
}

// DistinctCount returns the number of distinct shapes observed so far.
func (s *ShapeSet) DistinctCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

// CountOf returns how many times a given shape hash has been observed.
func (s *ShapeSet) CountOf(h Hash) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen[h]
}
