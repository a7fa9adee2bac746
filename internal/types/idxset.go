package types

import "sort"

// TokenIdxSet is an unordered set of token indices.
type TokenIdxSet map[int]struct{}

// NewTokenIdxSet returns a set holding idx.
func NewTokenIdxSet(idx ...int) TokenIdxSet {
	s := make(TokenIdxSet, len(idx))
	for _, i := range idx {
		s[i] = struct{}{}
	}
	return s
}

func (s TokenIdxSet) Add(idx int) {
	s[idx] = struct{}{}
}

func (s TokenIdxSet) Remove(idx int) {
	delete(s, idx)
}

func (s TokenIdxSet) Has(idx int) bool {
	_, ok := s[idx]
	return ok
}

func (s TokenIdxSet) Len() int {
	return len(s)
}

// Union adds every element of other to s.
func (s TokenIdxSet) Union(other TokenIdxSet) {
	for idx := range other {
		s[idx] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s TokenIdxSet) Clone() TokenIdxSet {
	c := make(TokenIdxSet, len(s))
	for idx := range s {
		c[idx] = struct{}{}
	}
	return c
}

// Sorted returns the indices in ascending order.
func (s TokenIdxSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for idx := range s {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
