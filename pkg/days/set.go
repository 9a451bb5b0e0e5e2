package days

import "sort"

// Set is an unordered collection of days, as returned by range queries.
type Set map[Day]struct{}

// NewSet builds a Set from the given days.
func NewSet(ds ...Day) Set {
	s := make(Set, len(ds))
	for _, d := range ds {
		s[d] = struct{}{}
	}
	return s
}

// Add inserts d into the set.
func (s Set) Add(d Day) {
	s[d] = struct{}{}
}

// Has reports whether d is in the set. A nil set contains nothing.
func (s Set) Has(d Day) bool {
	_, ok := s[d]
	return ok
}

// Len returns the number of days in the set.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the days in ascending chronological order.
func (s Set) Sorted() []Day {
	out := make([]Day, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
