// Package strset provides an insertion-ordered set of strings.
package strset

// Set is an insertion-ordered set of strings. The zero value is empty and
// ready to use.
type Set struct {
	items []string
	index map[string]struct{}
}

// New builds a set from items, keeping the first occurrence of each.
func New(items ...string) Set {
	var s Set
	for _, item := range items {
		s.Add(item)
	}
	return s
}

// Add inserts item and reports whether it was new.
func (s *Set) Add(item string) bool {
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[item]; ok {
		return false
	}
	s.index[item] = struct{}{}
	s.items = append(s.items, item)
	return true
}

// Has reports whether item is in the set.
func (s Set) Has(item string) bool {
	_, ok := s.index[item]
	return ok
}

// Len returns the number of distinct items.
func (s Set) Len() int {
	return len(s.items)
}

// Items returns the items in insertion order.
func (s Set) Items() []string {
	return append([]string{}, s.items...)
}
