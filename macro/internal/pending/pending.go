// Package pending provides the fixed-capacity index lists the trigger and
// result engines keep their in-flight macros in.
package pending

import "golang.org/x/exp/constraints"

// List is an ordered set of indices with a capacity fixed at construction.
// Membership is tracked in a bitmap so Contains is O(1).
type List[T constraints.Unsigned] struct {
	items  []T
	member []uint64
}

// New returns an empty list that can hold indices in [0, capacity).
func New[T constraints.Unsigned](capacity int) *List[T] {
	return &List[T]{
		items:  make([]T, 0, capacity),
		member: make([]uint64, (capacity+63)/64),
	}
}

// Cap returns the capacity of the list.
func (l *List[T]) Cap() int { return cap(l.items) }

// Len returns the number of indices in the list.
func (l *List[T]) Len() int { return len(l.items) }

// Contains reports whether i is in the list.
func (l *List[T]) Contains(i T) bool {
	w := int(i) / 64
	if w >= len(l.member) {
		return false
	}
	return l.member[w]&(1<<(uint(i)%64)) != 0
}

// Add appends i. It returns false if i is already present or out of range.
func (l *List[T]) Add(i T) bool {
	if int(i) >= cap(l.items) || l.Contains(i) {
		return false
	}
	l.items = append(l.items, i)
	l.member[int(i)/64] |= 1 << (uint(i) % 64)
	return true
}

// Items returns a copy of the list contents in insertion order.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Retain compacts the list in place, keeping the indices keep returns true
// for. Relative order is preserved.
func (l *List[T]) Retain(keep func(T) bool) {
	n := 0
	for _, i := range l.items {
		if keep(i) {
			l.items[n] = i
			n++
			continue
		}
		l.member[int(i)/64] &^= 1 << (uint(i) % 64)
	}
	l.items = l.items[:n]
}

// Remove drops i from the list, preserving the order of the rest.
func (l *List[T]) Remove(i T) {
	if !l.Contains(i) {
		return
	}
	l.Retain(func(x T) bool { return x != i })
}

// Clear empties the list.
func (l *List[T]) Clear() {
	l.items = l.items[:0]
	for i := range l.member {
		l.member[i] = 0
	}
}
