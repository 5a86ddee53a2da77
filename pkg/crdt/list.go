package crdt

import (
	"math/big"
	"sort"
)

// Position is a rational number locating a List item between its
// neighbors. Ordering is total: beginning < every finite position < end.
// math/big.Rat gives exact arbitrary-precision arithmetic, which is
// what "strictly between any two positions, forever" requires — no
// corpus library offers a fractional-index CRDT primitive, so this is
// the one deliberate standard-library concern in the CRDT core (see
// DESIGN.md).
type Position struct {
	r *big.Rat
}

// Beginning and End are sentinel positions bounding every finite item.
func Beginning() Position { return Position{r: big.NewRat(0, 1)} }
func End() Position        { return Position{r: big.NewRat(1, 1)} }

// NewPosition builds a Position from a numerator/denominator pair.
func NewPosition(num, den int64) Position { return Position{r: big.NewRat(num, den)} }

// Cmp returns -1, 0, or 1 comparing p to other.
func (p Position) Cmp(other Position) int { return p.r.Cmp(other.r) }

// Less reports whether p sorts before other.
func (p Position) Less(other Position) bool { return p.Cmp(other) < 0 }

func (p Position) String() string { return p.r.RatString() }

// Between returns the midpoint of a and b, which lies strictly between
// them when a < b. It mixes in no tiebreak: two inserts between the
// same neighbors get the same position, and List orders such items by
// listItem.insertID.
func Between(a, b Position) Position {
	mid := new(big.Rat).Add(a.r, b.r)
	mid.Quo(mid, big.NewRat(2, 1))
	return Position{r: mid}
}

// listItem is one element of a List: its position, its value, and the
// ID of the writer that inserted it (used only to break position ties
// deterministically across concurrent inserts between the same pair of
// neighbors).
type listItem struct {
	pos      Position
	insertID string
	value    Value
	deleted  bool
}

// List is a CRDT sequence ordered by fractional position. Concurrent
// inserts between the same neighbors receive the same rational position
// and are ordered by insertID; merges union the items, each identified
// by its position and insertID together.
type List struct {
	items []listItem
}

func NewList() *List { return &List{} }

func (*List) isValue() {}

func (l *List) Clone() Value {
	out := &List{items: make([]listItem, len(l.items))}
	for i, it := range l.items {
		out.items[i] = listItem{pos: it.pos, insertID: it.insertID, value: it.value.Clone(), deleted: it.deleted}
	}
	return out
}

func (l *List) sort() {
	sort.SliceStable(l.items, func(i, j int) bool {
		if c := l.items[i].pos.Cmp(l.items[j].pos); c != 0 {
			return c < 0
		}
		return l.items[i].insertID < l.items[j].insertID
	})
}

// Insert places value between the items currently at index-1 and
// index, tagging the new position with insertID for tie-breaking.
// Index may equal Len() to append.
func (l *List) Insert(index int, value Value, insertID string) {
	l.sort()
	var left, right Position
	if index <= 0 {
		left = Beginning()
	} else {
		left = l.items[index-1].pos
	}
	if index >= len(l.items) {
		right = End()
	} else {
		right = l.items[index].pos
	}
	pos := Between(left, right)
	l.items = append(l.items, listItem{pos: pos, insertID: insertID, value: value})
	l.sort()
}

// Len returns the number of live (non-deleted) items.
func (l *List) Len() int {
	n := 0
	for _, it := range l.items {
		if !it.deleted {
			n++
		}
	}
	return n
}

// Get returns the i-th live item's value.
func (l *List) Get(i int) (Value, bool) {
	l.sort()
	idx := -1
	for _, it := range l.items {
		if it.deleted {
			continue
		}
		idx++
		if idx == i {
			return it.value, true
		}
	}
	return nil, false
}

// Values returns every live item's value in position order.
func (l *List) Values() []Value {
	l.sort()
	out := make([]Value, 0, len(l.items))
	for _, it := range l.items {
		if !it.deleted {
			out = append(out, it.value)
		}
	}
	return out
}

// DeleteAt tombstones the i-th live item.
func (l *List) DeleteAt(i int) bool {
	l.sort()
	idx := -1
	for n := range l.items {
		if l.items[n].deleted {
			continue
		}
		idx++
		if idx == i {
			l.items[n].deleted = true
			return true
		}
	}
	return false
}

// MergeList unions self and other's items, identifying each by its
// position and insertID together. Items written independently at the
// same position with different insertIDs both survive, ordered by
// insertID. For an item present on both sides self's value is kept,
// and deletion is sticky — if either side deleted an item, the merged
// item is deleted.
func MergeList(self, other *List) *List {
	byPos := make(map[string]listItem)
	order := make([]string, 0, len(self.items)+len(other.items))

	add := func(it listItem) {
		key := it.pos.String() + "|" + it.insertID
		if existing, ok := byPos[key]; ok {
			if it.deleted {
				existing.deleted = true
			}
			byPos[key] = existing
			return
		}
		byPos[key] = it
		order = append(order, key)
	}
	for _, it := range self.items {
		add(listItem{pos: it.pos, insertID: it.insertID, value: it.value.Clone(), deleted: it.deleted})
	}
	for _, it := range other.items {
		add(listItem{pos: it.pos, insertID: it.insertID, value: it.value.Clone(), deleted: it.deleted})
	}

	out := &List{items: make([]listItem, 0, len(order))}
	for _, k := range order {
		out.items = append(out.items, byPos[k])
	}
	out.sort()
	return out
}
