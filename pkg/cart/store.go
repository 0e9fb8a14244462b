// Package cart holds the shopping cart state container. Mutations never fail
// and always hand back an immutable snapshot of the resulting line set.
package cart

import "sync"

// Line is one product entry in the cart with its quantity.
type Line struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	UnitPrice    float64 `json:"price"`
	Unit         string  `json:"unit"`
	UnitQuantity float64 `json:"unit_quantity"`
	ImageURL     string  `json:"image_url,omitempty"`
	Quantity     int     `json:"quantity"`
}

// Subtotal is UnitPrice * Quantity.
func (l Line) Subtotal() float64 {
	return l.UnitPrice * float64(l.Quantity)
}

// Snapshot is a read-only view of the cart at one point in time.
type Snapshot struct {
	lines []Line
}

// NewSnapshot builds a snapshot from lines, merging duplicate ids and
// dropping lines whose quantity is not positive.
func NewSnapshot(lines []Line) Snapshot {
	var s Snapshot
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		s = s.add(l, l.Quantity)
	}
	return s
}

// Lines returns a copy of the line items in insertion order.
func (s Snapshot) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Line looks up a line by product id.
func (s Snapshot) Line(id string) (Line, bool) {
	if i := s.index(id); i >= 0 {
		return s.lines[i], true
	}
	return Line{}, false
}

// Len is the number of distinct lines.
func (s Snapshot) Len() int { return len(s.lines) }

// IsEmpty reports whether the cart has no lines.
func (s Snapshot) IsEmpty() bool { return len(s.lines) == 0 }

// TotalItems is the sum of all line quantities.
func (s Snapshot) TotalItems() int {
	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice is the sum of unit price times quantity over all lines.
func (s Snapshot) TotalPrice() float64 {
	total := 0.0
	for _, l := range s.lines {
		total += l.Subtotal()
	}
	return total
}

func (s Snapshot) index(id string) int {
	for i, l := range s.lines {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// add returns a new snapshot; the receiver's backing array is never written.
func (s Snapshot) add(item Line, qty int) Snapshot {
	lines := s.Lines()
	if i := s.index(item.ID); i >= 0 {
		lines[i].Quantity += qty
		return Snapshot{lines: lines}
	}
	item.Quantity = qty
	return Snapshot{lines: append(lines, item)}
}

func (s Snapshot) setQuantity(id string, qty int) (Snapshot, bool) {
	i := s.index(id)
	if i < 0 {
		return s, false
	}
	if qty <= 0 {
		return s.remove(id)
	}
	if s.lines[i].Quantity == qty {
		return s, false
	}
	lines := s.Lines()
	lines[i].Quantity = qty
	return Snapshot{lines: lines}, true
}

func (s Snapshot) remove(id string) (Snapshot, bool) {
	i := s.index(id)
	if i < 0 {
		return s, false
	}
	lines := make([]Line, 0, len(s.lines)-1)
	lines = append(lines, s.lines[:i]...)
	lines = append(lines, s.lines[i+1:]...)
	return Snapshot{lines: lines}, true
}

// Store is the mutable cart container. Consumers read snapshots and
// subscribe to changes; the zero value is not usable, use NewStore.
type Store struct {
	mu     sync.Mutex
	snap   Snapshot
	subs   map[int]func(Snapshot)
	nextID int
}

// NewStore creates a store seeded with lines (may be empty).
func NewStore(lines ...Line) *Store {
	return &Store{
		snap: NewSnapshot(lines),
		subs: make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current cart contents.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// Add adds a single unit of item.
func (s *Store) Add(item Line) Snapshot {
	return s.AddItem(item, 1)
}

// AddItem increments the quantity of an existing line with the same id, or
// appends a new line with quantity qty. A non-positive qty changes nothing.
func (s *Store) AddItem(item Line, qty int) Snapshot {
	if qty <= 0 {
		return s.Snapshot()
	}
	return s.apply(func(cur Snapshot) (Snapshot, bool) {
		return cur.add(item, qty), true
	})
}

// UpdateQuantity sets the quantity of line id. A quantity of zero or less
// removes the line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(id string, qty int) Snapshot {
	return s.apply(func(cur Snapshot) (Snapshot, bool) {
		return cur.setQuantity(id, qty)
	})
}

// RemoveItem deletes line id if present.
func (s *Store) RemoveItem(id string) Snapshot {
	return s.apply(func(cur Snapshot) (Snapshot, bool) {
		return cur.remove(id)
	})
}

// Clear empties the cart.
func (s *Store) Clear() Snapshot {
	return s.apply(func(cur Snapshot) (Snapshot, bool) {
		return Snapshot{}, !cur.IsEmpty()
	})
}

// Subscribe registers fn to receive every new snapshot. The returned func
// removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// apply runs op under the lock and notifies subscribers outside it when the
// line set changed.
func (s *Store) apply(op func(Snapshot) (Snapshot, bool)) Snapshot {
	s.mu.Lock()
	next, changed := op(s.snap)
	if !changed {
		s.mu.Unlock()
		return next
	}
	s.snap = next
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next
}
