package entity

import (
	"maps"
	"slices"
	"sync"
)

// Table tracks live entities in memory. It satisfies both Sink and Source.
// The zero value is ready for use.
type Table struct {
	mu sync.RWMutex
	m  map[int32]Spawn
}

var (
	_ Sink   = (*Table)(nil)
	_ Source = (*Table)(nil)
)

// Spawn records s, replacing any entity with the same id.
func (t *Table) Spawn(s Spawn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[int32]Spawn)
	}
	t.m[s.ID] = s
}

// Transform updates the position and rotation of a known entity.
// Transforms for unknown entities are ignored; the spawn may simply not have arrived yet.
func (t *Table) Transform(tr Transform) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, found := t.m[tr.ID]
	if !found {
		return
	}
	s.Position, s.Rotation = tr.Position, tr.Rotation
	t.m[tr.ID] = s
}

// Destroy forgets the entity.
func (t *Table) Destroy(id int32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.m, id)
}

// Lookup returns the current state of an entity.
func (t *Table) Lookup(id int32) (Spawn, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, found := t.m[id]
	return s, found
}

// Len returns the number of live entities.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.m)
}

// IDs returns the ids of every live entity in ascending order.
func (t *Table) IDs() []int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Sorted(maps.Keys(t.m))
}
