// Package expiring introduces tables with the ability to prune their own elements.
package expiring

import (
	"sync"
	"time"
)

// ExpireFunc is called, on the timer's goroutine, after an entry has been pruned.
type ExpireFunc[K comparable, V any] func(key K, value V)

type entry[V any] struct {
	val V
	gen uint64 // distinguishes this entry's timer from a replaced one
	exp *time.Timer
}

// A Table is a map whose entries prune themselves after their duration elapses.
// The zero value is ready for immediate use.
//
// NOTE: accessing elements AT their expiration time is, by its very nature, a race.
// If a timer has not fired, its data is guaranteed to still be present. The inverse is not guaranteed.
//
// Tables must not be copied after first use.
type Table[K comparable, V any] struct {
	mu  sync.Mutex
	m   map[K]*entry[V]
	gen uint64
}

// Store saves key/value and sets it to expire after ttl.
// A previous value for key is overwritten and its timer cancelled without calling its onExpire.
// onExpire, if not nil, is called after the entry is pruned by its timer; it is not called on Delete.
func (t *Table[K, V]) Store(key K, value V, ttl time.Duration, onExpire ExpireFunc[K, V]) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.m == nil {
		t.m = make(map[K]*entry[V])
	}
	if old, found := t.m[key]; found {
		old.exp.Stop()
	}
	t.gen++
	e := &entry[V]{val: value, gen: t.gen}
	gen := t.gen
	e.exp = time.AfterFunc(ttl, func() {
		t.mu.Lock()
		cur, found := t.m[key]
		if !found || cur.gen != gen {
			// replaced or deleted after the timer fired
			t.mu.Unlock()
			return
		}
		delete(t.m, key)
		t.mu.Unlock()
		if onExpire != nil {
			onExpire(key, cur.val)
		}
	})
	t.m[key] = e
}

// Load fetches the value associated to key if it has not expired.
func (t *Table[K, V]) Load(key K) (value V, found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.m[key]
	if !found {
		return value, false
	}
	return e.val, true
}

// Delete removes key and stops its timer.
// Returns false if key was not present.
func (t *Table[K, V]) Delete(key K) (found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.m[key]
	if !found {
		return false
	}
	e.exp.Stop()
	delete(t.m, key)
	return true
}

// Refresh restarts key's timer with a new ttl.
// Returns false if key is not present.
func (t *Table[K, V]) Refresh(key K, ttl time.Duration) (found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, found := t.m[key]
	if !found {
		return false
	}
	e.exp.Reset(ttl)
	return true
}

// Len returns the number of live entries.
func (t *Table[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// Clear removes every entry and stops every timer without calling any onExpire.
func (t *Table[K, V]) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.m {
		e.exp.Stop()
		delete(t.m, k)
	}
}
