// SPDX-License-Identifier: GPL-3.0-or-later

// Package htable implements the open-addressed-by-chaining hash table that
// both the service directory (internal/directory) and the address
// dispatcher's path tree (internal/dispatch) build on: keys are 4-byte
// padded strings (see internal/wireutil), buckets chain via a "next" link
// embedded in the entry itself rather than a separate collision list, and
// the table grows/shrinks by whole-table rehash rather than incremental
// resizing.
package htable

import "github.com/rbdannenberg/o2go/internal/wireutil"

// Entry is one key/value pair in a [Table]. It embeds the chain link so
// that a bucket with multiple colliding keys is a singly linked list of
// entries, with no separate collision-list allocation.
type Entry[V any] struct {
	Key   string
	Value V
	next  *Entry[V]
}

// Table is a generic open hash table with chaining.
//
// Table is not safe for concurrent use; callers in this codebase always
// own their table from the single poll-loop thread.
type Table[V any] struct {
	buckets []*Entry[V]
	count   int
}

// New returns an empty [Table] with a small initial bucket count.
func New[V any]() *Table[V] {
	return &Table[V]{buckets: make([]*Entry[V], 8)}
}

// Len returns the number of entries currently stored.
func (t *Table[V]) Len() int { return t.count }

func (t *Table[V]) bucketIndex(key string) int {
	h := wireutil.HashString(key)
	return int(h) % len(t.buckets)
}

// Lookup returns the entry for key, or nil if absent.
func (t *Table[V]) Lookup(key string) *Entry[V] {
	if len(t.buckets) == 0 {
		return nil
	}
	for e := t.buckets[t.bucketIndex(key)]; e != nil; e = e.next {
		if e.Key == key {
			return e
		}
	}
	return nil
}

// Get is a convenience wrapper returning (value, ok).
func (t *Table[V]) Get(key string) (V, bool) {
	if e := t.Lookup(key); e != nil {
		return e.Value, true
	}
	var zero V
	return zero, false
}

// Set inserts or overwrites the value for key, rehashing the table first if
// the load factor would exceed 2/3.
func (t *Table[V]) Set(key string, value V) {
	if e := t.Lookup(key); e != nil {
		e.Value = value
		return
	}
	if (t.count+1)*3 > len(t.buckets)*2 {
		t.rehash(3 * (t.count + 1))
	}
	idx := t.bucketIndex(key)
	t.buckets[idx] = &Entry[V]{Key: key, Value: value, next: t.buckets[idx]}
	t.count++
}

// Delete removes key from the table, shrinking it afterward if the table
// has become sparse (count*3 < length and count > 3).
func (t *Table[V]) Delete(key string) bool {
	idx := t.bucketIndex(key)
	var prev *Entry[V]
	for e := t.buckets[idx]; e != nil; prev, e = e, e.next {
		if e.Key != key {
			continue
		}
		if prev == nil {
			t.buckets[idx] = e.next
		} else {
			prev.next = e.next
		}
		t.count--
		if t.count*3 < len(t.buckets) && t.count > 3 {
			t.rehash(((t.count + 1) * 3) / 2)
		}
		return true
	}
	return false
}

// Each calls fn once per entry in unspecified order. fn must not mutate the
// table; collect keys first if deletion during iteration is needed.
func (t *Table[V]) Each(fn func(key string, value V)) {
	for _, head := range t.buckets {
		for e := head; e != nil; e = e.next {
			fn(e.Key, e.Value)
		}
	}
}

// rehash resizes to at least minBuckets buckets (never below 8) and
// reinserts every existing entry.
func (t *Table[V]) rehash(minBuckets int) {
	if minBuckets < 8 {
		minBuckets = 8
	}
	old := t.buckets
	t.buckets = make([]*Entry[V], minBuckets)
	for _, head := range old {
		for e := head; e != nil; {
			next := e.next
			idx := t.bucketIndex(e.Key)
			e.next = t.buckets[idx]
			t.buckets[idx] = e
			e = next
		}
	}
}
