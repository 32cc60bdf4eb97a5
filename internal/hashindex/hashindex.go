// Package hashindex is a small fixed-bucket hash index keyed by int32.
//
// It exists so one synchronization run can track modes and per-satellite
// state with a bounded, predictable footprint: 256 bucket heads, one node per
// stored value, and nothing that survives Destroy. The index owns every value
// handed to Insert and gives each one back to the release function exactly
// once.
package hashindex

import "errors"

// Buckets is the fixed number of bucket heads.
const Buckets = 256

// ErrDestroyed is returned by Insert once the index has been destroyed.
var ErrDestroyed = errors.New("hashindex: index destroyed")

// Policy selects what Insert does when the key is already present.
type Policy int

const (
	// Upsert replaces the stored value in place and releases the old one.
	Upsert Policy = iota

	// Shadow pushes a new entry in front of the old one without looking for
	// it. Lookup sees only the newest entry; older ones stay allocated until
	// Destroy releases them.
	Shadow
)

func (p Policy) String() string {
	switch p {
	case Upsert:
		return "upsert"
	case Shadow:
		return "shadow"
	default:
		return "unknown"
	}
}

type entry[V any] struct {
	key   int32
	value V
	next  *entry[V]
}

// Index is a chained hash index from int32 keys to owned values of type V.
// It is not safe for concurrent use.
type Index[V any] struct {
	buckets   [Buckets]*entry[V]
	policy    Policy
	release   func(V)
	live      int
	destroyed bool
}

// New returns an empty index. release may be nil when values need no
// cleanup.
func New[V any](policy Policy, release func(V)) *Index[V] {
	return &Index[V]{policy: policy, release: release}
}

// bucket maps a key to its bucket. The conversion to uint32 keeps negative
// keys in range.
func bucket(key int32) int {
	return int(uint32(key) % Buckets)
}

// Insert stores v under key and takes ownership of it.
func (ix *Index[V]) Insert(key int32, v V) error {
	if ix == nil || ix.destroyed {
		return ErrDestroyed
	}

	b := bucket(key)
	if ix.policy == Upsert {
		for e := ix.buckets[b]; e != nil; e = e.next {
			if e.key == key {
				old := e.value
				e.value = v
				ix.drop(old)
				return nil
			}
		}
	}

	ix.buckets[b] = &entry[V]{key: key, value: v, next: ix.buckets[b]}
	ix.live++
	return nil
}

// Lookup returns the newest value stored under key. The value is still
// owned by the index.
func (ix *Index[V]) Lookup(key int32) (V, bool) {
	var zero V
	if ix == nil || ix.destroyed {
		return zero, false
	}
	for e := ix.buckets[bucket(key)]; e != nil; e = e.next {
		if e.key == key {
			return e.value, true
		}
	}
	return zero, false
}

// Len reports the number of stored entries, shadowed ones included.
func (ix *Index[V]) Len() int {
	if ix == nil {
		return 0
	}
	return ix.live
}

// Each calls fn for every visible key, newest entry only, in bucket order.
func (ix *Index[V]) Each(fn func(key int32, v V)) {
	if ix == nil || ix.destroyed {
		return
	}
	for _, head := range ix.buckets {
		for e := head; e != nil; e = e.next {
			if ix.policy == Shadow && shadowed(head, e) {
				continue
			}
			fn(e.key, e.value)
		}
	}
}

// shadowed reports whether an entry for the same key sits in front of e.
func shadowed[V any](head, e *entry[V]) bool {
	for p := head; p != e; p = p.next {
		if p.key == e.key {
			return true
		}
	}
	return false
}

// Destroy releases every stored value and empties the index. Calling it
// again, or on a nil index, does nothing.
func (ix *Index[V]) Destroy() {
	if ix == nil || ix.destroyed {
		return
	}
	for i, head := range ix.buckets {
		for e := head; e != nil; {
			next := e.next
			ix.drop(e.value)
			e.next = nil
			e = next
		}
		ix.buckets[i] = nil
	}
	ix.live = 0
	ix.destroyed = true
}

func (ix *Index[V]) drop(v V) {
	if ix.release != nil {
		ix.release(v)
	}
}
