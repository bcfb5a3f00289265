// Package journal records pre-images of keyed state so a failed pool call can be undone.
package journal

type preImage[V any] struct {
	value   V
	existed bool
}

// Journal keeps the first pre-image of every key written since the last Reset.
// The zero value is ready to use.
type Journal[K comparable, V any] struct {
	order []K
	prev  map[K]preImage[V]
}

// Record stores the value held by key before its first write. Later calls for the
// same key are ignored.
func (j *Journal[K, V]) Record(key K, value V, existed bool) {
	if j.prev == nil {
		j.prev = make(map[K]preImage[V])
	}
	if _, ok := j.prev[key]; ok {
		return
	}
	j.prev[key] = preImage[V]{value: value, existed: existed}
	j.order = append(j.order, key)
}

// Keys returns the touched keys in first-write order.
func (j *Journal[K, V]) Keys() []K {
	out := make([]K, len(j.order))
	copy(out, j.order)
	return out
}

// Len returns the number of touched keys.
func (j *Journal[K, V]) Len() int {
	return len(j.order)
}

// Revert hands every pre-image back to restore, newest first. The touched keys are
// kept so callers can still persist the restored values; call Reset afterwards.
func (j *Journal[K, V]) Revert(restore func(key K, value V, existed bool)) {
	for i := len(j.order) - 1; i >= 0; i-- {
		key := j.order[i]
		p := j.prev[key]
		restore(key, p.value, p.existed)
	}
}

// Reset forgets all recorded pre-images.
func (j *Journal[K, V]) Reset() {
	j.order = j.order[:0]
	j.prev = nil
}
