package sync

import "sync"

type TypedSyncMap[K comparable, V any] struct {
	m sync.Map
}

// Swap stores the value and returns the previous one, if any.
func (m *TypedSyncMap[K, V]) Swap(key K, value V) (V, bool) {
	prev, loaded := m.m.Swap(key, value)
	if !loaded {
		return *new(V), false
	}

	if pv, ok := prev.(V); ok {
		return pv, true
	}
	return *new(V), false
}

// CompareAndDelete deletes the entry for key only if it is still old.
func (m *TypedSyncMap[K, V]) CompareAndDelete(key K, old V) bool {
	return m.m.CompareAndDelete(key, old)
}

func (m *TypedSyncMap[K, V]) Range(f func(K, V) bool) {
	m.m.Range(func(k, v any) bool {
		kk, ok := k.(K)
		if !ok {
			return true
		}
		vv, ok := v.(V)
		if !ok {
			return true
		}
		return f(kk, vv)
	})
}
