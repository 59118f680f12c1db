package metadata

import "sync"

// lazy holds a value that is produced on first access. Serialized members
// initialize their fields with a loader reading the backing Source; built
// members set the value directly and never consult a loader.
//
// Reads are safe for concurrent use, including racing first reads. Writes
// through set are not synchronized with reads.
type lazy[T any] struct {
	once  sync.Once
	load  func() T
	value T
}

func (l *lazy[T]) init(load func() T) {
	l.load = load
}

func (l *lazy[T]) get() T {
	l.once.Do(func() {
		if l.load != nil {
			l.value = l.load()
			l.load = nil
		}
	})
	return l.value
}

func (l *lazy[T]) set(v T) {
	l.once.Do(func() { l.load = nil })
	l.value = v
}
