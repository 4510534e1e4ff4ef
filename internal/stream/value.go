package stream

import "sync"

// Value holds the latest value of T and broadcasts changes to subscribers.
// New subscribers immediately receive the current value. Slow subscribers
// never block Set: each subscription keeps only the most recent value.
type Value[T any] struct {
	mu      sync.RWMutex
	current T
	subs    map[uint64]chan T
	nextID  uint64
	closed  bool
}

// NewValue creates a stream holding initial.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		current: initial,
		subs:    make(map[uint64]chan T),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Set stores val and publishes it to every subscriber.
func (v *Value[T]) Set(val T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}

	v.current = val
	for _, ch := range v.subs {
		offer(ch, val)
	}
}

// Subscribe returns a channel that receives the current value followed by
// every subsequent one, and a cancel func that must be called to release
// the subscription. The channel is closed on cancel or Close.
func (v *Value[T]) Subscribe() (<-chan T, func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ch := make(chan T, 1)
	if v.closed {
		close(ch)
		return ch, func() {}
	}

	id := v.nextID
	v.nextID++
	v.subs[id] = ch
	ch <- v.current

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			v.mu.Lock()
			defer v.mu.Unlock()
			if sub, ok := v.subs[id]; ok {
				delete(v.subs, id)
				close(sub)
			}
		})
	}

	return ch, cancel
}

// Close closes all subscriber channels. Later Sets are ignored.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	for id, ch := range v.subs {
		delete(v.subs, id)
		close(ch)
	}
}

// offer replaces any unread value in the single slot buffer with val.
func offer[T any](ch chan T, val T) {
	for {
		select {
		case ch <- val:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
