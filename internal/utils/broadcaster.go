package utils

import "sync"

// Broadcaster delivers values to subscribers, in subscription order, on
// the publishing goroutine. The zero value is ready to use.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(T)
}

// Subscribe registers fn. The returned function removes it and may be
// called more than once.
func (b *Broadcaster[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = make(map[int]func(T))
	}
	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// Publish calls every current subscriber with v. Subscribers may
// subscribe or unsubscribe from inside the callback.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	listeners := make([]func(T), 0, len(b.listeners))
	for id := 0; id < b.nextID; id++ {
		if fn, ok := b.listeners[id]; ok {
			listeners = append(listeners, fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

// Len reports the number of subscribers.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
