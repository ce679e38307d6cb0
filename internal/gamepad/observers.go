package gamepad

import "sync"

// ConnectionHandler receives Connected and Disconnected notifications.
type ConnectionHandler func(rec Record)

// UserChangedHandler receives UserChanged notifications. rec is the record
// as it was before the change.
type UserChangedHandler func(rec Record, newUser, oldUser UserID)

// Observer receives every registry notification.
// It is a convenience over registering the three handlers separately.
type Observer interface {
	GamepadConnected(rec Record)
	GamepadDisconnected(rec Record)
	GamepadUserChanged(rec Record, newUser, oldUser UserID)
}

// observerList is an ordered list of handlers. Handlers are returned in
// the order they were added.
type observerList[H any] struct {
	mu      sync.RWMutex
	nextID  uint64
	entries []observerEntry[H]
}

type observerEntry[H any] struct {
	id      uint64
	handler H
}

// add appends a handler and returns a function removing it again.
func (l *observerList[H]) add(handler H) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.entries = append(l.entries, observerEntry[H]{id: id, handler: handler})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}
}

func (l *observerList[H]) remove(id uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

// snapshot copies the handlers so they can be invoked without holding the lock.
func (l *observerList[H]) snapshot() []H {
	l.mu.RLock()
	defer l.mu.RUnlock()

	handlers := make([]H, len(l.entries))
	for i, e := range l.entries {
		handlers[i] = e.handler
	}
	return handlers
}

func (l *observerList[H]) len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
