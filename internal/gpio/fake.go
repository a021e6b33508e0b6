package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// FakeWatcher is a test double with scripted input levels. Tests drive edges
// with Emit.
type FakeWatcher struct {
	mu       sync.Mutex
	levels   map[int]bool
	handlers map[int]Handler
	debounce map[int]time.Duration

	// WatchErrors makes Watch fail for the given pins.
	WatchErrors map[int]error

	// ReadError, if set, will be returned by IsAsserted.
	ReadError error

	// AfterRead, if set, runs after each successful IsAsserted with the
	// pin and the level returned. Tests use it to emit edges between reads.
	AfterRead func(pin int, asserted bool)

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeWatcher creates a FakeWatcher. asserted lists pins held at start.
func NewFakeWatcher(asserted ...int) *FakeWatcher {
	f := &FakeWatcher{
		levels:      make(map[int]bool),
		handlers:    make(map[int]Handler),
		debounce:    make(map[int]time.Duration),
		WatchErrors: make(map[int]error),
	}
	for _, pin := range asserted {
		f.levels[pin] = true
	}
	return f
}

// IsAsserted returns the scripted level for pin.
func (f *FakeWatcher) IsAsserted(pin int) (bool, error) {
	f.mu.Lock()
	if f.ReadError != nil {
		err := f.ReadError
		f.mu.Unlock()
		return false, err
	}
	level := f.levels[pin]
	hook := f.AfterRead
	f.mu.Unlock()

	if hook != nil {
		hook(pin, level)
	}
	return level, nil
}

// Watch registers h for pin.
func (f *FakeWatcher) Watch(pin int, debounce time.Duration, h Handler) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.WatchErrors[pin]; err != nil {
		return err
	}
	if _, ok := f.handlers[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}
	f.handlers[pin] = h
	f.debounce[pin] = debounce
	return nil
}

// Emit sets the level of pin and delivers the edge to its handler, as the
// hardware would. It returns an error if the pin is not watched.
func (f *FakeWatcher) Emit(pin int, asserted bool, at time.Time) error {
	f.mu.Lock()
	h, ok := f.handlers[pin]
	f.levels[pin] = asserted
	f.mu.Unlock()

	if !ok {
		return errors.New("pin not watched")
	}
	h(Event{Pin: pin, Asserted: asserted, Time: at})
	return nil
}

// Watched reports whether pin has a handler and the debounce it was given.
func (f *FakeWatcher) Watched(pin int) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[pin]
	return f.debounce[pin], ok
}

// Close marks the watcher as closed.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
