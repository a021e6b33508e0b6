// Package gpio delivers debounced edge events from momentary-contact inputs.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// DefaultChip is the GPIO chip on a Raspberry Pi.
const DefaultChip = "gpiochip0"

// DefaultDebounce is the kernel debounce period applied to every line.
const DefaultDebounce = 50 * time.Millisecond

// Event is a debounced transition on one input.
// Inputs are pulled up, so a falling edge means the button is held.
type Event struct {
	Pin      int
	Asserted bool // true on falling edge, false on rising edge
	Time     time.Time
}

// Handler receives events. It is called on a library goroutine and must not
// block for long.
type Handler func(Event)

// Watcher reads input states and delivers edge events.
type Watcher interface {
	// IsAsserted returns whether the input is currently held.
	IsAsserted(pin int) (bool, error)

	// Watch starts delivering edges for pin to h. Events for one pin arrive
	// in order; events for different pins may arrive concurrently.
	Watch(pin int, debounce time.Duration, h Handler) error

	// Close releases GPIO resources.
	Close() error
}
