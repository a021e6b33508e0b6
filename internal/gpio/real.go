//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealWatcher watches GPIO lines using the Linux GPIO character device.
type RealWatcher struct {
	chip *gpiocdev.Chip

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

// NewRealWatcher opens the named chip (e.g. "gpiochip0").
func NewRealWatcher(chipName string) (*RealWatcher, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	return &RealWatcher{
		chip:  chip,
		lines: make(map[int]*gpiocdev.Line),
	}, nil
}

// IsAsserted reads the current level of pin. Lines are pulled up, so a raw
// 0 means the button is held. A watched line is read in place; otherwise the
// line is requested for the duration of the read.
func (w *RealWatcher) IsAsserted(pin int) (bool, error) {
	w.mu.Lock()
	line, ok := w.lines[pin]
	w.mu.Unlock()

	if !ok {
		tmp, err := w.chip.RequestLine(pin, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			return false, fmt.Errorf("request pin %d: %w", pin, err)
		}
		defer tmp.Close()
		line = tmp
	}

	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v == 0, nil
}

// Watch requests pin as a pulled-up input with edge detection on both edges
// and kernel debounce, delivering each edge to h.
func (w *RealWatcher) Watch(pin int, debounce time.Duration, h Handler) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.lines[pin]; ok {
		return fmt.Errorf("pin %d already watched", pin)
	}

	handler := func(evt gpiocdev.LineEvent) {
		// The event timestamp is kernel monotonic time; use wall time for
		// the registry.
		h(Event{
			Pin:      evt.Offset,
			Asserted: evt.Type == gpiocdev.LineEventFallingEdge,
			Time:     time.Now(),
		})
	}

	line, err := w.chip.RequestLine(pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithBothEdges,
		gpiocdev.WithDebounce(debounce),
		gpiocdev.WithEventHandler(handler),
	)
	if err != nil {
		return fmt.Errorf("request pin %d: %w", pin, err)
	}
	w.lines[pin] = line
	return nil
}

// Close releases every watched line and the chip.
func (w *RealWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var errs []error
	for pin, line := range w.lines {
		errs = append(errs, releaseLine(pin, line)...)
		delete(w.lines, pin)
	}
	if w.chip != nil {
		if err := w.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		w.chip = nil
	}
	return errors.Join(errs...)
}

// lineCloser is the part of a requested line that releaseLine needs.
type lineCloser interface {
	Reconfigure(options ...gpiocdev.LineConfigOption) error
	Close() error
}

// releaseLine leaves pin as a pulled-up input before closing it, so the
// button wiring sees the same bias during the next boot as while running.
// Both steps are attempted; their errors are returned.
func releaseLine(pin int, line lineCloser) []error {
	var errs []error
	if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullUp); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
	}
	if err := line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
	}
	return errs
}
