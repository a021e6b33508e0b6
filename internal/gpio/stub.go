//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chipName string) (*RealWatcher, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// IsAsserted is not implemented on non-Linux platforms.
func (w *RealWatcher) IsAsserted(pin int) (bool, error) {
	return false, errors.New("gpio: not supported")
}

// Watch is not implemented on non-Linux platforms.
func (w *RealWatcher) Watch(pin int, debounce time.Duration, h Handler) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}
