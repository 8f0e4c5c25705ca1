package adc

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrReleased is returned when a released handle is used.
var ErrReleased = errors.New("adc handle released")

// Shared owns one physical device used by several sensors. The device is
// opened on the first Acquire and closed when the last handle is released.
// Reads through any handle are serialized.
type Shared struct {
	open func() (Reader, error)

	mu   sync.Mutex // guards dev and refs
	dev  Reader
	refs int

	readMu sync.Mutex // serializes channel reads on dev
}

// NewShared creates a shared device opened lazily with open.
func NewShared(open func() (Reader, error)) *Shared {
	return &Shared{open: open}
}

// Acquire returns a handle to the device, opening it if needed.
func (s *Shared) Acquire() (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dev == nil {
		dev, err := s.open()
		if err != nil {
			return nil, errors.Wrap(ErrAcquisition, err.Error())
		}
		s.dev = dev
	}
	s.refs++

	return &Handle{shared: s, dev: s.dev}, nil
}

// Refs returns the number of outstanding handles.
func (s *Shared) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

func (s *Shared) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs--
	if s.refs > 0 {
		return nil
	}

	// Wait for an in-flight read before closing the device.
	s.readMu.Lock()
	defer s.readMu.Unlock()

	dev := s.dev
	s.dev = nil
	s.refs = 0
	if err := dev.Close(); err != nil {
		return errors.Wrap(err, "failed to close adc")
	}
	return nil
}

// Handle is one sensor's reference to a Shared device.
type Handle struct {
	shared *Shared
	dev    Reader

	mu       sync.Mutex
	released bool
}

// ReadChannel reads one code, serialized with every other handle of the device.
func (h *Handle) ReadChannel(ctx context.Context, channel int, gain Gain) (int16, error) {
	h.mu.Lock()
	released := h.released
	h.mu.Unlock()
	if released {
		return 0, ErrReleased
	}

	h.shared.readMu.Lock()
	defer h.shared.readMu.Unlock()

	return h.dev.ReadChannel(ctx, channel, gain)
}

// Release drops the reference. Releasing twice is a no-op.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	return h.shared.release()
}

// Close is Release, so a Handle can be used as a Reader.
func (h *Handle) Close() error {
	return h.Release()
}
