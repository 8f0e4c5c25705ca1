package adc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gotank/pkg/pressure"
)

// countingReader records concurrent reads and closes.
type countingReader struct {
	active    atomic.Int32
	maxActive atomic.Int32
	reads     atomic.Int32
	closes    atomic.Int32
}

func (r *countingReader) ReadChannel(ctx context.Context, channel int, gain Gain) (int16, error) {
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		prev := r.maxActive.Load()
		if n <= prev || r.maxActive.CompareAndSwap(prev, n) {
			break
		}
	}
	time.Sleep(time.Millisecond)
	r.reads.Add(1)
	return int16(channel), nil
}

func (r *countingReader) Close() error {
	r.closes.Add(1)
	return nil
}

func TestShared_OpensOnceAndClosesOnLastRelease(t *testing.T) {
	dev := &countingReader{}
	opens := 0
	shared := NewShared(func() (Reader, error) {
		opens++
		return dev, nil
	})

	h1, err := shared.Acquire()
	require.NoError(t, err)
	h2, err := shared.Acquire()
	require.NoError(t, err)

	assert.Equal(t, 1, opens)
	assert.Equal(t, 2, shared.Refs())

	require.NoError(t, h1.Release())
	assert.Equal(t, int32(0), dev.closes.Load(), "device closed while still referenced")
	assert.Equal(t, 1, shared.Refs())

	require.NoError(t, h2.Release())
	assert.Equal(t, int32(1), dev.closes.Load())
	assert.Equal(t, 0, shared.Refs())

	// Next acquire reopens the device.
	h3, err := shared.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, opens)
	require.NoError(t, h3.Close())
}

func TestShared_DoubleReleaseIsNoop(t *testing.T) {
	dev := &countingReader{}
	shared := NewShared(func() (Reader, error) { return dev, nil })

	h1, err := shared.Acquire()
	require.NoError(t, err)
	h2, err := shared.Acquire()
	require.NoError(t, err)

	require.NoError(t, h1.Release())
	require.NoError(t, h1.Release())
	assert.Equal(t, 1, shared.Refs())
	assert.Equal(t, int32(0), dev.closes.Load())

	require.NoError(t, h2.Release())
	assert.Equal(t, int32(1), dev.closes.Load())
}

func TestShared_ReadAfterRelease(t *testing.T) {
	shared := NewShared(func() (Reader, error) { return &countingReader{}, nil })

	h, err := shared.Acquire()
	require.NoError(t, err)
	require.NoError(t, h.Release())

	_, err = h.ReadChannel(context.Background(), 0, GainOne)
	assert.True(t, errors.Is(err, ErrReleased))
}

func TestShared_OpenFailure(t *testing.T) {
	shared := NewShared(func() (Reader, error) { return nil, errors.New("no bus") })

	h, err := shared.Acquire()
	assert.Nil(t, h)
	assert.True(t, errors.Is(err, ErrAcquisition))
	assert.Equal(t, 0, shared.Refs())
}

func TestShared_SerializesReads(t *testing.T) {
	dev := &countingReader{}
	shared := NewShared(func() (Reader, error) { return dev, nil })

	const sensors = 4
	const readsPerSensor = 10

	var wg sync.WaitGroup
	for ch := 0; ch < sensors; ch++ {
		h, err := shared.Acquire()
		require.NoError(t, err)

		wg.Add(1)
		go func(ch int, h *Handle) {
			defer wg.Done()
			defer h.Release()
			for i := 0; i < readsPerSensor; i++ {
				code, err := h.ReadChannel(context.Background(), ch, GainOne)
				assert.NoError(t, err)
				assert.Equal(t, int16(ch), code)
			}
		}(ch, h)
	}
	wg.Wait()

	assert.Equal(t, int32(sensors*readsPerSensor), dev.reads.Load())
	assert.Equal(t, int32(1), dev.maxActive.Load(), "reads overlapped")
	assert.Equal(t, int32(1), dev.closes.Load())
}

func TestGain_FullScale(t *testing.T) {
	tests := []struct {
		gain    Gain
		want    float64
		wantErr bool
	}{
		{gain: GainTwoThirds, want: 6.144},
		{gain: GainOne, want: 4.096},
		{gain: GainTwo, want: 2.048},
		{gain: GainFour, want: 1.024},
		{gain: GainEight, want: 0.512},
		{gain: GainSixteen, want: 0.256},
		{gain: Gain(0.6667), want: 6.144},
		{gain: Gain(3), wantErr: true},
		{gain: Gain(0), wantErr: true},
	}

	for _, tt := range tests {
		got, err := tt.gain.FullScale()
		if tt.wantErr {
			assert.ErrorIs(t, err, pressure.ErrUnsupportedGain, "gain %v", float64(tt.gain))
			continue
		}
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, "gain %v", float64(tt.gain))
	}
}
