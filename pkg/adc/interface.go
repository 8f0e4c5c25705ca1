// Package adc provides ADC backends delivering raw signed 16-bit codes per
// input channel, and a shared handle serializing access to one device.
package adc

import (
	"context"

	"github.com/pkg/errors"

	"github.com/itohio/gotank/pkg/pressure"
)

// Channels is the number of single-ended inputs of an ADS1x15.
const Channels = 4

// ErrAcquisition wraps every failure to obtain a sample.
var ErrAcquisition = errors.New("adc acquisition failed")

// Reader defines the interface for ADC devices (real or mocked).
type Reader interface {
	// ReadChannel returns one raw code for the channel. It may block on bus I/O.
	ReadChannel(ctx context.Context, channel int, gain Gain) (int16, error)
	Close() error
}

// Ensure backends implement Reader.
var (
	_ Reader = (*ADS1115)(nil)
	_ Reader = (*Serial)(nil)
	_ Reader = (*Mock)(nil)
	_ Reader = (*Handle)(nil)
)

// Gain is the ADS1x15 programmable gain. Full-scale range is 4.096 V / gain.
type Gain float64

// Supported gains.
const (
	GainTwoThirds Gain = 2.0 / 3.0
	GainOne       Gain = 1
	GainTwo       Gain = 2
	GainFour      Gain = 4
	GainEight     Gain = 8
	GainSixteen   Gain = 16
)

// FullScale returns the full-scale input range in volts.
func (g Gain) FullScale() (float64, error) {
	return pressure.GainFullScale(float64(g))
}

func checkChannel(channel int) error {
	if channel < 0 || channel >= Channels {
		return errors.Errorf("channel %d out of range 0-%d", channel, Channels-1)
	}
	return nil
}
