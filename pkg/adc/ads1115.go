package adc

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"
)

const (
	// DefaultI2CAddress is the ADS1115 address with ADDR tied to GND.
	DefaultI2CAddress = 0x48

	ads1115DataRate = 128 * physic.Hertz
)

var ads1115Channels = [Channels]ads1x15.Channel{
	ads1x15.Channel0,
	ads1x15.Channel1,
	ads1x15.Channel2,
	ads1x15.Channel3,
}

type pinKey struct {
	channel int
	gain    Gain
}

// ADS1115 reads single-ended channels of a TI ADS1115 on an I²C bus.
// Register access is done by the periph.io driver.
type ADS1115 struct {
	mu   sync.Mutex
	bus  i2c.BusCloser
	dev  *ads1x15.Dev
	pins map[pinKey]ads1x15.PinADC
}

// OpenADS1115 initializes the host drivers and opens the device at addr on
// the named bus ("" selects the first bus).
func OpenADS1115(busName string, addr uint16) (*ADS1115, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "failed to initialize periph host")
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open i2c bus %q", busName)
	}

	if addr == 0 {
		addr = DefaultI2CAddress
	}
	dev, err := ads1x15.NewADS1115(bus, &ads1x15.Opts{I2cAddress: addr})
	if err != nil {
		return nil, multierr.Append(errors.Wrapf(err, "failed to open ads1115 at 0x%02x", addr), bus.Close())
	}

	return &ADS1115{
		bus:  bus,
		dev:  dev,
		pins: make(map[pinKey]ads1x15.PinADC),
	}, nil
}

// ReadChannel performs a single conversion on the channel.
func (a *ADS1115) ReadChannel(ctx context.Context, channel int, gain Gain) (int16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkChannel(channel); err != nil {
		return 0, errors.Wrap(ErrAcquisition, err.Error())
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev == nil {
		return 0, errors.Wrap(ErrAcquisition, "ads1115 closed")
	}

	pin, err := a.pin(channel, gain)
	if err != nil {
		return 0, errors.Wrap(ErrAcquisition, err.Error())
	}

	sample, err := pin.Read()
	if err != nil {
		return 0, errors.Wrapf(ErrAcquisition, "channel %d: %v", channel, err)
	}

	return int16(sample.Raw), nil
}

// pin returns the cached pin for channel and gain. Caller holds a.mu.
func (a *ADS1115) pin(channel int, gain Gain) (ads1x15.PinADC, error) {
	key := pinKey{channel: channel, gain: gain}
	if pin, ok := a.pins[key]; ok {
		return pin, nil
	}

	fullScale, err := gain.FullScale()
	if err != nil {
		return nil, err
	}

	maxVoltage := physic.ElectricPotential(fullScale * float64(physic.Volt))
	pin, err := a.dev.PinForChannel(ads1115Channels[channel], maxVoltage, ads1115DataRate, ads1x15.BestQuality)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to configure channel %d", channel)
	}

	a.pins[key] = pin
	return pin, nil
}

// Close halts every configured pin and closes the bus.
func (a *ADS1115) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev == nil {
		return nil
	}

	var err error
	for _, pin := range a.pins {
		err = multierr.Append(err, pin.Halt())
	}
	err = multierr.Append(err, a.bus.Close())

	a.pins = nil
	a.dev = nil

	return err
}
