package adc

import (
	"context"
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/itohio/gotank/pkg/config"
)

// Mock simulates a pressure transducer on every channel for testing and
// development. The voltage ramps up to MaxVoltage (filling) and back down to
// zero (draining), with deterministic noise added.
type Mock struct {
	cfg *config.MockConfig

	mu        sync.Mutex
	closed    bool
	reads     int
	voltage   float64
	direction float64
}

// NewMock creates a new simulated ADC.
func NewMock(cfg *config.MockConfig) *Mock {
	if cfg == nil {
		cfg = &config.MockConfig{
			Voltage:    0.5,
			MaxVoltage: 4.0,
			Ramp:       0.01,
			NoiseLevel: 0.001,
		}
	}

	return &Mock{
		cfg:       cfg,
		voltage:   cfg.Voltage,
		direction: 1,
	}
}

// ReadChannel returns the simulated code for the current voltage and advances
// the simulation.
func (m *Mock) ReadChannel(ctx context.Context, channel int, gain Gain) (int16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkChannel(channel); err != nil {
		return 0, errors.Wrap(ErrAcquisition, err.Error())
	}
	fullScale, err := gain.FullScale()
	if err != nil {
		return 0, errors.Wrap(ErrAcquisition, err.Error())
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, errors.Wrap(ErrAcquisition, "mock closed")
	}

	m.reads++
	if m.cfg.FailEvery > 0 && m.reads%m.cfg.FailEvery == 0 {
		return 0, errors.Wrapf(ErrAcquisition, "simulated failure on read %d", m.reads)
	}

	v := m.voltage + m.noise()
	m.step()

	return voltageToCode(v, fullScale), nil
}

// Reads returns the number of reads performed, including failed ones.
func (m *Mock) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Close stops the simulated device.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// step advances the fill/drain ramp. Caller holds m.mu.
func (m *Mock) step() {
	m.voltage += m.direction * m.cfg.Ramp
	if m.voltage >= m.cfg.MaxVoltage {
		m.voltage = m.cfg.MaxVoltage
		m.direction = -1
	} else if m.voltage <= 0 {
		m.voltage = 0
		m.direction = 1
	}
}

// noise returns deterministic pseudo noise. Caller holds m.mu.
func (m *Mock) noise() float64 {
	n := float64(m.reads)
	return (math.Sin(n*0.7) + math.Cos(n*1.3)) * m.cfg.NoiseLevel * 0.5
}

// voltageToCode converts a voltage to a signed 16-bit code, saturating like
// the converter does outside its range.
func voltageToCode(v, fullScale float64) int16 {
	code := math.Round(v / fullScale * math.MaxInt16)
	if code > math.MaxInt16 {
		return math.MaxInt16
	}
	if code < math.MinInt16 {
		return math.MinInt16
	}
	return int16(code)
}
