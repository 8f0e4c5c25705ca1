package adc

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/itohio/gotank/pkg/config"
)

// Open opens the backend selected by cfg.ADC.Backend.
func Open(cfg *config.Config, logger *zap.Logger) (Reader, error) {
	switch cfg.ADC.Backend {
	case config.BackendADS1115:
		dev, err := OpenADS1115(cfg.ADC.I2CBus, cfg.ADC.I2CAddress)
		if err != nil {
			return nil, err
		}
		return dev, nil
	case config.BackendSerial:
		s := NewSerial(cfg.ADC.SerialPort, cfg.ADC.BaudRate, cfg.ADC.MaxAge, logger)
		if err := s.Connect(); err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMock:
		mockCfg := cfg.Mock
		return NewMock(&mockCfg), nil
	}
	return nil, errors.Errorf("unknown adc backend %q", cfg.ADC.Backend)
}

// NewSharedFromConfig returns a shared device that opens the configured
// backend on first use.
func NewSharedFromConfig(cfg *config.Config, logger *zap.Logger) *Shared {
	return NewShared(func() (Reader, error) {
		return Open(cfg, logger)
	})
}
