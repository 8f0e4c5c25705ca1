package pressure

import (
	"math"

	"github.com/pkg/errors"
)

// ErrUnsupportedGain is returned for a PGA gain the ADS1x15 does not offer.
var ErrUnsupportedGain = errors.New("unsupported adc gain")

// Gains lists the ADS1x15 PGA settings.
var Gains = []float64{2.0 / 3.0, 1, 2, 4, 8, 16}

// GainFullScale returns the full-scale input range in volts of an ADS1x15
// at the given PGA gain: DefaultFullScaleVolts / gain. Gains are matched
// with a 1e-3 tolerance so 0.667 selects 2/3.
func GainFullScale(gain float64) (float64, error) {
	for _, known := range Gains {
		if math.Abs(gain-known) < 1e-3 {
			return DefaultFullScaleVolts / known, nil
		}
	}
	return 0, errors.Wrapf(ErrUnsupportedGain, "%v", gain)
}
