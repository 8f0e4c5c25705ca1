package pressure

import (
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Reading is one formatted value emitted by a sensor.
type Reading struct {
	SensorID  string     `json:"sensor_id,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Kind      OutputKind `json:"kind"`
	Value     string     `json:"value"`
	Unit      string     `json:"unit"`
}

func (r Reading) String() string {
	return r.Value + " " + r.Unit
}

// Reading formats the quantity selected by kind. Decimal quantities use six
// fixed decimal places, digital counts are reported as-is.
func (s Sample) Reading(kind OutputKind, unit Unit) (Reading, error) {
	r := Reading{Kind: kind, Unit: kind.Label(unit)}

	switch kind {
	case KindVoltage:
		r.Value = formatFixed(s.Voltage)
	case KindDigitalCount:
		r.Value = strconv.Itoa(int(s.Code))
	case KindPressure:
		// The calibration already carries the PSI scaling, so the
		// calibrated value is reported in either unit.
		if !unit.Valid() {
			return r, errors.Wrapf(ErrUnsupportedUnit, "%d", int(unit))
		}
		r.Value = formatFixed(s.PressureKPa)
	case KindLiquidLevel:
		r.Value = formatFixed(s.LevelInches)
	case KindVolume:
		r.Value = formatFixed(s.VolumeGallons)
	default:
		return r, errors.Wrapf(ErrUnsupportedOutputKind, "%d", int(kind))
	}

	return r, nil
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
