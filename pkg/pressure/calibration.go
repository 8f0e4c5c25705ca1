package pressure

import (
	"math"

	"github.com/pkg/errors"
)

// ErrInvalidCalibration is returned when the calibration points do not define a line.
var ErrInvalidCalibration = errors.New("invalid calibration")

// Point is one end of the assumed linear sensor response.
// Pressure is expressed in the unit the calibration is entered in.
type Point struct {
	Voltage  float64
	Pressure float64
}

// Calibration maps sensor voltage to pressure in kPa: P = Slope*V + Intercept.
type Calibration struct {
	Slope     float64
	Intercept float64
}

// NewCalibration derives the voltage to pressure mapping from two points.
//
// In PSI mode the entered pressures are scaled by KPaToPSI before the slope is
// computed. The intercept only compensates a positive low voltage
// (-low.Voltage * slope); a non-zero low pressure is not added.
func NewCalibration(low, high Point, unit Unit) (Calibration, error) {
	if !unit.Valid() {
		return Calibration{}, errors.Wrapf(ErrUnsupportedUnit, "%d", int(unit))
	}
	for _, v := range []float64{low.Voltage, low.Pressure, high.Voltage, high.Pressure} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Calibration{}, errors.Wrapf(ErrInvalidCalibration, "non-finite calibration value %v", v)
		}
	}

	span := high.Voltage - low.Voltage
	if span == 0 {
		return Calibration{}, errors.Wrapf(ErrInvalidCalibration, "voltage low and high are both %g V", low.Voltage)
	}

	pLow := enteredPressure(low.Pressure, unit)
	pHigh := enteredPressure(high.Pressure, unit)

	slope := (pHigh - pLow) / span
	var intercept float64
	if low.Voltage > 0 {
		intercept = -low.Voltage * slope
	}

	return Calibration{Slope: slope, Intercept: intercept}, nil
}

// Pressure returns the calibrated pressure in kPa for the given voltage.
func (c Calibration) Pressure(voltage float64) float64 {
	return c.Slope*voltage + c.Intercept
}

func enteredPressure(v float64, unit Unit) float64 {
	if unit == PSI {
		return v * KPaToPSI
	}
	return v
}
