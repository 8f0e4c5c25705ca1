// Package pressure converts raw pressure-transducer ADC codes into voltage,
// pressure, hydrostatic liquid level and tank volume.
package pressure

// Physical and conversion constants. They never vary per sensor.
const (
	// Gravity is the gravitational acceleration used by the level formula (m/s²).
	// The working fluid is assumed to be water at 4 °C (relative density 1.000).
	Gravity = 9.807

	// Pi as used by the volume formula. Not math.Pi.
	Pi = 3.1415

	// KPaToPSI converts kPa to PSI. Its inverse is division by the same factor.
	KPaToPSI = 0.145

	// BarToPSI is the divisor applied to pressure in PSI mode when deriving bar.
	BarToPSI = 14.5038

	// KPaPerBar is the divisor applied to pressure in kPa mode when deriving bar.
	KPaPerBar = 100

	// MillimetersPerInch converts the level from mm to inches.
	MillimetersPerInch = 25.4

	// CubicInchesPerGallon is the volume of one US gallon.
	CubicInchesPerGallon = 231

	// LevelNoiseFloor is the level (in) above which the sensor height offset
	// is added to the reported liquid level.
	LevelNoiseFloor = 0.49

	// DefaultFullScaleVolts is the ADS1115 full-scale range at gain 1.
	DefaultFullScaleVolts = 4.096

	// DefaultMaxCode is the maximum positive code of a signed 16-bit ADC.
	DefaultMaxCode = 32767
)
