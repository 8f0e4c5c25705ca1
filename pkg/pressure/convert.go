package pressure

// Range describes the ADC scaling: FullScaleVolts corresponds to MaxCode.
type Range struct {
	FullScaleVolts float64
	MaxCode        int
}

// DefaultRange is the ADS1115 range at gain 1.
var DefaultRange = Range{FullScaleVolts: DefaultFullScaleVolts, MaxCode: DefaultMaxCode}

// Geometry is the static vessel geometry, in inches.
type Geometry struct {
	SensorHeight   float64 // Sensor offset from the vessel bottom
	KettleDiameter float64
}

// Sample holds every quantity derived from one raw ADC code.
type Sample struct {
	Code          int16
	Voltage       float64 // V
	PressureKPa   float64 // Calibrated pressure, PSI-scaled in PSI mode
	PressureBar   float64
	LevelInches   float64
	VolumeGallons float64
}

// Converter turns raw codes into Samples. It is immutable and safe for
// concurrent use.
type Converter struct {
	cal      Calibration
	unit     Unit
	rng      Range
	geometry Geometry
}

// NewConverter creates a converter for one sensor configuration.
func NewConverter(cal Calibration, unit Unit, rng Range, geometry Geometry) *Converter {
	return &Converter{
		cal:      cal,
		unit:     unit,
		rng:      rng,
		geometry: geometry,
	}
}

// Unit returns the pressure unit the converter was configured with.
func (c *Converter) Unit() Unit {
	return c.unit
}

// Convert derives voltage, pressure, level and volume from a raw code.
func (c *Converter) Convert(code int16) Sample {
	voltage := CodeToVoltage(code, c.rng)
	kpa := c.cal.Pressure(voltage)
	bar := ToBar(kpa, c.unit)
	level := LiquidLevel(bar, c.geometry.SensorHeight)

	return Sample{
		Code:          code,
		Voltage:       voltage,
		PressureKPa:   kpa,
		PressureBar:   bar,
		LevelInches:   level,
		VolumeGallons: Volume(c.geometry.KettleDiameter, level),
	}
}

// CodeToVoltage scales a raw code to volts.
func CodeToVoltage(code int16, rng Range) float64 {
	return float64(code) * (rng.FullScaleVolts / float64(rng.MaxCode))
}

// ToBar converts the calibrated pressure to bar.
//
// In PSI mode the kPa value is divided by BarToPSI as if it were already PSI.
func ToBar(kpa float64, unit Unit) float64 {
	if unit == PSI {
		return kpa / BarToPSI
	}
	return kpa / KPaPerBar
}

// LiquidLevel returns the hydrostatic level in inches for a pressure in bar,
// H = P / (SG * G) with SG = 1. Levels above LevelNoiseFloor are offset by the
// sensor height.
func LiquidLevel(bar, sensorHeight float64) float64 {
	return offsetLevel((bar/Gravity)*100000/MillimetersPerInch, sensorHeight)
}

func offsetLevel(level, sensorHeight float64) float64 {
	if level > LevelNoiseFloor {
		return level + sensorHeight
	}
	return level
}

// Volume returns the liquid volume of a cylindrical kettle in US gallons.
// A zero diameter yields zero volume.
func Volume(diameter, levelInches float64) float64 {
	radius := diameter / 2
	return Pi * radius * radius * levelInches / CubicInchesPerGallon
}

// ToPSI converts kPa to PSI.
func ToPSI(kpa float64) float64 {
	return kpa * KPaToPSI
}

// FromPSI converts PSI to kPa. It is the exact inverse of ToPSI.
func FromPSI(psi float64) float64 {
	return psi / KPaToPSI
}
