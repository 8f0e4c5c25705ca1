package pressure

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// barForLevel inverts the level formula without the sensor height offset.
func barForLevel(levelInches float64) float64 {
	return levelInches * MillimetersPerInch * Gravity / 100000
}

func TestCodeToVoltage(t *testing.T) {
	tests := []struct {
		name string
		code int16
		rng  Range
		want float64
	}{
		{
			name: "zero code",
			code: 0,
			rng:  DefaultRange,
			want: 0,
		},
		{
			name: "full scale",
			code: 32767,
			rng:  DefaultRange,
			want: 4.096,
		},
		{
			name: "negative full scale",
			code: -32767,
			rng:  DefaultRange,
			want: -4.096,
		},
		{
			name: "gain 2 range",
			code: 32767,
			rng:  Range{FullScaleVolts: 2.048, MaxCode: 32767},
			want: 2.048,
		},
		{
			name: "one LSB at gain 1",
			code: 1,
			rng:  DefaultRange,
			want: 4.096 / 32767,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CodeToVoltage(tt.code, tt.rng), 1e-9)
		})
	}
}

func TestToBar(t *testing.T) {
	assert.InDelta(t, 1.0, ToBar(100, KPa), 1e-12)
	assert.InDelta(t, 1.0, ToBar(14.5038, PSI), 1e-12)
	assert.InDelta(t, 0.0, ToBar(0, PSI), 1e-12)
}

func TestPSIRoundTrip(t *testing.T) {
	for _, kpa := range []float64{0, 1, 6.5, 10, 101.325, 250, -3.2} {
		assert.InDelta(t, kpa, FromPSI(ToPSI(kpa)), 1e-6, "kPa %v", kpa)
	}
	assert.InDelta(t, 1.45, ToPSI(10), 1e-12)
}

func TestLiquidLevel(t *testing.T) {
	t.Run("zero pressure", func(t *testing.T) {
		assert.Equal(t, 0.0, LiquidLevel(0, 5))
	})

	t.Run("one bar of water", func(t *testing.T) {
		want := (1/Gravity)*100000/MillimetersPerInch + 5
		assert.InDelta(t, want, LiquidLevel(1, 5), 1e-9)
	})

	t.Run("non-negative for non-negative pressure", func(t *testing.T) {
		for _, bar := range []float64{0, 1e-6, 0.001, 0.01, 0.5, 2} {
			assert.GreaterOrEqual(t, LiquidLevel(bar, 3), 0.0, "bar %v", bar)
		}
	})

	t.Run("below noise floor has no offset", func(t *testing.T) {
		bar := barForLevel(0.3)
		assert.InDelta(t, 0.3, LiquidLevel(bar, 10), 1e-9)
	})
}

func TestLiquidLevel_NoiseFloorDiscontinuity(t *testing.T) {
	const height = 7.25

	above := LiquidLevel(barForLevel(0.490001), height)
	below := LiquidLevel(barForLevel(0.489999), height)
	assert.InDelta(t, height, above-below, 1e-5)

	assert.InDelta(t, height, offsetLevel(0.490001, height)-offsetLevel(0.489999, height), 1e-5)
	assert.Equal(t, LevelNoiseFloor, offsetLevel(LevelNoiseFloor, height), "threshold itself is not offset")
}

func TestVolume(t *testing.T) {
	tests := []struct {
		name     string
		diameter float64
		level    float64
		want     float64
	}{
		{
			name:     "zero diameter",
			diameter: 0,
			level:    40,
			want:     0,
		},
		{
			name:     "zero level",
			diameter: 16,
			level:    0,
			want:     0,
		},
		{
			name:     "one gallon",
			diameter: 10,
			level:    CubicInchesPerGallon / (Pi * 25),
			want:     1,
		},
		{
			name:     "16in kettle 10in deep",
			diameter: 16,
			level:    10,
			want:     Pi * 64 * 10 / 231,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Volume(tt.diameter, tt.level), 1e-9)
		})
	}
}

func TestConverter_Convert(t *testing.T) {
	cal, err := NewCalibration(Point{Voltage: 0, Pressure: 0}, Point{Voltage: 5, Pressure: 10}, KPa)
	require.NoError(t, err)

	conv := NewConverter(cal, KPa, DefaultRange, Geometry{SensorHeight: 2, KettleDiameter: 16})
	s := conv.Convert(32767)

	wantLevel := (0.08192/Gravity)*100000/MillimetersPerInch + 2
	assert.Equal(t, int16(32767), s.Code)
	assert.InDelta(t, 4.096, s.Voltage, 1e-9)
	assert.InDelta(t, 8.192, s.PressureKPa, 1e-9)
	assert.InDelta(t, 0.08192, s.PressureBar, 1e-9)
	assert.InDelta(t, wantLevel, s.LevelInches, 1e-6)
	assert.InDelta(t, Pi*64*wantLevel/231, s.VolumeGallons, 1e-6)
}

func TestConverter_ConvertPSIQuirk(t *testing.T) {
	cal, err := NewCalibration(Point{Voltage: 0, Pressure: 0}, Point{Voltage: 4.096, Pressure: 100}, PSI)
	require.NoError(t, err)

	conv := NewConverter(cal, PSI, DefaultRange, Geometry{})
	assert.Equal(t, PSI, conv.Unit())

	s := conv.Convert(32767)
	assert.InDelta(t, 14.5, s.PressureKPa, 1e-9)
	assert.InDelta(t, 14.5/BarToPSI, s.PressureBar, 1e-12)
}

func TestConverter_PSIPressureReading(t *testing.T) {
	cal, err := NewCalibration(Point{Voltage: 0, Pressure: 0}, Point{Voltage: 5, Pressure: 10}, PSI)
	require.NoError(t, err)

	conv := NewConverter(cal, PSI, Range{FullScaleVolts: 5, MaxCode: 32767}, Geometry{})
	r, err := conv.Convert(32767).Reading(KindPressure, PSI)
	require.NoError(t, err)

	// The PSI scaling is applied once, by the calibration.
	assert.Equal(t, "1.450000", r.Value)
	assert.Equal(t, "PSI", r.Unit)
}

func TestConverter_ZeroDiameter(t *testing.T) {
	cal, err := NewCalibration(Point{Voltage: 0, Pressure: 0}, Point{Voltage: 5, Pressure: 10}, KPa)
	require.NoError(t, err)

	conv := NewConverter(cal, KPa, DefaultRange, Geometry{SensorHeight: 4})
	for _, code := range []int16{0, 100, 16000, 32767} {
		assert.Equal(t, 0.0, conv.Convert(code).VolumeGallons, "code %d", code)
	}
}

func TestSample_Reading(t *testing.T) {
	s := Sample{
		Code:          12345,
		Voltage:       1.5432101,
		PressureKPa:   10,
		LevelInches:   12.3456789,
		VolumeGallons: 3.25,
	}

	tests := []struct {
		name      string
		kind      OutputKind
		unit      Unit
		wantValue string
		wantUnit  string
	}{
		{"voltage", KindVoltage, KPa, "1.543210", "V"},
		{"digital count", KindDigitalCount, KPa, "12345", "Bit"},
		{"pressure kPa", KindPressure, KPa, "10.000000", "kPa"},
		{"pressure PSI", KindPressure, PSI, "10.000000", "PSI"},
		{"liquid level", KindLiquidLevel, PSI, "12.345679", "in"},
		{"volume", KindVolume, KPa, "3.250000", "Gal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := s.Reading(tt.kind, tt.unit)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, r.Kind)
			assert.Equal(t, tt.wantValue, r.Value)
			assert.Equal(t, tt.wantUnit, r.Unit)
		})
	}
}

func TestSample_ReadingNegativeCode(t *testing.T) {
	r, err := Sample{Code: -12}.Reading(KindDigitalCount, KPa)
	require.NoError(t, err)
	assert.Equal(t, "-12 Bit", r.String())
}

func TestSample_ReadingUnsupported(t *testing.T) {
	r, err := Sample{Voltage: 1}.Reading(KindUnknown, KPa)
	assert.True(t, errors.Is(err, ErrUnsupportedOutputKind))
	assert.Equal(t, UnitNotAvailable, r.Unit)
	assert.Empty(t, r.Value)

	r, err = Sample{PressureKPa: 1}.Reading(KindPressure, Unit(9))
	assert.True(t, errors.Is(err, ErrUnsupportedUnit))
	assert.Equal(t, UnitNotAvailable, r.Unit)
	assert.Empty(t, r.Value)
}
