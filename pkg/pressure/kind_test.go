package pressure

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputKind(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputKind
		wantErr bool
	}{
		{in: "Voltage", want: KindVoltage},
		{in: "Digits", want: KindDigitalCount},
		{in: "Pressure", want: KindPressure},
		{in: "Liquid Level", want: KindLiquidLevel},
		{in: "Volume", want: KindVolume},
		{in: "liquid_level", want: KindLiquidLevel},
		{in: "digital-count", want: KindDigitalCount},
		{in: "  LEVEL ", want: KindLiquidLevel},
		{in: "Temperature", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputKind(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnsupportedOutputKind))
				assert.Equal(t, KindUnknown, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOutputKind_Label(t *testing.T) {
	tests := []struct {
		name string
		kind OutputKind
		unit Unit
		want string
	}{
		{"voltage", KindVoltage, KPa, "V"},
		{"digits", KindDigitalCount, PSI, "Bit"},
		{"pressure kPa", KindPressure, KPa, "kPa"},
		{"pressure PSI", KindPressure, PSI, "PSI"},
		{"pressure bad unit", KindPressure, Unit(3), "N/A"},
		{"level", KindLiquidLevel, KPa, "in"},
		{"volume", KindVolume, KPa, "Gal"},
		{"unknown", KindUnknown, KPa, "N/A"},
		{"out of range", OutputKind(42), KPa, "N/A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.Label(tt.unit))
		})
	}
}

func TestOutputKind_Text(t *testing.T) {
	for kind, name := range kindNames {
		text, err := kind.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))

		var parsed OutputKind
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, kind, parsed)
	}

	_, err := KindUnknown.MarshalText()
	assert.Error(t, err)
	assert.False(t, KindUnknown.Valid())
}

func TestParseUnit(t *testing.T) {
	u, err := ParseUnit("kPa")
	require.NoError(t, err)
	assert.Equal(t, KPa, u)

	u, err = ParseUnit("psi")
	require.NoError(t, err)
	assert.Equal(t, PSI, u)

	_, err = ParseUnit("bar")
	assert.True(t, errors.Is(err, ErrUnsupportedUnit))

	var parsed Unit
	require.NoError(t, parsed.UnmarshalText([]byte("PSI")))
	assert.Equal(t, PSI, parsed)
	assert.Equal(t, "PSI", parsed.String())
}
