package pressure

import (
	"strings"

	"github.com/pkg/errors"
)

// OutputKind selects which quantity a sensor reports.
type OutputKind int

// Supported output kinds. The zero value is not a valid kind.
const (
	KindUnknown OutputKind = iota
	KindVoltage
	KindDigitalCount
	KindPressure
	KindLiquidLevel
	KindVolume
)

// Unit is the pressure scale calibration values are entered in and pressure
// readings are displayed in.
type Unit int

// Supported pressure units.
const (
	KPa Unit = iota
	PSI
)

// UnitNotAvailable is the label reported for an unsupported output kind.
const UnitNotAvailable = "N/A"

var (
	// ErrUnsupportedOutputKind is returned for output kinds outside the enumerated set.
	ErrUnsupportedOutputKind = errors.New("unsupported output kind")
	// ErrUnsupportedUnit is returned for pressure units other than kPa and PSI.
	ErrUnsupportedUnit = errors.New("unsupported pressure unit")
)

var kindNames = map[OutputKind]string{
	KindVoltage:      "Voltage",
	KindDigitalCount: "Digits",
	KindPressure:     "Pressure",
	KindLiquidLevel:  "Liquid Level",
	KindVolume:       "Volume",
}

// Accepted spellings after normalization (lower case, no separators).
var kindAliases = map[string]OutputKind{
	"voltage":      KindVoltage,
	"volts":        KindVoltage,
	"digits":       KindDigitalCount,
	"digitalcount": KindDigitalCount,
	"counts":       KindDigitalCount,
	"raw":          KindDigitalCount,
	"pressure":     KindPressure,
	"liquidlevel":  KindLiquidLevel,
	"level":        KindLiquidLevel,
	"volume":       KindVolume,
}

// ParseOutputKind parses both the property labels ("Liquid Level") and
// snake_case names ("liquid_level").
func ParseOutputKind(s string) (OutputKind, error) {
	k, ok := kindAliases[normalize(s)]
	if !ok {
		return KindUnknown, errors.Wrapf(ErrUnsupportedOutputKind, "%q", s)
	}
	return k, nil
}

// Valid reports whether k is one of the enumerated kinds.
func (k OutputKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

func (k OutputKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Label returns the unit label shown alongside a reading of kind k.
func (k OutputKind) Label(u Unit) string {
	switch k {
	case KindVoltage:
		return "V"
	case KindDigitalCount:
		return "Bit"
	case KindPressure:
		switch u {
		case KPa:
			return "kPa"
		case PSI:
			return "PSI"
		}
	case KindLiquidLevel:
		return "in"
	case KindVolume:
		return "Gal"
	}
	return UnitNotAvailable
}

// MarshalText implements encoding.TextMarshaler.
func (k OutputKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedOutputKind, "%d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *OutputKind) UnmarshalText(text []byte) error {
	parsed, err := ParseOutputKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseUnit parses "kPa" or "PSI", case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch normalize(s) {
	case "kpa":
		return KPa, nil
	case "psi":
		return PSI, nil
	}
	return KPa, errors.Wrapf(ErrUnsupportedUnit, "%q", s)
}

// Valid reports whether u is kPa or PSI.
func (u Unit) Valid() bool {
	return u == KPa || u == PSI
}

func (u Unit) String() string {
	switch u {
	case KPa:
		return "kPa"
	case PSI:
		return "PSI"
	}
	return "Unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (u Unit) MarshalText() ([]byte, error) {
	if !u.Valid() {
		return nil, errors.Wrapf(ErrUnsupportedUnit, "%d", int(u))
	}
	return []byte(u.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Unit) UnmarshalText(text []byte) error {
	parsed, err := ParseUnit(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}
