package config

import (
	"math"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/itohio/gotank/pkg/pressure"
)

// ADC backends supported by adc.Open.
const (
	BackendADS1115 = "ads1115"
	BackendSerial  = "serial"
	BackendMock    = "mock"
)

// Config represents the application configuration.
type Config struct {
	Sensor SensorConfig `yaml:"sensor"`
	ADC    ADCConfig    `yaml:"adc"`
	Loop   LoopConfig   `yaml:"loop"`
	Mock   MockConfig   `yaml:"mock"`
}

// SensorConfig contains the per-sensor properties entered by the user.
type SensorConfig struct {
	Channel        int                 `yaml:"channel"`         // ADS1x15 input, 0-3
	Output         pressure.OutputKind `yaml:"output"`          // Reported quantity
	PressureUnit   pressure.Unit       `yaml:"pressure_unit"`   // Unit of calibration pressures and pressure readings
	Calibration    CalibrationConfig   `yaml:"calibration"`     // Two point calibration
	SensorHeight   float64             `yaml:"sensor_height"`   // Sensor offset from the kettle bottom (in)
	KettleDiameter float64             `yaml:"kettle_diameter"` // Kettle diameter (in)
}

// CalibrationConfig contains the two calibration points.
// Use the Voltage and Digits outputs to find the voltages.
type CalibrationConfig struct {
	VoltageLow   float64 `yaml:"voltage_low"`
	VoltageHigh  float64 `yaml:"voltage_high"`
	PressureLow  float64 `yaml:"pressure_low"`
	PressureHigh float64 `yaml:"pressure_high"`
}

// ADCConfig contains the ADC scaling and backend selection.
type ADCConfig struct {
	Backend        string        `yaml:"backend"`
	FullScaleVolts float64       `yaml:"full_scale_volts"` // Serial bridge only, derived from Gain otherwise
	MaxCode        int           `yaml:"max_code"`
	Gain           float64       `yaml:"gain"` // PGA gain: 2/3, 1, 2, 4, 8 or 16
	I2CBus         string        `yaml:"i2c_bus"`
	I2CAddress     uint16        `yaml:"i2c_address"`
	SerialPort     string        `yaml:"serial_port"`
	BaudRate       int           `yaml:"baud_rate"`
	MaxAge         time.Duration `yaml:"max_age"` // Oldest serial frame accepted
}

// LoopConfig contains sampling loop parameters.
type LoopConfig struct {
	Interval       time.Duration `yaml:"interval"`
	AverageSamples int           `yaml:"average_samples"` // Reads averaged per tick (0 = disabled)
}

// MockConfig contains simulated transducer parameters.
type MockConfig struct {
	Voltage    float64 `yaml:"voltage"`     // Starting voltage (V)
	MaxVoltage float64 `yaml:"max_voltage"` // Voltage at which the simulated tank starts draining (V)
	Ramp       float64 `yaml:"ramp"`        // Voltage change per read (V)
	NoiseLevel float64 `yaml:"noise_level"` // Noise amplitude (V)
	FailEvery  int     `yaml:"fail_every"`  // Fail every Nth read (0 = never)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Sensor: SensorConfig{
			Channel:      0,
			Output:       pressure.KindVoltage,
			PressureUnit: pressure.KPa,
			Calibration: CalibrationConfig{
				VoltageLow:   0,
				VoltageHigh:  5,
				PressureLow:  0,
				PressureHigh: 10,
			},
		},
		ADC: ADCConfig{
			Backend:        BackendADS1115,
			FullScaleVolts: pressure.DefaultFullScaleVolts,
			MaxCode:        pressure.DefaultMaxCode,
			Gain:           1,
			I2CAddress:     0x48,
			SerialPort:     "/dev/ttyACM0",
			BaudRate:       115200,
			MaxAge:         5 * time.Second,
		},
		Loop: LoopConfig{
			Interval:       3 * time.Second,
			AverageSamples: 0,
		},
		Mock: MockConfig{
			Voltage:    0.5,
			MaxVoltage: 4.0,
			Ramp:       0.01,
			NoiseLevel: 0.001,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrap(err, "failed to read config file")
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// FromAttributes builds a configuration from a host supplied attribute map,
// keyed like the YAML file. Values may be strings, as select properties are.
func FromAttributes(attrs map[string]interface{}) (*Config, error) {
	cfg := Default()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.TextUnmarshallerHookFunc(),
		),
		WeaklyTypedInput: true,
		TagName:          "yaml",
		Result:           cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create attribute decoder")
	}

	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "failed to decode attributes")
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}

// Validate reports every invalid field. The calibration line itself is
// checked by pressure.NewCalibration.
func (c *Config) Validate() error {
	var err error

	s := c.Sensor
	if s.Channel < 0 || s.Channel > 3 {
		err = multierr.Append(err, errors.Errorf("sensor.channel %d out of range 0-3", s.Channel))
	}
	if !s.Output.Valid() {
		err = multierr.Append(err, errors.Wrap(pressure.ErrUnsupportedOutputKind, "sensor.output"))
	}
	if !s.PressureUnit.Valid() {
		err = multierr.Append(err, errors.Wrap(pressure.ErrUnsupportedUnit, "sensor.pressure_unit"))
	}
	if !finiteNonNegative(s.SensorHeight) {
		err = multierr.Append(err, errors.Errorf("sensor.sensor_height %v must be a finite non-negative number", s.SensorHeight))
	}
	if !finiteNonNegative(s.KettleDiameter) {
		err = multierr.Append(err, errors.Errorf("sensor.kettle_diameter %v must be a finite non-negative number", s.KettleDiameter))
	}

	a := c.ADC
	if _, gainErr := pressure.GainFullScale(a.Gain); gainErr != nil {
		err = multierr.Append(err, errors.Wrap(gainErr, "adc.gain"))
	}
	if !c.gainScaled() && (!finiteNonNegative(a.FullScaleVolts) || a.FullScaleVolts == 0) {
		err = multierr.Append(err, errors.Errorf("adc.full_scale_volts %v must be positive", a.FullScaleVolts))
	}
	if a.MaxCode <= 0 {
		err = multierr.Append(err, errors.Errorf("adc.max_code %d must be positive", a.MaxCode))
	}

	if c.Loop.Interval <= 0 {
		err = multierr.Append(err, errors.Errorf("loop.interval %v must be positive", c.Loop.Interval))
	}
	if c.Loop.AverageSamples < 0 {
		err = multierr.Append(err, errors.Errorf("loop.average_samples %d must not be negative", c.Loop.AverageSamples))
	}

	return err
}

// Range returns the ADC scaling used by the converter. Backends that apply
// the PGA gain in hardware use the full scale of that gain.
func (c *Config) Range() pressure.Range {
	return pressure.Range{FullScaleVolts: c.fullScaleVolts(), MaxCode: c.ADC.MaxCode}
}

// gainScaled reports whether the backend scales its input by ADC.Gain.
// The serial bridge reports codes at whatever range its firmware uses.
func (c *Config) gainScaled() bool {
	return c.ADC.Backend != BackendSerial
}

func (c *Config) fullScaleVolts() float64 {
	if c.gainScaled() {
		if fs, err := pressure.GainFullScale(c.ADC.Gain); err == nil {
			return fs
		}
	}
	return c.ADC.FullScaleVolts
}

// Geometry returns the kettle geometry used by the converter.
func (c *Config) Geometry() pressure.Geometry {
	return pressure.Geometry{SensorHeight: c.Sensor.SensorHeight, KettleDiameter: c.Sensor.KettleDiameter}
}

// CalibrationPoints returns the low and high calibration points.
func (c *Config) CalibrationPoints() (low, high pressure.Point) {
	cal := c.Sensor.Calibration
	return pressure.Point{Voltage: cal.VoltageLow, Pressure: cal.PressureLow},
		pressure.Point{Voltage: cal.VoltageHigh, Pressure: cal.PressureHigh}
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.ADC.Backend == "" {
		c.ADC.Backend = def.ADC.Backend
	}
	if c.ADC.FullScaleVolts == 0 {
		c.ADC.FullScaleVolts = def.ADC.FullScaleVolts
	}
	if c.ADC.MaxCode == 0 {
		c.ADC.MaxCode = def.ADC.MaxCode
	}
	if c.ADC.Gain == 0 {
		c.ADC.Gain = def.ADC.Gain
	}
	if c.ADC.I2CAddress == 0 {
		c.ADC.I2CAddress = def.ADC.I2CAddress
	}
	if c.ADC.SerialPort == "" {
		c.ADC.SerialPort = def.ADC.SerialPort
	}
	if c.ADC.BaudRate == 0 {
		c.ADC.BaudRate = def.ADC.BaudRate
	}
	if c.ADC.MaxAge == 0 {
		c.ADC.MaxAge = def.ADC.MaxAge
	}
	c.ADC.FullScaleVolts = c.fullScaleVolts()

	if c.Loop.Interval == 0 {
		c.Loop.Interval = def.Loop.Interval
	}

	if c.Mock.MaxVoltage == 0 {
		c.Mock.MaxVoltage = def.Mock.MaxVoltage
	}
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
