// Package main is the tank sensor command line tool.
package main

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/itohio/gotank/pkg/adc"
	"github.com/itohio/gotank/pkg/config"
	"github.com/itohio/gotank/pkg/pressure"
	"github.com/itohio/gotank/pkg/report"
	"github.com/itohio/gotank/pkg/sensor"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagMock     = "mock"
	flagPort     = "port"
	flagChannel  = "channel"
	flagOutput   = "output"
	flagInterval = "interval"
	flagAverage  = "average-samples"
	flagJSON     = "json"
	flagCode     = "code"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	var logger *zap.Logger

	sensorFlags := func() []cli.Flag {
		return []cli.Flag{
			&cli.BoolFlag{
				Name:  flagMock,
				Usage: "use the simulated ADC",
			},
			&cli.StringFlag{
				Name:    flagPort,
				Aliases: []string{"p"},
				Usage:   "read from a serial ADC bridge on this port",
			},
			&cli.IntFlag{
				Name:  flagChannel,
				Value: -1,
				Usage: "ADC input 0-3 (overrides config)",
			},
			&cli.StringFlag{
				Name:  flagOutput,
				Usage: "reported quantity: Voltage, Digits, Pressure, Liquid Level or Volume",
			},
			&cli.IntFlag{
				Name:  flagAverage,
				Value: -1,
				Usage: "number of reads averaged per sample (0 = disabled, overrides config)",
			},
		}
	}

	return &cli.App{
		Name:  "tank",
		Usage: "read a pressure transducer as voltage, pressure, liquid level or volume",
		Flags: []cli.Flag{
			&cli.PathFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Value:   "config.yaml",
				Usage:   "configuration file path",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			if c.Bool(flagDebug) {
				logger, err = zap.NewDevelopment()
			} else {
				logger, err = zap.NewProduction()
			}
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "sample continuously until interrupted",
				Flags: append([]cli.Flag{
					&cli.DurationFlag{
						Name:  flagInterval,
						Usage: "sampling interval (overrides config)",
					},
					&cli.BoolFlag{
						Name:  flagJSON,
						Usage: "print readings as JSON lines",
					},
				}, sensorFlags()...),
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "read",
				Usage: "take a single reading",
				Flags: sensorFlags(),
				Action: func(c *cli.Context) error {
					return readAction(c, logger)
				},
			},
			{
				Name:      "convert",
				Usage:     "convert a raw ADC code to every output using the configured calibration",
				ArgsUsage: " ",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:     flagCode,
						Usage:    "raw signed 16-bit ADC code",
						Required: true,
					},
				},
				Action: convertAction,
			},
			{
				Name:   "config",
				Usage:  "write the default configuration to the config path",
				Action: configAction,
			},
			{
				Name:   "ports",
				Usage:  "list serial ports",
				Action: portsAction,
			},
		},
	}
}

// overrides are the sensor flags that replace configuration values.
// Negative numbers and empty strings leave the configuration unchanged.
type overrides struct {
	mock     bool
	port     string
	channel  int
	output   string
	average  int
	interval time.Duration // zero keeps the configured interval
}

func overridesFromContext(c *cli.Context) overrides {
	o := overrides{
		mock:    c.Bool(flagMock),
		port:    c.String(flagPort),
		channel: c.Int(flagChannel),
		output:  c.String(flagOutput),
		average: c.Int(flagAverage),
	}
	if c.IsSet(flagInterval) {
		o.interval = c.Duration(flagInterval)
	}
	return o
}

func (o overrides) apply(cfg *config.Config) error {
	if o.mock {
		cfg.ADC.Backend = config.BackendMock
	}
	if o.port != "" {
		cfg.ADC.Backend = config.BackendSerial
		cfg.ADC.SerialPort = o.port
	}
	if o.channel >= 0 {
		cfg.Sensor.Channel = o.channel
	}
	if o.output != "" {
		kind, err := pressure.ParseOutputKind(o.output)
		if err != nil {
			return err
		}
		cfg.Sensor.Output = kind
	}
	if o.average >= 0 {
		cfg.Loop.AverageSamples = o.average
	}
	if o.interval != 0 {
		cfg.Loop.Interval = o.interval
	}
	return nil
}

// loadConfig loads the configuration file and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.Path(flagConfig))
	if err != nil {
		return nil, err
	}
	if err := overridesFromContext(c).apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runAction(c *cli.Context, logger *zap.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	var out report.Reporter = report.NewText(c.App.Writer, logger)
	if c.Bool(flagJSON) {
		out = report.NewJSON(c.App.Writer, logger)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	source := adc.NewSharedFromConfig(cfg, logger)
	s := sensor.New(cfg, source, report.Multi{out, report.NewLog(logger.Named("report"))},
		sensor.WithLogger(logger),
	)

	logger.Info("sampling",
		zap.String("backend", cfg.ADC.Backend),
		zap.String("unit", s.Unit()),
	)

	return s.Run(ctx)
}

func readAction(c *cli.Context, logger *zap.Logger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Context, cfg.ADC.MaxAge+cfg.Loop.Interval)
	defer cancel()

	s := sensor.New(cfg, adc.NewSharedFromConfig(cfg, logger), nil, sensor.WithLogger(logger))
	r, err := s.ReadOnce(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(c.App.Writer, r.String())
	return nil
}

func convertAction(c *cli.Context) error {
	cfg, err := config.Load(c.Path(flagConfig))
	if err != nil {
		return err
	}

	readings, err := convertCode(cfg, c.Int(flagCode))
	if err != nil {
		return err
	}
	for _, r := range readings {
		fmt.Fprintf(c.App.Writer, "%-13s %s\n", r.Kind.String()+":", r.String())
	}

	return nil
}

// convertCode converts one raw code to every output kind.
func convertCode(cfg *config.Config, code int) ([]pressure.Reading, error) {
	if code < math.MinInt16 || code > math.MaxInt16 {
		return nil, errors.Errorf("code %d is outside the signed 16-bit range", code)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	low, high := cfg.CalibrationPoints()
	cal, err := pressure.NewCalibration(low, high, cfg.Sensor.PressureUnit)
	if err != nil {
		return nil, err
	}
	sample := pressure.NewConverter(cal, cfg.Sensor.PressureUnit, cfg.Range(), cfg.Geometry()).Convert(int16(code))

	kinds := []pressure.OutputKind{
		pressure.KindVoltage,
		pressure.KindDigitalCount,
		pressure.KindPressure,
		pressure.KindLiquidLevel,
		pressure.KindVolume,
	}
	readings := make([]pressure.Reading, 0, len(kinds))
	for _, kind := range kinds {
		r, err := sample.Reading(kind, cfg.Sensor.PressureUnit)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}

	return readings, nil
}

func configAction(c *cli.Context) error {
	path := c.Path(flagConfig)
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("%s already exists", path)
	}
	if err := config.Default().Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}

func portsAction(c *cli.Context) error {
	ports, err := adc.Ports()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(c.App.Writer, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(c.App.Writer, p)
	}
	return nil
}
