// Package sensor runs the sampling loop of one pressure transducer: acquire a
// raw code, convert it, report the selected quantity, wait, repeat.
package sensor

import (
	"context"
	"math"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itohio/gotank/pkg/adc"
	"github.com/itohio/gotank/pkg/config"
	"github.com/itohio/gotank/pkg/pressure"
	"github.com/itohio/gotank/pkg/report"
)

// State of the sampling loop.
type State int

// Loop states.
const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "stopped"
}

var (
	// ErrRunning is returned by Start when the loop is already running.
	ErrRunning = errors.New("sensor already running")
	// ErrInvalidConfig is combined with every configuration validation failure.
	ErrInvalidConfig = errors.New("invalid sensor configuration")
)

// Option configures a Sensor.
type Option func(*Sensor)

// WithClock sets the clock used for the inter-sample wait and timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Sensor) {
		s.clock = c
	}
}

// WithLogger sets a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Sensor) {
		s.logger = logger
	}
}

// WithErrorHandler sets a callback receiving per-iteration acquisition
// failures. The loop keeps running and retries on the next tick.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Sensor) {
		s.onError = fn
	}
}

// WithID sets the sensor ID attached to readings and log lines.
func WithID(id uuid.UUID) Option {
	return func(s *Sensor) {
		s.id = id
	}
}

// Sensor is one polling pressure sensor. The configuration is copied at
// construction; reconfiguring means creating a new Sensor or calling
// Reconfigure while stopped.
type Sensor struct {
	cfg      config.Config
	source   *adc.Shared
	reporter report.Reporter
	clock    clock.Clock
	logger   *zap.Logger
	onError  func(error)
	id       uuid.UUID

	mu         sync.Mutex
	state      State
	cancel     context.CancelFunc
	done       chan struct{}
	releaseErr error
}

// New creates a stopped sensor reading from source and reporting to reporter.
func New(cfg *config.Config, source *adc.Shared, reporter report.Reporter, options ...Option) *Sensor {
	s := &Sensor{
		cfg:      *cfg,
		source:   source,
		reporter: reporter,
		clock:    clock.New(),
		id:       uuid.New(),
	}

	for _, opt := range options {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.With(zap.Stringer("sensor", s.id), zap.Int("channel", s.cfg.Sensor.Channel))
	if s.reporter == nil {
		s.reporter = report.NewLog(s.logger)
	}

	return s
}

// ID returns the sensor ID.
func (s *Sensor) ID() uuid.UUID {
	return s.id
}

// Unit returns the label of the configured output, "N/A" if unsupported.
func (s *Sensor) Unit() string {
	cfg := s.config()
	return cfg.Sensor.Output.Label(cfg.Sensor.PressureUnit)
}

// State returns the loop state. A loop that exited because its context
// was canceled reports Stopped.
func (s *Sensor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running() {
		return Running
	}
	return Stopped
}

// Reconfigure replaces the configuration. It fails while running.
func (s *Sensor) Reconfigure(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running() {
		return ErrRunning
	}
	s.cfg = *cfg
	return nil
}

// running reports whether the loop goroutine is alive. Caller holds s.mu.
func (s *Sensor) running() bool {
	if s.state != Running {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// config returns a snapshot of the configuration.
func (s *Sensor) config() config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// newConverter validates cfg and derives the calibration.
func newConverter(cfg *config.Config) (*pressure.Converter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, multierr.Append(ErrInvalidConfig, err)
	}

	low, high := cfg.CalibrationPoints()
	cal, err := pressure.NewCalibration(low, high, cfg.Sensor.PressureUnit)
	if err != nil {
		return nil, err
	}

	return pressure.NewConverter(cal, cfg.Sensor.PressureUnit, cfg.Range(), cfg.Geometry()), nil
}

// Start computes the calibration, acquires the ADC handle and starts the
// sampling loop. Configuration errors are returned before any sample is taken.
// The loop also stops when ctx is canceled.
func (s *Sensor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running() {
		return ErrRunning
	}

	cfg := s.cfg
	conv, err := newConverter(&cfg)
	if err != nil {
		return err
	}

	handle, err := s.source.Acquire()
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.releaseErr = nil
	s.state = Running

	s.logger.Info("sensor started",
		zap.Stringer("output", cfg.Sensor.Output),
		zap.Stringer("pressure_unit", cfg.Sensor.PressureUnit),
		zap.Duration("interval", cfg.Loop.Interval),
	)

	go s.loop(loopCtx, &cfg, handle, conv, s.done)

	return nil
}

// Stop signals the loop and waits for it to exit. It returns the error from
// releasing the ADC handle, if any. Stopping a stopped sensor is a no-op.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Running {
		return nil
	}

	s.cancel()
	<-s.done

	s.state = Stopped
	s.logger.Info("sensor stopped")

	return s.releaseErr
}

// Run starts the loop and blocks until ctx is canceled.
func (s *Sensor) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

// ReadOnce acquires, converts and formats a single reading without starting
// the loop. Useful while calibrating with the Voltage or Digits outputs.
func (s *Sensor) ReadOnce(ctx context.Context) (pressure.Reading, error) {
	cfg := s.config()
	conv, err := newConverter(&cfg)
	if err != nil {
		return pressure.Reading{}, err
	}

	handle, err := s.source.Acquire()
	if err != nil {
		return pressure.Reading{}, err
	}
	defer func() {
		if err := handle.Release(); err != nil {
			s.logger.Warn("failed to release adc", zap.Error(err))
		}
	}()

	code, err := s.acquire(ctx, &cfg, handle)
	if err != nil {
		return pressure.Reading{}, err
	}

	return s.reading(&cfg, conv.Convert(code))
}

func (s *Sensor) loop(ctx context.Context, cfg *config.Config, handle *adc.Handle, conv *pressure.Converter, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := handle.Release(); err != nil {
			s.logger.Warn("failed to release adc", zap.Error(err))
			s.releaseErr = err
		}
	}()

	for {
		s.tick(ctx, cfg, handle, conv)

		timer := s.clock.Timer(cfg.Loop.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// tick runs one iteration. Failures are logged, handed to the error handler
// and retried on the next tick.
func (s *Sensor) tick(ctx context.Context, cfg *config.Config, handle *adc.Handle, conv *pressure.Converter) {
	code, err := s.acquire(ctx, cfg, handle)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.fail("acquisition failed", err)
		return
	}

	r, err := s.reading(cfg, conv.Convert(code))
	if err != nil {
		s.fail("failed to format reading", err)
		return
	}

	if ctx.Err() != nil {
		return
	}

	s.logger.Debug("reading", zap.Int16("code", code), zap.String("value", r.Value), zap.String("unit", r.Unit))
	s.reporter.Report(r)
}

// acquire reads one code, or the rounded mean of Loop.AverageSamples codes.
// Failed reads within a batch are skipped; the batch fails only if all do.
func (s *Sensor) acquire(ctx context.Context, cfg *config.Config, r adc.Reader) (int16, error) {
	n := cfg.Loop.AverageSamples
	if n < 1 {
		n = 1
	}
	gain := adc.Gain(cfg.ADC.Gain)

	var (
		sum     int64
		ok      int
		lastErr error
	)
	for i := 0; i < n; i++ {
		code, err := r.ReadChannel(ctx, cfg.Sensor.Channel, gain)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if n > 1 {
				s.logger.Debug("averaged read failed", zap.Int("read", i), zap.Error(err))
			}
			lastErr = err
			continue
		}
		sum += int64(code)
		ok++
	}

	if ok == 0 {
		if !errors.Is(lastErr, adc.ErrAcquisition) {
			lastErr = errors.Wrap(adc.ErrAcquisition, lastErr.Error())
		}
		return 0, lastErr
	}

	return int16(math.Round(float64(sum) / float64(ok))), nil
}

func (s *Sensor) reading(cfg *config.Config, sample pressure.Sample) (pressure.Reading, error) {
	r, err := sample.Reading(cfg.Sensor.Output, cfg.Sensor.PressureUnit)
	if err != nil {
		return r, err
	}
	r.SensorID = s.id.String()
	r.Timestamp = s.clock.Now()
	return r, nil
}

func (s *Sensor) fail(msg string, err error) {
	s.logger.Warn(msg, zap.Error(err))
	if s.onError != nil {
		s.onError(err)
	}
}
