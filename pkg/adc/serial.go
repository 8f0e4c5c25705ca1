package adc

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	// DefaultBaudRate is the baud rate of the ADC bridge firmware.
	DefaultBaudRate = 115200
	// DefaultMaxAge is the oldest frame ReadChannel accepts.
	DefaultMaxAge = 5 * time.Second
)

// Frame is one line streamed by the ADC bridge: the codes of every channel
// converted at the same instant.
type Frame struct {
	Timestamp time.Time // Bridge timestamp
	Received  time.Time // Host time the line was parsed
	Codes     [Channels]int16
}

// Serial reads codes from an ADC bridge MCU streaming frames over a serial
// port. The bridge owns the ADC gain, so the gain argument of ReadChannel is
// not forwarded.
type Serial struct {
	port     string
	baudRate int
	maxAge   time.Duration
	logger   *zap.Logger
	now      func() time.Time

	conn      serial.Port
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
	latest    Frame
	done      chan struct{}
}

// NewSerial creates a new bridge reader with the specified port, baud rate and
// maximum frame age.
func NewSerial(port string, baudRate int, maxAge time.Duration, logger *zap.Logger) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if maxAge == 0 {
		maxAge = DefaultMaxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		maxAge:   maxAge,
		logger:   logger.With(zap.String("port", port)),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Ports returns the names of available serial ports.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list serial ports")
	}
	return ports, nil
}

// Connect opens the serial port and starts reading frames.
func (s *Serial) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return errors.New("already connected")
	}

	port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", s.port)
	}

	s.conn = port
	s.connected = true

	go s.readFrames(port)

	return nil
}

// Close closes the connection and stops reading frames.
func (s *Serial) Close() error {
	s.mu.Lock()

	if !s.connected {
		s.mu.Unlock()
		return nil
	}

	s.cancel()

	var err error
	if s.conn != nil {
		err = s.conn.Close()
		s.conn = nil
	}
	s.connected = false
	s.mu.Unlock()

	// The reader exits once the closed port returns from Read.
	<-s.done

	if err != nil {
		return errors.Wrap(err, "failed to close serial port")
	}
	return nil
}

// IsConnected returns whether the port is currently open.
func (s *Serial) IsConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Latest returns the most recent frame.
func (s *Serial) Latest() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// ReadChannel returns the channel's code from the latest frame. It fails when
// no frame newer than the maximum age has been received.
func (s *Serial) ReadChannel(ctx context.Context, channel int, _ Gain) (int16, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := checkChannel(channel); err != nil {
		return 0, errors.Wrap(ErrAcquisition, err.Error())
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.connected {
		return 0, errors.Wrap(ErrAcquisition, "not connected")
	}
	if s.latest.Received.IsZero() {
		return 0, errors.Wrap(ErrAcquisition, "no frame received yet")
	}
	if age := s.now().Sub(s.latest.Received); age > s.maxAge {
		return 0, errors.Wrapf(ErrAcquisition, "latest frame is %v old", age.Round(time.Millisecond))
	}

	return s.latest.Codes[channel], nil
}

// readFrames reads lines from r and stores the parsed frames.
func (s *Serial) readFrames(r io.Reader) {
	defer close(s.done)
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in readFrames", zap.Any("panic", rec))
		}
	}()

	scanner := bufio.NewScanner(r)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && s.ctx.Err() == nil {
				s.logger.Warn("error reading from serial port", zap.Error(err))
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame, err := parseLine(line)
		if err != nil {
			s.logger.Debug("failed to parse line", zap.String("line", line), zap.Error(err))
			continue
		}
		frame.Received = s.now()

		s.mu.Lock()
		s.latest = frame
		s.mu.Unlock()
	}
}

// parseLine parses a line from the bridge into a Frame.
// Format: unix_micros,code0,code1,code2,code3
// Example: 1234567890123,16384,0,-12,32767
func parseLine(line string) (Frame, error) {
	parts := strings.Split(line, ",")
	if len(parts) != Channels+1 {
		return Frame{}, errors.Errorf("invalid line format: expected %d comma-separated values, got %d", Channels+1, len(parts))
	}

	timestampMicros, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Frame{}, errors.Wrap(err, "invalid timestamp")
	}

	frame := Frame{Timestamp: time.Unix(0, timestampMicros*1000)}
	for i := 0; i < Channels; i++ {
		code, err := strconv.ParseInt(parts[i+1], 10, 16)
		if err != nil {
			return Frame{}, errors.Wrapf(err, "invalid code for channel %d", i)
		}
		frame.Codes[i] = int16(code)
	}

	return frame, nil
}
