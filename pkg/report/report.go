// Package report delivers formatted sensor readings to their consumers.
// Reporting is fire-and-forget: sinks log their own failures.
package report

import (
	"fmt"
	"io"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/itohio/gotank/pkg/pressure"
)

// Reporter receives one reading per sampling loop iteration.
type Reporter interface {
	Report(r pressure.Reading)
}

var (
	_ Reporter = Func(nil)
	_ Reporter = (*Log)(nil)
	_ Reporter = (*JSON)(nil)
	_ Reporter = (*Text)(nil)
	_ Reporter = Multi(nil)
)

// Func adapts a function to a Reporter.
type Func func(r pressure.Reading)

// Report calls f.
func (f Func) Report(r pressure.Reading) {
	f(r)
}

// Log reports readings to a zap logger at info level.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging reporter.
func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger}
}

// Report logs the reading.
func (l *Log) Report(r pressure.Reading) {
	l.logger.Info("reading",
		zap.String("sensor", r.SensorID),
		zap.Stringer("kind", r.Kind),
		zap.String("value", r.Value),
		zap.String("unit", r.Unit),
	)
}

// JSON writes readings as line-delimited JSON.
type JSON struct {
	mu     sync.Mutex
	w      io.Writer
	api    jsoniter.API
	logger *zap.Logger
}

// NewJSON creates a JSON lines reporter writing to w.
func NewJSON(w io.Writer, logger *zap.Logger) *JSON {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSON{
		w:      w,
		api:    jsoniter.ConfigCompatibleWithStandardLibrary,
		logger: logger,
	}
}

// Report encodes the reading followed by a newline.
func (j *JSON) Report(r pressure.Reading) {
	data, err := j.api.Marshal(r)
	if err != nil {
		j.logger.Warn("failed to encode reading", zap.Error(err))
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.w.Write(append(data, '\n')); err != nil {
		j.logger.Warn("failed to write reading", zap.Error(err))
	}
}

// Text writes readings as "value unit" lines.
type Text struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

// NewText creates a plain text reporter writing to w.
func NewText(w io.Writer, logger *zap.Logger) *Text {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Text{w: w, logger: logger}
}

// Report writes the reading.
func (t *Text) Report(r pressure.Reading) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := fmt.Fprintln(t.w, r.String()); err != nil {
		t.logger.Warn("failed to write reading", zap.Error(err))
	}
}

// Multi fans a reading out to every reporter in order.
type Multi []Reporter

// Report forwards r to each reporter.
func (m Multi) Report(r pressure.Reading) {
	for _, rep := range m {
		if rep != nil {
			rep.Report(r)
		}
	}
}
