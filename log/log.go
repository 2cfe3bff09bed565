// Package log builds the zap loggers used across the node and routes the
// logging of libp2p into the same core.
package log

import (
	"fmt"
	"io"
	"os"

	lp2plog "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// ConsoleEncoder logs plain text.
	ConsoleEncoder = "console"
	// JSONEncoder logs one JSON object per line.
	JSONEncoder = "json"
)

// where logs go by default.
var logWriter io.Writer = os.Stdout

// NewNop creates a silent logger.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// New creates the root logger. The level of the root core is debug; module
// loggers created with Named narrow it down.
func New(encoding string, level zapcore.Level, hooks ...func(zapcore.Entry) error) (*zap.Logger, error) {
	enc, err := newEncoder(encoding)
	if err != nil {
		return nil, err
	}
	core := zapcore.NewCore(enc, zapcore.AddSync(logWriter), zap.NewAtomicLevelAt(level))
	return zap.New(zapcore.RegisterHooks(core, hooks...)), nil
}

func newEncoder(encoding string) (zapcore.Encoder, error) {
	switch encoding {
	case "", ConsoleEncoder:
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	case JSONEncoder:
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()), nil
	default:
		return nil, fmt.Errorf("unknown log encoder %q", encoding)
	}
}

// Named returns a child logger for a module with its own level. An empty
// level keeps the parent level. The level can only narrow the parent.
func Named(logger *zap.Logger, module, level string) (*zap.Logger, error) {
	lgr := logger.Named(module)
	if level == "" {
		return lgr, nil
	}
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		return nil, fmt.Errorf("module %s: %w", module, err)
	}
	atomic := zap.NewAtomicLevelAt(lvl)
	return lgr.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &coreWithLevel{Core: core, lvl: atomic}
	})), nil
}

type coreWithLevel struct {
	zapcore.Core
	lvl zap.AtomicLevel
}

func (c *coreWithLevel) Enabled(level zapcore.Level) bool {
	return c.lvl.Enabled(level)
}

func (c *coreWithLevel) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.lvl.Enabled(e.Level) {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *coreWithLevel) With(fields []zapcore.Field) zapcore.Core {
	return &coreWithLevel{Core: c.Core.With(fields), lvl: c.lvl}
}

// SetupLibp2p sends libp2p logs through the core of logger at the given level.
func SetupLibp2p(logger *zap.Logger, level string) error {
	lvl, err := lp2plog.LevelFromString(level)
	if err != nil {
		return fmt.Errorf("libp2p log level: %w", err)
	}
	lp2plog.SetPrimaryCore(logger.Core())
	lp2plog.SetAllLoggers(lvl)
	return nil
}
