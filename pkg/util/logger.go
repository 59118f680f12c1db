package util

import (
	"flag"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

const (
	LogFormatLogfmt = "logfmt"
	LogFormatJSON   = "json"
)

var ErrInvalidLogConfig = errors.New("invalid log configuration")

// Logger is the default logger of components created without one. It
// discards everything.
var Logger = log.NewNopLogger()

// LogConfig selects the encoding and the minimum level of a logger.
type LogConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

func (cfg *LogConfig) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Format, "log.format", LogFormatLogfmt, "Output log messages in the given format. Valid formats: [logfmt, json]")
	f.StringVar(&cfg.Level, "log.level", "info", "Only log messages with the given severity or above. Valid levels: [debug, info, warn, error]")
}

func (cfg *LogConfig) Validate() error {
	switch cfg.Format {
	case LogFormatLogfmt, LogFormatJSON:
	default:
		return errors.Wrapf(ErrInvalidLogConfig, "unknown log format %q", cfg.Format)
	}
	if _, err := level.Parse(cfg.Level); err != nil {
		return errors.Wrapf(ErrInvalidLogConfig, "unknown log level %q", cfg.Level)
	}
	return nil
}

// NewLogger returns a logger writing to w. Messages below the configured
// level are dropped.
func NewLogger(cfg LogConfig, w io.Writer) (log.Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var logger log.Logger
	if cfg.Format == LogFormatJSON {
		logger = log.NewJSONLogger(log.NewSyncWriter(w))
	} else {
		logger = log.NewLogfmtLogger(log.NewSyncWriter(w))
	}
	logger = level.NewFilter(logger, levelFilter(cfg.Level))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller), nil
}

func levelFilter(l string) level.Option {
	switch l {
	case "debug":
		return level.AllowDebug()
	case "info":
		return level.AllowInfo()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowAll()
	}
}
