package utils

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds the process logger: JSON lines on stdout, teed to a rotating file when one is configured.
// The returned closer flushes and closes the log file.
func NewLogger(config *Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	var out io.Writer = os.Stdout
	var closer io.Closer = nopCloser{}
	if config.Log.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   config.Log.File,
			MaxSize:    config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
			MaxAge:     config.Log.MaxAgeDays,
			Compress:   true,
		}
		out = zerolog.MultiLevelWriter(os.Stdout, rotating)
		closer = rotating
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
