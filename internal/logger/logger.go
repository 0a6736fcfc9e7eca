package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup returns the process logger writing to stderr. Development mode logs
// at debug level through the console writer.
func Setup(dev bool) zerolog.Logger {
	return New(os.Stderr, dev)
}

func New(out io.Writer, dev bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: out, NoColor: out != os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	return logger
}

// Build returns a child logger carrying the build mode and project root.
func Build(logger zerolog.Logger, mode, root string) zerolog.Logger {
	return logger.With().Str("mode", mode).Str("root", root).Logger()
}
