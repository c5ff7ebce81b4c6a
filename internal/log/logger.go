package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func New(environment string) zerolog.Logger {
	return newWithWriter(environment, os.Stdout)
}

func newWithWriter(environment string, out io.Writer) zerolog.Logger {
	production := environment == "production"

	// JSON lines in production so log shippers can parse them; human output otherwise.
	writer := out
	if !production {
		writer = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	level := zerolog.DebugLevel
	if production {
		level = zerolog.InfoLevel
	}

	return zerolog.New(writer).
		Level(level).
		With().
		Timestamp().
		Str("service", "videohub-api").
		Str("env", environment).
		Logger()
}
