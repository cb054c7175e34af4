// Package logger provides the shared zerolog setup.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New creates the default structured logger writing to stdout.
func New() zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
