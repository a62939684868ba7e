// Package logging configures the process-global zerolog logger once at
// startup.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Configure sets the global zerolog logger level and writer. levelName is
// one of zerolog's level strings ("debug", "info", "warn", "error");
// unknown values fall back to "info". When pretty is true, output goes
// through a human-readable zerolog.ConsoleWriter (the dev default);
// otherwise raw JSON lines go to stdout (the production default).
func Configure(levelName string, pretty bool) {
	level, err := zerolog.ParseLevel(strings.ToLower(levelName))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var writer io.Writer = os.Stdout
	if pretty {
		writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(writer).With().Timestamp().Caller().Logger()
}
