package logging

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds the root service logger. Level is parsed leniently so a bad
// LOG_LEVEL never prevents startup.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
