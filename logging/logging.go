package logging

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Setup builds the service logger and routes the standard library logger
// through it, so packages still calling log.Printf end up in the same stream.
func Setup(service, env string) zerolog.Logger {
	return setup(os.Stdout, service, env)
}

func setup(w io.Writer, service, env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "timestamp"
	zerolog.MessageFieldName = "message"

	ctx := zerolog.New(w).With().Timestamp().Str("service", strings.TrimSpace(service))
	if env = strings.TrimSpace(env); env != "" {
		ctx = ctx.Str("env", env)
	}
	logger := ctx.Logger()

	if env == "production" {
		logger = logger.Level(zerolog.InfoLevel)
	} else {
		logger = logger.Level(zerolog.DebugLevel)
	}

	log.SetFlags(0)
	log.SetPrefix("")
	log.SetOutput(logger)

	return logger
}
