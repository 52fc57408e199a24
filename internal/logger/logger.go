package logger

import (
	"os"

	"github.com/rs/zerolog"
)

const serviceName = "detention-service"

func New(env string) zerolog.Logger {
	level := zerolog.InfoLevel
	if env == "development" {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("service", serviceName).Logger()
	if env == "development" {
		log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log
}
