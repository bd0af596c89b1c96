package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// New builds the process-wide logger. Local runs get a colored text
// formatter, everything else gets JSON. Level comes from LOG_LEVEL.
func New() *logrus.Logger {
	base := logrus.New()

	env := os.Getenv("ENVIRONMENT")
	if env == "" || env == "local" {
		base.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	}

	base.SetOutput(os.Stdout)

	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		base.SetLevel(logrus.DebugLevel)
	case "warn":
		base.SetLevel(logrus.WarnLevel)
	case "error":
		base.SetLevel(logrus.ErrorLevel)
	default:
		base.SetLevel(logrus.InfoLevel)
	}

	return base
}

// Component derives a tagged entry for one subsystem.
func Component(log *logrus.Logger, name string) *logrus.Entry {
	return log.WithField("component", name)
}
