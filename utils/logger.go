package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the application-wide logger. It is usable before InitLogger runs.
var Log = logrus.New()

// InitLogger configures Log for the given level. JSON output is meant for production log shipping.
func InitLogger(level string, json bool) {
	Log.SetOutput(os.Stdout)

	if json {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		Log.WithField("level", level).Warn("Unknown log level, falling back to info")
		parsed = logrus.InfoLevel
	}
	Log.SetLevel(parsed)
}
