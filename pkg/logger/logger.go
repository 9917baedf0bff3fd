package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger. It is usable before InitLogger
// runs so packages can log from tests without extra setup.
var Log = logrus.New()

// InitLogger switches Log and the logrus standard logger to JSON on stdout
// at the given level. Unknown levels fall back to info.
func InitLogger(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}

	for _, l := range []*logrus.Logger{Log, logrus.StandardLogger()} {
		l.SetOutput(os.Stdout)
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(lvl)
	}

	if err != nil && level != "" {
		Log.WithField("level", level).Warn("Unknown log level, using info")
	}
}
