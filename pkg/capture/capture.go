package capture

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is logging interface of the package. It is disabled by default.
// But it can be enabled by changing log level by SetLevel for debugging.
var Logger = logrus.New()

func init() {
	Logger.SetLevel(logrus.FatalLevel)
}

// SetupLogger sets log level of Logger and, if logFile is not empty, sends
// log output to a rotated file instead of stderr.
func SetupLogger(level, logFile string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "Invalid log level: %s", level)
	}
	Logger.SetLevel(lv)

	var out io.Writer = os.Stderr
	if logFile != "" {
		out = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 3,
		}
		Logger.SetFormatter(&logrus.JSONFormatter{})
	}
	Logger.SetOutput(out)

	return nil
}
