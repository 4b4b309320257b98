package common

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// loggerNames lists the loggers of all dNet packages
var loggerNames = []string{
	"frame",
	"pipeline",
	"liveness",
	"server",
	"client",
	"transport",
	"cmd",
}

var (
	// logSink is shared by all dNet loggers. It writes to stderr so that the output of the
	// connect command on stdout stays readable.
	logSink = log.New(os.Stderr, "", log.Ldate|log.Lmicroseconds)

	// defaultLevel is applied to loggers that are created after InitLoggers
	defaultLevel atomic.Int32

	factoryOnce sync.Once
)

func init() {
	defaultLevel.Store(int32(logger.INFO))
}

// --------------------------------------------------------------------------
// Custom Logger (implements dragonboats logger.ILogger)
// --------------------------------------------------------------------------

// dNetLogger writes "LEVEL pkg | message" lines to the shared sink.
// The level may be changed while other goroutines log.
type dNetLogger struct {
	name  string
	level atomic.Int32
	sink  *log.Logger
}

func (l *dNetLogger) SetLevel(level logger.LogLevel) {
	l.level.Store(int32(level))
}

func (l *dNetLogger) enabled(level logger.LogLevel) bool {
	return logger.LogLevel(l.level.Load()) >= level
}

func (l *dNetLogger) Debugf(format string, args ...interface{}) {
	if l.enabled(logger.DEBUG) {
		l.log("DEBUG", format, args...)
	}
}

func (l *dNetLogger) Infof(format string, args ...interface{}) {
	if l.enabled(logger.INFO) {
		l.log("INFO", format, args...)
	}
}

func (l *dNetLogger) Warningf(format string, args ...interface{}) {
	if l.enabled(logger.WARNING) {
		l.log("WARN", format, args...)
	}
}

func (l *dNetLogger) Errorf(format string, args ...interface{}) {
	if l.enabled(logger.ERROR) {
		l.log("ERROR", format, args...)
	}
}

// Panicf always logs and panics, independent of the level
func (l *dNetLogger) Panicf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	l.log("PANIC", "%s", message)
	panic(message)
}

func (l *dNetLogger) log(levelStr string, format string, args ...interface{}) {
	message := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	l.sink.Printf("%-5s %-9s | %s", levelStr, l.name, message)
}

// --------------------------------------------------------------------------
// Logger Factory
// --------------------------------------------------------------------------

// CreateLogger implements the logger.Factory interface. The new logger starts at the level
// most recently passed to InitLoggers.
func CreateLogger(pkgName string) logger.ILogger {
	l := &dNetLogger{
		name: pkgName,
		sink: logSink,
	}
	l.level.Store(defaultLevel.Load())
	return l
}

// SetLogOutput redirects all dNet loggers to w
func SetLogOutput(w io.Writer) {
	logSink.SetOutput(w)
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// ParseLogLevel converts a string level to logger.LogLevel
func ParseLogLevel(level string) (logger.LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return logger.DEBUG, nil
	case "info", "":
		return logger.INFO, nil
	case "warning", "warn":
		return logger.WARNING, nil
	case "error":
		return logger.ERROR, nil
	default:
		return logger.INFO, fmt.Errorf("invalid log level: %s. must be one of debug, info, warn, error", level)
	}
}

// --------------------------------------------------------------------------
// Logger initialization
// --------------------------------------------------------------------------

// InitLoggers installs the dNet logger factory (once per process) and sets level on all
// dNet loggers. It may be called again to change the level.
func InitLoggers(level string) error {
	lvl, err := ParseLogLevel(level)
	if err != nil {
		return err
	}

	defaultLevel.Store(int32(lvl))

	// dragonboat panics if the factory is set twice
	factoryOnce.Do(func() {
		logger.SetLoggerFactory(CreateLogger)
	})

	for _, name := range loggerNames {
		logger.GetLogger(name).SetLevel(lvl)
	}
	return nil
}
