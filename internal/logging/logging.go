// Package logging configures the process-wide zerolog logger. Logs always go
// to stderr because stdout carries the MCP stdio transport.
package logging

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	gormlogger "gorm.io/gorm/logger"
)

// Config controls logger initialization.
type Config struct {
	Format string // "json", "console", or "auto"
	Level  string // "debug", "info", "warn", "error"
}

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
)

// Init configures zerolog globals and returns the base logger
func Init(cfg Config) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	logger := zerolog.New(selectWriter(cfg.Format, output)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

func selectWriter(format string, out io.Writer) io.Writer {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console":
		return newConsoleWriter(out)
	case "json":
		return out
	default:
		if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			return newConsoleWriter(out)
		}
		return out
	}
}

func newConsoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05", NoColor: !isTerminalWriter(out)}
}

func isTerminalWriter(out io.Writer) bool {
	f, ok := out.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// StdLogger returns a standard library logger that writes into zerolog,
// for libraries that only accept *log.Logger
func StdLogger(component string) *stdlog.Logger {
	return stdlog.New(log.Logger.With().Str("component", component).Logger(), "", 0)
}

// gormWriter forwards gorm's log lines to zerolog
type gormWriter struct{}

func (gormWriter) Printf(format string, args ...interface{}) {
	log.Warn().Str("component", "gorm").Msg(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// GormLogger reports slow queries and errors through zerolog. Record-not-found
// is an expected outcome for lookups and is not logged.
func GormLogger(slowThreshold time.Duration) gormlogger.Interface {
	return gormlogger.New(gormWriter{}, gormlogger.Config{
		SlowThreshold:             slowThreshold,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
