package reactor

import (
	"os"

	"github.com/rs/zerolog"
)

// LogLevel mirrors the teacher's flog.Level: four usable levels plus a
// None sentinel that disables logging outright.
type LogLevel int

const None LogLevel = -1

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
)

func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case None:
		return "None"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) zerologLevel() zerolog.Level {
	switch l {
	case Debug:
		return zerolog.DebugLevel
	case Info:
		return zerolog.InfoLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	case None:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger is the narrow sink every component that needs to log (EventLoop,
// Poller, Acceptor, TcpConnection) takes as a constructor argument. A nil
// Logger is never passed around internally; NewEventLoop and NewTcpServer
// fall back to DefaultLogger when the caller supplies none.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// zlogLogger backs Logger with zerolog instead of hand-rolling a
// line-formatter the way the teacher's flog package does; it is the one
// ambient component this library doesn't imitate verbatim.
type zlogLogger struct {
	l zerolog.Logger
}

// NewLogger builds a Logger writing to os.Stderr at the given level;
// callers that want silence should pass None.
func NewLogger(level LogLevel) Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "2006-01-02 15:04:05.000"}).
		Level(level.zerologLevel()).
		With().Timestamp().Logger()
	return &zlogLogger{l: zl}
}

func (z *zlogLogger) Debugf(format string, args ...any) { z.l.Debug().Msgf(format, args...) }
func (z *zlogLogger) Infof(format string, args ...any)  { z.l.Info().Msgf(format, args...) }
func (z *zlogLogger) Warnf(format string, args ...any)  { z.l.Warn().Msgf(format, args...) }
func (z *zlogLogger) Errorf(format string, args ...any) { z.l.Error().Msgf(format, args...) }

// DefaultLogger is used by components constructed without an explicit
// Logger option, at Info level, matching the teacher's default minLevel.
var DefaultLogger Logger = NewLogger(Info)

// nopLogger discards everything; used internally for tests that want to
// assert on behavior without stderr noise.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

// NopLogger returns a Logger that discards all output.
func NopLogger() Logger { return nopLogger{} }
