package fc2log

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"sync/atomic"

	"github.com/mattn/go-isatty"
)

// urlRedact matches bare URLs so they can be scrubbed from log lines when
// AUTOFC2_SAFE_LOGS=true, matching the teacher's logger.cleanString.
var urlRedact = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[a-zA-Z0-9+%/.\-:_?&=#@+]+`)

// DefaultLogger writes to the standard library's log package, gated by
// level and tagged with a module name, matching the teacher's
// [module]-prefixed line format. level is shared by pointer across every
// Logger derived from the same root via With, mirroring the original
// Logger.loglevel class attribute: changing it on one instance changes
// it everywhere.
type DefaultLogger struct {
	level   *atomic.Int32
	module  string
	inline  bool
	isTTY   bool
	safeLog bool
}

// NewDefault constructs a DefaultLogger for module, at the given level.
func NewDefault(module string, level Level) *DefaultLogger {
	isTTY := isatty.IsTerminal(os.Stdout.Fd())
	lvl := &atomic.Int32{}
	lvl.Store(int32(level))
	return &DefaultLogger{
		level:   lvl,
		module:  module,
		inline:  isTTY,
		isTTY:   isTTY,
		safeLog: os.Getenv("AUTOFC2_SAFE_LOGS") == "true",
	}
}

func (l *DefaultLogger) With(module string) Logger {
	return &DefaultLogger{level: l.level, module: module, inline: l.inline, isTTY: l.isTTY, safeLog: l.safeLog}
}

// SetLevel updates the log level shared by this logger and every Logger
// derived from it via With.
func (l *DefaultLogger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

func (l *DefaultLogger) curLevel() Level {
	return Level(l.level.Load())
}

func (l *DefaultLogger) clean(s string) string {
	if l.safeLog {
		return urlRedact.ReplaceAllString(s, "[redacted url]")
	}
	return s
}

func (l *DefaultLogger) printf(level Level, format string, v ...any) {
	if l.curLevel() < level {
		return
	}
	msg := l.clean(fmt.Sprintf(format, v...))
	log.Printf("[%s] %s", l.module, msg)
}

func (l *DefaultLogger) Log(format string)                          { l.printf(LevelInfo, "%s", format) }
func (l *DefaultLogger) Logf(format string, v ...any)                { l.printf(LevelInfo, format, v...) }
func (l *DefaultLogger) Warn(format string)                          { l.printf(LevelWarn, "%s", format) }
func (l *DefaultLogger) Warnf(format string, v ...any)               { l.printf(LevelWarn, format, v...) }
func (l *DefaultLogger) Debug(format string)                         { l.printf(LevelDebug, "%s", format) }
func (l *DefaultLogger) Debugf(format string, v ...any)              { l.printf(LevelDebug, format, v...) }
func (l *DefaultLogger) Trace(format string)                         { l.printf(LevelTrace, "%s", format) }
func (l *DefaultLogger) Tracef(format string, v ...any)              { l.printf(LevelTrace, format, v...) }
func (l *DefaultLogger) Error(format string)                         { l.printf(LevelError, "%s", format) }
func (l *DefaultLogger) Errorf(format string, v ...any)              { l.printf(LevelError, format, v...) }

func (l *DefaultLogger) Fatal(format string) {
	log.Fatalf("[%s] %s", l.module, l.clean(format))
}

func (l *DefaultLogger) Fatalf(format string, v ...any) {
	log.Fatalf("[%s] %s", l.module, l.clean(fmt.Sprintf(format, v...)))
}

// Progress overwrites the current line, matching the teacher/original's
// inline spinner-style status for fragment counters and online polling.
func (l *DefaultLogger) Progress(format string, v ...any) {
	if l.curLevel() < LevelInfo || !l.inline {
		return
	}
	msg := l.clean(fmt.Sprintf(format, v...))
	fmt.Printf("\r\033[K[%s] %s", l.module, msg)
}
