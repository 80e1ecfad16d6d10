package logger

import (
	"io"
	"os"
	"sync"

	corelogger "github.com/kilianp07/evbill/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.NopLogger

var (
	outMu sync.RWMutex
	out   io.Writer = os.Stdout
)

// SetOutput changes the writer used by loggers created afterwards. The
// terminal form uses it to keep log lines off the screen.
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	outMu.Lock()
	out = w
	outMu.Unlock()
}

func output() io.Writer {
	outMu.RLock()
	defer outMu.RUnlock()
	return out
}

// New returns a Logger for the given component. The format is selected via
// the APP_ENV variable and the level via LOG_LEVEL.
func New(component string) Logger {
	return NewZerologLogger(component, output())
}
