package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
)

const timestampFormat = "2006-01-02 15:04:05.000"

type Logger struct {
	// The level at which this logger logs. Any log messages intended for a higher
	// (more verbose) log level are ignored.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	// Destination shared by all derived loggers.
	sink *output
}

type output struct {
	// Mutex to prevent messages from different goroutines from interleaving.
	sync.Mutex

	w       io.Writer
	colored bool
}

// Write to stderr by default.
var DefaultLogger = &Logger{defaultLevel, "", &output{w: os.Stderr, colored: !color.NoColor}}

// Override the destination for this logger and every logger derived from it.
// Colour is only used on a terminal stderr.
func (log *Logger) SetDestination(out io.Writer) {
	log.sink.Lock()
	defer log.sink.Unlock()
	log.sink.w = out
	log.sink.colored = out == os.Stderr && !color.NoColor
}

// Derive a new logger with the given tag. Look up the level based on the tag.
func (log *Logger) WithTag(tag string) *Logger {
	return &Logger{determineLevel(tag, log.Level), tag, log.sink}
}

// Derive a new logger with the given default level. This can still be overridden at
// runtime.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	return &Logger{determineLevel(log.Tag, level), log.Tag, log.sink}
}

// Enabled reports whether messages at the given level would be written.
func (log *Logger) Enabled(level Level) bool {
	return level <= log.Level
}

// A global buffer pool, shared across all loggers.
var bufPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, 256)
	},
}

// Log a message at the given level. Include the file and line number from
// 'calldepth' steps up the call stack.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if level > log.Level {
		// Message is too verbose for this logger.
		return
	}

	// Get the caller of Error()/Warn()/Info()/etc.
	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file = "?"
	}

	stamp := time.Now().Format(timestampFormat)
	prefix := fmt.Sprintf("%c/%s[%s:%d]", level.letter(), log.Tag, filepath.Base(file), line)

	buf := bufPool.Get().([]byte)
	defer func() { bufPool.Put(buf[:0]) }()

	log.sink.Lock()
	defer log.sink.Unlock()

	if log.sink.colored {
		buf = append(buf, stampColor.Sprint(stamp)...)
		buf = append(buf, ' ')
		buf = append(buf, level.color().Sprint(prefix)...)
	} else {
		buf = append(buf, stamp...)
		buf = append(buf, ' ')
		buf = append(buf, prefix...)
	}
	buf = append(buf, ' ')
	buf = fmt.Appendf(buf, format, a...)

	// Append newline if necessary.
	if n := len(buf); buf[n-1] != '\n' {
		buf = append(buf, '\n')
	}

	if _, err := log.sink.w.Write(buf); err != nil {
		fmt.Fprintf(os.Stderr, "logging: write to %T failed: %v\n", log.sink.w, err)
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}
