package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.Mutex
	logger   = stdlog.New(os.Stderr, "", 0)
	minLevel = LevelInfo
)

// ParseLevel maps a config string ("debug", "info", "warn", "error") to a
// Level. Unknown or empty values fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	mu.Lock()
	defer mu.Unlock()
	minLevel = l
}

// SetOutput redirects all log lines to w. Tests use it to capture output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = stdlog.New(w, "", 0)
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(LevelError, msg, extended...)
}

func logWithLevel(level Level, msg string, kv ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled(level) {
		return
	}

	ts := time.Now().Format(time.RFC3339Nano)

	// Basic line format:
	// 2025-01-01T00:00:00Z [LEVEL] msg key=value ...
	line := ts + " [" + string(level) + "] " + msg

	if len(kv) > 0 {
		line += formatKVs(kv...)
	}

	logger.Println(line)
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

func enabled(level Level) bool {
	return rank(level) >= rank(minLevel)
}

func formatKVs(kv ...any) string {
	var b strings.Builder
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(fmt.Sprint(kv[i+1]))
	}
	// If odd number of args, last one is ignored.
	return b.String()
}
