package logger

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
)

var Log *slog.Logger

type asyncWriter struct {
	ch chan []byte
}

func (a *asyncWriter) Write(p []byte) (n int, err error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case a.ch <- cp:
		return len(p), nil
	default:
		// drop if queue full to avoid blocking
		return len(p), nil
	}
}

var (
	logCh     chan []byte
	logStopCh chan struct{}
	logWG     sync.WaitGroup
	stopOnce  sync.Once
)

// ParseLevel maps "debug", "info", "warn" and "error" to a slog level.
// Unknown values are Info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init initializes the global logger with an async buffered text handler.
// An empty level falls back to FASTBRIDGE_LOG_LEVEL. FASTBRIDGE_LOG_SINK
// selects the destination ("file:/path/to/log"); stdout otherwise.
func Init(level string) {
	sink := os.Getenv("FASTBRIDGE_LOG_SINK")
	if strings.TrimSpace(level) == "" {
		level = os.Getenv("FASTBRIDGE_LOG_LEVEL")
	}

	logCh = make(chan []byte, 10000)
	logStopCh = make(chan struct{})
	stopOnce = sync.Once{}
	aw := &asyncWriter{ch: logCh}
	Log = slog.New(slog.NewTextHandler(aw, &slog.HandlerOptions{Level: ParseLevel(level)}))

	logWG.Add(1)
	go drain(sink, logCh, logStopCh)
}

func drain(sink string, ch <-chan []byte, stop <-chan struct{}) {
	defer logWG.Done()
	var f *os.File
	buf := bufio.NewWriterSize(os.Stdout, 8192)
	if path, ok := strings.CutPrefix(sink, "file:"); ok {
		var err error
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
		} else {
			buf = bufio.NewWriterSize(f, 8192)
		}
	}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case b := <-ch:
			buf.Write(b)
		case <-ticker.C:
			buf.Flush()
		case <-stop:
			// pick up what was queued before the stop
			for {
				select {
				case b := <-ch:
					buf.Write(b)
					continue
				default:
				}
				break
			}
			buf.Flush()
			if f != nil {
				f.Close()
			}
			return
		}
	}
}

// Sync flushes any buffered logs and stops the writer. Safe to call more
// than once.
func Sync() {
	if logStopCh == nil {
		return
	}
	stopOnce.Do(func() {
		close(logStopCh)
		logWG.Wait()
	})
}

// Debug logs with slog-style key/value pairs.
func Debug(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Debug(msg, args...)
}

// Info logs with slog-style key/value pairs.
func Info(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Info(msg, args...)
}

// Warn logs with slog-style key/value pairs.
func Warn(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Warn(msg, args...)
}

// Error logs with slog-style key/value pairs.
func Error(msg string, args ...any) {
	if Log == nil {
		return
	}
	Log.Error(msg, args...)
}

type fastLogger struct{}

func (fastLogger) Printf(format string, args ...any) {
	Warn("fasthttp", "msg", fmt.Sprintf(format, args...))
}

// Fast returns a fasthttp.Logger that forwards server messages to Log.
func Fast() fasthttp.Logger { return fastLogger{} }

// LogConfigSummary prints a human-friendly, hyphenated list of
// configuration results to stdout.
func LogConfigSummary(title string, items []string) {
	if len(items) == 0 {
		return
	}
	human := strings.ToUpper(strings.ReplaceAll(title, "_", " "))
	header := "== " + human + " "
	const width = 60
	if len(header) < width {
		header = header + strings.Repeat("=", width-len(header))
	}
	fmt.Fprintln(os.Stdout, header)
	for _, it := range items {
		fmt.Fprintln(os.Stdout, "- "+it)
	}
	fmt.Fprintln(os.Stdout)
}
