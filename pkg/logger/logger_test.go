package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/valyala/fasthttp"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestInitFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fastbridge.log")
	t.Setenv("FASTBRIDGE_LOG_SINK", "file:"+path)
	Init("debug")
	Info("sink_probe", "k", "v")
	Debug("debug_probe")
	Sync()
	Sync()
	Log = nil

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, "sink_probe") || !strings.Contains(out, "debug_probe") {
		t.Fatalf("log file missing records: %q", out)
	}
}

func TestSafeHeadersFast(t *testing.T) {
	var ctx fasthttp.RequestCtx
	ctx.Request.Header.Set("Authorization", "Bearer secret-token")
	ctx.Request.Header.Set("X-Trace", "abc")

	got := SafeHeadersFast(&ctx)
	if strings.Contains(got, "secret-token") {
		t.Fatalf("authorization leaked: %q", got)
	}
	if !strings.Contains(got, "Authorization=B*****n") {
		t.Fatalf("authorization not masked: %q", got)
	}
	if !strings.Contains(got, "X-Trace=abc") {
		t.Fatalf("plain header missing: %q", got)
	}
}

func TestMaskedValue(t *testing.T) {
	if got := maskedValue("ab"); got != "<redacted>" {
		t.Fatalf("short value: %q", got)
	}
	if got := maskedValue("hello"); got != "h*****o" {
		t.Fatalf("masked: %q", got)
	}
	if got := maskedValue(""); got != "" {
		t.Fatalf("empty: %q", got)
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	Log = nil
	Debug("x")
	Info("x")
	Warn("x")
	Error("x")
	Fast().Printf("%s", "x")
}
