package shutdown

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/valyala/fasthttp"

	"fastbridge/pkg/logger"
)

type exitRequest struct {
	Time      string            `json:"time"`
	Reason    string            `json:"reason"`
	Cmd       string            `json:"cmd"`
	CrashPath string            `json:"crash_path,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// CrashDir is where Abort writes crash dumps.
var CrashDir = "./crash"

// Abort logs the fatal error, writes a crash dump and exits with status 2
// after delaySeconds (default 2).
func Abort(contextMsg string, err error, delaySeconds ...int) {
	delay := 2
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", contextMsg, err)
	dumpPath, derr := AbortWithDiagnostics(CrashDir, contextMsg, err)
	if derr != nil {
		logger.Error("abort_with_diagnostics_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Error("startup_fatal_crashdump", "path", dumpPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(time.Second)
	}
	logger.Sync()
	os.Exit(2)
}

// AbortWithDiagnostics writes a crash dump (reason, error, goroutine
// stacks) into dir together with a machine-readable exit request, and
// returns the dump path.
func AbortWithDiagnostics(dir, reason string, err error) (string, error) {
	if e := os.MkdirAll(dir, 0o700); e != nil {
		return "", errors.Wrap(e, "failed to create crash dir")
	}

	ts := time.Now().UnixNano()
	dumpPath := filepath.Join(dir, fmt.Sprintf("crash-%d.log", ts))

	f, ferr := os.CreateTemp(dir, ".crash-*.tmp")
	if ferr != nil {
		return "", errors.Wrap(ferr, "failed to create temp crash file")
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	fmt.Fprintf(f, "time: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	fmt.Fprintf(f, "error: %+v\n", err)
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	f.Write(buf[:n])
	f.Sync()
	f.Close()

	if err := os.Rename(tmpName, dumpPath); err != nil {
		return "", errors.Wrap(err, "failed to move crash dump into place")
	}
	_ = os.Chmod(dumpPath, 0o600)

	req := exitRequest{
		Time:      time.Now().UTC().Format(time.RFC3339),
		Reason:    reason,
		Cmd:       "crash",
		CrashPath: dumpPath,
		Meta:      map[string]string{"pid": fmt.Sprintf("%d", os.Getpid())},
	}
	b, jerr := json.MarshalIndent(req, "", "  ")
	if jerr != nil {
		return dumpPath, errors.Wrap(jerr, "failed to encode exit request")
	}
	reqPath := filepath.Join(dir, fmt.Sprintf("req-%d.json", ts))
	if err := os.WriteFile(reqPath, b, 0o600); err != nil {
		return dumpPath, errors.Wrap(err, "failed to write exit request")
	}
	return dumpPath, nil
}

// SetupSignalHandler returns a context that is cancelled on SIGINT or
// SIGTERM. SIGPIPE additionally dumps goroutine stacks before cancelling.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigc)
	}()

	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigpipe)
	}()

	return ctx, cancel
}

// ShutdownApp stops the server and then runs the cleanup hooks in order.
// The first error is returned; later hooks still run.
func ShutdownApp(ctx context.Context, srv *fasthttp.Server, hooks ...func(context.Context) error) error {
	logger.Info("shutdown_requested")
	var first error

	if srv != nil {
		logger.Info("shutdown_stopping_server")
		if err := srv.ShutdownWithContext(ctx); err != nil {
			logger.Error("shutdown_server_failed", "error", err)
			first = errors.Wrap(err, "server shutdown")
		}
	}
	for _, h := range hooks {
		if h == nil {
			continue
		}
		if err := h(ctx); err != nil {
			logger.Error("shutdown_hook_failed", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	logger.Info("shutdown_complete")
	return first
}
