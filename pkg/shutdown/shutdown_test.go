package shutdown

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestAbortWithDiagnostics(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "crash")
	dump, err := AbortWithDiagnostics(dir, "boot failed", errors.New("listener refused"))
	if err != nil {
		t.Fatalf("AbortWithDiagnostics: %v", err)
	}
	b, err := os.ReadFile(dump)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if !strings.Contains(string(b), "reason: boot failed") || !strings.Contains(string(b), "listener refused") {
		t.Fatalf("dump content: %q", string(b))
	}

	reqs, _ := filepath.Glob(filepath.Join(dir, "req-*.json"))
	if len(reqs) != 1 {
		t.Fatalf("exit requests = %v", reqs)
	}
	rb, _ := os.ReadFile(reqs[0])
	var req exitRequest
	if err := json.Unmarshal(rb, &req); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if req.Cmd != "crash" || req.CrashPath != dump {
		t.Fatalf("request = %+v", req)
	}
}

func TestShutdownAppRunsHooks(t *testing.T) {
	var order []string
	hookErr := errors.New("flush failed")
	err := ShutdownApp(context.Background(), nil,
		func(context.Context) error { order = append(order, "a"); return hookErr },
		nil,
		func(context.Context) error { order = append(order, "b"); return nil },
	)
	if !errors.Is(err, hookErr) {
		t.Fatalf("err = %v", err)
	}
	if strings.Join(order, ",") != "a,b" {
		t.Fatalf("order = %v", order)
	}
}

func TestSetupSignalHandlerCancel(t *testing.T) {
	ctx, cancel := SetupSignalHandler(context.Background())
	cancel()
	<-ctx.Done()
}
