package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"fastbridge/pkg/bridge"
	"fastbridge/pkg/logger"
)

// hello handles GET / with the fixed greeting.
func hello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(Greeting)))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, Greeting)
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// echo streams the request body back as it arrives.
func echo(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	if r.ContentLength >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(r.ContentLength, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, r.Body); err != nil {
		logger.Warn("echo_copy_failed", "remote", r.RemoteAddr, "error", err)
	}
}

// peer reports the client address forwarded by the bridge.
func peer(w http.ResponseWriter, r *http.Request) {
	addr, ok := bridge.PeerAddrFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusNotFound, "peer address not available")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"network": addr.Network(),
		"addr":    addr.String(),
	})
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
