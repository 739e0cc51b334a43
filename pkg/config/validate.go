package config

import (
	"github.com/cockroachdb/errors"
)

// ValidateConfig fails fast on values the server cannot run with. Defaults
// must have been applied.
func ValidateConfig(eff EffectiveConfigResult) error {
	cfg := eff.Config
	if cfg == nil {
		return errors.New("effective config is nil")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return errors.Newf("invalid server.port: %d", cfg.Server.Port)
	}
	switch cfg.Bridge.Mode {
	case ModeShared, ModeExclusive:
	default:
		return errors.Newf("invalid bridge.mode %q: want %q or %q", cfg.Bridge.Mode, ModeShared, ModeExclusive)
	}
	if cfg.Bridge.ChunkSize <= 0 {
		return errors.Newf("invalid bridge.chunk_size: %d", cfg.Bridge.ChunkSize)
	}
	if cfg.Server.MaxRequestBodySize < 0 || cfg.Server.ReadBufferSize < 0 {
		return errors.New("server sizes must not be negative")
	}
	if cfg.Server.Concurrency < 0 {
		return errors.Newf("invalid server.concurrency: %d", cfg.Server.Concurrency)
	}
	if cfg.RateLimit.RPS < 0 || cfg.RateLimit.Burst < 0 {
		return errors.New("rate_limit values must not be negative")
	}
	if cfg.Telemetry.Enabled && cfg.Telemetry.OTLPEndpoint == "" {
		return errors.New("telemetry enabled but telemetry.otlp_endpoint is empty")
	}
	return nil
}
