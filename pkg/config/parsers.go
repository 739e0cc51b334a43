package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
)

// holds parsed command-line flag values and which were set
type Flags struct {
	Addr   string
	Name   string
	Config string
	Set    map[string]bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	Source string // "flags", "config", or "env"
}

// ParseConfigFlags parses args (without the program name).
func ParseConfigFlags(args []string) (Flags, error) {
	fs := pflag.NewFlagSet(DefaultName, pflag.ContinueOnError)
	addr := fs.String("addr", net.JoinHostPort(defaultAddress, strconv.Itoa(defaultPort)), "HTTP listen address")
	name := fs.String("name", DefaultName, "server name sent in the Server header")
	cfgPath := fs.String("config", "./config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return Flags{}, errors.Wrap(err, "parse flags")
	}

	// record which flags were set explicitly
	set := make(map[string]bool)
	fs.Visit(func(f *pflag.Flag) { set[f.Name] = true })

	return Flags{Addr: *addr, Name: *name, Config: *cfgPath, Set: set}, nil
}

// loads config from file, returns config, found bool, and error
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs loads FASTBRIDGE_* variables into a new Config. used
// reports whether any of them was set.
func ParseConfigEnvs() (cfg *Config, used bool, err error) {
	envs := map[string]string{
		"ADDR":                  os.Getenv("FASTBRIDGE_ADDR"),
		"SERVER_NAME":           os.Getenv("FASTBRIDGE_SERVER_NAME"),
		"SERVER_ADDRESS":        os.Getenv("FASTBRIDGE_SERVER_ADDRESS"),
		"SERVER_PORT":           os.Getenv("FASTBRIDGE_SERVER_PORT"),
		"READ_TIMEOUT":          os.Getenv("FASTBRIDGE_READ_TIMEOUT"),
		"WRITE_TIMEOUT":         os.Getenv("FASTBRIDGE_WRITE_TIMEOUT"),
		"IDLE_TIMEOUT":          os.Getenv("FASTBRIDGE_IDLE_TIMEOUT"),
		"MAX_REQUEST_BODY_SIZE": os.Getenv("FASTBRIDGE_MAX_REQUEST_BODY_SIZE"),
		"READ_BUFFER_SIZE":      os.Getenv("FASTBRIDGE_READ_BUFFER_SIZE"),
		"CONCURRENCY":           os.Getenv("FASTBRIDGE_CONCURRENCY"),
		"STREAM_REQUEST_BODY":   os.Getenv("FASTBRIDGE_STREAM_REQUEST_BODY"),
		"PROFILING":             os.Getenv("FASTBRIDGE_PROFILING"),

		// bridge
		"BRIDGE_MODE":       os.Getenv("FASTBRIDGE_BRIDGE_MODE"),
		"BRIDGE_CHUNK_SIZE": os.Getenv("FASTBRIDGE_BRIDGE_CHUNK_SIZE"),
		"FORWARD_PEER_ADDR": os.Getenv("FASTBRIDGE_FORWARD_PEER_ADDR"),

		// logging
		"LOG_LEVEL": os.Getenv("FASTBRIDGE_LOG_LEVEL"),

		// rate limit
		"RATE_RPS":   os.Getenv("FASTBRIDGE_RATE_RPS"),
		"RATE_BURST": os.Getenv("FASTBRIDGE_RATE_BURST"),

		// telemetry
		"OTEL_ENABLED":      os.Getenv("FASTBRIDGE_OTEL_ENABLED"),
		"OTEL_ENDPOINT":     os.Getenv("FASTBRIDGE_OTEL_ENDPOINT"),
		"OTEL_SERVICE_NAME": os.Getenv("FASTBRIDGE_OTEL_SERVICE_NAME"),
	}

	// check if any env was set
	for _, v := range envs {
		if v != "" {
			used = true
			break
		}
	}
	cfg = &Config{}

	parseBool := func(v string) bool {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}
	parseInt := func(key, v string) (int, error) {
		i, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, errors.Wrapf(err, "FASTBRIDGE_%s", key)
		}
		return i, nil
	}

	if v := envs["ADDR"]; v != "" {
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			cfg.Server.Port = parsePortFromAddr(net.JoinHostPort(h, p))
		} else {
			cfg.Server.Address = v
		}
	} else {
		cfg.Server.Address = envs["SERVER_ADDRESS"]
		if v := envs["SERVER_PORT"]; v != "" {
			if cfg.Server.Port, err = parseInt("SERVER_PORT", v); err != nil {
				return nil, used, err
			}
		}
	}
	cfg.Server.Name = envs["SERVER_NAME"]

	durations := []struct {
		key string
		dst *Duration
	}{
		{"READ_TIMEOUT", &cfg.Server.ReadTimeout},
		{"WRITE_TIMEOUT", &cfg.Server.WriteTimeout},
		{"IDLE_TIMEOUT", &cfg.Server.IdleTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(envs[d.key]); err != nil {
			return nil, used, errors.Wrapf(err, "FASTBRIDGE_%s", d.key)
		}
	}

	sizes := []struct {
		key string
		dst *SizeBytes
	}{
		{"MAX_REQUEST_BODY_SIZE", &cfg.Server.MaxRequestBodySize},
		{"READ_BUFFER_SIZE", &cfg.Server.ReadBufferSize},
		{"BRIDGE_CHUNK_SIZE", &cfg.Bridge.ChunkSize},
	}
	for _, s := range sizes {
		if *s.dst, err = parseSizeBytes(envs[s.key]); err != nil {
			return nil, used, errors.Wrapf(err, "FASTBRIDGE_%s", s.key)
		}
	}

	if v := envs["CONCURRENCY"]; v != "" {
		if cfg.Server.Concurrency, err = parseInt("CONCURRENCY", v); err != nil {
			return nil, used, err
		}
	}
	if v := envs["STREAM_REQUEST_BODY"]; v != "" {
		cfg.Server.StreamRequestBody = boolPtr(parseBool(v))
	}

	cfg.Server.Profiling = parseBool(envs["PROFILING"])

	cfg.Bridge.Mode = strings.ToLower(strings.TrimSpace(envs["BRIDGE_MODE"]))
	if v := envs["FORWARD_PEER_ADDR"]; v != "" {
		cfg.Bridge.ForwardPeerAddr = boolPtr(parseBool(v))
	}

	cfg.Logging.Level = envs["LOG_LEVEL"]

	if v := envs["RATE_RPS"]; v != "" {
		if cfg.RateLimit.RPS, err = strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			return nil, used, errors.Wrap(err, "FASTBRIDGE_RATE_RPS")
		}
	}
	if v := envs["RATE_BURST"]; v != "" {
		if cfg.RateLimit.Burst, err = parseInt("RATE_BURST", v); err != nil {
			return nil, used, err
		}
	}

	cfg.Telemetry.Enabled = parseBool(envs["OTEL_ENABLED"])
	cfg.Telemetry.OTLPEndpoint = envs["OTEL_ENDPOINT"]
	cfg.Telemetry.ServiceName = envs["OTEL_SERVICE_NAME"]
	return cfg, used, nil
}

// LoadEffectiveConfig decides which single source to use and returns the
// effective config plus the resolved listen address. If --config is set,
// only the config file is used; otherwise flags if set; else the config
// file if present; else env.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, errors.Newf("config file %s not found", flags.Config)
		}
		return fromConfig(fileCfg, "config"), nil
	}

	if flags.Set["addr"] || flags.Set["name"] {
		base := envCfg
		if fileExists {
			base = fileCfg
		}
		out := *base
		if flags.Set["addr"] {
			h, _, err := net.SplitHostPort(flags.Addr)
			if err != nil {
				return res, errors.Wrapf(err, "invalid --addr %q", flags.Addr)
			}
			out.Server.Address = h
			out.Server.Port = parsePortFromAddr(flags.Addr)
		}
		if flags.Set["name"] {
			out.Server.Name = flags.Name
		}
		return fromConfig(&out, "flags"), nil
	}

	if fileExists {
		return fromConfig(fileCfg, "config"), nil
	}
	return fromConfig(envCfg, "env"), nil
}

func fromConfig(cfg *Config, source string) EffectiveConfigResult {
	cfg.ApplyDefaults()
	return EffectiveConfigResult{Config: cfg, Addr: cfg.Addr(), Source: source}
}

// extracts port integer from host:port string
func parsePortFromAddr(a string) int {
	if a == "" {
		return 0
	}
	if _, p, err := net.SplitHostPort(a); err == nil {
		if pi, err := strconv.Atoi(p); err == nil {
			return pi
		}
	}
	return 0
}
