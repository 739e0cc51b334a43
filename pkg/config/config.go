package config

import (
	"net"
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Defaults for server and bridge configuration
const (
	DefaultName    = "fastbridge"
	defaultAddress = "localhost"
	defaultPort    = 8080

	defaultReadTimeout        = 10 * time.Second
	defaultWriteTimeout       = 10 * time.Second
	defaultIdleTimeout        = 30 * time.Second
	defaultMaxRequestBodySize = 4 * 1024 * 1024 // 4 MiB
	defaultReadBufferSize     = 16 * 1024       // 16 KiB per connection
	defaultChunkSize          = 32 * 1024

	// ModeShared lets one inner instance serve pipelined calls concurrently.
	ModeShared = "shared"
	// ModeExclusive rejects overlapping calls on one inner instance.
	ModeExclusive = "exclusive"

	defaultLogLevel = "info"
)

// Addr returns the HTTP server address as host:port.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = defaultAddress
	}
	port := c.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

// StreamRequestBody reports whether request bodies are streamed.
func (c *Config) StreamRequestBody() bool {
	if c.Server.StreamRequestBody == nil {
		return true
	}
	return *c.Server.StreamRequestBody
}

// ForwardPeerAddr reports whether the peer address reaches inner services.
func (c *Config) ForwardPeerAddr() bool {
	if c.Bridge.ForwardPeerAddr == nil {
		return true
	}
	return *c.Bridge.ForwardPeerAddr
}

// ApplyDefaults fills in missing values.
func (c *Config) ApplyDefaults() {
	if c.Server.Name == "" {
		c.Server.Name = DefaultName
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = Duration(defaultReadTimeout)
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = Duration(defaultWriteTimeout)
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = Duration(defaultIdleTimeout)
	}
	if c.Server.MaxRequestBodySize == 0 {
		c.Server.MaxRequestBodySize = SizeBytes(defaultMaxRequestBodySize)
	}
	if c.Server.ReadBufferSize == 0 {
		c.Server.ReadBufferSize = SizeBytes(defaultReadBufferSize)
	}
	if c.Server.StreamRequestBody == nil {
		c.Server.StreamRequestBody = boolPtr(true)
	}
	if c.Bridge.Mode == "" {
		c.Bridge.Mode = ModeShared
	}
	if c.Bridge.ChunkSize == 0 {
		c.Bridge.ChunkSize = SizeBytes(defaultChunkSize)
	}
	if c.Bridge.ForwardPeerAddr == nil {
		c.Bridge.ForwardPeerAddr = boolPtr(true)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RPS)
		if c.RateLimit.Burst < 1 {
			c.RateLimit.Burst = 1
		}
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = c.Server.Name
	}
}

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "config file not found: %s", path)
		}
		return nil, errors.Wrapf(err, "read config file %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config file %s", path)
	}
	return &cfg, nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("FASTBRIDGE_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
