package remotecache

import (
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/remotecache/internal/batch"
)

const (
	defaultMaxConnections = 150
	defaultConnectTimeout = 10 * time.Second
)

// Mode selects the store topology.
type Mode string

const (
	ModeStandalone Mode = "standalone" // one node
	ModeReplicated Mode = "replicated" // writes to a primary, reads from a replica
	ModeSharded    Mode = "sharded"    // Redis Cluster
)

// ParseMode accepts the canonical names plus the common aliases
// "single", "sentinel" and "cluster". An empty string is standalone.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standalone", "single":
		return ModeStandalone, nil
	case "replicated", "sentinel", "primary-replica":
		return ModeReplicated, nil
	case "sharded", "cluster":
		return ModeSharded, nil
	}
	return "", fmt.Errorf("remotecache: unknown mode %q", s)
}

func (m *Mode) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Config is the serializable part of Options.
// Only Endpoints is required; others have sensible defaults.
type Config struct {
	Mode Mode `yaml:"mode"`

	// Standalone: one host:port. Replicated: primary then optional replica,
	// or sentinel addresses when SentinelMaster is set. Sharded: seed nodes.
	Endpoints      []string `yaml:"endpoints"`
	SentinelMaster string   `yaml:"sentinel_master"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database int    `yaml:"database"` // ignored when sharded

	ChunkSize      int           `yaml:"chunk_size"`      // keys per multi-get; 0 => 256
	MaxConnections int           `yaml:"max_connections"` // pool size and in-flight bound; 0 => 150
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // 0 => 10s

	TLS           bool `yaml:"tls"`
	TLSSkipVerify bool `yaml:"tls_skip_verify"`

	// TTL applies to both keys of a pair; 0 => no expiry.
	TTL time.Duration `yaml:"ttl"`

	// RepairOnRead deletes a metadata key when a read finds its payload
	// gone. Default false leaves cleanup to TTL/eviction.
	RepairOnRead bool `yaml:"repair_on_read"`
}

// LoadConfig reads a YAML document into a Config. Unknown fields are errors.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("remotecache: load config: %w", err)
	}
	return cfg, nil
}

func (c Config) withDefaults() (Config, error) {
	mode, err := ParseMode(string(c.Mode))
	if err != nil {
		return Config{}, err
	}
	c.Mode = mode
	if len(c.Endpoints) == 0 {
		return Config{}, fmt.Errorf("remotecache: at least one endpoint is required")
	}
	if c.Mode == ModeReplicated && c.SentinelMaster == "" && len(c.Endpoints) > 2 {
		return Config{}, fmt.Errorf("remotecache: replicated mode takes a primary and one replica, got %d endpoints", len(c.Endpoints))
	}
	c.ChunkSize = positive(c.ChunkSize, batch.DefaultChunk)
	c.MaxConnections = positive(c.MaxConnections, defaultMaxConnections)
	c.ConnectTimeout = positive(c.ConnectTimeout, defaultConnectTimeout)
	if c.TTL < 0 {
		c.TTL = 0
	}
	return c, nil
}

func (c Config) tlsConfig() *tls.Config {
	if !c.TLS {
		return nil
	}
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.TLSSkipVerify, //nolint:gosec // opt-in for self-signed deployments
	}
}
