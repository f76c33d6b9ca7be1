// Package config loads and saves the TOML configuration for a phtnode
// instance: its listen address, storage path, logging setup, and the
// PHT/DHT tunables described in the pht and dht/node packages.
package config

import (
	"time"

	"github.com/prefixhashtree/pht-go/dht/node"
	"github.com/prefixhashtree/pht-go/logging"
	"github.com/prefixhashtree/pht-go/pht"
)

// Config is the on-disk configuration for a phtnode instance.
type Config struct {
	*Common

	// Address is the node's listen address, e.g. "tcp://0.0.0.0:38080"
	// or "unix:///var/run/phtnode.sock". A TCP address requires Cert and
	// Key to be set, since dht/node.Server always speaks TLS over TCP.
	Address node.ServerAddress `toml:"address"`

	// StoragePath is the directory a leveldb-backed store opens under.
	StoragePath string `toml:"storage_path"`

	// PHT holds the tunables passed to every pht.New call this node
	// makes on behalf of a client.
	PHT PHTConfig `toml:"pht"`

	// Indices lists the named PHT indices this node maintains a
	// self-dialed pht.PHT handle for, so operators get a ready-to-use
	// index without writing a separate client program for the common
	// single-node case.
	Indices []string `toml:"indices,omitempty"`

	// SweepInterval is how often the node proactively scans its whole
	// store for expired values, as a duration string (e.g. "10m"). Empty
	// or unparseable selects node.DefaultSweepInterval.
	SweepInterval string `toml:"sweep_interval,omitempty"`
}

// ParsedSweepInterval parses SweepInterval, returning 0 (which
// node.StartExpirySweep treats as "use the default") if unset or
// malformed.
func (c *Config) ParsedSweepInterval() time.Duration {
	if c.SweepInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.SweepInterval)
	if err != nil {
		return 0
	}
	return d
}

// PHTConfig mirrors pht.Options in a TOML-friendly shape (durations as
// strings rather than time.Duration's raw integer nanoseconds).
type PHTConfig struct {
	MaxElement        int    `toml:"max_element,omitempty"`
	NodeExpireTime    string `toml:"node_expire_time,omitempty"`
	MaxNodeEntryCount int    `toml:"max_node_entry_count,omitempty"`
	CanaryClimbProb   float64 `toml:"canary_climb_prob,omitempty"`
}

// ToOptions converts the on-disk config into pht.Options, applying
// pht's own defaults for anything left zero. A malformed duration string
// is treated as unset rather than rejected, since it only affects a
// performance tunable, not correctness.
func (c PHTConfig) ToOptions() pht.Options {
	var expire time.Duration
	if c.NodeExpireTime != "" {
		if d, err := time.ParseDuration(c.NodeExpireTime); err == nil {
			expire = d
		}
	}
	return pht.Options{
		MaxElement:        c.MaxElement,
		NodeExpireTime:    expire,
		MaxNodeEntryCount: c.MaxNodeEntryCount,
		CanaryClimbProb:   c.CanaryClimbProb,
	}
}

// Common is the generic portion of an application's configuration: the
// path it was loaded from, its logging setup, and the loader that
// (de)serializes it. NewCommon must be called from every Config
// constructor, keeping the file-path/logger/loader bundle in one place.
type Common struct {
	Path     string
	Logger   *logging.Config `toml:"logger"`
	Encoding string
	loader   Loader
}

// NewCommon initializes the common portion of a config: its file path,
// its loader for the given encoding, and its logging setup.
func NewCommon(file, encoding string, logger *logging.Config) *Common {
	return &Common{
		Path:     file,
		Logger:   logger,
		Encoding: encoding,
		loader:   newLoader(encoding),
	}
}

// GetPath returns the config's file path, satisfying AppConfig.
func (c *Common) GetPath() string { return c.Path }

// AppConfig abstracts over a config's on-disk encoding.
type AppConfig interface {
	Load(file, encoding string) error
	Save() error
	GetPath() string
}

// New returns a Config with defaults filled in and the given file path
// and encoding recorded, ready for Load or Save.
func New(file, encoding string) *Config {
	return &Config{
		Common:      NewCommon(file, encoding, &logging.Config{Environment: "development"}),
		Address:     node.ServerAddress{Address: "tcp://0.0.0.0:38080"},
		StoragePath: "./phtnode-data",
	}
}

// Load reads and decodes conf's configuration file, using the loader
// selected by encoding.
func (c *Config) Load(file, encoding string) error {
	c.Common = NewCommon(file, encoding, c.Logger)
	return c.loader.Decode(c)
}

// Save encodes and writes conf's configuration file.
func (c *Config) Save() error {
	return c.loader.Encode(c)
}

var _ AppConfig = (*Config)(nil)
