// Package config loads the engine's process-wide startup configuration:
// protocol mode, 2PL deadlock-avoidance policy, and MVCC garbage
// collection tuning. Grounded on kv/config/config.go's Config/
// NewDefaultConfig/Validate shape, narrowed to mode, two_pl_policy,
// lock_timeout_ms, gc_threshold, version_safe_time_ms and log_level.
package config

import (
	"fmt"
	"time"

	"github.com/ngaut/log"
)

// Mode selects the concurrency-control protocol a DTxnMgr runs.
type Mode string

const (
	ModeRCC Mode = "rcc"
	ModeROT Mode = "rot"
	Mode2PL Mode = "2pl"
	ModeOCC Mode = "occ"
)

// TwoPLPolicy selects ALock's deadlock-avoidance strategy.
type TwoPLPolicy string

const (
	PolicyWaitDie  TwoPLPolicy = "wait-die"
	PolicyWoundDie TwoPLPolicy = "wound-die"
	PolicyTimeout  TwoPLPolicy = "timeout"
)

// Config is the engine's startup configuration, loaded from a toml file
// via BurntSushi/toml (see cmd/rococo-demo/main.go).
type Config struct {
	Mode Mode `toml:"mode"`

	TwoPLPolicy   TwoPLPolicy `toml:"two_pl_policy"`
	LockTimeoutMs int64       `toml:"lock_timeout_ms"`

	GCThreshold       int   `toml:"gc_threshold"`
	VersionSafeTimeMs int64 `toml:"version_safe_time_ms"`

	LogLevel string `toml:"log_level"`
}

// NewDefaultConfig returns the engine's default startup configuration.
func NewDefaultConfig() *Config {
	return &Config{
		Mode:              ModeRCC,
		TwoPLPolicy:       PolicyWaitDie,
		LockTimeoutMs:     1000,
		GCThreshold:       100,
		VersionSafeTimeMs: 5000,
		LogLevel:          "info",
	}
}

// Validate checks the configuration for internally inconsistent or
// suspicious settings, grounded on kv/config/config.go's Validate
// (return an error for a hard misconfiguration, log.Warnf for a
// suspicious-but-usable one).
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRCC, ModeROT, Mode2PL, ModeOCC:
	default:
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}

	switch c.TwoPLPolicy {
	case PolicyWaitDie, PolicyWoundDie, PolicyTimeout:
	default:
		return fmt.Errorf("config: unknown two_pl_policy %q", c.TwoPLPolicy)
	}

	if c.TwoPLPolicy == PolicyTimeout && c.LockTimeoutMs <= 0 {
		return fmt.Errorf("config: lock_timeout_ms must be > 0 under the timeout policy")
	}

	if c.GCThreshold <= 0 {
		log.Warnf("config: gc_threshold %d is non-positive, history will be swept on every update", c.GCThreshold)
	}

	if c.VersionSafeTimeMs <= 0 {
		return fmt.Errorf("config: version_safe_time_ms must be > 0")
	}

	return nil
}

// VersionSafeWindow returns VersionSafeTimeMs as a time.Duration, for
// callers constructing an mdb.MultiVersionedRow.
func (c *Config) VersionSafeWindow() time.Duration {
	return time.Duration(c.VersionSafeTimeMs) * time.Millisecond
}
