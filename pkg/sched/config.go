// Copyright 2026 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package sched

import (
	"bytes"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/sqlsched/pkg/util/timeutil"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultLoopInterval bounds how long an idle scheduler sleeps before it
	// runs housekeeping again.
	DefaultLoopInterval = 100 * time.Millisecond

	// LoopIntervalKey and SessionTimeoutKey are the option names recognized
	// by ParseConfig. Values are milliseconds, or Go duration strings.
	LoopIntervalKey   = "scheduler_loop_interval"
	SessionTimeoutKey = "session_timeout"
)

// Config configures a Scheduler.
type Config struct {
	// LoopInterval bounds idle waits. Zero means DefaultLoopInterval.
	LoopInterval time.Duration
	// SessionTimeout is the default idle timeout of sessions bound through a
	// Pool. Zero disables session timeouts.
	SessionTimeout time.Duration
	// TimeSource is used for session activity and timeouts. Nil means
	// timeutil.DefaultTimeSource.
	TimeSource timeutil.TimeSource
}

// SetDefaults fills in unset fields.
func (c *Config) SetDefaults() {
	if c.LoopInterval == 0 {
		c.LoopInterval = DefaultLoopInterval
	}
	if c.TimeSource == nil {
		c.TimeSource = timeutil.DefaultTimeSource{}
	}
}

// Validate returns an error for out of range settings.
func (c Config) Validate() error {
	if c.LoopInterval < 0 {
		return errors.Newf("loop interval must not be negative, found %s", c.LoopInterval)
	}
	if c.SessionTimeout < 0 {
		return errors.Newf("session timeout must not be negative, found %s", c.SessionTimeout)
	}
	return nil
}

// ParseConfig builds a Config from server options. Unknown keys are ignored.
func ParseConfig(opts map[string]string) (Config, error) {
	var c Config
	var err error
	if v, ok := opts[LoopIntervalKey]; ok {
		if c.LoopInterval, err = parseMillis(v); err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", LoopIntervalKey)
		}
	}
	if v, ok := opts[SessionTimeoutKey]; ok {
		if c.SessionTimeout, err = parseMillis(v); err != nil {
			return Config{}, errors.Wrapf(err, "parsing %s", SessionTimeoutKey)
		}
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	c.SetDefaults()
	return c, nil
}

// parseMillis parses a plain integer as milliseconds, anything else as a Go
// duration.
func parseMillis(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty value")
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, errors.Newf("invalid duration %q", s)
	}
	return d, nil
}

// PoolConfig configures a Pool.
type PoolConfig struct {
	// Schedulers is the number of schedulers. Zero means GOMAXPROCS.
	Schedulers int
	Scheduler  Config
}

// SetDefaults fills in unset fields.
func (c *PoolConfig) SetDefaults() {
	if c.Schedulers == 0 {
		c.Schedulers = runtime.GOMAXPROCS(0)
	}
	c.Scheduler.SetDefaults()
}

// FileConfig is the YAML representation of a pool configuration.
type FileConfig struct {
	LoopInterval   string `yaml:"loop_interval,omitempty"`
	SessionTimeout string `yaml:"session_timeout,omitempty"`
	Schedulers     int    `yaml:"schedulers,omitempty"`
	LogFormat      string `yaml:"log_format,omitempty"`
	Verbosity      int32  `yaml:"verbosity,omitempty"`
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, errors.Wrapf(err, "reading config file %s", path)
	}
	return ParseConfigFile(data)
}

// ParseConfigFile decodes YAML config data. Unknown fields are rejected.
func ParseConfigFile(data []byte) (FileConfig, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return FileConfig{}, errors.Wrap(err, "decoding config")
	}
	if fc.Schedulers < 0 {
		return FileConfig{}, errors.Newf("schedulers must not be negative, found %d", fc.Schedulers)
	}
	switch fc.LogFormat {
	case "", "text", "json":
	default:
		return FileConfig{}, errors.Newf("unknown log format %q", fc.LogFormat)
	}
	return fc, nil
}

// PoolConfig converts the file config, validating durations.
func (fc FileConfig) PoolConfig() (PoolConfig, error) {
	opts := map[string]string{}
	if fc.LoopInterval != "" {
		opts[LoopIntervalKey] = fc.LoopInterval
	}
	if fc.SessionTimeout != "" {
		opts[SessionTimeoutKey] = fc.SessionTimeout
	}
	c, err := ParseConfig(opts)
	if err != nil {
		return PoolConfig{}, err
	}
	pc := PoolConfig{Schedulers: fc.Schedulers, Scheduler: c}
	pc.SetDefaults()
	return pc, nil
}
