// Package config resolves the effective monitoring configuration from
// built-in defaults, the stored settings table, an optional YAML file and
// command-line flags, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hostwatch/internal/metrics"
	"hostwatch/internal/monitor"
	"hostwatch/internal/probe"
	"hostwatch/internal/target"
	pkgerrors "hostwatch/pkg/errors"
)

// Config is the effective configuration of a monitoring session.
type Config struct {
	Interval     time.Duration
	Timeout      time.Duration
	Workers      int
	WindowSize   int
	Epsilon      time.Duration
	Strategy     string
	TCPPort      int
	Privileged   *bool // nil means detect
	MaxAddresses int
	Refresh      time.Duration
	ResolveNames bool

	// Targets listed in the YAML file, if any.
	Targets []string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Interval:     2 * time.Second,
		Timeout:      time.Second,
		Workers:      50,
		WindowSize:   metrics.DefaultWindowSize,
		Epsilon:      metrics.DefaultEpsilon,
		Strategy:     "icmp",
		TCPPort:      80,
		MaxAddresses: target.DefaultMaxAddresses,
		Refresh:      250 * time.Millisecond,
		ResolveNames: true,
	}
}

// Validate checks every field and reports the first offending one as a
// *errors.SettingError.
func (c Config) Validate() error {
	invalid := func(key, value, format string, args ...interface{}) error {
		return &pkgerrors.SettingError{
			Key:   key,
			Value: value,
			Err:   fmt.Errorf("%w: "+format, append([]interface{}{pkgerrors.ErrInvalidSetting}, args...)...),
		}
	}

	switch {
	case c.Interval <= 0:
		return invalid(KeyInterval, c.Interval.String(), "interval must be positive")
	case c.Timeout <= 0:
		return invalid(KeyTimeout, c.Timeout.String(), "timeout must be positive")
	case c.Timeout >= c.Interval:
		return &pkgerrors.SettingError{
			Key:   KeyTimeout,
			Value: c.Timeout.String(),
			Err:   fmt.Errorf("%w (interval is %s)", pkgerrors.ErrTimeoutNotBelowInterval, c.Interval),
		}
	case c.Workers < 1:
		return invalid(KeyWorkers, strconv.Itoa(c.Workers), "at least one worker is required")
	case c.WindowSize < 1:
		return invalid(KeyWindowSize, strconv.Itoa(c.WindowSize), "window must hold at least one sample")
	case c.Epsilon < 0:
		return invalid(KeyEpsilon, c.Epsilon.String(), "epsilon cannot be negative")
	case c.TCPPort < 1 || c.TCPPort > 65535:
		return invalid(KeyTCPPort, strconv.Itoa(c.TCPPort), "port out of range")
	case c.MaxAddresses < 0:
		return invalid(KeyMaxAddresses, strconv.Itoa(c.MaxAddresses), "cannot be negative")
	case c.Refresh <= 0:
		return invalid(KeyRefresh, c.Refresh.String(), "refresh must be positive")
	}

	switch c.Strategy {
	case "icmp", "tcp":
	default:
		return invalid(KeyStrategy, c.Strategy, "available strategies are icmp and tcp")
	}
	return nil
}

// MonitorOptions returns the scheduler options.
func (c Config) MonitorOptions() monitor.Options {
	return monitor.Options{Interval: c.Interval, Timeout: c.Timeout, Workers: c.Workers}
}

// MetricsOptions returns the metrics store options.
func (c Config) MetricsOptions() metrics.Options {
	return metrics.Options{WindowSize: c.WindowSize, Epsilon: c.Epsilon}
}

// StrategyOptions returns the probe transport options.
func (c Config) StrategyOptions() probe.StrategyOptions {
	return probe.StrategyOptions{TCPPort: c.TCPPort, Privileged: c.Privileged}
}

// fileConfig is the YAML layout. Pointers distinguish absent keys from zero
// values so a file only overrides what it names.
type fileConfig struct {
	Interval     *time.Duration `yaml:"interval"`
	Timeout      *time.Duration `yaml:"timeout"`
	Workers      *int           `yaml:"workers"`
	WindowSize   *int           `yaml:"window_size"`
	Epsilon      *time.Duration `yaml:"trend_epsilon"`
	Strategy     *string        `yaml:"strategy"`
	TCPPort      *int           `yaml:"tcp_port"`
	Privileged   *string        `yaml:"privileged"`
	MaxAddresses *int           `yaml:"max_addresses"`
	Refresh      *time.Duration `yaml:"refresh"`
	ResolveNames *bool          `yaml:"resolve_names"`
	Targets      []string       `yaml:"targets"`
}

// LoadFile reads a YAML file and applies the keys it sets on top of c.
func (c Config) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config file: %w", err)
	}
	return c.ParseYAML(data)
}

// ParseYAML applies a YAML document on top of c.
func (c Config) ParseYAML(data []byte) (Config, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return c, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fc.Interval != nil {
		c.Interval = *fc.Interval
	}
	if fc.Timeout != nil {
		c.Timeout = *fc.Timeout
	}
	if fc.Workers != nil {
		c.Workers = *fc.Workers
	}
	if fc.WindowSize != nil {
		c.WindowSize = *fc.WindowSize
	}
	if fc.Epsilon != nil {
		c.Epsilon = *fc.Epsilon
	}
	if fc.Strategy != nil {
		c.Strategy = strings.ToLower(*fc.Strategy)
	}
	if fc.TCPPort != nil {
		c.TCPPort = *fc.TCPPort
	}
	if fc.Privileged != nil {
		p, err := ParsePrivileged(*fc.Privileged)
		if err != nil {
			return c, err
		}
		c.Privileged = p
	}
	if fc.MaxAddresses != nil {
		c.MaxAddresses = *fc.MaxAddresses
	}
	if fc.Refresh != nil {
		c.Refresh = *fc.Refresh
	}
	if fc.ResolveNames != nil {
		c.ResolveNames = *fc.ResolveNames
	}
	if len(fc.Targets) > 0 {
		c.Targets = append([]string(nil), fc.Targets...)
	}
	return c, nil
}

// ParsePrivileged accepts auto, true or false.
func ParsePrivileged(s string) (*bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return nil, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return nil, &pkgerrors.SettingError{
			Key:   KeyPrivileged,
			Value: s,
			Err:   fmt.Errorf("%w: want auto, true or false", pkgerrors.ErrInvalidSetting),
		}
	}
	return &b, nil
}

func formatPrivileged(p *bool) string {
	if p == nil {
		return "auto"
	}
	return strconv.FormatBool(*p)
}
