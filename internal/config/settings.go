package config

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	pkgerrors "hostwatch/pkg/errors"
)

// Keys of the settings table.
const (
	KeyInterval     = "probe_interval_ms"
	KeyTimeout      = "probe_timeout_ms"
	KeyWorkers      = "probe_workers"
	KeyStrategy     = "probe_strategy"
	KeyTCPPort      = "tcp_port"
	KeyPrivileged   = "privileged"
	KeyWindowSize   = "window_size"
	KeyEpsilon      = "trend_epsilon_ms"
	KeyMaxAddresses = "max_addresses"
	KeyRefresh      = "refresh_ms"
	KeyResolveNames = "resolve_names"
)

type setting struct {
	help   string
	apply  func(c *Config, v string) error
	format func(c Config) string
}

var settings = map[string]setting{
	KeyInterval: {
		help:   "time between probe cycles, milliseconds",
		apply:  func(c *Config, v string) (err error) { c.Interval, err = parseMillis(v); return },
		format: func(c Config) string { return formatMillis(c.Interval) },
	},
	KeyTimeout: {
		help:   "per-probe timeout, milliseconds; must be below the interval",
		apply:  func(c *Config, v string) (err error) { c.Timeout, err = parseMillis(v); return },
		format: func(c Config) string { return formatMillis(c.Timeout) },
	},
	KeyWorkers: {
		help:   "maximum probes in flight",
		apply:  func(c *Config, v string) (err error) { c.Workers, err = strconv.Atoi(v); return },
		format: func(c Config) string { return strconv.Itoa(c.Workers) },
	},
	KeyStrategy: {
		help:   "probe transport: icmp or tcp",
		apply:  func(c *Config, v string) error { c.Strategy = strings.ToLower(v); return nil },
		format: func(c Config) string { return c.Strategy },
	},
	KeyTCPPort: {
		help:   "port used by the tcp strategy",
		apply:  func(c *Config, v string) (err error) { c.TCPPort, err = strconv.Atoi(v); return },
		format: func(c Config) string { return strconv.Itoa(c.TCPPort) },
	},
	KeyPrivileged: {
		help:   "raw ICMP sockets: auto, true or false",
		apply:  func(c *Config, v string) (err error) { c.Privileged, err = ParsePrivileged(v); return },
		format: func(c Config) string { return formatPrivileged(c.Privileged) },
	},
	KeyWindowSize: {
		help:   "successful samples kept per target",
		apply:  func(c *Config, v string) (err error) { c.WindowSize, err = strconv.Atoi(v); return },
		format: func(c Config) string { return strconv.Itoa(c.WindowSize) },
	},
	KeyEpsilon: {
		help:   "latency change treated as flat, milliseconds",
		apply:  func(c *Config, v string) (err error) { c.Epsilon, err = parseMillis(v); return },
		format: func(c Config) string { return formatMillis(c.Epsilon) },
	},
	KeyMaxAddresses: {
		help:   "largest expansion accepted from one spec, 0 for no limit",
		apply:  func(c *Config, v string) (err error) { c.MaxAddresses, err = strconv.Atoi(v); return },
		format: func(c Config) string { return strconv.Itoa(c.MaxAddresses) },
	},
	KeyRefresh: {
		help:   "dashboard refresh period, milliseconds",
		apply:  func(c *Config, v string) (err error) { c.Refresh, err = parseMillis(v); return },
		format: func(c Config) string { return formatMillis(c.Refresh) },
	},
	KeyResolveNames: {
		help:   "look up hostnames for address targets",
		apply:  func(c *Config, v string) (err error) { c.ResolveNames, err = strconv.ParseBool(v); return },
		format: func(c Config) string { return strconv.FormatBool(c.ResolveNames) },
	},
}

// Keys returns every settings key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Help returns the description of a settings key.
func Help(key string) string {
	return settings[key].help
}

// Set parses one setting into c.
func (c *Config) Set(key, value string) error {
	s, ok := settings[key]
	if !ok {
		return &pkgerrors.SettingError{Key: key, Value: value, Err: pkgerrors.ErrSettingUnknown}
	}
	if err := s.apply(c, strings.TrimSpace(value)); err != nil {
		var se *pkgerrors.SettingError
		if errors.As(err, &se) {
			return se
		}
		return &pkgerrors.SettingError{
			Key:   key,
			Value: value,
			Err:   fmt.Errorf("%w: %v", pkgerrors.ErrInvalidSetting, err),
		}
	}
	return nil
}

// ApplySettings overlays stored settings on c. Keys this version does not
// know are ignored so an older binary can read a newer database.
func (c Config) ApplySettings(stored map[string]string) (Config, error) {
	for _, key := range Keys() {
		v, ok := stored[key]
		if !ok {
			continue
		}
		if err := c.Set(key, v); err != nil {
			return c, err
		}
	}
	return c, nil
}

// ValidateSetting checks a single key/value as it would be stored, against
// the rest of the configuration in base.
func ValidateSetting(base Config, key, value string) error {
	if err := base.Set(key, value); err != nil {
		return err
	}
	return base.Validate()
}

// Settings renders c as settings table values.
func (c Config) Settings() map[string]string {
	out := make(map[string]string, len(settings))
	for k, s := range settings {
		out[k] = s.format(c)
	}
	return out
}

func parseMillis(v string) (time.Duration, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Millisecond)), nil
}

func formatMillis(d time.Duration) string {
	return strconv.FormatFloat(float64(d)/float64(time.Millisecond), 'f', -1, 64)
}
