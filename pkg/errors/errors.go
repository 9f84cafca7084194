package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Target expansion errors
	ErrInvalidSpec      = errors.New("invalid target spec")
	ErrInvalidRange     = errors.New("invalid address range")
	ErrTooManyAddresses = errors.New("spec expands to too many addresses")

	// Probe errors
	ErrResolutionFailed = errors.New("hostname did not resolve")
	ErrProbeTimeout     = errors.New("probe timeout")
	ErrProbeUnreachable = errors.New("target unreachable")
	ErrPermissionDenied = errors.New("permission denied")

	// Scheduler errors
	ErrNoTargets               = errors.New("no targets to monitor")
	ErrUnknownTarget           = errors.New("unknown target")
	ErrSchedulerRunning        = errors.New("scheduler is already running")
	ErrSchedulerStopped        = errors.New("scheduler is not running")
	ErrTimeoutNotBelowInterval = errors.New("probe timeout must be shorter than the probe interval")

	// Settings errors
	ErrInvalidSetting = errors.New("invalid setting")
	ErrSettingUnknown = errors.New("unknown setting")

	// Storage errors
	ErrSettingNotFound = errors.New("setting not found")
	ErrListNotFound    = errors.New("target list not found")
	ErrListExists      = errors.New("target list already exists")
)

// SpecError reports one target spec line that could not be expanded.
// Err is ErrInvalidSpec, ErrInvalidRange or ErrTooManyAddresses, possibly wrapped.
type SpecError struct {
	Line int
	Spec string
	Err  error
}

func (e *SpecError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d %q: %v", e.Line, e.Spec, e.Err)
	}
	return fmt.Sprintf("spec %q: %v", e.Spec, e.Err)
}

func (e *SpecError) Unwrap() error {
	return e.Err
}

// ProbeError represents a failed reachability check against a target
type ProbeError struct {
	Target string
	Reason string
	Err    error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s (%s): %v", e.Target, e.Reason, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// SettingError represents a stored or supplied setting that failed validation
type SettingError struct {
	Key   string
	Value string
	Err   error
}

func (e *SettingError) Error() string {
	return fmt.Sprintf("setting %s=%q: %v", e.Key, e.Value, e.Err)
}

func (e *SettingError) Unwrap() error {
	return e.Err
}
