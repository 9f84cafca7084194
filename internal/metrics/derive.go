package metrics

import "time"

// Status is the outcome of the most recent probe.
type Status int

const (
	StatusUnknown Status = iota // never probed
	StatusUp
	StatusDown
)

func (s Status) String() string {
	switch s {
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	default:
		return "UNKNOWN"
	}
}

// Trend compares the two most recent successful latencies.
type Trend int

const (
	TrendUnknown Trend = iota // fewer than two successful samples
	TrendFlat
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendFlat:
		return "flat"
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "unknown"
	}
}

// Arrow renders the trend as a single glyph.
func (t Trend) Arrow() string {
	switch t {
	case TrendFlat:
		return "-"
	case TrendUp:
		return "↑"
	case TrendDown:
		return "↓"
	default:
		return "?"
	}
}

// SuccessRate returns successes/attempts. ok is false when nothing has been
// attempted yet.
func SuccessRate(successes, attempts uint64) (rate float64, ok bool) {
	if attempts == 0 {
		return 0, false
	}
	return float64(successes) / float64(attempts), true
}

// Jitter is the mean absolute difference between consecutive samples. ok is
// false with fewer than two samples.
func Jitter(samples []time.Duration) (jitter time.Duration, ok bool) {
	if len(samples) < 2 {
		return 0, false
	}
	var sum time.Duration
	for i := 1; i < len(samples); i++ {
		d := samples[i] - samples[i-1]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum / time.Duration(len(samples)-1), true
}

// Average is the arithmetic mean of samples, zero when there are none.
func Average(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, s := range samples {
		sum += s
	}
	return sum / time.Duration(len(samples))
}

// TrendOf classifies last against previous. Changes within epsilon are
// flat. successes below two yields TrendUnknown.
func TrendOf(previous, last time.Duration, successes uint64, epsilon time.Duration) Trend {
	if successes < 2 {
		return TrendUnknown
	}
	diff := last - previous
	switch {
	case diff > epsilon:
		return TrendUp
	case diff < -epsilon:
		return TrendDown
	default:
		return TrendFlat
	}
}
