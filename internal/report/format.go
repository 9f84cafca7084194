package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hostwatch/internal/metrics"
)

// Placeholder is shown for values that are not known yet.
const Placeholder = "—"

// Millis formats a duration as milliseconds with precision that suits the
// magnitude.
func Millis(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	switch {
	case ms < 10:
		return fmt.Sprintf("%.2f ms", ms)
	case ms < 100:
		return fmt.Sprintf("%.1f ms", ms)
	default:
		return humanize.CommafWithDigits(ms, 0) + " ms"
	}
}

// Latency is the most recent successful latency, or the placeholder.
func Latency(r metrics.Row) string {
	if r.Successes == 0 {
		return Placeholder
	}
	return Millis(r.Latency)
}

// Average is the window mean, or the placeholder.
func Average(r metrics.Row) string {
	if len(r.History) == 0 {
		return Placeholder
	}
	return Millis(r.Average)
}

// Jitter is the mean consecutive difference, or the placeholder.
func Jitter(r metrics.Row) string {
	if !r.JitterKnown {
		return Placeholder
	}
	return Millis(r.Jitter)
}

// SuccessRate is a percentage, or the placeholder.
func SuccessRate(r metrics.Row) string {
	if !r.RateKnown {
		return Placeholder
	}
	return fmt.Sprintf("%.1f%%", r.SuccessRate*100)
}

// Status is the status word, with the failure reason when down.
func Status(r metrics.Row) string {
	if r.Status == metrics.StatusDown && r.LastReason != "" {
		return fmt.Sprintf("%s (%s)", r.Status, r.LastReason)
	}
	return r.Status.String()
}

// Updated is the age of the last result, relative to now.
func Updated(r metrics.Row, now time.Time) string {
	if r.UpdatedAt.IsZero() {
		return "never"
	}
	if now.Sub(r.UpdatedAt) < time.Second {
		return "now"
	}
	return humanize.RelTime(r.UpdatedAt, now, "ago", "from now")
}

// Address is the resolved address of a row, or the placeholder.
func Address(r metrics.Row) string {
	if !r.Address.IsValid() {
		return Placeholder
	}
	return r.Address.String()
}

var sparks = []rune("▁▂▃▄▅▆▇█")

// Sparkline draws the last width samples scaled between their own min and
// max.
func Sparkline(samples []time.Duration, width int) string {
	if width <= 0 || len(samples) == 0 {
		return ""
	}
	if len(samples) > width {
		samples = samples[len(samples)-width:]
	}

	lo, hi := samples[0], samples[0]
	for _, s := range samples {
		if s < lo {
			lo = s
		}
		if s > hi {
			hi = s
		}
	}

	var b strings.Builder
	for _, s := range samples {
		idx := 0
		if hi > lo {
			idx = int(float64(s-lo) / float64(hi-lo) * float64(len(sparks)-1))
		}
		b.WriteRune(sparks[idx])
	}
	return b.String()
}
