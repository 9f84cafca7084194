// Package report renders metrics snapshots as plain text.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"hostwatch/internal/metrics"
)

// WriteTable writes snap as an aligned table followed by a summary line.
func WriteTable(w io.Writer, snap metrics.Snapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "HOST\tHOSTNAME\tADDRESS\tSTATUS\tLATENCY\tAVG\tJITTER\tSUCCESS\tTREND\tUPDATED")
	fmt.Fprintln(tw, "----\t--------\t-------\t------\t-------\t---\t------\t-------\t-----\t-------")

	now := snap.TakenAt
	if now.IsZero() {
		now = time.Now()
	}
	for _, r := range snap.Rows {
		hostname := r.Hostname
		if hostname == "" {
			hostname = Placeholder
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Key, hostname, Address(r), Status(r),
			Latency(r), Average(r), Jitter(r), SuccessRate(r),
			r.Trend.Arrow(), Updated(r, now),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintln(w, Summary(snap.Summary))
	return err
}

// Summary is the one-line totals shown under tables and in the dashboard
// header.
func Summary(s metrics.Summary) string {
	return fmt.Sprintf("Total: %s  Online: %s  Offline: %s  Unknown: %s",
		humanize.Comma(int64(s.Total)), humanize.Comma(int64(s.Up)),
		humanize.Comma(int64(s.Down)), humanize.Comma(int64(s.Unknown)))
}
