package main

import (
	"fmt"
	"io"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/dustin/go-humanize"
)

const progressInterval = 10

// progressPrinter writes a progress line every interval items and once
// more for the final item. It is driven by the batch loop only.
type progressPrinter struct {
	w        io.Writer
	interval int
}

func newProgressPrinter(w io.Writer, interval int) *progressPrinter {
	if interval < 1 {
		interval = 1
	}
	return &progressPrinter{w: w, interval: interval}
}

func (p *progressPrinter) Update(done int, out domain.SyncOutcome, totals domain.BatchResult) {
	if out.Status == domain.StatusError {
		fmt.Fprintf(p.w, "Error syncing item %d: %s\n", out.ItemID, out.Reason)
	}
	if done%p.interval != 0 && done != totals.Total {
		return
	}
	percent := 100.0
	if totals.Total > 0 {
		percent = float64(done) / float64(totals.Total) * 100
	}
	fmt.Fprintf(p.w, "Progress: %d/%d (%.1f%%) - Success: %d, Errors: %d, Skipped: %d\n",
		done, totals.Total, percent, totals.SuccessCount, totals.ErrorCount, totals.SkippedCount)
}

func (p *progressPrinter) Summary(result domain.BatchResult) {
	if result.Total == 0 {
		fmt.Fprintln(p.w, "No media items to sync")
		return
	}
	fmt.Fprintf(p.w, "Sync completed: %d total, %d succeeded, %d failed, %d skipped, %s uploaded (run %s)\n",
		result.Total, result.SuccessCount, result.ErrorCount, result.SkippedCount,
		humanize.Bytes(uint64(result.Bytes)), result.RunID)
}

func printOutcome(w io.Writer, out domain.SyncOutcome) {
	switch out.Status {
	case domain.StatusSuccess:
		fmt.Fprintf(w, "Item %d synced (%s)\n", out.ItemID, humanize.Bytes(uint64(out.Bytes)))
	case domain.StatusSkipped:
		fmt.Fprintf(w, "Item %d skipped: %s\n", out.ItemID, out.Reason)
	default:
		fmt.Fprintf(w, "Item %d failed: %s\n", out.ItemID, out.Reason)
	}
	if out.Deletion != nil {
		fmt.Fprintf(w, "Local files deleted: %d, kept: %d\n",
			out.Deletion.Count(domain.ActionDeleted),
			len(out.Deletion.Files)-out.Deletion.Count(domain.ActionDeleted))
	}
}
