package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestProgressPrinter_EveryTenAndLast(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, progressInterval)

	totals := domain.BatchResult{Total: 12}
	for i := 1; i <= 12; i++ {
		out := domain.Succeeded(int64(i), 100)
		totals.Add(out)
		p.Update(i, out, totals)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{
		"Progress: 10/12 (83.3%) - Success: 10, Errors: 0, Skipped: 0",
		"Progress: 12/12 (100.0%) - Success: 12, Errors: 0, Skipped: 0",
	}, lines)
}

func TestProgressPrinter_ReportsErrors(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, progressInterval)

	out := domain.SyncOutcome{ItemID: 4, Status: domain.StatusError, Reason: "timeout"}
	p.Update(1, out, domain.BatchResult{Total: 1, ErrorCount: 1})

	assert.Contains(t, buf.String(), "Error syncing item 4: timeout")
	assert.Contains(t, buf.String(), "Progress: 1/1 (100.0%) - Success: 0, Errors: 1, Skipped: 0")
}

func TestProgressPrinter_Summary(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf, progressInterval)

	p.Summary(domain.BatchResult{RunID: "r1", Total: 3, SuccessCount: 2, SkippedCount: 1, Bytes: 2048})
	assert.Contains(t, buf.String(), "3 total, 2 succeeded, 0 failed, 1 skipped, 2.0 kB uploaded (run r1)")

	buf.Reset()
	p.Summary(domain.BatchResult{})
	assert.Equal(t, "No media items to sync\n", buf.String())
}

func TestWriteSettings(t *testing.T) {
	var buf bytes.Buffer
	writeSettings(&buf, config.SyncConfig{Enabled: true, Provider: "gcs", Bucket: "media", Folder: "site", MaxWidth: 1982, ImageQuality: 85})

	out := buf.String()
	assert.Contains(t, out, "Enabled:              yes")
	assert.Contains(t, out, "Bucket:               media")
	assert.Contains(t, out, "Credentials:          no")
	assert.Contains(t, out, "Keep local on delete: yes")
}
