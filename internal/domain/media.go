package domain

import "time"

// FullVariant is the reserved variant name under which the original's
// remote URL is recorded.
const FullVariant = "full"

// MediaItem represents one uploadable asset owned by the media library.
type MediaItem struct {
	ID                int64             `json:"id" db:"id"`
	Title             string            `json:"title" db:"title"`
	LocalOriginalPath string            `json:"local_original_path" db:"file_path"`
	// Variants maps a variant name (e.g. "thumbnail") to a filename that
	// lives in the same directory as the original.
	Variants map[string]string `json:"variants" db:"-"`
}

// SyncRecord is the persisted proof that an item was uploaded.
type SyncRecord struct {
	ItemID             int64             `json:"item_id" db:"item_id"`
	Synced             bool              `json:"synced" db:"synced"`
	RemoteURL          string            `json:"remote_url" db:"remote_url"`
	RemoteURLByVariant map[string]string `json:"remote_urls" db:"-"`
	SyncedAt           time.Time         `json:"synced_at" db:"synced_at"`
}

// URLFor returns the remote URL recorded for a variant.
func (r *SyncRecord) URLFor(variant string) (string, bool) {
	if r == nil || r.RemoteURLByVariant == nil {
		return "", false
	}
	u, ok := r.RemoteURLByVariant[variant]
	return u, ok && u != ""
}

// SyncStatus is the terminal state of a single sync attempt.
type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusSkipped SyncStatus = "skipped"
	StatusError   SyncStatus = "error"
)

// SyncOutcome is the result of syncing one media item.
type SyncOutcome struct {
	ItemID   int64           `json:"item_id"`
	Status   SyncStatus      `json:"status"`
	Reason   string          `json:"reason,omitempty"`
	Err      error           `json:"-"`
	Bytes    int64           `json:"bytes"`
	Deletion *DeletionReport `json:"deletion,omitempty"`
}

func Succeeded(id int64, bytes int64) SyncOutcome {
	return SyncOutcome{ItemID: id, Status: StatusSuccess, Bytes: bytes}
}

func Skipped(id int64, reason string) SyncOutcome {
	return SyncOutcome{ItemID: id, Status: StatusSkipped, Reason: reason}
}

// Failed builds an error outcome whose reason is the error message.
func Failed(id int64, err error) SyncOutcome {
	return SyncOutcome{ItemID: id, Status: StatusError, Reason: err.Error(), Err: err}
}

// BatchResult aggregates outcomes of a batch run.
type BatchResult struct {
	RunID        string        `json:"run_id"`
	Total        int           `json:"total"`
	SuccessCount int           `json:"success"`
	ErrorCount   int           `json:"error"`
	SkippedCount int           `json:"skipped"`
	Bytes        int64         `json:"bytes"`
	Outcomes     []SyncOutcome `json:"outcomes"`
}

// Add records an outcome. Only the batch loop calls it.
func (b *BatchResult) Add(o SyncOutcome) {
	switch o.Status {
	case StatusSuccess:
		b.SuccessCount++
	case StatusError:
		b.ErrorCount++
	case StatusSkipped:
		b.SkippedCount++
	}
	b.Bytes += o.Bytes
	b.Outcomes = append(b.Outcomes, o)
}

// FileAction describes what happened to one local or remote file.
type FileAction string

const (
	ActionDeleted      FileAction = "deleted"
	ActionFailed       FileAction = "failed"
	ActionNotConfirmed FileAction = "skipped_not_confirmed"
	ActionMissing      FileAction = "skipped_missing"
)

// FileReport is the per-file outcome of a deletion procedure.
type FileReport struct {
	Variant string     `json:"variant"`
	Path    string     `json:"path,omitempty"`
	Key     string     `json:"key"`
	Action  FileAction `json:"action"`
	Error   string     `json:"error,omitempty"`
}

// DeletionReport lists per-file outcomes; it is never collapsed into a
// single pass/fail.
type DeletionReport struct {
	ItemID int64        `json:"item_id"`
	Files  []FileReport `json:"files"`
}

// Count returns the number of files that ended in the given action.
func (r *DeletionReport) Count(action FileAction) int {
	n := 0
	for _, f := range r.Files {
		if f.Action == action {
			n++
		}
	}
	return n
}

// RemoteObjectStatus reports whether one of an item's keys is present remotely.
type RemoteObjectStatus struct {
	Variant string `json:"variant"`
	Key     string `json:"key"`
	URL     string `json:"url"`
	Exists  bool   `json:"exists"`
	Error   string `json:"error,omitempty"`
}
