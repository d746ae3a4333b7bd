package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/gcs-media-sync/internal/domain"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/jmoiron/sqlx"
)

type MediaRepository struct {
	db *DB
}

func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

type mediaItemRow struct {
	ID       int64  `db:"id"`
	Title    string `db:"title"`
	FilePath string `db:"file_path"`
	Variants []byte `db:"variants"`
}

type syncRecordRow struct {
	ItemID     int64        `db:"item_id"`
	Synced     bool         `db:"synced"`
	RemoteURL  string       `db:"remote_url"`
	RemoteURLs []byte       `db:"remote_urls"`
	SyncedAt   sql.NullTime `db:"synced_at"`
}

// candidateQuery builds the ordered id query for q.
func candidateQuery(q repository.CandidateQuery) (string, []interface{}) {
	var b strings.Builder
	b.WriteString(`SELECT m.id FROM media_items m`)
	if !q.IncludeSynced {
		b.WriteString(` LEFT JOIN media_sync_records r ON r.item_id = m.id WHERE r.item_id IS NULL OR r.synced = FALSE`)
	}
	b.WriteString(` ORDER BY m.id ASC`)

	var args []interface{}
	if q.Limit >= 0 {
		args = append(args, q.Limit)
		b.WriteString(fmt.Sprintf(` LIMIT $%d`, len(args)))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		b.WriteString(fmt.Sprintf(` OFFSET $%d`, len(args)))
	}
	return b.String(), args
}

func (r *MediaRepository) ListItemIDs(ctx context.Context, q repository.CandidateQuery) ([]int64, error) {
	query, args := candidateQuery(q)
	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list media items: %w", err)
	}
	return ids, nil
}

func (r *MediaRepository) GetItem(ctx context.Context, id int64) (*domain.MediaItem, error) {
	var row mediaItemRow
	err := r.db.GetContext(ctx, &row,
		`SELECT id, title, file_path, variants FROM media_items WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrItemNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media item %d: %w", id, err)
	}

	item := &domain.MediaItem{
		ID:                row.ID,
		Title:             row.Title,
		LocalOriginalPath: row.FilePath,
	}
	if item.Variants, err = decodeMap(row.Variants); err != nil {
		return nil, fmt.Errorf("failed to decode variants for %d: %w", id, err)
	}
	return item, nil
}

func (r *MediaRepository) GetSyncRecord(ctx context.Context, itemID int64) (*domain.SyncRecord, bool, error) {
	var row syncRecordRow
	err := r.db.GetContext(ctx, &row,
		`SELECT item_id, synced, remote_url, remote_urls, synced_at FROM media_sync_records WHERE item_id = $1`, itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get sync record %d: %w", itemID, err)
	}

	rec := &domain.SyncRecord{
		ItemID:    row.ItemID,
		Synced:    row.Synced,
		RemoteURL: row.RemoteURL,
		SyncedAt:  row.SyncedAt.Time,
	}
	if rec.RemoteURLByVariant, err = decodeMap(row.RemoteURLs); err != nil {
		return nil, false, fmt.Errorf("failed to decode remote urls for %d: %w", itemID, err)
	}
	return rec, true, nil
}

func (r *MediaRepository) SaveSyncRecord(ctx context.Context, rec *domain.SyncRecord) error {
	urls, err := json.Marshal(rec.RemoteURLByVariant)
	if err != nil {
		return fmt.Errorf("failed to encode remote urls: %w", err)
	}
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO media_sync_records (item_id, synced, remote_url, remote_urls, synced_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (item_id)
			DO UPDATE SET
				synced = EXCLUDED.synced,
				remote_url = EXCLUDED.remote_url,
				remote_urls = EXCLUDED.remote_urls,
				synced_at = EXCLUDED.synced_at
		`, rec.ItemID, rec.Synced, rec.RemoteURL, urls, rec.SyncedAt)
		if err != nil {
			return fmt.Errorf("failed to save sync record %d: %w", rec.ItemID, err)
		}
		return nil
	})
}

func (r *MediaRepository) DeleteSyncRecord(ctx context.Context, itemID int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_sync_records WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("failed to delete sync record %d: %w", itemID, err)
	}
	return nil
}

func (r *MediaRepository) PurgeSyncRecords(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM media_sync_records`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync records: %w", err)
	}
	return res.RowsAffected()
}

func decodeMap(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

var _ repository.MediaRepository = (*MediaRepository)(nil)
