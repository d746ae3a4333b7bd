package postgres

// Schema creates the media library tables used by the sync engine. It is
// idempotent and applied by `mediasync migrate`.
const Schema = `
CREATE TABLE IF NOT EXISTS media_items (
	id         BIGSERIAL PRIMARY KEY,
	title      TEXT NOT NULL DEFAULT '',
	file_path  TEXT NOT NULL,
	variants   JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS media_sync_records (
	item_id     BIGINT PRIMARY KEY REFERENCES media_items(id) ON DELETE CASCADE,
	synced      BOOLEAN NOT NULL DEFAULT FALSE,
	remote_url  TEXT NOT NULL DEFAULT '',
	remote_urls JSONB NOT NULL DEFAULT '{}'::jsonb,
	synced_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`
