package postgres

import (
	"testing"

	"github.com/andresuchdata/gcs-media-sync/internal/config"
	"github.com/andresuchdata/gcs-media-sync/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandidateQuery(t *testing.T) {
	t.Run("unsynced with limit and offset", func(t *testing.T) {
		q, args := candidateQuery(repository.CandidateQuery{Limit: 100, Offset: 20})
		assert.Contains(t, q, "r.item_id IS NULL OR r.synced = FALSE")
		assert.Contains(t, q, "ORDER BY m.id ASC LIMIT $1 OFFSET $2")
		assert.Equal(t, []interface{}{100, 20}, args)
	})

	t.Run("force includes synced and no limit", func(t *testing.T) {
		q, args := candidateQuery(repository.CandidateQuery{Limit: -1, IncludeSynced: true})
		assert.NotContains(t, q, "media_sync_records")
		assert.NotContains(t, q, "LIMIT")
		assert.Empty(t, args)
	})

	t.Run("offset only", func(t *testing.T) {
		q, args := candidateQuery(repository.CandidateQuery{Limit: -1, Offset: 5})
		assert.Contains(t, q, "OFFSET $1")
		assert.Equal(t, []interface{}{5}, args)
	})
}

func TestDecodeMap(t *testing.T) {
	m, err := decodeMap(nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	m, err = decodeMap([]byte(`{"thumbnail":"photo-150x150.jpg"}`))
	require.NoError(t, err)
	assert.Equal(t, "photo-150x150.jpg", m["thumbnail"])

	_, err = decodeMap([]byte(`not json`))
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	dsn := DSN(&config.DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "media", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=media sslmode=disable", dsn)
}
