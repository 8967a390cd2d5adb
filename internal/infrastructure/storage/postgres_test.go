package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RegulationScanner/internal/domain"
)

var latestRowColumns = []string{
	"id", "topic_id", "anchor", "title", "summary", "impact_level",
	"related_article_ids", "deduced_published_at", "is_latest", "created_at",
}

func TestRecordPostgresLocksAndDemotes(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, Postgres)
	anchor := domain.Anchor("eu::addition::2025-06::x")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM verified_updates v WHERE .* LIMIT 1 FOR UPDATE`).
		WithArgs(string(anchor), true, "eu").
		WillReturnRows(sqlmock.NewRows(latestRowColumns).
			AddRow(int64(7), "eu", string(anchor), "t", "s", "low", "{1,2}", nil, true, time.Now()))
	mock.ExpectExec(`UPDATE verified_updates SET is_latest = \$1 WHERE id = \$2 AND is_latest = \$3`).
		WithArgs(false, int64(7), true).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO verified_updates .* RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectCommit()

	supersede := int64(7)
	id, err := repo.Record(context.Background(), domain.VerifiedUpdate{
		TopicID: "eu", Anchor: anchor, Title: "n", Summary: "n", Impact: domain.ImpactHigh, IsLatest: true,
	}, &supersede)
	require.NoError(t, err)
	assert.Equal(t, int64(8), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordPostgresRollsBackOnStalePointer(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, Postgres)
	anchor := domain.Anchor("eu::addition::2025-06::x")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .* FROM verified_updates v WHERE .* FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows(latestRowColumns).
			AddRow(int64(9), "eu", string(anchor), "t", "s", "high", "{}", time.Now(), true, time.Now()))
	mock.ExpectRollback()

	supersede := int64(7)
	_, err = repo.Record(context.Background(), domain.VerifiedUpdate{
		TopicID: "eu", Anchor: anchor, Title: "n", Summary: "n", Impact: domain.ImpactHigh, IsLatest: true,
	}, &supersede)
	assert.ErrorIs(t, err, ErrLatestChanged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingURLsUsesDollarPlaceholders(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewRepository(db, Postgres)
	mock.ExpectQuery(`SELECT url FROM articles WHERE url IN \(\$1,\$2\)`).
		WithArgs("https://a", "https://b").
		WillReturnRows(sqlmock.NewRows([]string{"url"}).AddRow("https://b"))

	got, err := repo.existingURLs(context.Background(), []string{"https://a", "https://b"})
	require.NoError(t, err)
	assert.Contains(t, got, "https://b")
	assert.NotContains(t, got, "https://a")
	assert.NoError(t, mock.ExpectationsWereMet())
}
