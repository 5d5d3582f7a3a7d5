package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// sqlRecorder captures the statements gorm builds in dry-run mode.
type sqlRecorder struct {
	gormlogger.Interface
	statements []string
}

func (r *sqlRecorder) LogMode(gormlogger.LogLevel) gormlogger.Interface { return r }

func (r *sqlRecorder) Trace(_ context.Context, _ time.Time, fc func() (string, int64), _ error) {
	sql, _ := fc()
	r.statements = append(r.statements, sql)
}

func newDryRunRepository(t *testing.T) (*CacheRepository, *sqlRecorder) {
	t.Helper()
	rec := &sqlRecorder{Interface: gormlogger.Discard}
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: "host=localhost user=analytics dbname=analytics sslmode=disable",
	}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
		Logger:                 rec,
	})
	require.NoError(t, err)
	return NewCacheRepository(db), rec
}

func TestCacheRepositoryUpsertStatement(t *testing.T) {
	repo, rec := newDryRunRepository(t)

	err := repo.Upsert(context.Background(), "brands_mix_v3_6", []byte(`{"total_sales":1}`), time.Now().Add(6*time.Hour))

	require.NoError(t, err)
	require.Len(t, rec.statements, 1)
	sql := rec.statements[0]
	assert.Contains(t, sql, `INSERT INTO "analytics_cache"`)
	assert.Contains(t, sql, `ON CONFLICT ("key") DO UPDATE SET`)
	assert.Contains(t, sql, `"expires_at"="excluded"."expires_at"`)
	assert.Contains(t, sql, "brands_mix_v3_6")
}

func TestCacheRepositoryDeletePrefixStatement(t *testing.T) {
	repo, rec := newDryRunRepository(t)

	_, err := repo.DeletePrefix(context.Background(), "geography_v1_")

	require.NoError(t, err)
	require.Len(t, rec.statements, 1)
	sql := rec.statements[0]
	assert.Contains(t, sql, `DELETE FROM "analytics_cache"`)
	assert.Contains(t, sql, `key LIKE 'geography\_v1\_%'`)
}

func TestCacheRepositoryPurgeExpiredStatement(t *testing.T) {
	repo, rec := newDryRunRepository(t)

	_, err := repo.PurgeExpired(context.Background(), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, rec.statements, 1)
	assert.Contains(t, rec.statements[0], `DELETE FROM "analytics_cache" WHERE expires_at <= '2024-03-01 00:00:00`)
}

func TestLikeEscaper(t *testing.T) {
	assert.Equal(t, `pareto\_50\%\\x`, likeEscaper.Replace(`pareto_50%\x`))
}
