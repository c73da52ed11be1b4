package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealflow-cli/internal/model"
)

func newTestRedisCache(t *testing.T) *RedisReportCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() }) //nolint:errcheck
	return NewRedisReportCacheWithClient(client, time.Hour)
}

func TestRedisReportCache_MissIsNil(t *testing.T) {
	cache := newTestRedisCache(t)

	report, err := cache.GetReport(context.Background(), "556000001")
	require.NoError(t, err)
	assert.Nil(t, report)
}

func TestRedisReportCache_PutGet(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	report := &model.AIReport{
		Orgnr:         "556000001",
		BusinessModel: "project-based contracting",
		Weaknesses:    []string{"thin management layer"},
		Levers:        []model.UpliftLever{{Name: "procurement", Impact: "medium", Effort: "low"}},
		ImpactRange:   model.ImpactRange{Low: 1, High: 3, Unit: "MSEK"},
		OutreachAngle: "growth capital",
		GeneratedAt:   time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, cache.PutReport(ctx, report))

	got, err := cache.GetReport(ctx, "556000001")
	require.NoError(t, err)
	assert.Equal(t, report, got)
}

func TestWithReportCache_RedirectsReports(t *testing.T) {
	cache := newTestRedisCache(t)
	backing := newTestSQLiteStore(t)
	st := WithReportCache(backing, cache)
	ctx := context.Background()

	report := &model.AIReport{Orgnr: "556000001", BusinessModel: "niche manufacturing", GeneratedAt: time.Now().UTC().Truncate(time.Second)}
	require.NoError(t, st.PutReport(ctx, report))

	// The report lives in the cache, not the backing store.
	fromCache, err := cache.GetReport(ctx, "556000001")
	require.NoError(t, err)
	assert.Equal(t, report, fromCache)

	fromBacking, err := backing.GetReport(ctx, "556000001")
	require.NoError(t, err)
	assert.Nil(t, fromBacking)

	got, err := st.GetReport(ctx, "556000001")
	require.NoError(t, err)
	assert.Equal(t, report, got)
}

func TestRedisReportCache_LastWriterWins(t *testing.T) {
	cache := newTestRedisCache(t)
	ctx := context.Background()

	first := &model.AIReport{Orgnr: "556000001", BusinessModel: "v1", GeneratedAt: time.Now().UTC().Truncate(time.Second)}
	second := &model.AIReport{Orgnr: "556000001", BusinessModel: "v2", GeneratedAt: time.Now().UTC().Truncate(time.Second)}

	require.NoError(t, cache.PutReport(ctx, first))
	require.NoError(t, cache.PutReport(ctx, second))

	got, err := cache.GetReport(ctx, "556000001")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.BusinessModel)
}
