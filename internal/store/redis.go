package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealflow-cli/internal/model"
)

// RedisReportCache implements ReportCache on Redis, for deployments where
// several API instances share one report cache. Reads from multiple
// surfaces, writes only from the generation path; last writer wins.
type RedisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisConfig holds Redis connection settings for the report cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// NewRedisReportCache connects to Redis and verifies the connection.
// A TTL of zero means reports never expire.
func NewRedisReportCache(ctx context.Context, cfg RedisConfig) (*RedisReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisReportCache{
		client: client,
		ttl:    time.Duration(cfg.TTLHours) * time.Hour,
	}, nil
}

// NewRedisReportCacheWithClient wraps an existing client. Used by tests.
func NewRedisReportCacheWithClient(client *redis.Client, ttl time.Duration) *RedisReportCache {
	return &RedisReportCache{client: client, ttl: ttl}
}

func reportKey(orgnr string) string {
	return "ai_report:" + orgnr
}

func (c *RedisReportCache) GetReport(ctx context.Context, orgnr string) (*model.AIReport, error) {
	data, err := c.client.Get(ctx, reportKey(orgnr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get report %s", orgnr)
	}

	var report model.AIReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal report")
	}
	return &report, nil
}

func (c *RedisReportCache) PutReport(ctx context.Context, report *model.AIReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return eris.Wrap(err, "redis: marshal report")
	}
	if err := c.client.Set(ctx, reportKey(report.Orgnr), data, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "redis: put report %s", report.Orgnr)
	}
	return nil
}

// Close closes the underlying Redis connection.
func (c *RedisReportCache) Close() error {
	return c.client.Close()
}
