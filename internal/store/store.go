package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

// DefaultLastFetchTTL bounds how long the last fetch per document stays in Redis.
const DefaultLastFetchTTL = 24 * time.Hour

// Store defines the contract for caching and auditing report fetches.
type Store interface {
	RecordFetch(ctx context.Context, rec model.FetchRecord) error
	GetLastFetch(ctx context.Context, clientID, documentID string) (*model.FetchRecord, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) error
	HealthCheck(ctx context.Context) error
	Close() error
}

type HybridStore struct {
	redis  *redis.Client
	PG     *pgxpool.Pool
	logger *zap.Logger
	ttl    time.Duration
}

type PGPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// NewHybrid creates a Redis-first store with an optional Postgres audit trail.
func NewHybrid(redisAddr string, redisDB int, pgURL string, pgPoolConfig PGPoolConfig, ttl time.Duration, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = DefaultLastFetchTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	var pgPool *pgxpool.Pool
	if pgURL != "" {
		cfg, err := pgxpool.ParseConfig(pgURL)
		if err != nil {
			return nil, fmt.Errorf("invalid pg config: %w", err)
		}
		if pgPoolConfig.MaxConns > 0 {
			cfg.MaxConns = pgPoolConfig.MaxConns
		}
		if pgPoolConfig.MinConns > 0 {
			cfg.MinConns = pgPoolConfig.MinConns
		}
		if pgPoolConfig.MaxConnLifetime > 0 {
			cfg.MaxConnLifetime = pgPoolConfig.MaxConnLifetime
		}
		if pgPoolConfig.MaxConnIdleTime > 0 {
			cfg.MaxConnIdleTime = pgPoolConfig.MaxConnIdleTime
		}
		if pgPoolConfig.HealthCheckPeriod > 0 {
			cfg.HealthCheckPeriod = pgPoolConfig.HealthCheckPeriod
		}
		pgPool, err = pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
	}

	return &HybridStore{redis: rdb, PG: pgPool, logger: logger, ttl: ttl}, nil
}

func lastFetchKey(clientID, documentID string) string {
	return fmt.Sprintf("serasa:last_fetch:%s:%s", strings.ToLower(clientID), documentID)
}

// RecordFetch caches rec as the latest fetch for its document and appends it to
// credit.report_fetch when Postgres is configured. A Redis failure is returned;
// a Postgres failure is logged and returned.
func (s *HybridStore) RecordFetch(ctx context.Context, rec model.FetchRecord) error {
	ttl := s.ttl
	if ttl <= 0 {
		ttl = DefaultLastFetchTTL
	}
	if err := s.SetJSON(ctx, lastFetchKey(rec.ClientID, rec.DocumentID), rec, ttl); err != nil {
		s.log().Warn("store.redis.set_last_fetch_failed", zap.Error(err))
		return err
	}

	if s.PG == nil {
		return nil
	}

	var summary, report []byte
	if rec.Summary != nil {
		summary, _ = json.Marshal(rec.Summary)
	}
	if rec.Report != nil {
		report, _ = json.Marshal(rec.Report)
	}
	_, err := s.PG.Exec(ctx, `
		INSERT INTO credit.report_fetch (
			request_id, client_id, document_masked, report_name,
			status, error_code, error_message, summary, report, fetched_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.RequestID, rec.ClientID, rec.DocumentMasked, rec.ReportName,
		rec.Status, rec.ErrorCode, rec.ErrorMessage, summary, report, rec.FetchedAt)
	if err != nil {
		s.log().Error("store.pg.insert_fetch_failed", zap.Error(err))
	}
	return err
}

// GetLastFetch returns the cached latest fetch, or nil when none is cached.
func (s *HybridStore) GetLastFetch(ctx context.Context, clientID, documentID string) (*model.FetchRecord, error) {
	var rec model.FetchRecord
	err := s.GetJSON(ctx, lastFetchKey(clientID, documentID), &rec)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	rec.DocumentID = documentID
	return &rec, nil
}

func (s *HybridStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, key, data, ttl).Err()
}

func (s *HybridStore) GetJSON(ctx context.Context, key string, dest any) error {
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func (s *HybridStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if s.PG != nil {
		if err := s.PG.Ping(ctx); err != nil {
			return fmt.Errorf("postgres ping failed: %w", err)
		}
	}
	return nil
}

func (s *HybridStore) Close() error {
	if s.PG != nil {
		s.PG.Close()
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}

func (s *HybridStore) log() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}
