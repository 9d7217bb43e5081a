package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

func newTestStore(t *testing.T) (*HybridStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return &HybridStore{redis: rdb, ttl: time.Hour}, mr
}

func TestSetAndGetJSON(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	val := map[string]string{"username": "svc", "base_url": "https://api.example"}
	require.NoError(t, store.SetJSON(ctx, "client:cred", val, time.Minute))

	var got map[string]string
	require.NoError(t, store.GetJSON(ctx, "client:cred", &got))
	assert.Equal(t, "svc", got["username"])
}

func TestRecordFetch_CachesLastFetch(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)
	defer mr.Close()

	score := 700
	rec := model.FetchRecord{
		RequestID:      "req-1",
		ClientID:       "Client-A",
		DocumentID:     "12345678901",
		DocumentMasked: "123******01",
		ReportName:     "RELATORIO_AVANCADO_PF",
		Status:         "ok",
		Summary: &model.ReportSummary{
			DocumentNumber:  "12345678901",
			Score:           &score,
			NegativeBalance: decimal.RequireFromString("10.5"),
		},
		Report:    map[string]any{"secret": "not cached"},
		FetchedAt: time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.RecordFetch(ctx, rec))

	key := lastFetchKey("client-a", "12345678901")
	assert.True(t, mr.Exists(key))
	ttl := mr.TTL(key)
	assert.Equal(t, time.Hour, ttl)

	raw, err := mr.Get(key)
	require.NoError(t, err)
	assert.NotContains(t, raw, "not cached")
	assert.NotContains(t, raw, `"document_id"`)

	got, err := store.GetLastFetch(ctx, "client-a", "12345678901")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "12345678901", got.DocumentID)
	assert.Equal(t, "ok", got.Status)
	require.NotNil(t, got.Summary)
	assert.Equal(t, 700, *got.Summary.Score)
	assert.True(t, got.Summary.NegativeBalance.Equal(decimal.RequireFromString("10.5")))
	assert.Nil(t, got.Report)
}

func TestGetLastFetch_Miss(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	got, err := store.GetLastFetch(context.Background(), "client-a", "000")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRecordFetch_RedisDown(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	err := store.RecordFetch(context.Background(), model.FetchRecord{ClientID: "c", DocumentID: "d"})
	assert.Error(t, err)
}

func TestHealthCheck_Success(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	require.NoError(t, store.HealthCheck(context.Background()))
}

func TestHealthCheck_RedisNil(t *testing.T) {
	store := &HybridStore{redis: nil}
	err := store.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis not initialized")
}

func TestHealthCheck_RedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := &HybridStore{redis: rdb}
	mr.Close()

	err = store.HealthCheck(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}

func TestClose_NilComponents(t *testing.T) {
	store := &HybridStore{}
	require.NoError(t, store.Close())
}

func TestNewHybrid_RedisUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewHybrid(addr, 0, "", PGPoolConfig{}, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
}
