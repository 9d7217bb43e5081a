package secrets

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type creds struct {
	Username string
	Password string
}

func TestCache_PutAndGet(t *testing.T) {
	cache := NewCache[creds](time.Minute)
	key := "client1|serasa"

	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Put(key, creds{Username: "svc", Password: "pw"})
	got, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, "svc", got.Username)
}

func TestCache_Expiration(t *testing.T) {
	cache := NewCache[creds](time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Put("k", creds{Username: "svc"})

	now = now.Add(61 * time.Second)
	_, ok := cache.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_Bust(t *testing.T) {
	cache := NewCache[creds](time.Minute)
	cache.Put("k", creds{})
	cache.Bust("k")
	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestCache_OnAccess(t *testing.T) {
	var hits, misses int
	cache := NewCache[creds](time.Minute).OnAccess(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})
	cache.Get("k")
	cache.Put("k", creds{})
	cache.Get("k")
	cache.Get("k")
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
}

func TestCache_CleanupExpired(t *testing.T) {
	cache := NewCache[creds](time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Put("a", creds{})
	now = now.Add(30 * time.Second)
	cache.Put("b", creds{})
	now = now.Add(45 * time.Second)

	cache.cleanupExpired()
	assert.Equal(t, 1, cache.Len())
}

func TestCache_StartCleanerStops(t *testing.T) {
	cache := NewCache[creds](time.Minute)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		cache.StartCleaner(10*time.Millisecond, stop)
		close(done)
	}()
	close(stop)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}

func TestCache_ConcurrentAccess(t *testing.T) {
	cache := NewCache[creds](time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Put("k", creds{Username: "svc"})
			cache.Get("k")
		}()
	}
	wg.Wait()
	_, ok := cache.Get("k")
	assert.True(t, ok)
}

func TestMemoryProvider(t *testing.T) {
	p := NewMemoryProvider(map[string]map[string]string{
		"dev/client-a/serasa":  {"username": "a"},
		"dev/client-b/serasa":  {"username": "b"},
		"prod/client-c/serasa": {"username": "c"},
	})

	got, err := p.GetSecret(context.Background(), "dev/client-a/serasa")
	require.NoError(t, err)
	assert.Equal(t, "a", got["username"])

	_, err = p.GetSecret(context.Background(), "dev/missing/serasa")
	require.ErrorIs(t, err, ErrSecretNotFound)
	assert.Equal(t, 2, p.Calls())

	names, err := p.ListSecrets(context.Background(), "dev/")
	require.NoError(t, err)
	assert.Equal(t, []string{"dev/client-a/serasa", "dev/client-b/serasa"}, names)
}
