package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Provider defines a generic secrets manager interface.
type Provider interface {
	// GetSecret retrieves a secret by key/path and returns a key-value map.
	GetSecret(ctx context.Context, key string) (map[string]string, error)

	// ListSecrets returns the names of all secrets whose name matches the given prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}

// ErrSecretNotFound is returned by MemoryProvider for unknown keys.
var ErrSecretNotFound = errors.New("secret not found")

// MemoryProvider serves secrets from memory. Used for local runs and tests.
type MemoryProvider struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
	calls   int
}

func NewMemoryProvider(secrets map[string]map[string]string) *MemoryProvider {
	if secrets == nil {
		secrets = map[string]map[string]string{}
	}
	return &MemoryProvider{secrets: secrets}
}

func (p *MemoryProvider) Set(key string, value map[string]string) {
	p.mu.Lock()
	p.secrets[key] = value
	p.mu.Unlock()
}

func (p *MemoryProvider) GetSecret(_ context.Context, key string) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	v, ok := p.secrets[key]
	if !ok {
		return nil, fmt.Errorf("%w: [%s]", ErrSecretNotFound, key)
	}
	out := make(map[string]string, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out, nil
}

func (p *MemoryProvider) ListSecrets(_ context.Context, prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var names []string
	for k := range p.secrets {
		if strings.HasPrefix(k, prefix) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Calls returns how many GetSecret calls were served.
func (p *MemoryProvider) Calls() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.calls
}
