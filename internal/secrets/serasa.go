package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	pkgsecrets "github.com/Checker-Finance/serasa-adapter/pkg/secrets"
)

// Venue is the last segment of every Serasa secret name.
const Venue = "serasa"

// CredentialsResolver resolves per-client Serasa credentials.
//
// Secret naming convention: {env}/{clientID}/serasa
// Secret JSON format:       {"username": "...", "password": "...", "base_url": "https://...", "proxy": "..."}
type CredentialsResolver struct {
	inner      *AWSResolver[serasa.Credentials]
	defaultURL string
}

// NewCredentialsResolver builds a resolver; defaultURL fills secrets without base_url.
func NewCredentialsResolver(
	logger *zap.Logger,
	env string,
	defaultURL string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[serasa.Credentials],
) *CredentialsResolver {
	return &CredentialsResolver{
		inner:      NewAWSResolver(logger, env, Venue, provider, cache),
		defaultURL: defaultURL,
	}
}

func (r *CredentialsResolver) Resolve(ctx context.Context, clientID string) (*serasa.Credentials, error) {
	creds, err := r.inner.Resolve(ctx, clientID, func(m map[string]string) (serasa.Credentials, error) {
		return parseCredentials(m, r.defaultURL)
	})
	if err != nil {
		return nil, err
	}
	return &creds, nil
}

func (r *CredentialsResolver) Invalidate(clientID string) {
	r.inner.Invalidate(clientID)
}

func (r *CredentialsResolver) DiscoverClients(ctx context.Context) ([]string, error) {
	return r.inner.DiscoverClients(ctx)
}

func parseCredentials(m map[string]string, defaultURL string) (serasa.Credentials, error) {
	creds := serasa.Credentials{
		Username: m["username"],
		Password: m["password"],
		BaseURL:  m["base_url"],
		Proxy:    m["proxy"],
	}
	if creds.BaseURL == "" {
		creds.BaseURL = defaultURL
	}
	if creds.Username == "" {
		return serasa.Credentials{}, fmt.Errorf("missing required field 'username'")
	}
	if creds.Password == "" {
		return serasa.Credentials{}, fmt.Errorf("missing required field 'password'")
	}
	if creds.BaseURL == "" {
		return serasa.Credentials{}, fmt.Errorf("missing required field 'base_url'")
	}
	return creds, nil
}

// StaticResolver serves one set of credentials, configured from the environment, to a
// fixed list of clients. An empty list accepts any client id.
type StaticResolver struct {
	creds   serasa.Credentials
	clients map[string]struct{}
}

func NewStaticResolver(creds serasa.Credentials, clients []string) (*StaticResolver, error) {
	if _, err := parseCredentials(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
		"base_url": creds.BaseURL,
	}, ""); err != nil {
		return nil, fmt.Errorf("static credentials: %w", err)
	}
	r := &StaticResolver{creds: creds, clients: map[string]struct{}{}}
	for _, c := range clients {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			r.clients[c] = struct{}{}
		}
	}
	return r, nil
}

func (r *StaticResolver) Resolve(_ context.Context, clientID string) (*serasa.Credentials, error) {
	if len(r.clients) > 0 {
		if _, ok := r.clients[strings.ToLower(clientID)]; !ok {
			return nil, fmt.Errorf("resolve client config for %q: %w", clientID, pkgsecrets.ErrSecretNotFound)
		}
	}
	creds := r.creds
	return &creds, nil
}

func (r *StaticResolver) Invalidate(string) {}

func (r *StaticResolver) DiscoverClients(context.Context) ([]string, error) {
	out := make([]string, 0, len(r.clients))
	for c := range r.clients {
		out = append(out, c)
	}
	return out, nil
}
