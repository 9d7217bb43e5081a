package serasa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/httpclient"
	"github.com/Checker-Finance/serasa-adapter/internal/metrics"
	"github.com/Checker-Finance/serasa-adapter/internal/rate"
	"github.com/Checker-Finance/serasa-adapter/pkg/utils"
)

// DefaultMaxTimeout bounds every Serasa request when no override is configured.
const DefaultMaxTimeout = 60 * time.Second

// ErrEmptyDocument is returned when a report is requested without a document id.
var ErrEmptyDocument = errors.New("serasa: document id is required")

// Client talks to one Serasa Experian account. It owns a single bearer token slot that is
// filled lazily by Login and reused until it is within tokenExpiryBuffer of expiring.
// Requests are never retried.
type Client struct {
	logger    *zap.Logger
	creds     Credentials
	baseURL   *url.URL
	rateKey   string
	loginExec *httpclient.Executor
	queryExec *httpclient.Executor
	now       func() time.Time

	mu    sync.Mutex
	token *Token
}

// NewClient builds an unauthenticated client. An empty creds.Proxy falls back to the
// SERASA_API_PROXY environment variable; when both are empty the process-wide proxy
// environment (HTTP_PROXY / HTTPS_PROXY) applies. maxTimeout <= 0 uses DefaultMaxTimeout.
func NewClient(logger *zap.Logger, rateMgr *rate.Manager, creds Credentials, maxTimeout time.Duration) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(creds.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("serasa: invalid base url %q", creds.BaseURL)
	}

	if creds.Proxy == "" {
		creds.Proxy = os.Getenv(EnvProxy)
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if creds.Proxy != "" {
		proxyURL, err := url.Parse(creds.Proxy)
		if err != nil || proxyURL.Host == "" {
			return nil, fmt.Errorf("serasa: invalid proxy url %q", utils.MaskDSN(creds.Proxy))
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	if maxTimeout <= 0 {
		maxTimeout = DefaultMaxTimeout
	}
	httpClient := &http.Client{Timeout: maxTimeout, Transport: transport}

	return &Client{
		logger:    logger,
		creds:     creds,
		baseURL:   base,
		rateKey:   strings.ToLower(creds.Username + "@" + base.Host),
		loginExec: httpclient.New(logger, nil, httpClient, 0, venueTag, remoteErrorHandler(KindLogin)),
		queryExec: httpclient.New(logger, rateMgr, httpClient, 0, venueTag, remoteErrorHandler(KindQuery)),
		now:       time.Now,
	}, nil
}

// PersonAdvancedReport fetches the RELATORIO_AVANCADO_PF report for a CPF.
func (c *Client) PersonAdvancedReport(ctx context.Context, documentID string) (Report, error) {
	return c.PersonInformationReport(ctx, documentID, ReportAdvancedPF)
}

// PersonInformationReport fetches reportName for documentID and returns the first
// element of the "reports" list.
func (c *Client) PersonInformationReport(ctx context.Context, documentID, reportName string) (Report, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrEmptyDocument
	}

	params := url.Values{paramReportName: []string{reportName}}
	headers := http.Header{headerDocumentID: []string{documentID}}

	result, err := c.Query(ctx, creditReportResource, params, headers)
	if err != nil {
		return nil, err
	}

	list, ok := result["reports"].([]any)
	if !ok || len(list) < 1 {
		return nil, newMalformedOutput("Output should have at least one report", result)
	}
	first, ok := list[0].(map[string]any)
	if !ok {
		return nil, newMalformedOutput("First report is not an object", result)
	}

	c.logger.Info("serasa.report_fetched",
		zap.String("report_name", reportName),
		zap.String("document", utils.MaskDocument(documentID)),
		zap.Int("reports", len(list)))

	return Report(first), nil
}

// Query issues an authenticated GET for resource and returns the decoded JSON object.
// extraHeaders override the signed defaults on conflict.
func (c *Client) Query(ctx context.Context, resource string, params url.Values, extraHeaders http.Header) (map[string]any, error) {
	headers, err := c.SignedHeader(ctx)
	if err != nil {
		return nil, err
	}
	for k, v := range extraHeaders {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	u := c.resolve(resource)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header = headers

	var out map[string]any
	if err := c.queryExec.DoJSON(ctx, req, c.rateKey, &out); err != nil {
		var se *Error
		if errors.As(err, &se) {
			c.logger.Warn("serasa.query_failed",
				zap.String("resource", resource),
				zap.Int("status", se.StatusCode),
				zap.String("message", se.Message))
			return nil, se
		}
		var decErr *httpclient.DecodeError
		if errors.As(err, &decErr) {
			return nil, newMalformedOutput("Response is not a JSON object", map[string]any{"body": string(decErr.Body)})
		}
		return nil, fmt.Errorf("serasa query %s: %w", resource, err)
	}
	if out == nil {
		return nil, newMalformedOutput("Response body is empty", map[string]any{})
	}
	return out, nil
}

// SignedHeader returns the headers for an authorized request, logging in first if the
// current token is missing or about to expire.
func (c *Client) SignedHeader(ctx context.Context) (http.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.login(ctx); err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", c.token.Header())
	return h, nil
}

// Login obtains a new token unless the current one is still alive.
func (c *Client) Login(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login(ctx)
}

// TokenAlive reports whether the stored token can still be used.
func (c *Client) TokenAlive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token.Alive(c.now())
}

// login must be called with c.mu held.
func (c *Client) login(ctx context.Context) error {
	if c.token.Alive(c.now()) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve(loginResource).String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.creds.Username, c.creds.Password)

	var resp loginResponse
	if err := c.loginExec.DoJSON(ctx, req, c.rateKey, &resp); err != nil {
		metrics.IncTokenLogin("error")
		var se *Error
		if errors.As(err, &se) {
			c.logger.Error("serasa.login_failed",
				zap.String("user", c.creds.Username),
				zap.Int("status", se.StatusCode),
				zap.String("message", se.Message))
			return se
		}
		var decErr *httpclient.DecodeError
		if errors.As(err, &decErr) {
			return &Error{
				Kind:       KindLogin,
				Message:    "Login response is not valid JSON",
				Payload:    map[string]any{"body": string(decErr.Body)},
				StatusCode: decErr.Status,
			}
		}
		return fmt.Errorf("serasa login: %w", err)
	}
	if resp.AccessToken == "" {
		metrics.IncTokenLogin("error")
		return &Error{Kind: KindLogin, Message: "Login response has no accessToken", Payload: map[string]any{}}
	}

	tok := newToken(resp, c.now())
	c.token = tok
	metrics.IncTokenLogin("ok")

	if tok.ExpiresAt.IsZero() {
		c.logger.Warn("serasa.login_unparseable_expiry",
			zap.String("user", c.creds.Username),
			zap.String("expires_in", tok.ExpiresIn))
	}
	c.logger.Info("serasa.login_success",
		zap.String("user", c.creds.Username),
		zap.String("scope", tok.Scope),
		zap.Time("expires_at", tok.ExpiresAt))
	return nil
}

func (c *Client) resolve(resource string) *url.URL {
	return c.baseURL.ResolveReference(&url.URL{Path: resource})
}
