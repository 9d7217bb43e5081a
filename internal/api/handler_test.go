package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

// --- Mock Service ---

type mockService struct {
	fetchFn func(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)
	lastFn  func(ctx context.Context, clientID, documentID string) (*model.FetchRecord, error)
}

func (m *mockService) FetchReport(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx, req)
	}
	return nil, fmt.Errorf("not implemented")
}

func (m *mockService) LastFetch(ctx context.Context, clientID, documentID string) (*model.FetchRecord, error) {
	if m.lastFn != nil {
		return m.lastFn(ctx, clientID, documentID)
	}
	return nil, fmt.Errorf("not implemented")
}

type staticValidator map[string]bool

func (v staticValidator) IsKnownClient(_ context.Context, clientID string) bool {
	return v[clientID]
}

// --- Test Helpers ---

func newTestApp(svc ReportService, validator ClientValidator) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app, nil, nil, NewReportHandler(zap.NewNop(), svc, validator))
	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func okResult(req model.ReportRequest) *model.ReportResult {
	score := 712
	return &model.ReportResult{
		RequestID: "req-1",
		ClientID:  req.ClientID,
		Report:    map[string]any{"reportName": serasa.ReportAdvancedPF},
		Summary: model.ReportSummary{
			DocumentNumber: req.DocumentID,
			ReportName:     serasa.ReportAdvancedPF,
			Score:          &score,
		},
		FetchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// --- GetPersonReport ---

func TestGetPersonReport_Success(t *testing.T) {
	var got model.ReportRequest
	svc := &mockService{fetchFn: func(_ context.Context, req model.ReportRequest) (*model.ReportResult, error) {
		got = req
		return okResult(req), nil
	}}
	app := newTestApp(svc, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/clients/client-a/reports/person/12345678900?reportName=OTHER", nil)
	req.Header.Set("X-Request-Id", "caller-req")
	status, body := doRequest(t, app, req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "client-a", got.ClientID)
	assert.Equal(t, "12345678900", got.DocumentID)
	assert.Equal(t, "OTHER", got.ReportName)
	assert.Equal(t, "caller-req", got.RequestID)

	assert.Equal(t, "req-1", body["requestId"])
	assert.Equal(t, serasa.ReportAdvancedPF, body["reportName"])
	summary := body["summary"].(map[string]any)
	assert.EqualValues(t, 712, summary["score"])
}

func TestGetPersonReport_InvalidDocument(t *testing.T) {
	app := newTestApp(&mockService{}, nil)

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/clients/client-a/reports/person/123", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "CPF")
}

func TestGetPersonReport_InvalidReportName(t *testing.T) {
	app := newTestApp(&mockService{}, nil)

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet,
		"/api/v1/clients/client-a/reports/person/12345678900?reportName=junk-1", nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "reportName")
}

func TestGetPersonReport_UnknownClient(t *testing.T) {
	app := newTestApp(&mockService{}, staticValidator{"client-a": true})

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/clients/ghost/reports/person/12345678900", nil))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "unknown or unauthorized clientId", body["error"])
}

func TestGetPersonReport_SerasaErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"login", &serasa.Error{Kind: serasa.KindLogin, Message: "Invalid credentials", StatusCode: 401}, http.StatusBadGateway, "LoginError"},
		{"query", &serasa.Error{Kind: serasa.KindQuery, Message: "Internal error", StatusCode: 500}, http.StatusBadGateway, "QueryError"},
		{"query not found", &serasa.Error{Kind: serasa.KindQuery, Message: "Document not found", StatusCode: 404}, http.StatusNotFound, "QueryError"},
		{"malformed", &serasa.Error{Kind: serasa.KindMalformedOutput, Message: "Output should have at least one report"}, http.StatusBadGateway, "MalformedOutput"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockService{fetchFn: func(context.Context, model.ReportRequest) (*model.ReportResult, error) {
				return nil, tc.err
			}}
			status, body := doRequest(t, newTestApp(svc, nil),
				httptest.NewRequest(http.MethodGet, "/api/v1/clients/client-a/reports/person/12345678900", nil))
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.kind, body["type"])
		})
	}
}

// --- CreateReportFetch ---

func TestCreateReportFetch_Success(t *testing.T) {
	svc := &mockService{fetchFn: func(_ context.Context, req model.ReportRequest) (*model.ReportResult, error) {
		return okResult(req), nil
	}}
	app := newTestApp(svc, staticValidator{"client-a": true})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports",
		strings.NewReader(`{"clientId":"client-a","documentId":"123.456.789-00"}`))
	req.Header.Set("Content-Type", "application/json")
	status, body := doRequest(t, app, req)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "client-a", body["clientId"])
}

func TestCreateReportFetch_Validation(t *testing.T) {
	app := newTestApp(&mockService{}, nil)

	for _, payload := range []string{
		`{"documentId":"12345678900"}`,
		`{"clientId":"client-a"}`,
		`{"clientId":"client-a","documentId":"abcdefghijk"}`,
		`{"clientId":"client-a","documentId":"12345678900","reportName":"junk-1"}`,
		`{not json`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		status, _ := doRequest(t, app, req)
		assert.Equal(t, http.StatusBadRequest, status, payload)
	}
}

// --- GetLastFetch ---

func TestGetLastFetch(t *testing.T) {
	svc := &mockService{lastFn: func(_ context.Context, clientID, documentID string) (*model.FetchRecord, error) {
		if documentID == "12345678900" {
			return &model.FetchRecord{RequestID: "req-9", ClientID: clientID, Status: "ok"}, nil
		}
		return nil, nil
	}}
	app := newTestApp(svc, nil)

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/clients/client-a/reports/person/12345678900/last", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "req-9", body["request_id"])

	status, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/clients/client-a/reports/person/98765432100/last", nil))
	assert.Equal(t, http.StatusNotFound, status)
}

func TestGetLastFetch_NoStore(t *testing.T) {
	svc := &mockService{lastFn: func(context.Context, string, string) (*model.FetchRecord, error) {
		return nil, serasa.ErrNoStore
	}}
	status, _ := doRequest(t, newTestApp(svc, nil),
		httptest.NewRequest(http.MethodGet, "/api/v1/clients/client-a/reports/person/12345678900/last", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

// --- health / status mapping ---

func TestHealth_DegradedWithoutNATS(t *testing.T) {
	status, body := doRequest(t, newTestApp(&mockService{}, nil), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "degraded", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "disconnected", checks["nats"])
	assert.Equal(t, "disabled", checks["store"])
}

type connectedNATS struct{}

func (connectedNATS) IsConnected() bool { return true }
func (connectedNATS) FlushTimeout(time.Duration) error { return nil }

func TestHealth_OK(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app, connectedNATS{}, nil, NewReportHandler(nil, &mockService{}, nil))

	status, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: x", serasa.ErrInvalidRequest)))
	assert.Equal(t, http.StatusForbidden, statusFor(fmt.Errorf("%w %q: gone", serasa.ErrUnknownClient, "c")))
	assert.Equal(t, http.StatusGatewayTimeout, statusFor(fmt.Errorf("serasa query: %w", context.DeadlineExceeded)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
