package serasa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/metrics"
	"github.com/Checker-Finance/serasa-adapter/internal/publisher"
	"github.com/Checker-Finance/serasa-adapter/internal/rate"
	"github.com/Checker-Finance/serasa-adapter/internal/store"
	"github.com/Checker-Finance/serasa-adapter/pkg/model"
	"github.com/Checker-Finance/serasa-adapter/pkg/utils"
)

var (
	// ErrInvalidRequest marks requests rejected before reaching Serasa.
	ErrInvalidRequest = errors.New("invalid report request")
	// ErrUnknownClient is returned when no credentials resolve for a client id.
	ErrUnknownClient = errors.New("unknown client")
	// ErrNoStore is returned by LastFetch when the service runs without a store.
	ErrNoStore = errors.New("fetch history unavailable")
)

// Failure codes carried by credit.report_failed events.
const (
	CodeBadPayload    = "BAD_PAYLOAD"
	CodeInvalid       = "INVALID_REQUEST"
	CodeUnknownClient = "UNKNOWN_CLIENT"
	CodeLogin         = "LOGIN_ERROR"
	CodeQuery         = "QUERY_ERROR"
	CodeMalformed     = "MALFORMED_OUTPUT"
	CodeUpstream      = "UPSTREAM_UNAVAILABLE"
)

// CredentialsResolver resolves per-client Serasa credentials.
type CredentialsResolver interface {
	Resolve(ctx context.Context, clientID string) (*Credentials, error)
	// Invalidate forgets cached credentials, e.g. after a rejected login.
	Invalidate(clientID string)
}

type clientEntry struct {
	client *Client
	creds  Credentials
}

// Service fetches reports on behalf of many clients. Each client id gets one Client,
// built lazily and reused so its token survives between requests.
type Service struct {
	logger     *zap.Logger
	resolver   CredentialsResolver
	store      store.Store
	publisher  publisher.EventPublisher
	rateMgr    *rate.Manager
	maxTimeout time.Duration
	now        func() time.Time

	mu      sync.Mutex
	clients map[string]*clientEntry
}

// NewService wires a Service. st and pub may be nil; fetches are then neither recorded
// nor published.
func NewService(
	logger *zap.Logger,
	resolver CredentialsResolver,
	st store.Store,
	pub publisher.EventPublisher,
	rateMgr *rate.Manager,
	maxTimeout time.Duration,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:     logger,
		resolver:   resolver,
		store:      st,
		publisher:  pub,
		rateMgr:    rateMgr,
		maxTimeout: maxTimeout,
		now:        time.Now,
		clients:    map[string]*clientEntry{},
	}
}

// FetchReport fetches one report, records it and publishes the outcome.
func (s *Service) FetchReport(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error) {
	req, err := normalizeRequest(req)
	if err != nil {
		s.fail(ctx, req, CodeInvalid, err)
		return nil, err
	}

	s.logger.Info("serasa.fetch_report.start",
		zap.String("request_id", req.RequestID),
		zap.String("client", req.ClientID),
		zap.String("report_name", req.ReportName),
		zap.String("document", utils.MaskDocument(req.DocumentID)))

	client, err := s.clientFor(ctx, req.ClientID)
	if err != nil {
		s.fail(ctx, req, CodeUnknownClient, err)
		return nil, err
	}

	report, err := client.PersonInformationReport(ctx, req.DocumentID, req.ReportName)
	if err != nil {
		if KindOf(err) == KindLogin {
			s.resolver.Invalidate(req.ClientID)
		}
		s.fail(ctx, req, failureCode(err), err)
		return nil, err
	}

	summary := Summarize(report, req.ReportName)
	res := &model.ReportResult{
		RequestID: req.RequestID,
		ClientID:  req.ClientID,
		Report:    report,
		Summary:   summary,
		FetchedAt: s.now().UTC(),
	}
	metrics.IncReportFetch(metricReportName(req.ReportName), "ok")

	s.record(ctx, model.FetchRecord{
		RequestID:      req.RequestID,
		ClientID:       req.ClientID,
		DocumentID:     req.DocumentID,
		DocumentMasked: utils.MaskDocument(req.DocumentID),
		ReportName:     req.ReportName,
		Status:         "ok",
		Summary:        &summary,
		Report:         report,
		FetchedAt:      res.FetchedAt,
	})
	published := summary
	published.DocumentNumber = utils.MaskDocument(summary.DocumentNumber)
	s.publish(ctx, req, model.TopicReportFetched, model.EventReportFetched, model.ReportFetchedEvent{
		RequestID:      req.RequestID,
		ClientID:       req.ClientID,
		DocumentMasked: utils.MaskDocument(req.DocumentID),
		Summary:        published,
		FetchedAt:      res.FetchedAt,
	})

	s.logger.Info("serasa.fetch_report.done",
		zap.String("request_id", req.RequestID),
		zap.String("client", req.ClientID),
		zap.Int("negative_count", summary.NegativeCount))
	return res, nil
}

// LastFetch returns the most recent recorded fetch for a client and document, or nil.
func (s *Service) LastFetch(ctx context.Context, clientID, documentID string) (*model.FetchRecord, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	doc := utils.NormalizeDocument(documentID)
	if strings.TrimSpace(clientID) == "" || doc == "" {
		return nil, fmt.Errorf("%w: client id and document id are required", ErrInvalidRequest)
	}
	return s.store.GetLastFetch(ctx, clientID, doc)
}

// ReportFailure publishes a credit.report_failed event for a request that never reached
// FetchReport, such as an undecodable command.
func (s *Service) ReportFailure(ctx context.Context, req model.ReportRequest, code string, cause error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if cause == nil {
		cause = errors.New(strings.ToLower(code))
	}
	s.fail(ctx, req, code, cause)
}

// clientFor returns the cached Client for clientID, rebuilding it when the resolved
// credentials changed.
func (s *Service) clientFor(ctx context.Context, clientID string) (*Client, error) {
	creds, err := s.resolver.Resolve(ctx, clientID)
	if err != nil {
		s.logger.Warn("serasa.resolve_credentials_failed",
			zap.String("client", clientID),
			zap.Error(err))
		return nil, fmt.Errorf("%w %q: %v", ErrUnknownClient, clientID, err)
	}

	key := strings.ToLower(clientID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.clients[key]; ok && e.creds == *creds {
		return e.client, nil
	}
	c, err := NewClient(s.logger.With(zap.String("client", clientID)), s.rateMgr, *creds, s.maxTimeout)
	if err != nil {
		return nil, err
	}
	s.clients[key] = &clientEntry{client: c, creds: *creds}
	return c, nil
}

func (s *Service) fail(ctx context.Context, req model.ReportRequest, code string, cause error) {
	now := s.now().UTC()
	metrics.IncReportFetch(metricReportName(req.ReportName), strings.ToLower(code))

	s.logger.Warn("serasa.fetch_report.failed",
		zap.String("request_id", req.RequestID),
		zap.String("client", req.ClientID),
		zap.String("code", code),
		zap.Error(cause))

	evt := model.ReportFailedEvent{
		RequestID:      req.RequestID,
		ClientID:       req.ClientID,
		DocumentMasked: utils.MaskDocument(req.DocumentID),
		ReportName:     req.ReportName,
		Code:           code,
		Message:        cause.Error(),
		Retryable:      code == CodeUpstream,
		FailedAt:       now,
	}
	var se *Error
	if errors.As(cause, &se) {
		evt.Message = se.Message
		evt.Error = se.ToMap()
	}

	if code != CodeInvalid && code != CodeBadPayload && req.ClientID != "" {
		s.record(ctx, model.FetchRecord{
			RequestID:      req.RequestID,
			ClientID:       req.ClientID,
			DocumentID:     req.DocumentID,
			DocumentMasked: evt.DocumentMasked,
			ReportName:     req.ReportName,
			Status:         "failed",
			ErrorCode:      code,
			ErrorMessage:   evt.Message,
			FetchedAt:      now,
		})
	}
	s.publish(ctx, req, model.TopicReportFailed, model.EventReportFailed, evt)
}

func (s *Service) record(ctx context.Context, rec model.FetchRecord) {
	if s.store == nil {
		return
	}
	if err := s.store.RecordFetch(ctx, rec); err != nil {
		metrics.IncError("store", "record_fetch_failed")
		s.logger.Warn("serasa.record_fetch_failed",
			zap.String("request_id", rec.RequestID),
			zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, req model.ReportRequest, topic, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	env, err := model.NewEnvelope(topic, eventType, req.TenantID, req.ClientID, req.CorrelationID, payload)
	if err != nil {
		metrics.IncError("publisher", "marshal_failed")
		return
	}
	if err := s.publisher.PublishEnvelope(ctx, topic, env); err != nil {
		s.logger.Warn("serasa.publish_failed",
			zap.String("event_type", eventType),
			zap.String("request_id", req.RequestID),
			zap.Error(err))
	}
}

func normalizeRequest(req model.ReportRequest) (model.ReportRequest, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	req.ReportName = strings.TrimSpace(req.ReportName)
	if req.ReportName == "" {
		req.ReportName = ReportAdvancedPF
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.DocumentID = utils.NormalizeDocument(req.DocumentID)

	if req.ClientID == "" {
		return req, fmt.Errorf("%w: client id is required", ErrInvalidRequest)
	}
	if !utils.IsDocumentNumber(req.DocumentID) {
		return req, fmt.Errorf("%w: document id must have 11 or 14 digits", ErrInvalidRequest)
	}
	if !ValidReportName(req.ReportName) {
		return req, fmt.Errorf("%w: report name must match %s", ErrInvalidRequest, reportNamePattern)
	}
	return req, nil
}

func failureCode(err error) string {
	switch KindOf(err) {
	case KindLogin:
		return CodeLogin
	case KindQuery:
		return CodeQuery
	case KindMalformedOutput:
		return CodeMalformed
	}
	return CodeUpstream
}
