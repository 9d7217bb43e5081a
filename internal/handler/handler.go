package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/metrics"
	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

// EventReportRequest is the event type of inbound report commands.
const EventReportRequest = "credit.report_request"

// ReportService is the part of serasa.Service the handler drives.
type ReportService interface {
	FetchReport(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)
	ReportFailure(ctx context.Context, req model.ReportRequest, code string, cause error)
}

// Conn is the slice of *nats.Conn the handler needs.
type Conn interface {
	QueueSubscribe(subj, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
	Publish(subj string, data []byte) error
}

// reply is sent to msg.Reply when the command was issued as a NATS request.
type reply struct {
	OK      bool                `json:"ok"`
	Result  *model.ReportResult `json:"result,omitempty"`
	Error   map[string]any      `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
}

// Handler consumes report commands from NATS and delegates to the service.
type Handler struct {
	ctx     context.Context
	logger  *zap.Logger
	nc      Conn
	service ReportService
	subject string
	queue   string
	timeout time.Duration
	subs    []*nats.Subscription
}

// NewHandler constructs a Handler; timeout bounds each report fetch.
func NewHandler(
	ctx context.Context,
	logger *zap.Logger,
	nc Conn,
	service ReportService,
	subject, queue string,
	timeout time.Duration,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = serasa.DefaultMaxTimeout + 5*time.Second
	}
	return &Handler{
		ctx:     ctx,
		logger:  logger,
		nc:      nc,
		service: service,
		subject: subject,
		queue:   queue,
		timeout: timeout,
	}
}

// Start subscribes to the command subject.
func (h *Handler) Start() error {
	sub, err := h.nc.QueueSubscribe(h.subject, h.queue, h.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", h.subject, err)
	}
	h.subs = append(h.subs, sub)
	h.logger.Info("subscribed to NATS subject",
		zap.String("subject", h.subject),
		zap.String("queue", h.queue))
	return nil
}

// Stop drains active subscriptions.
func (h *Handler) Stop() {
	for _, sub := range h.subs {
		if sub != nil {
			_ = sub.Drain()
		}
	}
	h.subs = nil
}

func (h *Handler) handleMessage(msg *nats.Msg) {
	start := time.Now()
	defer metrics.ObserveDuration(metrics.NATSMessageLatency, start, msg.Subject)

	var env model.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		h.logger.Warn("invalid envelope", zap.Error(err))
		metrics.IncNATSMessage(msg.Subject, "error")
		h.service.ReportFailure(h.ctx, model.ReportRequest{}, serasa.CodeBadPayload, err)
		h.reply(msg, reply{Message: "invalid envelope"})
		return
	}

	if env.EventType != "" && env.EventType != EventReportRequest {
		h.logger.Warn("unknown event type", zap.String("event_type", env.EventType))
		metrics.IncNATSMessage(msg.Subject, "ignored")
		return
	}

	h.onReportRequest(msg, env)
	metrics.IncNATSMessage(msg.Subject, "ok")

	h.logger.Debug("message handled",
		zap.String("event_type", env.EventType),
		zap.Duration("latency", time.Since(start)),
	)
}

func (h *Handler) onReportRequest(msg *nats.Msg, env model.Envelope) {
	var req model.ReportRequest
	if err := json.Unmarshal(env.Payload, &req); err != nil {
		h.logger.Warn("invalid report request payload", zap.Error(err))
		h.service.ReportFailure(h.ctx, fromEnvelope(req, env), serasa.CodeBadPayload, err)
		h.reply(msg, reply{Message: "invalid payload"})
		return
	}
	req = fromEnvelope(req, env)

	ctx, cancel := context.WithTimeout(h.ctx, h.timeout)
	defer cancel()

	h.logger.Info("processing report request",
		zap.String("tenant_id", req.TenantID),
		zap.String("client_id", req.ClientID),
		zap.String("request_id", req.RequestID),
		zap.String("report_name", req.ReportName),
	)

	// failures are published by the service
	res, err := h.service.FetchReport(ctx, req)
	if err != nil {
		r := reply{Message: err.Error()}
		var se *serasa.Error
		if errors.As(err, &se) {
			r.Error = se.ToMap()
		}
		h.reply(msg, r)
		return
	}
	h.reply(msg, reply{OK: true, Result: res})
}

// fromEnvelope fills request fields the payload left empty from the envelope.
func fromEnvelope(req model.ReportRequest, env model.Envelope) model.ReportRequest {
	if req.TenantID == "" {
		req.TenantID = env.TenantID
	}
	if req.ClientID == "" {
		req.ClientID = env.ClientID
	}
	if req.RequestID == "" && env.ID != uuid.Nil {
		req.RequestID = env.ID.String()
	}
	req.CorrelationID = env.CorrelationID
	return req
}

func (h *Handler) reply(msg *nats.Msg, r reply) {
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	if err := h.nc.Publish(msg.Reply, data); err != nil {
		h.logger.Warn("reply failed", zap.String("reply", msg.Reply), zap.Error(err))
	}
}
