package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/pkg/model"
	"github.com/Checker-Finance/serasa-adapter/pkg/utils"
)

// ReportService defines the report operations needed by the handler.
type ReportService interface {
	FetchReport(ctx context.Context, req model.ReportRequest) (*model.ReportResult, error)
	LastFetch(ctx context.Context, clientID, documentID string) (*model.FetchRecord, error)
}

// ClientValidator checks whether a client ID is configured and allowed.
type ClientValidator interface {
	IsKnownClient(ctx context.Context, clientID string) bool
}

// ReportHandler handles HTTP API requests for credit reports.
type ReportHandler struct {
	logger    *zap.Logger
	service   ReportService
	validator ClientValidator
}

// NewReportHandler creates a ReportHandler. validator is optional; if nil, client
// validation is left to the service.
func NewReportHandler(logger *zap.Logger, service ReportService, validator ClientValidator) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{
		logger:    logger,
		service:   service,
		validator: validator,
	}
}

// GetPersonReport handles GET /api/v1/clients/:clientId/reports/person/:documentId.
func (h *ReportHandler) GetPersonReport(c *fiber.Ctx) error {
	req := ReportFetchRequest{
		ClientID:   c.Params("clientId"),
		DocumentID: c.Params("documentId"),
		ReportName: c.Query("reportName"),
	}
	return h.fetch(c, req)
}

// CreateReportFetch handles POST /api/v1/reports.
func (h *ReportHandler) CreateReportFetch(c *fiber.Ctx) error {
	var req ReportFetchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	return h.fetch(c, req)
}

// GetLastFetch handles GET /api/v1/clients/:clientId/reports/person/:documentId/last.
func (h *ReportHandler) GetLastFetch(c *fiber.Ctx) error {
	clientID := c.Params("clientId")
	documentID := c.Params("documentId")
	if err := validateDocument(documentID); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	if h.validator != nil && !h.validator.IsKnownClient(c.UserContext(), clientID) {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{Error: "unknown or unauthorized clientId"})
	}

	rec, err := h.service.LastFetch(c.UserContext(), clientID, documentID)
	switch {
	case errors.Is(err, serasa.ErrNoStore):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
	case err != nil:
		return h.writeError(c, err)
	case rec == nil:
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "no fetch recorded for document"})
	}
	return c.Status(fiber.StatusOK).JSON(rec)
}

func (h *ReportHandler) fetch(c *fiber.Ctx, req ReportFetchRequest) error {
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}
	if h.validator != nil && !h.validator.IsKnownClient(c.UserContext(), req.ClientID) {
		return c.Status(fiber.StatusForbidden).JSON(ErrorResponse{Error: "unknown or unauthorized clientId"})
	}

	res, err := h.service.FetchReport(c.UserContext(), model.ReportRequest{
		RequestID:  c.Get("X-Request-Id"),
		ClientID:   req.ClientID,
		DocumentID: req.DocumentID,
		ReportName: req.ReportName,
	})
	if err != nil {
		h.logger.Error("serasa.fetch_report.http_failed",
			zap.String("client", req.ClientID),
			zap.String("document", utils.MaskDocument(req.DocumentID)),
			zap.Error(err))
		return h.writeError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(ReportResponse{
		RequestID:  res.RequestID,
		ClientID:   res.ClientID,
		ReportName: res.Summary.ReportName,
		Summary:    res.Summary,
		Report:     res.Report,
		FetchedAt:  res.FetchedAt,
	})
}

func (h *ReportHandler) writeError(c *fiber.Ctx, err error) error {
	resp := ErrorResponse{Error: err.Error()}
	var se *serasa.Error
	if errors.As(err, &se) {
		resp.Error = se.Message
		resp.Type = se.Kind.String()
		resp.Payload = se.Payload
	}
	return c.Status(statusFor(err)).JSON(resp)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, serasa.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, serasa.ErrUnknownClient):
		return http.StatusForbidden
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	var se *serasa.Error
	if errors.As(err, &se) {
		if se.Kind == serasa.KindQuery && se.StatusCode == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
