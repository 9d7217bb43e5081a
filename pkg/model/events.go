package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventReportFetched = "credit.report_fetched"
	EventReportFailed  = "credit.report_failed"

	TopicReportFetched = "evt.credit.report_fetched.v1"
	TopicReportFailed  = "evt.credit.report_failed.v1"
)

// ReportRequest asks for one credit report for one document.
type ReportRequest struct {
	RequestID  string `json:"request_id,omitempty"`
	TenantID   string `json:"tenant_id,omitempty"`
	ClientID   string `json:"client_id"`
	DocumentID string `json:"document_id"`
	ReportName string `json:"report_name,omitempty"`

	// CorrelationID links emitted events to the inbound command, when there is one.
	CorrelationID uuid.UUID `json:"-"`
}

// ReportSummary is a flat projection of the fields downstream systems act on.
type ReportSummary struct {
	DocumentNumber  string          `json:"document_number"`
	ReportName      string          `json:"report_name"`
	ConsumerName    string          `json:"consumer_name,omitempty"`
	Status          string          `json:"status,omitempty"`
	Score           *int            `json:"score,omitempty"`
	NegativeCount   int             `json:"negative_count"`
	NegativeBalance decimal.Decimal `json:"negative_balance"`
}

// ReportResult is what the service returns for a successful fetch.
type ReportResult struct {
	RequestID string         `json:"request_id"`
	ClientID  string         `json:"client_id"`
	Report    map[string]any `json:"report"`
	Summary   ReportSummary  `json:"summary"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// ReportFetchedEvent is the payload of credit.report_fetched. The raw report is not
// published; consumers needing it read the audit store.
type ReportFetchedEvent struct {
	RequestID      string        `json:"request_id"`
	ClientID       string        `json:"client_id"`
	DocumentMasked string        `json:"document_masked"`
	Summary        ReportSummary `json:"summary"`
	FetchedAt      time.Time     `json:"fetched_at"`
}

// ReportFailedEvent is the payload of credit.report_failed.
type ReportFailedEvent struct {
	RequestID      string         `json:"request_id"`
	ClientID       string         `json:"client_id"`
	DocumentMasked string         `json:"document_masked"`
	ReportName     string         `json:"report_name"`
	Code           string         `json:"code"`
	Message        string         `json:"message"`
	Error          map[string]any `json:"error,omitempty"`
	Retryable      bool           `json:"retryable"`
	FailedAt       time.Time      `json:"failed_at"`
}

// FetchRecord is the audit/last-fetch record of one report request.
type FetchRecord struct {
	RequestID      string         `json:"request_id"`
	ClientID       string         `json:"client_id"`
	DocumentID     string         `json:"-"`
	DocumentMasked string         `json:"document_masked"`
	ReportName     string         `json:"report_name"`
	Status         string         `json:"status"` // ok | failed
	ErrorCode      string         `json:"error_code,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	Summary        *ReportSummary `json:"summary,omitempty"`
	Report         map[string]any `json:"-"`
	FetchedAt      time.Time      `json:"fetched_at"`
}
