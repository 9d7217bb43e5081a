package api

import (
	"time"

	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

// ReportFetchRequest is the body of POST /api/v1/reports.
type ReportFetchRequest struct {
	ClientID   string `json:"clientId" example:"client-demo-01"`
	DocumentID string `json:"documentId" example:"123.456.789-00"`
	ReportName string `json:"reportName,omitempty" example:"RELATORIO_AVANCADO_PF"`
}

// ReportResponse is returned for a successful fetch.
type ReportResponse struct {
	RequestID  string              `json:"requestId"`
	ClientID   string              `json:"clientId"`
	ReportName string              `json:"reportName"`
	Summary    model.ReportSummary `json:"summary"`
	Report     map[string]any      `json:"report"`
	FetchedAt  time.Time           `json:"fetchedAt"`
}

// ErrorResponse carries a failure. Type and Payload are set for Serasa errors.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    string         `json:"type,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}
