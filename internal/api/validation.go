package api

import (
	"fmt"
	"strings"

	"github.com/Checker-Finance/serasa-adapter/internal/serasa"
	"github.com/Checker-Finance/serasa-adapter/pkg/utils"
)

func (r ReportFetchRequest) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("clientId is required")
	}
	if name := strings.TrimSpace(r.ReportName); name != "" && !serasa.ValidReportName(name) {
		return fmt.Errorf("reportName must be upper-case letters, digits or underscores (max 64)")
	}
	return validateDocument(r.DocumentID)
}

func validateDocument(doc string) error {
	if strings.TrimSpace(doc) == "" {
		return fmt.Errorf("documentId is required")
	}
	if !utils.IsDocumentNumber(doc) {
		return fmt.Errorf("documentId must be a CPF (11 digits) or CNPJ (14 digits)")
	}
	return nil
}
