package serasa

import "regexp"

const (
	// ReportAdvancedPF is the advanced individual (pessoa física) credit report.
	ReportAdvancedPF = "RELATORIO_AVANCADO_PF"

	loginResource        = "security/iam/v1/client-identities/login"
	creditReportResource = "credit-services/person-information-report/v1/creditreport"

	headerDocumentID = "X-Document-Id"
	paramReportName  = "reportName"

	// EnvProxy names the proxy used when Credentials.Proxy is empty.
	EnvProxy = "SERASA_API_PROXY"

	venueTag = "serasa"
)

// Credentials identifies one Serasa API account. Immutable after the client is built.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	BaseURL  string `json:"base_url"`
	Proxy    string `json:"proxy,omitempty"`
}

// Report is an unstructured credit report as returned by Serasa.
type Report map[string]any

var reportNamePattern = regexp.MustCompile(`^[A-Z0-9_]{1,64}$`)

// knownReports keep their own label on report metrics; any other name is counted as "other".
var knownReports = map[string]bool{
	ReportAdvancedPF: true,
}

// ValidReportName reports whether name has the shape of a Serasa report identifier.
func ValidReportName(name string) bool {
	return reportNamePattern.MatchString(name)
}

func metricReportName(name string) string {
	if knownReports[name] {
		return name
	}
	return "other"
}
