package serasa

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Checker-Finance/serasa-adapter/pkg/model"
)

// negativeSections are the negativeData blocks that carry a count/balance summary.
var negativeSections = []string{"pefin", "refin", "notary", "check"}

// Summarize projects a raw report onto model.ReportSummary. Missing or oddly typed
// fields are left zero; it never fails.
func Summarize(r Report, reportName string) model.ReportSummary {
	s := model.ReportSummary{
		ReportName:      reportName,
		NegativeBalance: decimal.Zero,
	}
	if name := str(r["reportName"]); name != "" {
		s.ReportName = name
	}

	if reg, ok := r["registration"].(map[string]any); ok {
		s.DocumentNumber = str(reg["documentNumber"])
		s.ConsumerName = str(reg["consumerName"])
		s.Status = str(reg["statusRegistration"])
	}

	switch sc := r["score"].(type) {
	case map[string]any:
		if n, ok := toInt(sc["score"]); ok {
			s.Score = &n
		}
	default:
		if n, ok := toInt(sc); ok {
			s.Score = &n
		}
	}

	if neg, ok := r["negativeData"].(map[string]any); ok {
		for _, section := range negativeSections {
			block, ok := neg[section].(map[string]any)
			if !ok {
				continue
			}
			sum, ok := block["summary"].(map[string]any)
			if !ok {
				continue
			}
			if n, ok := toInt(sum["count"]); ok {
				s.NegativeCount += n
			}
			if d, ok := toDecimal(sum["balance"]); ok {
				s.NegativeBalance = s.NegativeBalance.Add(d)
			}
		}
	}
	return s
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case int:
		return t, true
	case int64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	}
	return decimal.Zero, false
}
