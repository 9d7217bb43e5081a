package utils

import (
	"regexp"
	"strings"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// MaskDSN hides the password component of a DSN or URL with userinfo.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}

// MaskDocument hides the middle of a CPF/CNPJ, keeping the first three and last two
// characters: "12345678900" → "123******00". Short inputs are fully masked.
func MaskDocument(doc string) string {
	doc = NormalizeDocument(doc)
	if len(doc) <= 5 {
		return strings.Repeat("*", len(doc))
	}
	return doc[:3] + strings.Repeat("*", len(doc)-5) + doc[len(doc)-2:]
}

// NormalizeDocument strips the punctuation commonly used when formatting CPF and CNPJ
// numbers ("123.456.789-00", "12.345.678/0001-90").
func NormalizeDocument(doc string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '/', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(doc))
}

// IsDocumentNumber reports whether doc, once normalized, is an 11-digit CPF or a 14-digit CNPJ.
func IsDocumentNumber(doc string) bool {
	doc = NormalizeDocument(doc)
	if len(doc) != 11 && len(doc) != 14 {
		return false
	}
	for _, r := range doc {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
