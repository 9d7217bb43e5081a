package serasa

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

const (
	// tokenExpiryBuffer is the margin before actual expiry at which a token stops being reused.
	tokenExpiryBuffer = 300 * time.Second

	// absoluteExpiryThreshold separates the two encodings seen for expiresIn: values at or
	// above it are Unix epoch seconds, values below are seconds from issuance.
	absoluteExpiryThreshold = 1_000_000_000

	// millisExpiryThreshold marks epoch values sent in milliseconds.
	millisExpiryThreshold = 1_000_000_000_000
)

// Token is the bearer credential returned by the login endpoint.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   string // raw value as sent by the API
	Scope       string

	// ExpiresAt is the absolute expiry derived from ExpiresIn; zero when ExpiresIn is not numeric.
	ExpiresAt time.Time
}

// loginResponse is the wire shape of POST security/iam/v1/client-identities/login.
type loginResponse struct {
	AccessToken string          `json:"accessToken"`
	TokenType   string          `json:"tokenType"`
	ExpiresIn   json.RawMessage `json:"expiresIn"`
	Scope       json.RawMessage `json:"scope"`
}

// newToken converts a login response received at issuedAt into a Token.
func newToken(resp loginResponse, issuedAt time.Time) *Token {
	raw := rawString(resp.ExpiresIn)
	tok := &Token{
		AccessToken: resp.AccessToken,
		TokenType:   resp.TokenType,
		ExpiresIn:   raw,
		Scope:       rawString(resp.Scope),
	}
	if secs, ok := parseExpiresIn(raw); ok {
		switch {
		case secs >= millisExpiryThreshold:
			tok.ExpiresAt = time.UnixMilli(secs)
		case secs >= absoluteExpiryThreshold:
			tok.ExpiresAt = time.Unix(secs, 0)
		default:
			tok.ExpiresAt = issuedAt.Add(time.Duration(secs) * time.Second)
		}
	}
	return tok
}

// Alive reports whether the token may still be used at now, honouring the expiry buffer.
func (t *Token) Alive(now time.Time) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(t.ExpiresAt.Add(-tokenExpiryBuffer))
}

// Header renders the Authorization header value.
func (t *Token) Header() string {
	return t.TokenType + " " + t.AccessToken
}

func parseExpiresIn(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

// rawString flattens a JSON scalar into its textual form; strings lose their quotes,
// arrays (e.g. a scope list) are joined with spaces.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, " ")
	}
	return string(raw)
}
