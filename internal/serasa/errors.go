package serasa

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures surfaced by the Serasa client.
type ErrorKind int

const (
	KindLogin ErrorKind = iota + 1
	KindQuery
	KindMalformedOutput
)

func (k ErrorKind) String() string {
	switch k {
	case KindLogin:
		return "LoginError"
	case KindQuery:
		return "QueryError"
	case KindMalformedOutput:
		return "MalformedOutput"
	default:
		return "UnknownError"
	}
}

// Sentinels for errors.Is matching on kind.
var (
	ErrLogin           = &Error{Kind: KindLogin}
	ErrQuery           = &Error{Kind: KindQuery}
	ErrMalformedOutput = &Error{Kind: KindMalformedOutput}
)

// Error is a failure reported by, or about, the Serasa API. Payload carries the raw
// object that caused it: the first remote error object, or the offending response.
type Error struct {
	Kind       ErrorKind
	Message    string
	Payload    map[string]any
	StatusCode int
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrQuery) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// ToMap renders the error for API responses and events.
func (e *Error) ToMap() map[string]any {
	payload := e.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	return map[string]any{
		"type":    e.Kind.String(),
		"message": e.Message,
		"payload": payload,
	}
}

// KindOf returns the kind of err, or 0 if err is not a Serasa error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

func newMalformedOutput(message string, payload map[string]any) *Error {
	return &Error{Kind: KindMalformedOutput, Message: message, Payload: payload}
}

// remoteErrorHandler builds the httpclient error handler for a given kind. Serasa answers
// failures with a JSON list of error objects; the first one names the failure.
func remoteErrorHandler(kind ErrorKind) func(status int, body []byte) error {
	return func(status int, body []byte) error {
		return parseRemoteError(kind, status, body)
	}
}

func parseRemoteError(kind ErrorKind, status int, body []byte) *Error {
	var list []map[string]any
	if err := json.Unmarshal(body, &list); err == nil && len(list) > 0 && list[0] != nil {
		first := list[0]
		msg, _ := first["message"].(string)
		if msg == "" {
			msg = http.StatusText(status)
		}
		return &Error{Kind: kind, Message: msg, Payload: first, StatusCode: status}
	}

	// Some gateways answer with a single object instead of a list.
	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil && obj != nil {
		if msg, ok := obj["message"].(string); ok && msg != "" {
			return &Error{Kind: kind, Message: msg, Payload: obj, StatusCode: status}
		}
	}

	return &Error{
		Kind:       kind,
		Message:    http.StatusText(status),
		Payload:    map[string]any{"body": string(body)},
		StatusCode: status,
	}
}
