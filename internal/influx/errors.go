// Package influx adapts the InfluxDB v2 administrative API (organizations,
// buckets, tasks, authorizations) to the small surface the reconciler needs,
// and classifies its failures.
package influx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/soothill/powerlogger/internal/topology"
)

// Sentinel errors for failure classification.
// Use errors.Is(err, influx.ErrUnauthorized) to check.
var (
	ErrBadRequest   = errors.New("influx: bad request")
	ErrUnauthorized = errors.New("influx: unauthorized")
	ErrForbidden    = errors.New("influx: forbidden")
	ErrNotFound     = fmt.Errorf("influx: %w", topology.ErrResourceNotFound)
	ErrConflict     = errors.New("influx: conflict")
	ErrThrottled    = errors.New("influx: throttled")
	ErrServerError  = errors.New("influx: server error")
	ErrTransport    = errors.New("influx: transport failure")
	ErrSchema       = errors.New("influx: unexpected response schema")
	ErrOrgNotFound  = errors.New("influx: organization not found")
)

// APIError wraps a sentinel with the failed operation and whatever the server
// said about it.
type APIError struct {
	Op      string
	Code    string
	Message string
	Err     error // sentinel, for errors.Is()
	Cause   error // underlying client error, if any
}

func (e *APIError) Error() string {
	switch {
	case e.Code != "" && e.Message != "":
		return fmt.Sprintf("influx: %s: %s: %s", e.Op, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("influx: %s: %s", e.Op, e.Message)
	case e.Cause != nil:
		return fmt.Sprintf("influx: %s: %v", e.Op, e.Cause)
	default:
		return fmt.Sprintf("influx: %s: %v", e.Op, e.Err)
	}
}

func (e *APIError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}

	return []error{e.Err}
}

// schemaError reports a response that decoded but lacks a required field.
func schemaError(op, detail string) error {
	return &APIError{Op: op, Message: detail, Err: ErrSchema}
}

// classify turns an error from the generated client into an APIError.
// The generated client reports server errors as "<code>: <message>" for JSON
// bodies and "<status line>[: <body>]" otherwise.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	// Cancellation is the caller's doing, not a remote failure.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("influx: %s: %w", op, err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &APIError{Op: op, Err: ErrTransport, Cause: err}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &APIError{Op: op, Err: ErrSchema, Cause: err}
	}

	msg := strings.TrimPrefix(err.Error(), ": ")

	if code, rest, ok := strings.Cut(msg, ": "); ok {
		if sentinel := classifyCode(domain.ErrorCode(code)); sentinel != nil {
			return &APIError{Op: op, Code: code, Message: rest, Err: sentinel}
		}
	}

	if status := leadingStatus(msg); status > 0 {
		if sentinel := classifyStatus(status); sentinel != nil {
			return &APIError{Op: op, Code: strconv.Itoa(status), Message: msg, Err: sentinel}
		}
	}

	return &APIError{Op: op, Message: msg, Err: ErrTransport, Cause: err}
}

// classifyCode maps an InfluxDB error code to a sentinel error.
func classifyCode(code domain.ErrorCode) error {
	switch code {
	case domain.ErrorCodeUnauthorized:
		return ErrUnauthorized
	case domain.ErrorCodeForbidden:
		return ErrForbidden
	case domain.ErrorCodeNotFound:
		return ErrNotFound
	case domain.ErrorCodeConflict:
		return ErrConflict
	case domain.ErrorCodeInvalid, domain.ErrorCodeEmptyValue, domain.ErrorCodeUnprocessableEntity,
		domain.ErrorCodeRequestTooLarge, domain.ErrorCodeUnsupportedMediaType, domain.ErrorCodeMethodNotAllowed:
		return ErrBadRequest
	case domain.ErrorCodeTooManyRequests:
		return ErrThrottled
	case domain.ErrorCodeInternalError, domain.ErrorCodeUnavailable:
		return ErrServerError
	default:
		return nil
	}
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for codes that carry no classification.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusTooManyRequests:
		return ErrThrottled
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return nil
	}
}

// leadingStatus parses a status line prefix such as "503 Service Unavailable".
func leadingStatus(msg string) int {
	const statusDigits = 3

	if len(msg) < statusDigits {
		return 0
	}

	code, err := strconv.Atoi(msg[:statusDigits])
	if err != nil || code < 100 || code > 599 {
		return 0
	}

	if len(msg) > statusDigits && msg[statusDigits] != ' ' && msg[statusDigits] != ':' {
		return 0
	}

	return code
}
