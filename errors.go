package medcontent

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Error type constants used in ClientError.Type.
const (
	ErrorTypeValidation       = "Validation"
	ErrorTypeNetwork          = "Network"
	ErrorTypeTimeout          = "Timeout"
	ErrorTypeServer           = "Server"
	ErrorTypeClient           = "Client"
	ErrorTypeCacheWrite       = "CacheWrite"
	ErrorTypeUnknownEndpoint  = "UnknownEndpoint"
	ErrorTypeMissingPathParam = "MissingPathParam"
	ErrorTypeRateLimit        = "RateLimit"
	ErrorTypeCircuitOpen      = "CircuitOpen"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrValidation is returned when request parameters fail schema validation.
	ErrValidation = errors.New("medcontent: validation failed")

	// ErrUnknownEndpoint is returned for lookups of unregistered endpoint names.
	ErrUnknownEndpoint = errors.New("medcontent: unknown endpoint")

	// ErrMissingPathParam is returned when a path template token stays unresolved.
	ErrMissingPathParam = errors.New("medcontent: missing path parameter")

	// ErrCircuitOpen is returned when the circuit breaker is in open state.
	ErrCircuitOpen = errors.New("medcontent: circuit open")

	// ErrRateLimited is returned when a request is denied due to rate limiting.
	ErrRateLimited = errors.New("medcontent: rate limited")
)

// ClientError is the structured error surfaced by the client. Validation and
// configuration errors carry the offending fields; transport errors carry the
// original status code so callers can distinguish "never reachable" from
// "server rejected".
type ClientError struct {
	Type        string
	Message     string
	Cause       error
	RequestID   string
	Method      string
	URL         string
	Endpoint    string
	StatusCode  int
	Attempt     int
	MaxAttempts int
	Timestamp   time.Time
	Duration    time.Duration
	Fields      map[string]string
}

// IsTransient determines if an error represents a transient failure that might
// succeed on retry. Returns true for network errors, timeouts, 5xx server
// responses and rate limiting (429). Validation, configuration and other 4xx
// errors are permanent.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeServer, ErrorTypeRateLimit, ErrorTypeCircuitOpen:
			return true
		case ErrorTypeClient:
			return clientErr.StatusCode == 429
		default:
			return false
		}
	}

	return false
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if len(e.Fields) > 0 {
		names := make([]string, 0, len(e.Fields))
		for name := range e.Fields {
			names = append(names, name)
		}
		sort.Strings(names)
		msg = fmt.Sprintf("%s (fields: %s)", msg, strings.Join(names, ", "))
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxAttempts)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is. Sentinel errors match on Type so
// callers can use errors.Is(err, ErrUnknownEndpoint) without unwrapping.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	switch target {
	case ErrValidation:
		return e.Type == ErrorTypeValidation
	case ErrUnknownEndpoint:
		return e.Type == ErrorTypeUnknownEndpoint
	case ErrMissingPathParam:
		return e.Type == ErrorTypeMissingPathParam
	case ErrCircuitOpen:
		return e.Type == ErrorTypeCircuitOpen
	case ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	for field, problem := range e.Fields {
		info += fmt.Sprintf("Field %s: %s\n", field, problem)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxAttempts)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}
