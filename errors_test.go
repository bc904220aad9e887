package medcontent

import (
	"errors"
	"strings"
	"testing"
)

func TestClientErrorMessage(t *testing.T) {
	err := &ClientError{
		Type:        ErrorTypeServer,
		Message:     "server error",
		Attempt:     3,
		MaxAttempts: 3,
	}
	msg := err.Error()
	if !strings.Contains(msg, "Server") || !strings.Contains(msg, "attempt 3/3") {
		t.Errorf("Error() = %q", msg)
	}
}

func TestClientErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &ClientError{Type: ErrorTypeNetwork, Message: "network request failed", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause to errors.Is")
	}
}

func TestClientErrorSentinelMatching(t *testing.T) {
	tests := []struct {
		errType  string
		sentinel error
	}{
		{ErrorTypeValidation, ErrValidation},
		{ErrorTypeUnknownEndpoint, ErrUnknownEndpoint},
		{ErrorTypeMissingPathParam, ErrMissingPathParam},
		{ErrorTypeCircuitOpen, ErrCircuitOpen},
		{ErrorTypeRateLimit, ErrRateLimited},
	}
	for _, tt := range tests {
		err := &ClientError{Type: tt.errType, Message: "x"}
		if !errors.Is(err, tt.sentinel) {
			t.Errorf("type %s should match its sentinel", tt.errType)
		}
	}

	err := &ClientError{Type: ErrorTypeNetwork}
	if errors.Is(err, ErrValidation) {
		t.Error("network error must not match the validation sentinel")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", &ClientError{Type: ErrorTypeNetwork}, true},
		{"timeout", &ClientError{Type: ErrorTypeTimeout}, true},
		{"server", &ClientError{Type: ErrorTypeServer, StatusCode: 503}, true},
		{"rate limit", &ClientError{Type: ErrorTypeRateLimit}, true},
		{"circuit open", &ClientError{Type: ErrorTypeCircuitOpen}, true},
		{"429 client error", &ClientError{Type: ErrorTypeClient, StatusCode: 429}, true},
		{"404 client error", &ClientError{Type: ErrorTypeClient, StatusCode: 404}, false},
		{"validation", &ClientError{Type: ErrorTypeValidation}, false},
		{"plain error", errors.New("whatever"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientErrorFieldsInMessage(t *testing.T) {
	err := &ClientError{
		Type:    ErrorTypeValidation,
		Message: "invalid request parameters",
		Fields: map[string]string{
			"per_page": "must be at most 100",
			"page":     "must be at least 1",
		},
	}
	msg := err.Error()
	if !strings.Contains(msg, "page") || !strings.Contains(msg, "per_page") {
		t.Errorf("Error() = %q, want field names listed", msg)
	}
}

func TestClientErrorDebugInfo(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeClient,
		Message:    "server rejected request",
		Method:     "GET",
		URL:        "https://api.test/posts",
		StatusCode: 404,
	}
	info := err.DebugInfo()
	for _, fragment := range []string{"GET", "https://api.test/posts", "404"} {
		if !strings.Contains(info, fragment) {
			t.Errorf("DebugInfo() missing %q:\n%s", fragment, info)
		}
	}
}
