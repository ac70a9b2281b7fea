package weather

import (
	"errors"
	"fmt"
)

// InputError reports invalid caller input. It is the only error the gateway
// returns to its callers.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TokenGenerationError reports unusable signing material or a signing failure.
type TokenGenerationError struct {
	Err error
}

func (e *TokenGenerationError) Error() string {
	return fmt.Sprintf("token generation failed: %v", e.Err)
}

func (e *TokenGenerationError) Unwrap() error { return e.Err }

// UpstreamError reports a non-2xx response or a transport failure. StatusCode
// is 0 when no response was received.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: upstream request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Provider, e.StatusCode, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MalformedResponseError reports a payload that could not be mapped onto the
// canonical types.
type MalformedResponseError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Provider, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Provider, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// FailureReason classifies err for metrics and logs.
func FailureReason(err error) string {
	var (
		tokenErr     *TokenGenerationError
		upstreamErr  *UpstreamError
		malformedErr *MalformedResponseError
	)
	switch {
	case errors.As(err, &tokenErr):
		return "token"
	case errors.As(err, &upstreamErr):
		if upstreamErr.StatusCode == 0 {
			return "network"
		}
		return "status"
	case errors.As(err, &malformedErr):
		return "malformed"
	default:
		return "other"
	}
}
