package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

var ErrMissingCredentials = errors.New("provider credentials missing")

// StatusError is returned for non-2xx provider responses.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 300 {
		body = body[:300]
	}
	return fmt.Sprintf("%s error %d: %s", e.Provider, e.StatusCode, body)
}

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	var se *StatusError
	if errors.As(err, &se) {
		// The status decides for HTTP failures; the body is only consulted
		// to tell context-length rejections apart from other 4xx.
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			return ErrorRate
		case se.StatusCode == http.StatusRequestTimeout, se.StatusCode >= 500:
			return ErrorTransient
		case se.StatusCode >= 400:
			if isContextLength(strings.ToLower(se.Body)) {
				return ErrorContext
			}
			return ErrorPermanent
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrorTransient
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "429"):
		return ErrorRate
	case isContextLength(e):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

func isContextLength(s string) bool {
	return strings.Contains(s, "context length") || strings.Contains(s, "context_length") || strings.Contains(s, "too long")
}

// Outcome is the retry verdict for one provider attempt.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRetryable
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	default:
		return "fatal"
	}
}

// OutcomeOf maps an attempt error onto an Outcome. Only rate limiting and
// transient failures are retryable.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	switch ClassifyError(err) {
	case ErrorRate, ErrorTransient:
		return OutcomeRetryable
	default:
		return OutcomeFatal
	}
}
