package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// AIUnavailableMessage показывается пользователю вместо сырого 503 от AI-сервиса.
const AIUnavailableMessage = "AI服务暂时不可用，请稍后重试"

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrAIUnavailable     = errors.New("ai service unavailable")
	ErrMalformedResponse = errors.New("malformed response body")
	ErrInvalidRequest    = errors.New("invalid request")
)

// HTTPError ответ бэкенда со статусом >= 400.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
	Body       []byte
	Cause      error
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Cause }

// APIError HTTP 2xx, но в конверте success:false или code >= 400.
type APIError struct {
	Path    string
	Code    int
	Message string
	Body    []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error on %s (code %d): %s", e.Path, e.Code, e.Message)
}

// ThrottleError несет задержку из заголовка Retry-After.
type ThrottleError struct {
	RetryAfter time.Duration
	Cause      error
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("throttled: retry after %v (cause: %v)", e.RetryAfter, e.Cause)
}

func (e *ThrottleError) Unwrap() error { return e.Cause }

// IsRetryable: сетевые ошибки, 5xx, 408 и 429 повторяем. Прочие 4xx нет.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrMalformedResponse) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, gobreaker.ErrOpenState) ||
		errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}

	var tErr *ThrottleError
	if errors.As(err, &tErr) {
		return true
	}

	var hErr *HTTPError
	if errors.As(err, &hErr) {
		return IsRetryableStatus(hErr.StatusCode)
	}

	var aErr *APIError
	if errors.As(err, &aErr) {
		return false
	}

	// Все остальное считаем сетью: обрыв, таймаут попытки, DNS
	return true
}

func IsRetryableStatus(code int) bool {
	return code >= 500 || code == http.StatusRequestTimeout || code == http.StatusTooManyRequests
}

// StatusCode достает HTTP статус из цепочки ошибок, 0 если ответа не было.
func StatusCode(err error) int {
	var hErr *HTTPError
	if errors.As(err, &hErr) {
		return hErr.StatusCode
	}
	return 0
}

// errorType метка для метрики ошибок.
func errorType(err error) string {
	var (
		hErr *HTTPError
		aErr *APIError
		tErr *ThrottleError
	)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit_open"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAIUnavailable):
		return "ai_unavailable"
	case errors.As(err, &tErr):
		return "throttled"
	case errors.As(err, &aErr):
		return "api_error"
	case errors.As(err, &hErr):
		if hErr.StatusCode >= 500 {
			return "server_error"
		}
		return "client_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	default:
		return "network"
	}
}
