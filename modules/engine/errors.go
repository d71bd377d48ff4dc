package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// ErrorKind - 제공자 에러 분류
type ErrorKind string

const (
	KindQuotaExceeded      ErrorKind = "quota_exceeded"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindContentPolicy      ErrorKind = "content_policy"
	KindTransient          ErrorKind = "transient"
	KindMalformedResponse  ErrorKind = "malformed_response"
	KindUnknown            ErrorKind = "unknown"
)

// ProviderError - 분류된 제공자 에러
type ProviderError struct {
	Kind   ErrorKind
	Engine string
	Op     string
	Err    error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s failed (%s): %v", e.Engine, e.Op, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// StatusError - HTTP 기반 엔진이 응답 상태를 담아 반환하는 에러
type StatusError struct {
	Code    int
	Status  string
	Message string
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("status %d %s: %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

// Classify - 상태/코드 → 메시지 키워드 → Unknown 순서로 분류
// 이미 ProviderError면 그대로 반환
func Classify(engineName, op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}

	kind, ok := kindFromStatus(err)
	if !ok {
		kind = kindFromMessage(err.Error())
	}
	return &ProviderError{Kind: kind, Engine: engineName, Op: op, Err: err}
}

// KindOf - 에러의 분류. 분류되지 않은 에러는 Unknown
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var k interface{ Kind() ErrorKind }
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindUnknown
}

// Malformed - 파싱할 수 없는 제공자 응답
func Malformed(engineName, op, format string, args ...interface{}) error {
	return &ProviderError{Kind: KindMalformedResponse, Engine: engineName, Op: op, Err: fmt.Errorf(format, args...)}
}

func kindFromStatus(err error) (ErrorKind, bool) {
	var code int
	var status, message string

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	var statusErr *StatusError
	switch {
	case errors.As(err, &apiErr):
		code, status, message = apiErr.Code, apiErr.Status, apiErr.Message
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		code, status, message = apiErrPtr.Code, apiErrPtr.Status, apiErrPtr.Message
	case errors.As(err, &statusErr):
		code, status, message = statusErr.Code, statusErr.Status, statusErr.Message
	default:
		return "", false
	}

	switch {
	case status == "RESOURCE_EXHAUSTED" || code == http.StatusTooManyRequests:
		return KindQuotaExceeded, true
	case status == "UNAUTHENTICATED" || status == "PERMISSION_DENIED" ||
		code == http.StatusUnauthorized || code == http.StatusForbidden || code == http.StatusPaymentRequired:
		return KindInvalidCredentials, true
	case status == "UNAVAILABLE" || status == "DEADLINE_EXCEEDED" || code >= 500:
		return KindTransient, true
	}

	// 400 계열은 메시지로 세분화 (API key, safety 등)
	if kind := kindFromMessage(message); kind != KindUnknown {
		return kind, true
	}
	return "", false
}

func kindFromMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "quota", "rate limit", "resource_exhausted", "429"):
		return KindQuotaExceeded
	case containsAny(lower, "api key", "api_key", "billing", "unauthorized", "permission denied", "credentials"):
		return KindInvalidCredentials
	case containsAny(lower, "safety", "violate", "blocked", "content policy"):
		return KindContentPolicy
	case containsAny(lower, "timeout", "timed out", "unavailable", "connection reset", "temporarily", "503", "502"):
		return KindTransient
	}
	return KindUnknown
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
