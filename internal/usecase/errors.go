package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	repo "github.com/Kimbarona/dream-pack-store-be-sub000/internal/repository"
)

// ErrorCode はクライアント向けの機械可読なエラーコード。
type ErrorCode string

const (
	CodeValidationFailed        ErrorCode = "validation_failed"
	CodeInsufficientStock       ErrorCode = "insufficient_stock"
	CodeOrderAlreadyPaid        ErrorCode = "order_already_paid"
	CodeSessionAlreadyActive    ErrorCode = "session_already_active"
	CodeOrderNotCancellable     ErrorCode = "order_not_cancellable"
	CodeInvalidStatusTransition ErrorCode = "invalid_status_transition"
	CodeNotFound                ErrorCode = "not_found"
	CodeInvalidSignature        ErrorCode = "invalid_signature"
	CodeMalformedPayload        ErrorCode = "malformed_payload"
	CodeProviderError           ErrorCode = "provider_error"
	CodeRetryLater              ErrorCode = "retry_later"
	CodeUnauthorized            ErrorCode = "unauthorized"
	CodeRateLimited             ErrorCode = "rate_limited"
	CodeConflict                ErrorCode = "conflict"
	CodeInternal                ErrorCode = "internal_error"
)

// 入金確定前の注文は発送に進めない
var errPaymentNotConfirmed = errors.New("payment not confirmed")

type HTTPError struct {
	Status  int
	Code    ErrorCode
	Message string
	// フィールド単位のエラー（validation_failed のとき）
	Errors map[string]string
	// 内部の原因。レスポンスにはデバッグビルドでしか出さない。
	Cause error
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%d %s: %s: %v", e.Status, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (e *HTTPError) Unwrap() error { return e.Cause }

func NewHTTPError(status int, code ErrorCode, message string) *HTTPError {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// WithCause は原因つきのコピーを返す。
func (e *HTTPError) WithCause(err error) *HTTPError {
	cp := *e
	cp.Cause = err
	return &cp
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func validationError(fields map[string]string) *HTTPError {
	e := NewHTTPError(http.StatusUnprocessableEntity, CodeValidationFailed, "validation failed")
	e.Errors = fields
	return e
}

// 存在しない・他人のもの、どちらも同じ 404
func notFound() *HTTPError {
	return NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
}

func unauthorized() *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, CodeUnauthorized, "unauthorized")
}

func providerError(err error) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, CodeProviderError, "payment provider error").WithCause(err)
}

func illegalTransition(err error) *HTTPError {
	return NewHTTPError(http.StatusConflict, CodeInvalidStatusTransition, "invalid status transition").WithCause(err)
}

// dbError はリポジトリのエラーをHTTPエラーに寄せる。
func dbError(err error) *HTTPError {
	if he, ok := AsHTTPError(err); ok {
		return he
	}
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return notFound().WithCause(err)
	case errors.Is(err, repo.ErrLockTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return NewHTTPError(http.StatusServiceUnavailable, CodeRetryLater, "resource busy, retry later").WithCause(err)
	case errors.Is(err, repo.ErrConflict):
		return NewHTTPError(http.StatusConflict, CodeConflict, "concurrent update, retry").WithCause(err)
	}
	return NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error").WithCause(err)
}
