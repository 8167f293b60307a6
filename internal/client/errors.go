package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind 生成错误类型
type ErrorKind string

const (
	KindRateLimited     ErrorKind = "rate_limited"
	KindTimeout         ErrorKind = "timeout"
	KindUpstream        ErrorKind = "upstream"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindEmptyResponse   ErrorKind = "empty_response"
)

// GenerationError 生成后端错误，Kind 区分限流与其他错误
type GenerationError struct {
	Kind       ErrorKind
	Backend    string
	StatusCode int
	Err        error
}

func (e *GenerationError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s 生成失败 (%s, status %d): %v", e.Backend, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s 生成失败 (%s): %v", e.Backend, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsRateLimited 是否为限流错误
func IsRateLimited(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr) && genErr.Kind == KindRateLimited
}

// ErrorKindOf 返回错误类型，非 GenerationError 返回空
func ErrorKindOf(err error) ErrorKind {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Kind
	}
	return ""
}

// HTTPStatusError 非 2xx 响应
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("API 返回错误 %d (%s): %s", e.StatusCode, e.URL, e.Body)
}

// classifyError 将传输层错误归类为 GenerationError
func classifyError(backend string, err error) error {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationError{Kind: KindTimeout, Backend: backend, Err: err}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		kind := KindUpstream
		if statusErr.StatusCode == http.StatusTooManyRequests || strings.Contains(statusErr.Body, "Throttling") {
			kind = KindRateLimited
		}
		return &GenerationError{Kind: kind, Backend: backend, StatusCode: statusErr.StatusCode, Err: err}
	}

	return &GenerationError{Kind: KindUpstream, Backend: backend, Err: err}
}
