package common

import (
	"errors"
	"fmt"
)

// AppError 应用级错误结构
type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code, message string, err error) error {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewError 创建新错误
func NewError(code, message string) error {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// CodeOf 返回错误链中最外层 AppError 的错误码，没有则返回空字符串
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode 判断错误链中是否存在指定错误码
func HasCode(err error, code string) bool {
	for err != nil {
		var appErr *AppError
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

// 错误码常量
const (
	ErrCodeConfig         = "CONFIG_ERROR"
	ErrCodeAuth           = "AUTH_ERROR"
	ErrCodeGitHubAPI      = "GITHUB_API_ERROR"
	ErrCodeTransport      = "TRANSPORT_ERROR"
	ErrCodeUpstreamStatus = "UPSTREAM_STATUS_ERROR"
	ErrCodeEnvelope       = "ENVELOPE_ERROR"
	ErrCodeDecode         = "DECODE_ERROR"
	ErrCodeDatabase       = "DATABASE_ERROR"
	ErrCodeNotification   = "NOTIFICATION_ERROR"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeInternal       = "INTERNAL_ERROR"
)
