// Package apperr 定义业务错误分类及其到 HTTP 状态码的映射
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Type 错误类别
type Type string

const (
	// TypeValidation 输入不合法，写入前拒绝 (400)
	TypeValidation Type = "validation"
	// TypeNotFound 目标不存在 (404)
	TypeNotFound Type = "not_found"
	// TypeConflict 资源冲突 (409)
	TypeConflict Type = "conflict"
	// TypeUnauthorized 未登录或凭证错误 (401)
	TypeUnauthorized Type = "unauthorized"
	// TypeInternal 存储失败等服务端错误，事务已整体回滚，调用方可重试 (500)
	TypeInternal Type = "internal"
)

// Error 带类别的业务错误
type Error struct {
	Type    Type
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap 支持 errors.Is / errors.As
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus 返回对应的 HTTP 状态码
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func Validation(format string, args ...any) *Error {
	return &Error{Type: TypeValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Type: TypeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Type: TypeConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(message string) *Error {
	return &Error{Type: TypeUnauthorized, Message: message}
}

// Storage 包装存储层错误
func Storage(message string, cause error) *Error {
	return &Error{Type: TypeInternal, Message: message, Cause: cause}
}

// TypeOf 返回错误类别，非 *Error 一律视为 internal
func TypeOf(err error) Type {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return TypeInternal
}

func IsValidation(err error) bool { return err != nil && TypeOf(err) == TypeValidation }
func IsNotFound(err error) bool   { return err != nil && TypeOf(err) == TypeNotFound }
func IsConflict(err error) bool   { return err != nil && TypeOf(err) == TypeConflict }
