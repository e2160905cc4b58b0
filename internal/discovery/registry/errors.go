package registry

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrNotFound 发布器不存在
	ErrNotFound = errors.New("registry: publisher not found")

	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("registry: already started")

	// ErrNotStarted 未启动
	ErrNotStarted = errors.New("registry: not started")

	// ErrStoreClosed 存储已关闭
	ErrStoreClosed = errors.New("registry: store is closed")

	// ErrNilStore 存储为空
	ErrNilStore = errors.New("registry: store is nil")
)

// ============================================================================
//                              错误类型
// ============================================================================

// NotFoundError 删除目标不存在
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: publisher %q not found", e.Name)
}

// Is 使 errors.Is(err, ErrNotFound) 成立
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// MissingFieldError 请求缺少必需字段
type MissingFieldError struct {
	Container string
	Field     string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("registry: missing field %s.%s", e.Container, e.Field)
}

// TimeConversionError 时间转换失败（时钟或时间戳编码）
//
// 只影响当前请求，注册中心状态不变。
type TimeConversionError struct {
	Cause error
}

func (e *TimeConversionError) Error() string {
	return "registry: time conversion failed: " + e.Cause.Error()
}

func (e *TimeConversionError) Unwrap() error {
	return e.Cause
}

// PatternError 搜索模式不是合法的正则表达式
type PatternError struct {
	Pattern string
	Cause   error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("registry: invalid search pattern %q: %v", e.Pattern, e.Cause)
}

func (e *PatternError) Unwrap() error {
	return e.Cause
}

// RemoteError 注册中心返回的未分类错误
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("registry: remote error %d: %s", e.Code, e.Message)
}
