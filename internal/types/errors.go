package types

import "errors"

// ValidationError 表示任务提交前的参数校验失败。
// Message 面向用户展示，调用方应拦截在 UI 边界，不继续向外抛。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError 构造一个校验错误。
func NewValidationError(msg string) *ValidationError {
	return &ValidationError{Message: msg}
}

// IsValidationError 判断 err 是否为参数校验失败。
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
