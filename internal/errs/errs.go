// Package errs 定义单次分析请求内可恢复的错误分类，在请求边界统一转为用户可见信息。
package errs

import (
	"errors"
	"fmt"
)

// Code 错误分类。
type Code int

const (
	CodeUnknown Code = iota
	CodeInvalidCodeFormat
	CodeUnsupportedExchangePrefix
	CodeInvalidLookback
	CodeProviderUnavailable
	CodeEmptyDataset
	CodeProviderParseError
	CodeNarrationUnavailable
	CodeNarrationTimeout
)

// CodeNames 错误码名称，对外输出使用。
var CodeNames = map[Code]string{
	CodeUnknown:                   "Unknown",
	CodeInvalidCodeFormat:         "InvalidCodeFormat",
	CodeUnsupportedExchangePrefix: "UnsupportedExchangePrefix",
	CodeInvalidLookback:           "InvalidLookback",
	CodeProviderUnavailable:       "ProviderUnavailable",
	CodeEmptyDataset:              "EmptyDataset",
	CodeProviderParseError:        "ProviderParseError",
	CodeNarrationUnavailable:      "NarrationUnavailable",
	CodeNarrationTimeout:          "NarrationTimeout",
}

func (c Code) String() string {
	if name, ok := CodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

type Error struct {
	Code Code
	Msg  string
	Err  error
}

func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// Wrap 附带底层错误，Unwrap 可取回。
func Wrap(code Code, err error, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Short 不含底层错误细节，面向用户展示。
func (e *Error) Short() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf 取错误链上的第一个 *Error 的 Code，没有则为 CodeUnknown。
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is 判断错误链上是否存在指定 Code。
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsInput 是否为用户输入类错误。
func IsInput(code Code) bool {
	return code == CodeInvalidCodeFormat || code == CodeUnsupportedExchangePrefix || code == CodeInvalidLookback
}
