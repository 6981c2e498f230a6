package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Errno 表示带错误码的结构化错误。
type Errno struct {
	// Code 全局唯一错误码
	Code int `json:"code"`

	// HTTP 对应的 HTTP 状态码
	HTTP int `json:"-"`

	// GRPCCode 对应的 gRPC 状态码
	GRPCCode codes.Code `json:"-"`

	// MessageEN 英文消息
	MessageEN string `json:"message"`

	// MessageZH 中文消息
	MessageZH string `json:"message_zh,omitempty"`

	cause error
}

// New 创建一个未注册的 Errno。
func New(code int, httpStatus int, grpcCode codes.Code, messageEN, messageZH string) *Errno {
	return &Errno{
		Code:      code,
		HTTP:      httpStatus,
		GRPCCode:  grpcCode,
		MessageEN: messageEN,
		MessageZH: messageZH,
	}
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// Is 按错误码比较，使 errors.Is(err, ErrRetrieval) 对派生出的副本同样成立。
func (e *Errno) Is(target error) bool {
	if t, ok := target.(*Errno); ok {
		return e.Code == t.Code
	}
	return false
}

func (e *Errno) clone() *Errno {
	c := *e
	return &c
}

// WithCause 返回附带底层原因的副本。
func (e *Errno) WithCause(cause error) *Errno {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage 返回替换英文消息的副本。
func (e *Errno) WithMessage(msg string) *Errno {
	c := e.clone()
	c.MessageEN = msg
	return c
}

// WithMessagef 返回格式化英文消息的副本。
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message 按语言返回消息。
func (e *Errno) Message(lang string) string {
	if (lang == "zh" || lang == "zh-CN" || lang == "zh_CN") && e.MessageZH != "" {
		return e.MessageZH
	}
	return e.MessageEN
}

// HTTPStatus 返回 HTTP 状态码，未设置时为 500。
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus 返回 gRPC 状态码。
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	if e.Code == 0 {
		return codes.OK
	}
	return codes.Internal
}

// Format implements fmt.Formatter.
func (e *Errno) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "errno %d [HTTP %d, gRPC %s]: %s", e.Code, e.HTTPStatus(), e.GRPCCode.String(), e.MessageEN)
			if e.cause != nil {
				_, _ = fmt.Fprintf(s, "\ncaused by: %+v", e.cause)
			}
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// FromError 将任意错误转换为 Errno，无法识别的错误归为 ErrInternal。
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// Is 是标准库 errors.Is 的别名，避免调用方同时导入两个 errors 包。
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As 是标准库 errors.As 的别名。
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join 是标准库 errors.Join 的别名。
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Wrap 用 e 包装 err，err 为 nil 时返回 nil。已是同码 Errno 的错误原样返回。
func Wrap(err error, e *Errno) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, e) {
		return err
	}
	return e.WithCause(err)
}
