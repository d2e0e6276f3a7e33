package domain

import (
	"errors"
	"fmt"
)

// 错误分类；传输层按分类映射 HTTP 状态码
var (
	ErrValidation          = errors.New("validation error")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrExternalUnavailable = errors.New("external system unavailable")
	ErrExternal            = errors.New("external system error")
)

// 具体错误，均挂在某个分类下
var (
	ErrDuplicateEmail         = categorize(ErrConflict, "Email already registered")
	ErrDuplicateInvoiceNumber = categorize(ErrConflict, "Invoice number already exists")
	ErrInvalidCredential      = categorize(ErrValidation, "Current password is incorrect")
	ErrIncorrectPassword      = categorize(ErrValidation, "Incorrect password")
	ErrEmailNotFound          = categorize(ErrValidation, "Email not found. Please register first.")
	ErrWeakSecret             = categorize(ErrValidation, "Password must be at least 6 characters")
	ErrSelfDeletion           = categorize(ErrValidation, "Cannot delete your own account")
	ErrUserNotFound           = categorize(ErrNotFound, "User not found")
	ErrInvoiceNotFound        = categorize(ErrNotFound, "Invoice not found")
	ErrSessionInvalid         = categorize(ErrUnauthenticated, "Invalid or expired session")
)

// Error 带面向用户的消息，同时 errors.Is 命中其分类
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func categorize(kind error, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Validationf 构造一次性的校验错误
func Validationf(format string, args ...any) error {
	return categorize(ErrValidation, fmt.Sprintf(format, args...))
}

// Kind 返回 err 所属分类；未分类返回 nil（即内部错误）
func Kind(err error) error {
	for _, k := range []error{
		ErrValidation, ErrUnauthenticated, ErrForbidden, ErrNotFound,
		ErrConflict, ErrExternalUnavailable, ErrExternal,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// Message 取面向用户的消息；内部错误不外泄细节
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Msg
	}
	if k := Kind(err); k != nil {
		return k.Error()
	}
	return "internal error"
}
