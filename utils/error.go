package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

var ErrorRecordNotFound = errors.New("record not found")

type ErrorKind string

const (
	KindBadRequest        ErrorKind = "BadRequest"
	KindNotFound          ErrorKind = "NotFound"
	KindInsufficientStock ErrorKind = "InsufficientStock"
	KindDuplicateKey      ErrorKind = "DuplicateKey"
	KindInternal          ErrorKind = "Internal"
)

// AppError carries a taxonomy kind and the message shown to the caller.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches any AppError of the same kind against a bare sentinel (one without a message).
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

var (
	ErrBadRequest        = &AppError{Kind: KindBadRequest}
	ErrNotFound          = &AppError{Kind: KindNotFound}
	ErrInsufficientStock = &AppError{Kind: KindInsufficientStock}
	ErrDuplicateKey      = &AppError{Kind: KindDuplicateKey}
)

func BadRequest(format string, args ...any) error {
	return &AppError{Kind: KindBadRequest, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &AppError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func InsufficientStock(format string, args ...any) error {
	return &AppError{Kind: KindInsufficientStock, Message: fmt.Sprintf(format, args...)}
}

func DuplicateKey(format string, args ...any) error {
	return &AppError{Kind: KindDuplicateKey, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return &AppError{Kind: KindInternal, Err: err}
}

// KindOf classifies any error returned by the store, including raw gorm and driver errors.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrorRecordNotFound) {
		return KindNotFound
	}
	if IsDuplicateKeyError(err) {
		return KindDuplicateKey
	}
	return KindInternal
}

func HTTPStatus(kind ErrorKind) int {
	switch kind {
	case KindBadRequest, KindInsufficientStock, KindDuplicateKey:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// IsDuplicateKeyError recognises unique violations from every supported dialect.
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1062 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}
