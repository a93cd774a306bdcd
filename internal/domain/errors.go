package domain

import "errors"

// ErrorKind is the machine-readable classification carried by core errors.
type ErrorKind string

const (
	KindNotFound        ErrorKind = "not_found"
	KindPermission      ErrorKind = "permission_denied"
	KindValidation      ErrorKind = "validation"
	KindDuplicateAnswer ErrorKind = "duplicate_answer"
)

// Sentinels for errors.Is matching. Every core error wraps one of these.
var (
	ErrNotFound        = errors.New("not found")
	ErrPermission      = errors.New("permission denied")
	ErrValidation      = errors.New("validation failed")
	ErrDuplicateAnswer = errors.New("already answered")
)

// Error pairs an ErrorKind with a human-readable message.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is match against the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrDuplicateAnswer:
		return e.Kind == KindDuplicateAnswer
	}
	return false
}

// NotFound builds a not_found error.
func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

// Permission builds a permission_denied error.
func Permission(msg string) error { return &Error{Kind: KindPermission, Message: msg} }

// Validation builds a validation error.
func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

// DuplicateAnswer builds a duplicate_answer error.
func DuplicateAnswer(msg string) error { return &Error{Kind: KindDuplicateAnswer, Message: msg} }

// KindOf extracts the kind from an error, or "" for non-domain errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
