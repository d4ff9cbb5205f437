package domain

import "errors"

// Kind classifies an error for callers that must branch on it.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is a classified error with a caller-safe message and an optional
// cause that stays server side.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error with the same kind and message, so sentinels
// still match after a cause was attached.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// WithCause returns a copy of sentinel carrying cause.
func WithCause(sentinel *Error, cause error) *Error {
	return &Error{Kind: sentinel.Kind, Message: sentinel.Message, Err: cause}
}

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }
func Internal(err error) *Error    { return &Error{Kind: KindInternal, Message: "internal error", Err: err} }

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrMissingFields       = &Error{Kind: KindValidation, Message: "All fields are required"}
	ErrUserExists          = &Error{Kind: KindConflict, Message: "User with email or username already exists"}
	ErrInvalidUsername     = &Error{Kind: KindValidation, Message: "Username must not contain @"}
	ErrInvalidCredentials  = &Error{Kind: KindAuth, Message: "Invalid user credentials"}
	ErrInvalidRefreshToken = &Error{Kind: KindAuth, Message: "Invalid refresh token"}
	ErrRefreshTokenReused  = &Error{Kind: KindAuth, Message: "Refresh token is expired or used"}
	ErrUnauthenticated     = &Error{Kind: KindAuth, Message: "Unauthorized request"}
	ErrWrongPassword       = &Error{Kind: KindAuth, Message: "Invalid old password"}
	ErrUserNotFound        = &Error{Kind: KindNotFound, Message: "User does not exist"}
	ErrChannelNotFound     = &Error{Kind: KindNotFound, Message: "Channel does not exist"}
	ErrVideoNotFound       = &Error{Kind: KindNotFound, Message: "Video does not exist"}
)
