package service

import "fmt"

// Kind classifies a service error by how the caller should react to it.
type Kind int

const (
	// KindValidation is malformed input. It is a caller bug and never retried.
	KindValidation Kind = iota + 1
	// KindUser is a domain rule violation, surfaced verbatim.
	KindUser
	// KindNotFound is a lookup miss.
	KindNotFound
	// KindAuth covers bad credentials, invalid tokens and provider rejections.
	KindAuth
	// KindUnsupported is an operation the configured backend cannot perform.
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUser:
		return "user"
	case KindNotFound:
		return "not_found"
	case KindAuth:
		return "auth"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a service failure with a stable, machine-matchable code.
// errors.Is matches on Code, so an Error built with a custom message still
// matches its sentinel.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrAccountNotFoundOrInactive   = newError(KindNotFound, "AccountNotFoundOrInactive", "admin account not found or inactive")
	ErrAdminNotFound               = newError(KindNotFound, "AdminNotFound", "admin not found")
	ErrAdminAccountExists          = newError(KindUser, "AdminAccountExists", "an admin with this email already exists")
	ErrInvalidPassword             = newError(KindAuth, "InvalidPassword", "current password is incorrect")
	ErrInvalidResetToken           = newError(KindAuth, "InvalidResetToken", "password reset token is invalid")
	ErrResetLinkExpired            = newError(KindAuth, "ResetLinkExpired", "password reset link has expired")
	ErrLoginKeysMissing            = newError(KindValidation, "LoginKeysMissing", "login requires either user credentials or a google credential")
	ErrIncorrectUsernameOrPassword = newError(KindAuth, "IncorrectUsernameOrPassword", "incorrect username or password")
	ErrAccountNotValid             = newError(KindAuth, "AccountNotValid", "account is not allowed to sign in")
	ErrIncorrectGoogleToken        = newError(KindAuth, "IncorrectGoogleToken", "google token could not be verified")
	ErrAdminTokenCreate            = newError(KindAuth, "AdminTokenCreateError", "could not create admin session")
	ErrTokenCreate                 = newError(KindAuth, "TokenCreateError", "could not store session token")
	ErrUnsupported                 = newError(KindUnsupported, "Unsupported", "operation is not supported in config mode")
	ErrUser                        = newError(KindUser, "UserError", "")
	ErrValidation                  = newError(KindValidation, "ValidationError", "")
)

// userErrorf returns an ErrUser with a formatted message.
func userErrorf(format string, args ...any) error {
	return newError(KindUser, ErrUser.Code, fmt.Sprintf(format, args...))
}

// validationErrorf returns an ErrValidation with a formatted message.
func validationErrorf(format string, args ...any) error {
	return newError(KindValidation, ErrValidation.Code, fmt.Sprintf(format, args...))
}
