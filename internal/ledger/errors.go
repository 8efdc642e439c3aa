package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure. Every kind is terminal for the request.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindUserNotFound
	KindQRInvalidOrUsed
	KindBinNotFound
	KindRewardNotFoundOrInactive
	KindInsufficientPoints
	KindAccessDenied
	KindStoreUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "INVALID_INPUT"
	case KindUserNotFound:
		return "USER_NOT_FOUND"
	case KindQRInvalidOrUsed:
		return "QR_INVALID_OR_USED"
	case KindBinNotFound:
		return "BIN_NOT_FOUND"
	case KindRewardNotFoundOrInactive:
		return "REWARD_NOT_FOUND_OR_INACTIVE"
	case KindInsufficientPoints:
		return "INSUFFICIENT_POINTS"
	case KindAccessDenied:
		return "ACCESS_DENIED"
	case KindStoreUnavailable:
		return "STORE_UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// Error is returned by every Service operation. Message is safe to show to
// the caller; Err carries the underlying cause and is never shown.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can compare against the
// sentinels below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidInput             = &Error{Kind: KindInvalidInput, Message: "invalid input"}
	ErrUserNotFound             = &Error{Kind: KindUserNotFound, Message: "user not found"}
	ErrQRInvalidOrUsed          = &Error{Kind: KindQRInvalidOrUsed, Message: "qr code invalid or already used"}
	ErrBinNotFound              = &Error{Kind: KindBinNotFound, Message: "bin not found"}
	ErrRewardNotFoundOrInactive = &Error{Kind: KindRewardNotFoundOrInactive, Message: "reward not found or inactive"}
	ErrInsufficientPoints       = &Error{Kind: KindInsufficientPoints, Message: "not enough points"}
	ErrAccessDenied             = &Error{Kind: KindAccessDenied, Message: "access denied"}
	ErrStoreUnavailable         = &Error{Kind: KindStoreUnavailable, Message: "internal server error"}
)

// InvalidInput returns an InvalidInput error with a caller-facing message.
func InvalidInput(message string) *Error {
	return &Error{Kind: KindInvalidInput, Message: message}
}

func unavailable(err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: ErrStoreUnavailable.Message, Err: err}
}

// KindOf reports the Kind of err, or KindUnknown if err is not a ledger error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindUnknown
}
