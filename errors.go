package enroll

import (
	"github.com/goliatone/go-errors"
)

// Text codes let HTTP and API layers map failures without string matching.
const (
	TextCodeLinkNotFound   = "LINK_NOT_FOUND"
	TextCodeLinkExpired    = "LINK_EXPIRED"
	TextCodeLinkExhausted  = "LINK_EXHAUSTED"
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	TextCodeTokenSignature = "TOKEN_SIGNATURE"
	TextCodeTokenExpired   = "TOKEN_EXPIRED"
	TextCodeStorage        = "STORAGE_FAILURE"
	TextCodeNotAdmin       = "NOT_ADMIN"
)

// ErrLinkNotFound is returned when a provision link id is unknown.
var ErrLinkNotFound = errors.New("provision link not found", errors.CategoryNotFound).
	WithTextCode(TextCodeLinkNotFound)

// ErrLinkExpired is returned when a provision link is past its expiry.
var ErrLinkExpired = errors.New("provision link has expired", errors.CategoryAuth).
	WithTextCode(TextCodeLinkExpired)

// ErrLinkExhausted is returned when a provision link has no uses left.
var ErrLinkExhausted = errors.New("provision link has already been used", errors.CategoryConflict).
	WithTextCode(TextCodeLinkExhausted)

// ErrTokenMalformed covers structural parse failures of any signed token.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed)

// ErrTokenSignature covers a structurally valid but unauthenticated payload.
var ErrTokenSignature = errors.New("token signature mismatch", errors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature)

// ErrTokenExpired covers an authenticated but lapsed payload.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrNotAdmin is returned when a valid session lacks admin-group membership.
var ErrNotAdmin = errors.New("admin group membership required", errors.CategoryAuth).
	WithTextCode(TextCodeNotAdmin)

// WrapStorage marks a backend failure as transient storage trouble. Callers
// may retry these with bounded attempts; every other enrollment error is
// terminal.
func WrapStorage(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.CategoryInternal, msg).
		WithTextCode(TextCodeStorage)
}

// IsStorageError reports whether err is a transient storage failure.
func IsStorageError(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.TextCode == TextCodeStorage
	}
	return false
}

// IsTerminalRedemptionError reports whether a redemption failure is one of
// the non-retriable outcomes (unknown, expired, or exhausted link).
func IsTerminalRedemptionError(err error) bool {
	return errors.Is(err, ErrLinkNotFound) ||
		errors.Is(err, ErrLinkExpired) ||
		errors.Is(err, ErrLinkExhausted)
}
