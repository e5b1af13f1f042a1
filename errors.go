package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeUnauthenticated     = "UNAUTHENTICATED"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeProtectedAccount    = "PROTECTED_ACCOUNT"
	TextCodeAccountBanned       = "ACCOUNT_BANNED"
	TextCodeAccountNotFound     = "ACCOUNT_NOT_FOUND"
	TextCodeAnnouncementMissing = "ANNOUNCEMENT_NOT_FOUND"
	TextCodeInvalidArgument     = "INVALID_ARGUMENT"
	TextCodeUnknownCommand      = "UNKNOWN_COMMAND"
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeUsernameTaken       = "USERNAME_TAKEN"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeTooManyAttempts     = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenMalformed      = "TOKEN_MALFORMED"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
)

// ErrUnauthenticated is returned on hard auth paths without a usable session
var ErrUnauthenticated = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the caller's role does not satisfy a guard
var ErrForbidden = errors.New("insufficient permissions", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrProtectedAccount is returned when a mutation targets the owner account
var ErrProtectedAccount = errors.New("owner account cannot be modified", errors.CategoryAuthz).
	WithTextCode(TextCodeProtectedAccount).
	WithCode(errors.CodeForbidden)

// ErrAccountBanned is returned when a suspended account tries to log in
var ErrAccountBanned = errors.New("account has been banned", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountBanned).
	WithCode(errors.CodeForbidden)

// ErrAccountNotFound is returned when a referenced account does not exist
var ErrAccountNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

var ErrAnnouncementNotFound = errors.New("announcement not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAnnouncementMissing).
	WithCode(errors.CodeNotFound)

// ErrInvalidArgument covers malformed commands, unknown roles and empty bodies
var ErrInvalidArgument = errors.New("invalid argument", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidArgument).
	WithCode(errors.CodeBadRequest)

// ErrUnknownCommand carries the recognized command set in its metadata
var ErrUnknownCommand = errors.New("unknown command", errors.CategoryBadInput).
	WithTextCode(TextCodeUnknownCommand).
	WithCode(errors.CodeBadRequest)

var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

var ErrUsernameTaken = errors.New("username already taken", errors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(errors.CodeConflict)

// ErrMismatchedHashAndPassword is returned for any bad email/password pair
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

var ErrTooManyLoginAttempts = errors.New("too many login attempts, try again later", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts).
	WithCode(http.StatusTooManyRequests)

var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password can not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// invalidArgument clones ErrInvalidArgument with a caller facing message
func invalidArgument(message string, metadata map[string]any) *errors.Error {
	clone := ErrInvalidArgument.Clone()
	clone.Message = message
	if len(metadata) > 0 {
		clone.WithMetadata(metadata)
	}
	return clone
}

func withMetadata(base *errors.Error, metadata map[string]any) *errors.Error {
	clone := base.Clone()
	if len(metadata) > 0 {
		clone.WithMetadata(metadata)
	}
	return clone
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// HTTPStatus maps any error onto the status code the API responds with
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	if richErr.Code > 0 {
		return richErr.Code
	}

	switch richErr.Category {
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryBadInput, errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// HasTextCode reports whether err carries the given text code.
// Sentinels are cloned before metadata is attached, so identity checks
// with errors.Is do not hold for them.
func HasTextCode(err error, textCode string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == textCode
}
