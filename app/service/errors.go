package service

import "errors"

// Kind classifies a service error for transport adapters.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidInput
	KindUnauthorized
	KindInvalidCredential
	KindForbidden
	KindNotFound
	KindConflict
	KindExpired
	KindPreconditionFailed
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindExpired:
		return "expired"
	case KindPreconditionFailed:
		return "precondition_failed"
	default:
		return "internal"
	}
}

var (
	ErrInvalidInput        = errors.New("all fields are required")
	ErrAvatarRequired      = errors.New("avatar file is required")
	ErrUserExists          = errors.New("user with email or username already exists")
	ErrUserNotFound        = errors.New("user does not exist")
	ErrInvalidCredentials  = errors.New("invalid user credential")
	ErrMissingToken        = errors.New("unauthorized request")
	ErrInvalidToken        = errors.New("invalid token")
	ErrUnauthorized        = errors.New("invalid access token")
	ErrRefreshTokenExpired = errors.New("refresh token expired, login again")
	ErrPasswordMismatch    = errors.New("invalid old password")
	ErrWeakPassword        = errors.New("password does not meet policy requirements")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrForbidden           = errors.New("access denied: admins only")
	ErrMissingIdentity     = errors.New("authenticated identity missing from request")
	ErrCorruptCredential   = errors.New("stored credential is malformed")
	ErrDeliveryFailed      = errors.New("failed to send email")
	ErrUploadFailed        = errors.New("error while uploading file")
)

var errorKinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidInput, KindInvalidInput},
	{ErrAvatarRequired, KindInvalidInput},
	{ErrWeakPassword, KindInvalidInput},
	{ErrUploadFailed, KindInvalidInput},
	{ErrUserExists, KindConflict},
	{ErrUserNotFound, KindNotFound},
	{ErrInvalidCredentials, KindInvalidCredential},
	{ErrPasswordMismatch, KindInvalidCredential},
	{ErrMissingToken, KindUnauthorized},
	{ErrInvalidToken, KindUnauthorized},
	{ErrUnauthorized, KindUnauthorized},
	{ErrRefreshTokenExpired, KindExpired},
	{ErrInvalidResetToken, KindInvalidInput},
	{ErrForbidden, KindForbidden},
	{ErrMissingIdentity, KindPreconditionFailed},
	{ErrCorruptCredential, KindInternal},
	{ErrDeliveryFailed, KindInternal},
}

// KindOf maps err to its Kind. Unknown errors are Internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	for _, entry := range errorKinds {
		if errors.Is(err, entry.err) {
			return entry.kind
		}
	}
	return KindInternal
}
