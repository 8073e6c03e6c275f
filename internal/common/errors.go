// Package common defines shared constants and sentinel errors used across
// the gophmaps server layers. Callers should use errors.Is to match these
// values and Kind to obtain the stable, user-visible error kind.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Service-level errors.
	ErrInternal   = errors.New("internal error")
	ErrForbidden  = errors.New("forbidden")
	ErrValidation = errors.New("validation error")

	// Identity errors.
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenInvalid        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// Media lifecycle errors.
	ErrMediaVerificationFailed = errors.New("media verification failed")
	ErrStorageUnavailable      = errors.New("storage unavailable")
	ErrStorageFatal            = errors.New("storage fatal error")
)

// Stable error kinds reported to API clients.
const (
	KindInvalidCredentials      = "InvalidCredentials"
	KindTokenExpired            = "TokenExpired"
	KindTokenInvalid            = "TokenInvalid"
	KindRefreshTokenExpired     = "RefreshTokenExpired"
	KindForbidden               = "Forbidden"
	KindNotFound                = "NotFound"
	KindConflict                = "Conflict"
	KindValidation              = "Validation"
	KindMediaVerificationFailed = "MediaVerificationFailed"
	KindStorageUnavailable      = "StorageUnavailable"
	KindStorageFatal            = "StorageFatal"
	KindInternal                = "Internal"
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrTokenExpired, KindTokenExpired},
	{ErrTokenInvalid, KindTokenInvalid},
	{ErrRefreshTokenExpired, KindRefreshTokenExpired},
	{ErrNotFound, KindNotFound},
	{ErrForbidden, KindForbidden},
	{ErrConflict, KindConflict},
	{ErrValidation, KindValidation},
	{ErrMediaVerificationFailed, KindMediaVerificationFailed},
	{ErrStorageUnavailable, KindStorageUnavailable},
	{ErrStorageFatal, KindStorageFatal},
}

// Kind returns the stable kind of err. Errors outside the taxonomy are
// reported as KindInternal.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Describe returns the stable kind of err and the text of the matching
// sentinel. Wrapped context is dropped.
func Describe(err error) (kind, message string) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind, k.err.Error()
		}
	}
	return KindInternal, ErrInternal.Error()
}
