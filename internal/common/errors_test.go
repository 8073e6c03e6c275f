package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidCredentials, KindInvalidCredentials},
		{fmt.Errorf("verify: %w", ErrTokenExpired), KindTokenExpired},
		{ErrTokenInvalid, KindTokenInvalid},
		{fmt.Errorf("authorize: %w", ErrForbidden), KindForbidden},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("db: %w", ErrConflict), KindConflict},
		{ErrValidation, KindValidation},
		{ErrMediaVerificationFailed, KindMediaVerificationFailed},
		{ErrStorageUnavailable, KindStorageUnavailable},
		{ErrStorageFatal, KindStorageFatal},
		{errors.New("boom"), KindInternal},
		{nil, KindInternal},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "error %v", tt.err)
	}
}

func TestDescribe(t *testing.T) {
	kind, msg := Describe(fmt.Errorf("error searching map m1: %w", ErrNotFound))
	assert.Equal(t, KindNotFound, kind)
	assert.Equal(t, "not found", msg)

	kind, msg = Describe(errors.New("pq: connection refused"))
	assert.Equal(t, KindInternal, kind)
	assert.Equal(t, "internal error", msg)
}
