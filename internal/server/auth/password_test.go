package auth

import (
	"strings"
	"testing"

	"github.com/dmitrijs2005/gophmaps/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheck(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NoError(t, CheckPassword(hash, "correct horse"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), common.ErrInvalidCredentials)
}

func TestCheckPassword_UnknownUser(t *testing.T) {
	assert.ErrorIs(t, CheckPassword(nil, "anything"), common.ErrInvalidCredentials)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", 73))
	assert.ErrorIs(t, err, common.ErrValidation)
}
