package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jwtTestSecret = "jwt-test-secret"

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(jwtTestSecret, "42", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateToken(jwtTestSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.UserID)
	assert.Equal(t, "platebook", claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(jwtTestSecret, "42", time.Hour)
	require.NoError(t, err)

	_, err = ValidateToken("different-secret", token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	token, err := GenerateToken(jwtTestSecret, "42", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateToken(jwtTestSecret, token)
	assert.Error(t, err)
}

func TestValidateTokenGarbage(t *testing.T) {
	_, err := ValidateToken(jwtTestSecret, "not.a.token")
	assert.Error(t, err)
}
