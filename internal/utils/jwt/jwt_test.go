package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	token, err := CreateToken("user-42", "secret", time.Hour)
	require.NoError(t, err)

	userID, err := ExtractUserIDFromToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	_, err = ExtractUserIDFromToken(token, "other")
	assert.Error(t, err)
}

func TestExtractUserIDFromToken_Rejects(t *testing.T) {
	expired, err := CreateToken("user-42", "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ExtractUserIDFromToken(expired, "secret")
	assert.Error(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ExtractUserIDFromToken(noExp, "secret")
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}).SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = ExtractUserIDFromToken(noSubject, "secret")
	assert.ErrorIs(t, err, ErrMissingSubject)

	_, err = ExtractUserIDFromToken("not-a-token", "secret")
	assert.Error(t, err)
}
