package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mintToken(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	claims := jwt.RegisteredClaims{Subject: subject}
	if !exp.IsZero() {
		claims.ExpiresAt = jwt.NewNumericDate(exp)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)
	return signed
}

func TestInspectTokenReadsClaimsWithoutVerifying(t *testing.T) {
	now := time.Now()
	token := mintToken(t, "user-7", now.Add(time.Hour))

	info, err := InspectToken(token, now, 0)
	require.NoError(t, err)
	assert.True(t, info.IsJWT)
	assert.Equal(t, "user-7", info.Subject)
	assert.WithinDuration(t, now.Add(time.Hour), info.ExpiresAt, time.Second)
}

func TestInspectTokenRejectsExpiredJWT(t *testing.T) {
	now := time.Now()
	token := mintToken(t, "user-7", now.Add(-time.Minute))

	_, err := InspectToken(token, now, 0)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = InspectToken(token, now, 2*time.Minute)
	assert.NoError(t, err)
}

func TestInspectTokenAcceptsOpaqueTokens(t *testing.T) {
	info, err := InspectToken("  12|abcdefOpaqueSanctumToken ", time.Now(), 0)
	require.NoError(t, err)
	assert.False(t, info.IsJWT)
	assert.False(t, info.Expired(time.Now(), 0))
}

func TestInspectTokenRequiresToken(t *testing.T) {
	_, err := InspectToken(" ", time.Now(), 0)
	assert.ErrorIs(t, err, ErrTokenRequired)
}
