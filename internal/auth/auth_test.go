package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPairRoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "https://example.test")

	pair, err := m.CreateTokenPair(AdminSubject)
	require.NoError(t, err)

	sub, err := m.ValidateAccessToken(pair.AccessJwt)
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, sub)

	sub, err = m.ValidateRefreshToken(pair.RefreshJwt)
	require.NoError(t, err)
	assert.Equal(t, AdminSubject, sub)
}

func TestScopesAreNotInterchangeable(t *testing.T) {
	m := NewJWTManager("secret", "")
	pair, err := m.CreateTokenPair(AdminSubject)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.RefreshJwt)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = m.ValidateRefreshToken(pair.AccessJwt)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRejectsForeignAndExpiredTokens(t *testing.T) {
	m := NewJWTManager("secret", "")
	other := NewJWTManager("other", "")
	pair, err := other.CreateTokenPair(AdminSubject)
	require.NoError(t, err)

	_, err = m.ValidateAccessToken(pair.AccessJwt)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return issued }
	pair, err = m.CreateTokenPair(AdminSubject)
	require.NoError(t, err)
	m.now = func() time.Time { return issued.Add(AccessTTL + time.Minute) }
	_, err = m.ValidateAccessToken(pair.AccessJwt)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = m.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEmptySecretIsRandom(t *testing.T) {
	a := NewJWTManager("", "")
	b := NewJWTManager("", "")
	pair, err := a.CreateTokenPair(AdminSubject)
	require.NoError(t, err)
	_, err = b.ValidateAccessToken(pair.AccessJwt)
	assert.Error(t, err)
}

func TestPasswords(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NoError(t, CheckPassword(hash, "hunter2"))
	assert.ErrorIs(t, CheckPassword(hash, "hunter3"), ErrBadCredentials)
	assert.ErrorIs(t, CheckPassword("", "hunter2"), ErrBadCredentials)

	_, err = HashPassword("")
	assert.Error(t, err)
}
