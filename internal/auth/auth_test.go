package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueVerifyRoundTrip(t *testing.T) {
	a := New("test-secret")
	token, err := a.Issue("usr_123", "alice")
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "usr_123", claims.Subject)
	assert.Equal(t, "alice", claims.Name)
	assert.Greater(t, claims.ExpiresAt, claims.IssuedAt)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := New("secret-a").Issue("usr_123", "alice")
	require.NoError(t, err)

	_, err = New("secret-b").Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsTampering(t *testing.T) {
	a := New("test-secret")
	token, err := a.Issue("usr_123", "alice")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	tampered := parts[0] + ".eyJzdWIiOiJ1c3JfOTk5In0." + parts[2]
	_, err = a.Verify(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsMalformed(t *testing.T) {
	a := New("test-secret")
	for _, token := range []string{"", "abc", "a.b", "a.b.c.d", "!.!.!"} {
		_, err := a.Verify(token)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", token)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	now := time.Now()
	a := New("test-secret", WithTTL(time.Minute), WithNow(func() time.Time { return now }))
	token, err := a.Issue("usr_123", "alice")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestIssueRequiresUserID(t *testing.T) {
	_, err := New("test-secret").Issue("", "alice")
	assert.Error(t, err)
}
