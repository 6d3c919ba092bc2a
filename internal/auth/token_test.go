package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	issuer := NewIssuer("secret", "portal", time.Hour)
	issued, expires, err := issuer.Issue("u1", "Sarah Admin", "Admin", "jti-1")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if time.Until(expires) <= 0 {
		t.Fatalf("expected future expiry, got %v", expires)
	}
	claims, err := issuer.Parse(issued)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if claims.Subject != "u1" || claims.UserID != "u1" || claims.Name != "Sarah Admin" || claims.Role != "Admin" || claims.ID != "jti-1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewIssuer("secret", "portal", time.Minute).WithClock(func() time.Time { return base })
	issued, _, err := issuer.Issue("u1", "Sarah Admin", "Admin", "jti-1")
	require.NoError(t, err)

	issuer.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	_, err = issuer.Parse(issued)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestParseTokenRejectsForeignSecretAndIssuer(t *testing.T) {
	issued, _, err := NewIssuer("other", "portal", time.Hour).Issue("u1", "n", "Viewer", "j")
	require.NoError(t, err)
	_, err = NewIssuer("secret", "portal", time.Hour).Parse(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)

	issued, _, err = NewIssuer("secret", "authserver", time.Hour).Issue("u1", "n", "Viewer", "j")
	require.NoError(t, err)
	_, err = NewIssuer("secret", "portal", time.Hour).Parse(issued)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewIssuer("secret", "portal", time.Hour).Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashTokenIsStable(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}
