package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticAuthenticate(t *testing.T) {
	s := NewStatic("")

	tests := []struct {
		name       string
		credential string
		want       Identity
		wantErr    bool
	}{
		{"no credential is anonymous", "", Identity{UserID: "anonymous", Role: RoleAnonymous}, false},
		{"sentinel token is admin", "demo-token", Identity{UserID: "demo-user", Role: RoleAdmin}, false},
		{"user prefix is that user", "user-alice", Identity{UserID: "user-alice", Role: RoleUser}, false},
		{"another user prefix", "user-bob-42", Identity{UserID: "user-bob-42", Role: RoleUser}, false},
		{"bare prefix is rejected", "user-", Identity{}, true},
		{"unknown token is rejected", "not-a-real-token", Identity{}, true},
		{"near-miss sentinel is rejected", "demo-token2", Identity{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Authenticate(tt.credential)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStaticIsPure(t *testing.T) {
	s := NewStatic("")

	// Same credential, same identity, every time.
	for i := 0; i < 100; i++ {
		got, err := s.Authenticate("user-carol")
		require.NoError(t, err)
		assert.Equal(t, Identity{UserID: "user-carol", Role: RoleUser}, got)
	}
}

func TestStaticCustomAdminToken(t *testing.T) {
	s := NewStatic("super-secret")

	got, err := s.Authenticate("super-secret")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "demo-user", Role: RoleAdmin}, got)

	// The default sentinel no longer works.
	_, err = s.Authenticate("demo-token")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTRoundTrip(t *testing.T) {
	m, err := NewJWT("", "", time.Hour)
	require.NoError(t, err)

	token, exp, err := m.IssueToken(Identity{UserID: "user-dave", Role: RoleUser})
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	got, err := m.Authenticate(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "user-dave", Role: RoleUser}, got)
}

func TestJWTRejectsGarbage(t *testing.T) {
	m, err := NewJWT("", "", time.Hour)
	require.NoError(t, err)

	_, err = m.Authenticate("not.a.jwt")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTRejectsForeignKey(t *testing.T) {
	issuer, err := NewJWT("", "", time.Hour)
	require.NoError(t, err)
	verifier, err := NewJWT("", "", time.Hour)
	require.NoError(t, err)

	token, _, err := issuer.IssueToken(Identity{UserID: "user-eve", Role: RoleUser})
	require.NoError(t, err)

	// Different ephemeral key pair: signature must not verify.
	_, err = verifier.Authenticate(token)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestJWTEmptyCredentialIsAnonymous(t *testing.T) {
	m, err := NewJWT("", "", time.Hour)
	require.NoError(t, err)

	got, err := m.Authenticate("")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "anonymous", Role: RoleAnonymous}, got)
}
