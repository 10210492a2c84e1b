package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tcworks/tcmanage/generic"
)

// =============================================================================
// TEST INFRASTRUCTURE
// =============================================================================

// memStore is a CredentialStore backed by a map.
type memStore struct {
	creds    map[string]Credential
	writeErr error
	writes   int
}

func newMemStore(creds ...Credential) *memStore {
	m := &memStore{creds: make(map[string]Credential)}
	for _, c := range creds {
		m.creds[c.UserID] = c
	}
	return m
}

func (m *memStore) Credential(_ context.Context, userID string) (*Credential, error) {
	c, ok := m.creds[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) StoreSecret(_ context.Context, userID, password, salt string) error {
	m.writes++
	if m.writeErr != nil {
		return m.writeErr
	}
	c, ok := m.creds[userID]
	if !ok {
		return generic.ErrNotFound
	}
	c.Password, c.Salt = password, salt
	m.creds[userID] = c
	return nil
}

func mustBcrypt(t *testing.T, userID, password string, level Level) Credential {
	t.Helper()
	c, err := NewCredential(userID, password, level, bcrypt.MinCost)
	require.NoError(t, err)
	return c
}

// =============================================================================
// CREDENTIAL SCHEMES
// =============================================================================

func TestCredential_Scheme(t *testing.T) {
	assert.Equal(t, SchemePlaintext, Credential{Password: "letmein"}.Scheme())
	assert.Equal(t, SchemeSaltedSHA256, Credential{Password: SaltedDigest("pw", "s"), Salt: "s"}.Scheme())
	assert.Equal(t, SchemeBcrypt, mustBcrypt(t, "u", "pw", LevelUser).Scheme())

	// a salt wins even over something that parses as bcrypt
	hash := mustBcrypt(t, "u", "pw", LevelUser).Password
	assert.Equal(t, SchemeSaltedSHA256, Credential{Password: hash, Salt: "s"}.Scheme())
}

func TestCredential_Verify(t *testing.T) {
	plain := Credential{Password: "letmein"}
	salted := Credential{Password: SaltedDigest("pw-kato", "a1b2"), Salt: "a1b2"}
	hashed := mustBcrypt(t, "u", "pw-bcrypt", LevelUser)

	tests := []struct {
		name       string
		cred       Credential
		password   string
		allowPlain bool
		want       bool
	}{
		{"plaintext allowed", plain, "letmein", true, true},
		{"plaintext wrong", plain, "letmeout", true, false},
		{"plaintext disabled", plain, "letmein", false, false},
		{"salted", salted, "pw-kato", false, true},
		{"salted wrong", salted, "pw-katoo", false, false},
		{"salted upper-case digest", Credential{Password: upper(SaltedDigest("x", "y")), Salt: "y"}, "x", false, true},
		{"bcrypt", hashed, "pw-bcrypt", false, true},
		{"bcrypt wrong", hashed, "pw-bcrypT", false, false},
		{"empty password", hashed, "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cred.Verify(tt.password, tt.allowPlain))
		})
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}

func TestNewCredential_Rules(t *testing.T) {
	_, err := NewCredential(" ", "pw", LevelUser, bcrypt.MinCost)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = NewCredential("u", "", LevelUser, bcrypt.MinCost)
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = NewCredential("u", "pw", "root", bcrypt.MinCost)
	assert.ErrorIs(t, err, generic.ErrValidation)

	long := make([]byte, 73)
	for i := range long {
		long[i] = 'a'
	}
	_, err = NewCredential("u", string(long), LevelUser, bcrypt.MinCost)
	assert.ErrorIs(t, err, generic.ErrValidation)

	c, err := NewCredential(" sato ", "pw", LevelAdmin, bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, "sato", c.UserID)
	assert.Empty(t, c.Salt)
}

func TestBootstrapUser_DefaultLevel(t *testing.T) {
	c, err := BootstrapUser{UserID: "staff", Password: "pw"}.Credential(bcrypt.MinCost)
	require.NoError(t, err)
	assert.Equal(t, LevelUser, c.Level)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelAdmin, ParseLevel(" admin "))
	assert.Equal(t, LevelUser, ParseLevel("user"))
	assert.Equal(t, LevelUser, ParseLevel("superuser"))
	assert.Equal(t, LevelUser, ParseLevel(""))
}

// =============================================================================
// AUTHENTICATOR
// =============================================================================

func TestAuthenticator_UpgradeOnlyOnSuccess(t *testing.T) {
	// GIVEN: a plaintext credential and upgrade enabled
	store := newMemStore(Credential{UserID: "tanaka", Password: "letmein", Level: LevelUser})
	a := NewAuthenticator(store, Options{AllowPlaintext: true, UpgradeLegacy: true, Cost: bcrypt.MinCost})
	ctx := context.Background()

	// WHEN: a wrong password is tried
	ok, err := a.Verify(ctx, "tanaka", "guess")
	require.NoError(t, err)
	assert.False(t, ok)

	// THEN: nothing was written
	assert.Zero(t, store.writes)

	// WHEN: the right one is tried
	ok, err = a.Verify(ctx, "tanaka", "letmein")
	require.NoError(t, err)
	assert.True(t, ok)

	// THEN: the row is now bcrypt
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, SchemeBcrypt, store.creds["tanaka"].Scheme())
}

func TestAuthenticator_NoUpgradeWithoutFlag(t *testing.T) {
	store := newMemStore(Credential{UserID: "tanaka", Password: "letmein", Level: LevelUser})
	a := NewAuthenticator(store, Options{AllowPlaintext: true})

	ok, err := a.Verify(context.Background(), "tanaka", "letmein")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, store.writes)
	assert.Equal(t, SchemePlaintext, store.creds["tanaka"].Scheme())
}

func TestAuthenticator_FailedUpgradeStillLogsIn(t *testing.T) {
	store := newMemStore(Credential{UserID: "tanaka", Password: "letmein", Level: LevelAdmin})
	store.writeErr = errors.New("disk full")
	a := NewAuthenticator(store, Options{AllowPlaintext: true, UpgradeLegacy: true, Cost: bcrypt.MinCost})

	id, err := a.Login(context.Background(), "tanaka", "letmein")
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "tanaka", Level: LevelAdmin}, id)
	assert.Equal(t, 1, store.writes)
}

func TestAuthenticator_UnknownUser(t *testing.T) {
	a := NewAuthenticator(newMemStore(), Options{AllowPlaintext: true})

	_, err := a.Login(context.Background(), "ghost", "anything")
	assert.ErrorIs(t, err, generic.ErrInvalidCredentials)

	err = a.UpdatePassword(context.Background(), "ghost", "new-password")
	assert.ErrorIs(t, err, generic.ErrNotFound)
}

func TestAuthenticator_InvalidStoredLevel(t *testing.T) {
	store := newMemStore(Credential{UserID: "old", Password: SaltedDigest("pw", "s"), Salt: "s", Level: "manager"})
	a := NewAuthenticator(store, Options{})

	id, err := a.Login(context.Background(), "old", "pw")
	require.NoError(t, err)
	assert.Equal(t, DefaultLevel, id.Level)
	assert.False(t, id.IsAdmin())
}

// =============================================================================
// TOKENS
// =============================================================================

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)

	raw, exp, err := ti.Issue(Identity{UserID: "sato", Level: LevelAdmin})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	id, err := ti.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "sato", Level: LevelAdmin}, id)
}

func TestTokenIssuer_ShortSecret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	assert.Error(t, err)
}

func TestTokenIssuer_Expired(t *testing.T) {
	// GIVEN: a token issued two hours ago with a one hour lifetime
	ti, err := NewTokenIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	issued := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	ti.now = func() time.Time { return issued }
	raw, _, err := ti.Issue(Identity{UserID: "sato", Level: LevelUser})
	require.NoError(t, err)

	// WHEN: it is parsed now
	ti.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = ti.Parse(raw)

	// THEN: it is rejected
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuer_WrongSecretOrGarbage(t *testing.T) {
	a, err := NewTokenIssuer("0123456789abcdef", time.Hour)
	require.NoError(t, err)
	b, err := NewTokenIssuer("fedcba9876543210", time.Hour)
	require.NoError(t, err)

	raw, _, err := a.Issue(Identity{UserID: "sato", Level: LevelAdmin})
	require.NoError(t, err)

	_, err = b.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Parse("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Parse(raw + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
