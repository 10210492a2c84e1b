package sqlite_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/generic"
	"github.com/tcworks/tcmanage/store/sqlite"
)

func withBootstrap(users ...auth.BootstrapUser) func(*sqlite.Options) {
	return func(o *sqlite.Options) { o.Bootstrap = users }
}

// insertLegacy writes a credential row the way earlier releases did.
func insertLegacy(t *testing.T, store *sqlite.Store, userID, password, salt string, level auth.Level) {
	t.Helper()
	_, err := store.Exec(context.Background(),
		`INSERT INTO user_passwords (user_id, password, salt, user_level) VALUES (?, ?, ?, ?)`,
		userID, password, salt, string(level))
	require.NoError(t, err)
}

func TestCredentials_BootstrapSeedsBcrypt(t *testing.T) {
	store := newStore(t, withBootstrap(
		auth.BootstrapUser{UserID: "admin", Password: "s3cret-admin", Level: auth.LevelAdmin},
		auth.BootstrapUser{UserID: "staff", Password: "s3cret-staff"},
	))
	ctx := context.Background()

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, sqlite.UserSummary{UserID: "admin", Level: auth.LevelAdmin, Scheme: "bcrypt"}, users[0])
	assert.Equal(t, sqlite.UserSummary{UserID: "staff", Level: auth.LevelUser, Scheme: "bcrypt"}, users[1])

	cred, err := store.Credential(ctx, "admin")
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.NotEqual(t, "s3cret-admin", cred.Password, "passwords are never stored as given")
}

func TestCredentials_CreateAndLevel(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	cred, err := auth.NewCredential("yamada", "pw-yamada", auth.LevelUser, bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, store.CreateCredential(ctx, cred))
	assert.ErrorIs(t, store.CreateCredential(ctx, cred), generic.ErrDuplicate)

	require.NoError(t, store.SetUserLevel(ctx, "yamada", auth.LevelAdmin))
	got, err := store.Credential(ctx, "yamada")
	require.NoError(t, err)
	assert.Equal(t, auth.LevelAdmin, got.Level)

	assert.ErrorIs(t, store.SetUserLevel(ctx, "nobody", auth.LevelAdmin), generic.ErrNotFound)
	assert.ErrorIs(t, store.SetUserLevel(ctx, "yamada", "root"), generic.ErrValidation)
	assert.ErrorIs(t, store.StoreSecret(ctx, "nobody", "x", ""), generic.ErrNotFound)

	missing, err := store.Credential(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAuthenticator_LegacyPlaintextIsUpgraded(t *testing.T) {
	// GIVEN: a plaintext row left by an early release
	store := newStore(t)
	ctx := context.Background()
	insertLegacy(t, store, "tanaka", "letmein", "", auth.LevelUser)
	authn := auth.NewAuthenticator(store, auth.Options{AllowPlaintext: true, UpgradeLegacy: true, Cost: bcrypt.MinCost})

	// WHEN: the user logs in with the right password
	id, err := authn.Login(ctx, "tanaka", "letmein")

	// THEN: the login succeeds and the row now holds a bcrypt hash
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{UserID: "tanaka", Level: auth.LevelUser}, id)

	cred, err := store.Credential(ctx, "tanaka")
	require.NoError(t, err)
	assert.Equal(t, auth.SchemeBcrypt, cred.Scheme())
	assert.Empty(t, cred.Salt)

	// and the plaintext path is no longer needed
	strict := auth.NewAuthenticator(store, auth.Options{Cost: bcrypt.MinCost})
	ok, err := strict.Verify(ctx, "tanaka", "letmein")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAuthenticator_PlaintextRejectedWhenDisabled(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	insertLegacy(t, store, "tanaka", "letmein", "", auth.LevelUser)
	authn := auth.NewAuthenticator(store, auth.Options{AllowPlaintext: false, UpgradeLegacy: true, Cost: bcrypt.MinCost})

	_, err := authn.Login(ctx, "tanaka", "letmein")
	assert.ErrorIs(t, err, generic.ErrInvalidCredentials)

	cred, err := store.Credential(ctx, "tanaka")
	require.NoError(t, err)
	assert.Equal(t, auth.SchemePlaintext, cred.Scheme(), "a rejected login never rewrites the row")
}

func TestAuthenticator_SaltedDigest(t *testing.T) {
	// GIVEN: a salted sha256 row
	store := newStore(t)
	ctx := context.Background()
	insertLegacy(t, store, "kato", auth.SaltedDigest("pw-kato", "a1b2c3"), "a1b2c3", auth.LevelAdmin)
	authn := auth.NewAuthenticator(store, auth.Options{UpgradeLegacy: true, Cost: bcrypt.MinCost})

	// WHEN/THEN: only the right password verifies
	ok, err := authn.Verify(ctx, "kato", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	id, err := authn.Login(ctx, "kato", "pw-kato")
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())

	cred, err := store.Credential(ctx, "kato")
	require.NoError(t, err)
	assert.Equal(t, auth.SchemeSaltedSHA256, cred.Scheme(), "salted rows are verified, not rewritten")
}

func TestAuthenticator_ChangePassword(t *testing.T) {
	store := newStore(t, withBootstrap(auth.BootstrapUser{UserID: "admin", Password: "old-password", Level: auth.LevelAdmin}))
	ctx := context.Background()
	authn := auth.NewAuthenticator(store, auth.Options{Cost: bcrypt.MinCost})

	err := authn.ChangePassword(ctx, "admin", "not-it", "new-password")
	assert.ErrorIs(t, err, generic.ErrInvalidCredentials)

	require.NoError(t, authn.ChangePassword(ctx, "admin", "old-password", "new-password"))
	ok, err := authn.Verify(ctx, "admin", "new-password")
	require.NoError(t, err)
	assert.True(t, ok)

	level, err := authn.UserLevel(ctx, "ghost")
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultLevel, level)
}

func TestListUsers_OrderedByUserID(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"zeta", "alpha", "mori"} {
		cred, err := auth.NewCredential(id, "pw-"+id, auth.LevelUser, bcrypt.MinCost)
		require.NoError(t, err)
		require.NoError(t, store.CreateCredential(ctx, cred))
	}

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, "alpha", users[0].UserID)
	assert.Equal(t, "mori", users[1].UserID)
	assert.Equal(t, "zeta", users[2].UserID)
}
