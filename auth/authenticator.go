package auth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/tcworks/tcmanage/generic"
)

// CredentialStore persists credentials. Credential returns nil, nil for an
// unknown user; StoreSecret returns generic.ErrNotFound for one.
type CredentialStore interface {
	Credential(ctx context.Context, userID string) (*Credential, error)
	StoreSecret(ctx context.Context, userID, password, salt string) error
}

// Options controls the legacy path.
type Options struct {
	AllowPlaintext bool
	UpgradeLegacy  bool
	Cost           int // bcrypt cost, 0 = default
	Logger         *zap.Logger
}

// Identity is an authenticated user.
type Identity struct {
	UserID string `json:"user_id"`
	Level  Level  `json:"user_level"`
}

func (id Identity) IsAdmin() bool { return id.Level == LevelAdmin }

// Authenticator verifies passwords against a CredentialStore.
type Authenticator struct {
	store  CredentialStore
	opts   Options
	logger *zap.Logger
}

func NewAuthenticator(store CredentialStore, opts Options) *Authenticator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{store: store, opts: opts, logger: logger}
}

// Verify reports whether password matches the stored credential. Unknown
// users do not verify. Errors are storage failures only.
func (a *Authenticator) Verify(ctx context.Context, userID, password string) (bool, error) {
	cred, err := a.store.Credential(ctx, strings.TrimSpace(userID))
	if err != nil {
		return false, err
	}
	if cred == nil {
		a.logger.Info("login for unknown user", zap.String("user_id", userID))
		return false, nil
	}

	scheme := cred.Scheme()
	if !cred.Verify(password, a.opts.AllowPlaintext) {
		a.logger.Info("login rejected",
			zap.String("user_id", cred.UserID),
			zap.Stringer("scheme", scheme))
		return false, nil
	}

	if scheme == SchemePlaintext && a.opts.UpgradeLegacy {
		if err := a.setPassword(ctx, cred.UserID, password); err != nil {
			// The login itself succeeded; the upgrade is retried next time.
			a.logger.Warn("legacy credential upgrade failed",
				zap.String("user_id", cred.UserID), zap.Error(err))
		} else {
			a.logger.Info("legacy credential upgraded", zap.String("user_id", cred.UserID))
		}
	}
	return true, nil
}

// Login verifies and returns the identity, or generic.ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, userID, password string) (Identity, error) {
	ok, err := a.Verify(ctx, userID, password)
	if err != nil {
		return Identity{}, err
	}
	if !ok {
		return Identity{}, generic.ErrInvalidCredentials
	}
	level, err := a.UserLevel(ctx, userID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: strings.TrimSpace(userID), Level: level}, nil
}

// UpdatePassword replaces the stored secret with a fresh bcrypt hash.
func (a *Authenticator) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if err := a.setPassword(ctx, strings.TrimSpace(userID), newPassword); err != nil {
		return err
	}
	a.logger.Info("password updated", zap.String("user_id", userID))
	return nil
}

// ChangePassword verifies the current password before updating it.
func (a *Authenticator) ChangePassword(ctx context.Context, userID, current, next string) error {
	ok, err := a.Verify(ctx, userID, current)
	if err != nil {
		return err
	}
	if !ok {
		return generic.ErrInvalidCredentials
	}
	return a.UpdatePassword(ctx, userID, next)
}

func (a *Authenticator) setPassword(ctx context.Context, userID, password string) error {
	hash, err := HashPassword(password, a.opts.Cost)
	if err != nil {
		return err
	}
	if err := a.store.StoreSecret(ctx, userID, hash, ""); err != nil {
		return fmt.Errorf("store password for %q: %w", userID, err)
	}
	return nil
}

// UserLevel returns the stored level, or DefaultLevel for unknown users.
func (a *Authenticator) UserLevel(ctx context.Context, userID string) (Level, error) {
	cred, err := a.store.Credential(ctx, strings.TrimSpace(userID))
	if err != nil {
		return DefaultLevel, err
	}
	if cred == nil || !cred.Level.Valid() {
		return DefaultLevel, nil
	}
	return cred.Level, nil
}
