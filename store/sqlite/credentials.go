package sqlite

import (
	"context"
	"fmt"

	"github.com/tcworks/tcmanage/auth"
	"github.com/tcworks/tcmanage/generic"
)

// =============================================================================
// CREDENTIAL STORE (auth.CredentialStore interface)
// =============================================================================

var _ auth.CredentialStore = (*Store)(nil)

var colUserID generic.Column = "user_id"

// Credential returns the stored credential, or nil when the user is unknown.
func (s *Store) Credential(ctx context.Context, userID string) (*auth.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Select(ctx, generic.TableCredentials,
		[]generic.Column{"user_id", "password", "salt", "user_level"},
		generic.Eq(colUserID, userID),
		generic.OrderBy{Column: "id", Order: generic.Asc})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	r := rows[0]
	return &auth.Credential{
		UserID:   r.String("user_id"),
		Password: r.String("password"),
		Salt:     r.String("salt"),
		Level:    auth.Level(r.String("user_level")),
	}, nil
}

// StoreSecret replaces password and salt of an existing user.
func (s *Store) StoreSecret(ctx context.Context, userID, password, salt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.rec.Update(ctx, generic.TableCredentials,
		generic.Record{"password": password, "salt": salt},
		generic.Eq(colUserID, userID))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", userID, generic.ErrNotFound)
	}
	return nil
}

// CreateCredential adds a user. A taken user id fails with ErrDuplicate.
func (s *Store) CreateCredential(ctx context.Context, cred auth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertCredential(ctx, s.rec, cred)
}

func insertCredential(ctx context.Context, rs generic.RecordStore, cred auth.Credential) error {
	if cred.UserID == "" {
		return generic.Invalid("credential", "user_id", "required")
	}
	if !cred.Level.Valid() {
		return generic.Invalid("credential", "user_level", "unknown level %q", string(cred.Level))
	}
	// The unique index may be missing on databases holding duplicates.
	existing, err := rs.Select(ctx, generic.TableCredentials,
		[]generic.Column{"id"}, generic.Eq(colUserID, cred.UserID))
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return &generic.StorageError{Op: "insert", Table: generic.TableCredentials, Kind: generic.ErrDuplicate,
			Err: fmt.Errorf("user %q already exists", cred.UserID)}
	}
	_, err = rs.Insert(ctx, generic.TableCredentials, generic.Record{
		"user_id":    cred.UserID,
		"password":   cred.Password,
		"salt":       cred.Salt,
		"user_level": string(cred.Level),
	})
	return err
}

// SetUserLevel changes the privilege level of an existing user.
func (s *Store) SetUserLevel(ctx context.Context, userID string, level auth.Level) error {
	if !level.Valid() {
		return generic.Invalid("credential", "user_level", "unknown level %q", string(level))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.rec.Update(ctx, generic.TableCredentials,
		generic.Record{"user_level": string(level)},
		generic.Eq(colUserID, userID))
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %q: %w", userID, generic.ErrNotFound)
	}
	return nil
}

// UserSummary is a credential row without its secret.
type UserSummary struct {
	UserID string     `json:"user_id"`
	Level  auth.Level `json:"user_level"`
	Scheme string     `json:"scheme"`
}

// ListUsers returns every user ordered by user_id, with the scheme of the stored
// credential so operators can see which rows are still legacy.
func (s *Store) ListUsers(ctx context.Context) ([]UserSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.rec.Select(ctx, generic.TableCredentials,
		[]generic.Column{"user_id", "password", "salt", "user_level"},
		generic.Condition{},
		generic.OrderBy{Column: "user_id", Order: generic.Asc})
	if err != nil {
		return nil, err
	}
	users := make([]UserSummary, len(rows))
	for i, r := range rows {
		cred := auth.Credential{Password: r.String("password"), Salt: r.String("salt")}
		users[i] = UserSummary{
			UserID: r.String("user_id"),
			Level:  auth.ParseLevel(r.String("user_level")),
			Scheme: cred.Scheme().String(),
		}
	}
	return users, nil
}
