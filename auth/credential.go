/*
Package auth verifies user credentials and issues API tokens.

CREDENTIAL SCHEMES:
  A stored credential is a (password, salt) pair. Three shapes exist on disk
  and each is verified in exactly one way:

    Plaintext     salt empty, password not a bcrypt hash
                  legacy rows; equality check, only while AllowPlaintext is on
    SaltedSHA256  salt non-empty
                  hex(sha256(password + salt)), written by earlier releases
    Bcrypt        salt empty, password is a bcrypt hash
                  everything written now; bcrypt carries its own random salt

  Plaintext rows are upgraded to Bcrypt on the first successful login when
  UpgradeLegacy is on, so the legacy path drains over time and can be
  switched off with AllowPlaintext=false.

LEVELS:
  "admin" or "user". Unknown users report the default level "user".
*/
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tcworks/tcmanage/generic"
)

// Level is a privilege level.
type Level string

const (
	LevelAdmin Level = "admin"
	LevelUser  Level = "user"
)

// DefaultLevel is reported for users without a stored level.
const DefaultLevel = LevelUser

func (l Level) Valid() bool { return l == LevelAdmin || l == LevelUser }

// ParseLevel maps anything other than "admin" to the default level.
func ParseLevel(s string) Level {
	if Level(strings.TrimSpace(s)) == LevelAdmin {
		return LevelAdmin
	}
	return DefaultLevel
}

// Scheme identifies how a stored credential is verified.
type Scheme int

const (
	SchemePlaintext Scheme = iota
	SchemeSaltedSHA256
	SchemeBcrypt
)

func (s Scheme) String() string {
	switch s {
	case SchemePlaintext:
		return "plaintext"
	case SchemeSaltedSHA256:
		return "salted-sha256"
	case SchemeBcrypt:
		return "bcrypt"
	}
	return "unknown"
}

// Credential is one row of the credential table.
type Credential struct {
	UserID   string
	Password string // plaintext, hex digest or bcrypt hash depending on Scheme
	Salt     string
	Level    Level
}

// Scheme classifies the stored pair.
func (c Credential) Scheme() Scheme {
	if c.Salt != "" {
		return SchemeSaltedSHA256
	}
	if _, err := bcrypt.Cost([]byte(c.Password)); err == nil {
		return SchemeBcrypt
	}
	return SchemePlaintext
}

// Verify checks password against the credential. Plaintext credentials only
// verify when allowPlaintext is set.
func (c Credential) Verify(password string, allowPlaintext bool) bool {
	switch c.Scheme() {
	case SchemePlaintext:
		if !allowPlaintext {
			return false
		}
		return subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) == 1
	case SchemeSaltedSHA256:
		digest := SaltedDigest(password, c.Salt)
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(c.Password)), []byte(digest)) == 1
	case SchemeBcrypt:
		return bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)) == nil
	}
	return false
}

// SaltedDigest is the digest earlier releases stored: hex(sha256(password+salt)).
func SaltedDigest(password, salt string) string {
	sum := sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}

// HashPassword returns a bcrypt hash of password. cost <= 0 uses the
// library default.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", generic.Invalid("credential", "password", "required")
	}
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", generic.Invalid("credential", "password", "longer than 72 bytes")
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// NewCredential builds a bcrypt credential.
func NewCredential(userID, password string, level Level, cost int) (Credential, error) {
	if strings.TrimSpace(userID) == "" {
		return Credential{}, generic.Invalid("credential", "user_id", "required")
	}
	if !level.Valid() {
		return Credential{}, generic.Invalid("credential", "user_level", "unknown level %q", string(level))
	}
	hash, err := HashPassword(password, cost)
	if err != nil {
		return Credential{}, err
	}
	return Credential{UserID: strings.TrimSpace(userID), Password: hash, Level: level}, nil
}

// BootstrapUser is an install-time account created when the credential
// table is first created.
type BootstrapUser struct {
	UserID   string `yaml:"user_id"`
	Password string `yaml:"password"`
	Level    Level  `yaml:"level"`
}

// Credential hashes the bootstrap password.
func (b BootstrapUser) Credential(cost int) (Credential, error) {
	level := b.Level
	if level == "" {
		level = DefaultLevel
	}
	return NewCredential(b.UserID, b.Password, level, cost)
}
