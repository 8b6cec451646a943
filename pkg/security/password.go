package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/jwalitptl/clinic-workflow/pkg/errors"
)

// DefaultMinPasswordLength applies when no minimum is configured.
const DefaultMinPasswordLength = 8

// ErrPasswordMismatch is returned by Compare for a wrong password.
var ErrPasswordMismatch = errors.New("password does not match")

// PasswordHasher hashes new passwords and checks login attempts.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hashedPassword, password string) error
}

type HasherConfig struct {
	Cost      int
	MinLength int
}

type bcryptHasher struct {
	cost      int
	minLength int
}

// NewBcryptHasher rejects a cost bcrypt would refuse instead of silently
// replacing it.
func NewBcryptHasher(cfg HasherConfig) (PasswordHasher, error) {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, apperrors.Configuration(fmt.Sprintf("bcrypt cost %d outside [%d, %d]", cfg.Cost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if cfg.MinLength <= 0 {
		cfg.MinLength = DefaultMinPasswordLength
	}
	return &bcryptHasher{cost: cfg.Cost, minLength: cfg.MinLength}, nil
}

func (b *bcryptHasher) Hash(password string) (string, error) {
	if len(password) < b.minLength {
		return "", apperrors.Validation(fmt.Sprintf("password must be at least %d characters", b.minLength))
	}
	// bcrypt only reads the first 72 bytes; longer input is an error there.
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperrors.Validation("password must be at most 72 bytes")
	}
	if err != nil {
		return "", apperrors.Internal(fmt.Errorf("failed to hash password: %w", err))
	}
	return string(bytes), nil
}

func (b *bcryptHasher) Compare(hashedPassword, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
