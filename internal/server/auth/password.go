package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt refuses inputs longer than 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

var ErrPasswordLength = fmt.Errorf("password must be %d to %d bytes long", MinPasswordLength, MaxPasswordLength)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
	// CompareDummy performs a comparison against a fixed hash so that a login
	// for an unknown account costs the same as a wrong password.
	CompareDummy(password string)
}

type BcryptHasher struct {
	cost      int
	dummyHash []byte
}

// NewBcryptHasher returns a Hasher using the given bcrypt work factor.
// Costs outside bcrypt's range fall back to bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("academyhub-dummy-password"), cost)
	if err != nil {
		// only possible for an out-of-range cost, excluded above
		panic(err)
	}
	return &BcryptHasher{cost: cost, dummyHash: dummy}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare returns nil on a match and bcrypt.ErrMismatchedHashAndPassword otherwise.
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil && !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return fmt.Errorf("compare password: %w", err)
	}
	return err
}

func (h *BcryptHasher) CompareDummy(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

// ValidatePassword checks the length bounds.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrPasswordLength
	}
	return nil
}
