package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// fallbackDummyHash is a bcrypt (cost 12) hash of an irrelevant plaintext,
// used only if the verifier cannot build its own dummy hash.
const fallbackDummyHash = "$2a$12$dWR5CQpS4zNHLavLSIr4o.P6QDQEUJKv7mJ7WekUHHqyRSRMJzH0S"

// CredentialVerifier hashes and checks passwords with bcrypt.
type CredentialVerifier struct {
	cost      int
	dummyHash []byte
}

// NewCredentialVerifier clamps cost into bcrypt's accepted range. Pass
// bcrypt.MinCost in tests.
func NewCredentialVerifier(cost int) *CredentialVerifier {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(dummyPasswordMaterial), cost)
	if err != nil {
		dummy = []byte(fallbackDummyHash)
	}

	return &CredentialVerifier{cost: cost, dummyHash: dummy}
}

func (v *CredentialVerifier) Cost() int {
	return v.cost
}

// Hash returns a salted bcrypt hash. Two calls with the same input produce
// different hashes.
func (v *CredentialVerifier) Hash(plaintext string) (string, error) {
	if len(plaintext) == 0 {
		return "", errors.New(msgPasswordEmpty)
	}
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf(msgPasswordTooLong, maxPasswordBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		return "", fmt.Errorf(msgHashPasswordFailed, err)
	}

	return string(hash), nil
}

// Verify compares in constant time. It never reports why a check failed.
// bcrypt only reads the first 72 bytes, so a longer plaintext can never
// match a hash Hash produced and is rejected outright.
func (v *CredentialVerifier) Verify(plaintext, hash string) bool {
	if hash == "" || len(plaintext) > maxPasswordBytes {
		v.BurnTime(plaintext)
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// BurnTime runs a comparison against a dummy hash so that a login for an
// unknown user costs the same as a wrong password.
func (v *CredentialVerifier) BurnTime(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(plaintext))
}

// NeedsRehash reports whether hash was produced with a lower cost than the
// verifier is configured for.
func (v *CredentialVerifier) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost < v.cost
}
