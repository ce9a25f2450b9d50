package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
)

// CredentialVerifier decides whether a credential belongs to a
// registered identity. Implementations return ErrInvalidCredential on
// rejection and reserve other errors for backend faults.
type CredentialVerifier interface {
	Verify(ctx context.Context, cred Credential) (Identity, error)
}

// StaticVerifier checks credentials against a fixed in-process registry.
type StaticVerifier struct {
	secrets map[string][32]byte
	decoy   [32]byte
}

// NewStaticVerifier registers identifier -> secret pairs.
func NewStaticVerifier(accounts map[string]string) *StaticVerifier {
	v := &StaticVerifier{
		secrets: make(map[string][32]byte, len(accounts)),
		decoy:   sha256.Sum256([]byte("login-gate/unknown-identifier")),
	}
	for id, secret := range accounts {
		v.secrets[id] = sha256.Sum256([]byte(secret))
	}
	return v
}

// Verify compares digests in constant time. Unknown identifiers are
// compared against a decoy so both failure paths cost the same.
func (v *StaticVerifier) Verify(_ context.Context, cred Credential) (Identity, error) {
	expected, known := v.secrets[cred.Identifier]
	if !known {
		expected = v.decoy
	}

	got := sha256.Sum256([]byte(cred.Secret))
	match := subtle.ConstantTimeCompare(expected[:], got[:]) == 1

	if !known || !match {
		return Identity{}, ErrInvalidCredential
	}
	return Identity{ID: cred.Identifier}, nil
}
