package models

import (
	"testing"
	"time"

	"github.com/google/uuid"

	id "keymint/pkg/domain"
	dErrors "keymint/pkg/domain-errors"
)

func validArgs() (id.APIKeyID, id.OwnerID, string, string, time.Time) {
	return id.APIKeyID(uuid.New()), id.OwnerID(uuid.New()), "abcd1234", "$2a$10$notarealdigestbutplausible", time.Now()
}

func TestNewAPIKeyInvariants(t *testing.T) {
	keyID, ownerID, prefix, digest, now := validArgs()

	if _, err := NewAPIKey(id.APIKeyID{}, ownerID, prefix, digest, now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation for nil key ID, got %v", err)
	}
	if _, err := NewAPIKey(keyID, id.OwnerID{}, prefix, digest, now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation for nil owner ID, got %v", err)
	}
	if _, err := NewAPIKey(keyID, ownerID, "short", digest, now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation for short prefix, got %v", err)
	}
	if _, err := NewAPIKey(keyID, ownerID, prefix, "", now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation for empty digest, got %v", err)
	}
	// A digest that starts with the lookup prefix means a raw secret was
	// stored instead of a hash.
	if _, err := NewAPIKey(keyID, ownerID, prefix, prefix+"rest-of-a-plaintext-secret", now); !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation for plaintext-shaped digest, got %v", err)
	}

	key, err := NewAPIKey(keyID, ownerID, prefix, digest, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.IsRevoked() {
		t.Fatalf("new key must not be revoked")
	}
	if key.LastVerifiedAt != nil {
		t.Fatalf("new key must not have a last verified time")
	}
	if !key.CreatedAt.Equal(now) {
		t.Fatalf("expected created at %v, got %v", now, key.CreatedAt)
	}
}

func TestRevokeIsMonotonic(t *testing.T) {
	keyID, ownerID, prefix, digest, now := validArgs()
	key, err := NewAPIKey(keyID, ownerID, prefix, digest, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := key.Revoke(now.Add(time.Minute))
	if !key.IsRevoked() {
		t.Fatalf("expected key to be revoked")
	}

	second := key.Revoke(now.Add(time.Hour))
	if !second.Equal(first) {
		t.Fatalf("expected second revoke to report original time %v, got %v", first, second)
	}
	if !key.RevokedAt.Equal(first) {
		t.Fatalf("revocation time must never move, got %v", key.RevokedAt)
	}
}

func TestMaskedShowsOnlyPrefix(t *testing.T) {
	keyID, ownerID, prefix, digest, now := validArgs()
	key, _ := NewAPIKey(keyID, ownerID, prefix, digest, now)
	if key.Masked() != prefix+"****" {
		t.Fatalf("unexpected masked form %q", key.Masked())
	}
}

func TestCloneIsIndependent(t *testing.T) {
	keyID, ownerID, prefix, digest, now := validArgs()
	key, _ := NewAPIKey(keyID, ownerID, prefix, digest, now)
	key.Revoke(now)

	clone := key.Clone()
	*clone.RevokedAt = now.Add(time.Hour)
	if !key.RevokedAt.Equal(now) {
		t.Fatalf("mutating a clone must not affect the original")
	}
}
