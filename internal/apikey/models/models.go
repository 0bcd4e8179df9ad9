package models

import (
	"strings"
	"time"

	id "keymint/pkg/domain"
	dErrors "keymint/pkg/domain-errors"
)

// PrefixLength is the number of leading characters of the plaintext secret
// stored verbatim as the lookup index. The prefix narrows candidate search;
// it is never proof of possession. Equal across all records.
const PrefixLength = 8

// APIKey is the durable representation of an issued credential. The plaintext
// secret is never part of this record: only its leading slice (LookupPrefix)
// and its bcrypt digest (SecretDigest) survive issuance.
type APIKey struct {
	ID             id.APIKeyID `json:"id"`
	OwnerID        id.OwnerID  `json:"owner_id"`
	LookupPrefix   string      `json:"lookup_prefix"`
	SecretDigest   string      `json:"-"` // Never serialize - contains bcrypt digest
	CreatedAt      time.Time   `json:"created_at"`
	RevokedAt      *time.Time  `json:"revoked_at,omitempty"`
	LastVerifiedAt *time.Time  `json:"last_verified_at,omitempty"`
}

// Prefix returns the fixed-length leading slice of a plaintext secret used as
// the lookup index. The secret must be at least PrefixLength characters.
func Prefix(secret string) string {
	return secret[:PrefixLength]
}

// NewAPIKey constructs a credential record, enforcing its invariants.
// The digest must already be computed; the plaintext never reaches this layer.
func NewAPIKey(keyID id.APIKeyID, ownerID id.OwnerID, lookupPrefix, secretDigest string, now time.Time) (*APIKey, error) {
	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "API key ID cannot be nil")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner ID cannot be nil")
	}
	if len(lookupPrefix) != PrefixLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "lookup prefix must be exactly the configured length")
	}
	if secretDigest == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secret digest cannot be empty")
	}
	if strings.HasPrefix(secretDigest, lookupPrefix) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secret digest must not start with secret material")
	}
	return &APIKey{
		ID:           keyID,
		OwnerID:      ownerID,
		LookupPrefix: lookupPrefix,
		SecretDigest: secretDigest,
		CreatedAt:    now,
	}, nil
}

// IsRevoked reports whether the credential has been permanently invalidated.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// Revoke marks the credential revoked at the given time. Revocation is
// monotonic: revoking an already-revoked key is a no-op that returns the
// original revocation time.
func (k *APIKey) Revoke(now time.Time) time.Time {
	if k.RevokedAt != nil {
		return *k.RevokedAt
	}
	k.RevokedAt = &now
	return now
}

// Masked returns a display form of the credential: the public lookup prefix
// followed by a fixed run of stars. Cosmetic only, no security relevance.
func (k *APIKey) Masked() string {
	return k.LookupPrefix + "****"
}

// Clone returns a deep copy so stores can hand out records without aliasing
// their internal state.
func (k *APIKey) Clone() *APIKey {
	out := *k
	if k.RevokedAt != nil {
		t := *k.RevokedAt
		out.RevokedAt = &t
	}
	if k.LastVerifiedAt != nil {
		t := *k.LastVerifiedAt
		out.LastVerifiedAt = &t
	}
	return &out
}
