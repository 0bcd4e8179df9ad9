// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "keymint/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing OwnerID where APIKeyID is expected.
type (
	APIKeyID uuid.UUID
	OwnerID  uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, API inputs).

func ParseAPIKeyID(s string) (APIKeyID, error) {
	id, err := parseUUID(s, "API key ID")
	return APIKeyID(id), err
}

func ParseOwnerID(s string) (OwnerID, error) {
	id, err := parseUUID(s, "owner ID")
	return OwnerID(id), err
}

// String methods - for logging and debugging.

func (id APIKeyID) String() string { return uuid.UUID(id).String() }
func (id OwnerID) String() string  { return uuid.UUID(id).String() }

// IsNil checks - used for service-layer validation.

func (id APIKeyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OwnerID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

// parseUUID is the shared validation logic. Nil UUIDs are allowed here; use
// IsNil() at the service layer for business validation so store lookups can
// return proper "not found" errors.
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" must be a valid UUID")
	}
	return id, nil
}
