package handler

import (
	"time"

	"keymint/internal/apikey/models"
)

// IssueResponse returns the plaintext key exactly once, alongside the record
// metadata. The plaintext is never retrievable again.
type IssueResponse struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	APIKey    string    `json:"api_key"`
	MaskedKey string    `json:"masked_key"`
	CreatedAt time.Time `json:"created_at"`
}

// VerifyResponse identifies the owner of a valid credential.
type VerifyResponse struct {
	OwnerID string `json:"owner_id"`
}

// RevokeResponse reports the (possibly pre-existing) revocation time.
type RevokeResponse struct {
	ID        string    `json:"id"`
	RevokedAt time.Time `json:"revoked_at"`
}

func newIssueResponse(plaintext string, key *models.APIKey) IssueResponse {
	return IssueResponse{
		ID:        key.ID.String(),
		OwnerID:   key.OwnerID.String(),
		APIKey:    plaintext,
		MaskedKey: key.Masked(),
		CreatedAt: key.CreatedAt,
	}
}
