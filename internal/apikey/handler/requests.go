package handler

import (
	id "keymint/pkg/domain"
	dErrors "keymint/pkg/domain-errors"
)

// IssueRequest is the payload for creating a new API key.
type IssueRequest struct {
	OwnerID string `json:"owner_id"`
}

// Validate parses and validates the request at the trust boundary.
func (r *IssueRequest) Validate() (id.OwnerID, error) {
	ownerID, err := id.ParseOwnerID(r.OwnerID)
	if err != nil {
		return id.OwnerID{}, err
	}
	if ownerID.IsNil() {
		return id.OwnerID{}, dErrors.New(dErrors.CodeInvalidInput, "owner_id cannot be the nil UUID")
	}
	return ownerID, nil
}

// VerifyRequest is the payload for checking a presented API key.
type VerifyRequest struct {
	APIKey string `json:"api_key"`
}
