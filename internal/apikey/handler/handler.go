package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"keymint/internal/apikey/models"
	id "keymint/pkg/domain"
	dErrors "keymint/pkg/domain-errors"
	"keymint/pkg/platform/httputil"
	"keymint/pkg/requestcontext"
)

// Service defines the interface for API key lifecycle operations.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	Issue(ctx context.Context, ownerID id.OwnerID) (string, *models.APIKey, error)
	Verify(ctx context.Context, presented string) (*models.APIKey, error)
	Revoke(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/apikeys", h.HandleIssue)
	r.Post("/apikeys/verify", h.HandleVerify)
	r.Post("/apikeys/{id}/revoke", h.HandleRevoke)
}

// HandleIssue creates a new API key for an owner. The plaintext key appears
// in this response only; it must not be logged by any layer.
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[IssueRequest](w, r)
	if !ok {
		return
	}
	ownerID, err := req.Validate()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	plaintext, key, err := h.service.Issue(ctx, ownerID)
	if err != nil {
		h.logger.ErrorContext(ctx, "issue api key failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, newIssueResponse(plaintext, key))
}

// HandleVerify checks a presented API key. Every rejection produces the same
// observable 401 shape regardless of the underlying failure mode.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.Decode[VerifyRequest](w, r)
	if !ok {
		return
	}

	key, err := h.service.Verify(ctx, req.APIKey)
	if err != nil {
		// Rejections are expected traffic; only infrastructure failures are
		// worth an error log.
		if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			h.logger.ErrorContext(ctx, "verify api key failed", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VerifyResponse{OwnerID: key.OwnerID.String()})
}

// HandleRevoke permanently invalidates an API key. Idempotent.
func (h *Handler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	keyID, err := id.ParseAPIKeyID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key, err := h.service.Revoke(ctx, keyID)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "revoke api key failed", "error", err, "request_id", requestID)
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, RevokeResponse{
		ID:        key.ID.String(),
		RevokedAt: *key.RevokedAt,
	})
}
