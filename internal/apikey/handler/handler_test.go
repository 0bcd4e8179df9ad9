package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"keymint/internal/apikey/service"
	"keymint/internal/apikey/store"
	dErrors "keymint/pkg/domain-errors"
)

// fastHasher keeps handler tests quick; the real bcrypt path is covered in
// pkg/secrets and the service tests.
type fastHasher struct{}

func (fastHasher) Hash(secret string) (string, error) { return "hashed|" + secret, nil }
func (fastHasher) Compare(secret, digest string) error {
	if digest == "hashed|"+secret {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(store.NewInMemory(),
		service.WithLogger(logger),
		service.WithHasher(fastHasher{}),
	)
	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func issueKey(t *testing.T, router http.Handler, ownerID string) IssueResponse {
	t.Helper()
	rec := doJSON(t, router, http.MethodPost, "/apikeys", IssueRequest{OwnerID: ownerID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp IssueResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestIssueReturnsPlaintextOnce(t *testing.T) {
	router := newTestRouter(t)
	ownerID := uuid.NewString()

	resp := issueKey(t, router, ownerID)
	require.Equal(t, ownerID, resp.OwnerID)
	require.NotEmpty(t, resp.APIKey)
	require.True(t, strings.HasPrefix(resp.MaskedKey, resp.APIKey[:8]))
	require.True(t, strings.HasSuffix(resp.MaskedKey, "****"))
}

func TestIssueRejectsBadOwner(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/apikeys", IssueRequest{OwnerID: "not-a-uuid"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/apikeys", IssueRequest{OwnerID: uuid.Nil.String()})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVerifyValidKey(t *testing.T) {
	router := newTestRouter(t)
	ownerID := uuid.NewString()
	issued := issueKey(t, router, ownerID)

	rec := doJSON(t, router, http.MethodPost, "/apikeys/verify", VerifyRequest{APIKey: issued.APIKey})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp VerifyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, ownerID, resp.OwnerID)
}

func TestVerifyRejectionShapeIsConstant(t *testing.T) {
	router := newTestRouter(t)
	issued := issueKey(t, router, uuid.NewString())

	// Three distinct failure modes must be observationally identical.
	attempts := []string{
		"short",
		strings.Repeat("z", 43),
		issued.APIKey[:8] + strings.Repeat("x", 35),
	}

	var bodies []string
	for _, attempt := range attempts {
		rec := doJSON(t, router, http.MethodPost, "/apikeys/verify", VerifyRequest{APIKey: attempt})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		bodies = append(bodies, rec.Body.String())
	}
	for _, body := range bodies[1:] {
		require.Equal(t, bodies[0], body, "rejection responses must not reveal the failure mode")
	}
}

func TestRevokeFlow(t *testing.T) {
	router := newTestRouter(t)
	issued := issueKey(t, router, uuid.NewString())

	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/apikeys/%s/revoke", issued.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first RevokeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))

	// Idempotent: the second call reports the original revocation time.
	rec = doJSON(t, router, http.MethodPost, fmt.Sprintf("/apikeys/%s/revoke", issued.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var second RevokeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.True(t, second.RevokedAt.Equal(first.RevokedAt))

	// The revoked key no longer verifies.
	rec = doJSON(t, router, http.MethodPost, "/apikeys/verify", VerifyRequest{APIKey: issued.APIKey})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevokeUnknownKey(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, fmt.Sprintf("/apikeys/%s/revoke", uuid.NewString()), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}
