package service

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"

	"keymint/internal/apikey/models"
	"keymint/internal/apikey/store"
	id "keymint/pkg/domain"
	dErrors "keymint/pkg/domain-errors"
)

// fakeHasher is a fast stand-in for bcrypt so logic tests do not pay the
// slow-hash cost. Security properties of the real hash are covered in
// pkg/secrets and the round-trip test below.
type fakeHasher struct{}

func (fakeHasher) Hash(secret string) (string, error) {
	return "hashed|" + secret, nil
}

func (fakeHasher) Compare(secret, digest string) error {
	if digest == "hashed|"+secret {
		return nil
	}
	return dErrors.New(dErrors.CodeUnauthorized, "invalid secret")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFastService(t *testing.T, opts ...Option) (*Service, *store.InMemory) {
	t.Helper()
	mem := store.NewInMemory()
	base := []Option{WithLogger(testLogger()), WithHasher(fakeHasher{})}
	return New(mem, append(base, opts...)...), mem
}

func TestIssueRequiresOwner(t *testing.T) {
	svc, _ := newFastService(t)
	if _, _, err := svc.Issue(context.Background(), id.OwnerID{}); !dErrors.HasCode(err, dErrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input for nil owner, got %v", err)
	}
}

func TestIssueThenVerify(t *testing.T) {
	svc, _ := newFastService(t)
	ownerID := id.OwnerID(uuid.New())

	plaintext, key, err := svc.Issue(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}
	if key.LookupPrefix != plaintext[:models.PrefixLength] {
		t.Fatalf("lookup prefix must be the leading slice of the plaintext")
	}
	if key.SecretDigest == plaintext {
		t.Fatalf("digest must differ from plaintext")
	}

	verified, err := svc.Verify(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("expected valid key to verify: %v", err)
	}
	if verified.OwnerID != ownerID {
		t.Fatalf("expected owner %s, got %s", ownerID, verified.OwnerID)
	}
}

func TestIssueThenVerifyWithBcrypt(t *testing.T) {
	mem := store.NewInMemory()
	svc := New(mem, WithLogger(testLogger()))
	ownerID := id.OwnerID(uuid.New())

	plaintext, key, err := svc.Issue(context.Background(), ownerID)
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}
	if strings.Contains(key.SecretDigest, plaintext) {
		t.Fatalf("digest must not contain the plaintext")
	}

	verified, err := svc.Verify(context.Background(), plaintext)
	if err != nil {
		t.Fatalf("expected valid key to verify: %v", err)
	}
	if verified.OwnerID != ownerID {
		t.Fatalf("expected owner %s, got %s", ownerID, verified.OwnerID)
	}
}

func TestVerifyRejectsEverySingleCharacterFlip(t *testing.T) {
	svc, _ := newFastService(t)
	plaintext, _, err := svc.Issue(context.Background(), id.OwnerID(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}

	for i := 0; i < len(plaintext); i++ {
		flipped := []byte(plaintext)
		if flipped[i] == 'A' {
			flipped[i] = 'B'
		} else {
			flipped[i] = 'A'
		}
		if _, err := svc.Verify(context.Background(), string(flipped)); !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			t.Fatalf("expected rejection for flip at position %d, got %v", i, err)
		}
	}
}

func TestRevokeThenVerify(t *testing.T) {
	svc, _ := newFastService(t)
	plaintext, key, err := svc.Issue(context.Background(), id.OwnerID(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}

	revoked, err := svc.Revoke(context.Background(), key.ID)
	if err != nil {
		t.Fatalf("unexpected error revoking: %v", err)
	}
	if revoked.RevokedAt == nil {
		t.Fatalf("expected revocation time to be set")
	}

	if _, err := svc.Verify(context.Background(), plaintext); !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		t.Fatalf("expected revoked key to be rejected, got %v", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	svc, _ := newFastService(t)
	_, key, err := svc.Issue(context.Background(), id.OwnerID(uuid.New()))
	if err != nil {
		t.Fatalf("unexpected error issuing: %v", err)
	}

	first, err := svc.Revoke(context.Background(), key.ID)
	if err != nil {
		t.Fatalf("unexpected error revoking: %v", err)
	}
	second, err := svc.Revoke(context.Background(), key.ID)
	if err != nil {
		t.Fatalf("expected second revoke to succeed: %v", err)
	}
	if !second.RevokedAt.Equal(*first.RevokedAt) {
		t.Fatalf("expected original revocation time %v, got %v", first.RevokedAt, second.RevokedAt)
	}
}

func TestRevokeUnknownKey(t *testing.T) {
	svc, _ := newFastService(t)
	if _, err := svc.Revoke(context.Background(), id.APIKeyID(uuid.New())); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
