package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	apikeymetrics "keymint/internal/apikey/metrics"
	"keymint/internal/apikey/models"
	"keymint/internal/sentinel"
	id "keymint/pkg/domain"
	dErrors "keymint/pkg/domain-errors"
	"keymint/pkg/secrets"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store

// Store is the persistence contract for API key records. Implementations must
// make Create atomic with respect to ID uniqueness, apply the Mark* updates as
// single-record operations, and guarantee FindByPrefix never omits a matching
// record. Timeouts and unreachable backends are reported as
// sentinel.ErrUnavailable (possibly wrapped), never as a miss.
type Store interface {
	Create(ctx context.Context, key *models.APIKey) error
	FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error)
	FindByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	MarkRevoked(ctx context.Context, keyID id.APIKeyID, t time.Time) error
	MarkVerified(ctx context.Context, keyID id.APIKeyID, t time.Time) error
}

// Hasher abstracts the slow one-way hash used for proof of possession.
// The default implementation is bcrypt via pkg/secrets.
type Hasher interface {
	Hash(secret string) (string, error)
	Compare(secret, digest string) error
}

type bcryptHasher struct{}

func (bcryptHasher) Hash(secret string) (string, error)  { return secrets.Hash(secret) }
func (bcryptHasher) Compare(secret, digest string) error { return secrets.Compare(secret, digest) }

// DefaultMaxConcurrentCompares bounds simultaneous bcrypt comparisons so a
// burst of verification attempts queues instead of starving unrelated work.
const DefaultMaxConcurrentCompares = 8

// Service orchestrates the API key lifecycle: issuance, verification, and
// revocation.
type Service struct {
	store       Store
	hasher      Hasher
	generate    func() (string, error)
	now         func() time.Time
	logger      *slog.Logger
	metrics     *apikeymetrics.Metrics
	compareSem  *semaphore.Weighted
	touchBudget time.Duration
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *apikeymetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithGenerator overrides the secret generator. Test seam.
func WithGenerator(generate func() (string, error)) Option {
	return func(s *Service) {
		s.generate = generate
	}
}

// WithHasher overrides the slow hash implementation. Test seam.
func WithHasher(h Hasher) Option {
	return func(s *Service) {
		s.hasher = h
	}
}

// WithClock overrides the time source. Test seam.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMaxConcurrentCompares caps the number of hash comparisons running at
// once across all Verify calls.
func WithMaxConcurrentCompares(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.compareSem = semaphore.NewWeighted(n)
		}
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		hasher:      bcryptHasher{},
		generate:    secrets.Generate,
		now:         time.Now,
		compareSem:  semaphore.NewWeighted(DefaultMaxConcurrentCompares),
		touchBudget: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue generates a credential for the given owner, persists its record, and
// returns the plaintext secret. This is the only point where the plaintext is
// observable; it is never stored or logged, and cannot be retrieved again.
func (s *Service) Issue(ctx context.Context, ownerID id.OwnerID) (string, *models.APIKey, error) {
	ctx, span := tracer.Start(ctx, "apikey.Issue", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	if ownerID.IsNil() {
		return "", nil, dErrors.New(dErrors.CodeInvalidInput, "owner ID is required")
	}

	plaintext, err := s.generate()
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate API key")
	}
	digest, err := s.hasher.Hash(plaintext)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash API key")
	}

	key, err := models.NewAPIKey(id.APIKeyID(uuid.New()), ownerID, models.Prefix(plaintext), digest, s.now())
	if err != nil {
		return "", nil, err
	}

	if err := s.store.Create(ctx, key); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return "", nil, dErrors.New(dErrors.CodeConflict, "API key ID already exists")
		case errors.Is(err, sentinel.ErrUnavailable):
			return "", nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "API key store unavailable")
		default:
			return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist API key")
		}
	}

	s.log(ctx, "api key issued",
		"key_id", key.ID,
		"owner_id", key.OwnerID,
		"prefix", key.LookupPrefix,
	)
	if s.metrics != nil {
		s.metrics.IncrementIssued()
	}
	return plaintext, key, nil
}

// Revoke permanently invalidates a credential. Idempotent: revoking an
// already-revoked key succeeds and reports the original revocation time.
func (s *Service) Revoke(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	if keyID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "API key ID is required")
	}

	key, err := s.store.FindByID(ctx, keyID)
	if err != nil {
		return nil, storeToDomain(err, "failed to load API key")
	}
	if key.IsRevoked() {
		return key, nil
	}

	now := s.now()
	if err := s.store.MarkRevoked(ctx, keyID, now); err != nil {
		return nil, storeToDomain(err, "failed to revoke API key")
	}
	key.RevokedAt = &now

	s.log(ctx, "api key revoked",
		"key_id", key.ID,
		"owner_id", key.OwnerID,
	)
	if s.metrics != nil {
		s.metrics.IncrementRevoked()
	}
	return key, nil
}

func (s *Service) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}

// storeToDomain translates store sentinels into domain errors exactly once.
func storeToDomain(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "API key not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "API key store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
