package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"keymint/internal/apikey/models"
	"keymint/internal/sentinel"
	dErrors "keymint/pkg/domain-errors"
	"keymint/pkg/secrets"
)

var tracer = otel.Tracer("keymint/internal/apikey/service")

// errInvalidKey is the single rejection returned for every verification
// failure mode: malformed input, no candidates, all candidates revoked, or
// digest mismatch. Callers cannot distinguish which one occurred.
func errInvalidKey() error {
	return dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
}

// Verify checks a presented secret and returns the matching record when the
// credential is valid. The flow is: cheap format gate, indexed prefix lookup,
// then a bcrypt comparison per unrevoked candidate. Comparisons run under the
// shared semaphore so concurrent verification attempts queue instead of
// monopolizing CPU. Store outages surface as CodeUnavailable, never as a
// rejection.
func (s *Service) Verify(ctx context.Context, presented string) (*models.APIKey, error) {
	start := s.now()
	ctx, span := tracer.Start(ctx, "apikey.Verify", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	// Format gate: every issued secret has the same length, so anything else
	// is rejected on shape alone with no store or hash work. Length tells an
	// attacker nothing about secret content.
	if len(presented) != secrets.Length {
		s.observeVerify(start, false)
		return nil, errInvalidKey()
	}

	candidates, err := s.store.FindByPrefix(ctx, models.Prefix(presented))
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "API key store unavailable")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up API key candidates")
	}
	span.SetAttributes(attribute.Int("apikey.candidates", len(candidates)))

	for _, candidate := range candidates {
		// The caller abandoned the request; stop scanning further candidates.
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "verification canceled")
		}
		// Revocation is public information about the record, so rejecting a
		// revoked candidate before the expensive comparison leaks nothing.
		if candidate.IsRevoked() {
			continue
		}
		if err := s.compare(ctx, presented, candidate.SecretDigest); err != nil {
			if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
				continue
			}
			return nil, err
		}
		s.touchLastVerified(ctx, candidate)
		s.log(ctx, "api key verified",
			"key_id", candidate.ID,
			"owner_id", candidate.OwnerID,
		)
		s.observeVerify(start, true)
		return candidate, nil
	}

	s.observeVerify(start, false)
	return nil, errInvalidKey()
}

// compare runs one slow hash comparison under the bounded semaphore.
func (s *Service) compare(ctx context.Context, presented, digest string) error {
	if err := s.compareSem.Acquire(ctx, 1); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "verification canceled")
	}
	defer s.compareSem.Release(1)
	return s.hasher.Compare(presented, digest)
}

// touchLastVerified updates the observability timestamp without blocking the
// verification result. The update runs on a detached context so a caller
// disconnecting right after a successful verification does not lose it.
func (s *Service) touchLastVerified(ctx context.Context, key *models.APIKey) {
	now := s.now()
	key.LastVerifiedAt = &now

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.touchBudget)
	go func() {
		defer cancel()
		if err := s.store.MarkVerified(detached, key.ID, now); err != nil {
			if s.logger != nil {
				s.logger.WarnContext(detached, "failed to update last_verified_at",
					"key_id", key.ID,
					"error", err,
				)
			}
		}
	}()
}

func (s *Service) observeVerify(start time.Time, accepted bool) {
	if s.metrics != nil {
		s.metrics.ObserveVerify(start, accepted)
	}
}
