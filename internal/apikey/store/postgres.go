package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"keymint/internal/apikey/models"
	"keymint/internal/sentinel"
	id "keymint/pkg/domain"
)

// PostgresStore persists API key records in PostgreSQL. The api_keys table
// carries a btree index on lookup_prefix so FindByPrefix is an indexed
// equality lookup, never a table scan.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed API key store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create persists a new record.
// Returns sentinel.ErrAlreadyUsed on an ID collision.
func (s *PostgresStore) Create(ctx context.Context, k *models.APIKey) error {
	if k == nil {
		return fmt.Errorf("api key is required")
	}
	query := `
		INSERT INTO api_keys (id, owner_id, lookup_prefix, secret_digest, created_at, revoked_at, last_verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(k.ID), uuid.UUID(k.OwnerID), k.LookupPrefix, k.SecretDigest,
		k.CreatedAt, k.RevokedAt, k.LastVerifiedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrAlreadyUsed
		}
		return storeErr("insert api key", err)
	}
	return nil
}

// FindByID retrieves a record by its ID.
func (s *PostgresStore) FindByID(ctx context.Context, keyID id.APIKeyID) (*models.APIKey, error) {
	query := selectColumns + ` WHERE id = $1`
	row := s.db.QueryRowContext(ctx, query, uuid.UUID(keyID))
	k, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, storeErr("select api key", err)
	}
	return k, nil
}

// FindByPrefix returns every record whose lookup_prefix equals prefix.
// Uses the idx_api_keys_lookup_prefix index.
func (s *PostgresStore) FindByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	query := selectColumns + ` WHERE lookup_prefix = $1`
	rows, err := s.db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, storeErr("select api keys by prefix", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var out []*models.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, storeErr("scan api key", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate api keys", err)
	}
	return out, nil
}

// MarkRevoked sets revoked_at if not already set; monotonic by construction
// of the WHERE clause. Returns sentinel.ErrNotFound for an unknown ID.
func (s *PostgresStore) MarkRevoked(ctx context.Context, keyID id.APIKeyID, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`,
		uuid.UUID(keyID), t,
	)
	if err != nil {
		return storeErr("update revoked_at", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update revoked_at", err)
	}
	if affected == 0 {
		// Either unknown or already revoked; disambiguate for the caller.
		var exists bool
		err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM api_keys WHERE id = $1)`, uuid.UUID(keyID)).Scan(&exists)
		if err != nil {
			return storeErr("check api key existence", err)
		}
		if !exists {
			return sentinel.ErrNotFound
		}
	}
	return nil
}

// MarkVerified records the time of a successful verification.
func (s *PostgresStore) MarkVerified(ctx context.Context, keyID id.APIKeyID, t time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE api_keys SET last_verified_at = $2 WHERE id = $1`,
		uuid.UUID(keyID), t,
	)
	if err != nil {
		return storeErr("update last_verified_at", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storeErr("update last_verified_at", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, owner_id, lookup_prefix, secret_digest, created_at, revoked_at, last_verified_at
	FROM api_keys`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	var (
		keyID          uuid.UUID
		ownerID        uuid.UUID
		prefix         string
		digest         string
		createdAt      time.Time
		revokedAt      sql.NullTime
		lastVerifiedAt sql.NullTime
	)
	if err := row.Scan(&keyID, &ownerID, &prefix, &digest, &createdAt, &revokedAt, &lastVerifiedAt); err != nil {
		return nil, err
	}
	k := &models.APIKey{
		ID:           id.APIKeyID(keyID),
		OwnerID:      id.OwnerID(ownerID),
		LookupPrefix: prefix,
		SecretDigest: digest,
		CreatedAt:    createdAt,
	}
	if revokedAt.Valid {
		t := revokedAt.Time
		k.RevokedAt = &t
	}
	if lastVerifiedAt.Valid {
		t := lastVerifiedAt.Time
		k.LastVerifiedAt = &t
	}
	return k, nil
}

// storeErr classifies driver failures. Timeouts and connection loss surface
// as sentinel.ErrUnavailable so the service never mistakes an outage for a
// rejected credential.
func storeErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
