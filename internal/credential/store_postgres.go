package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"attester/internal/chain"
	"attester/internal/claim"
	id "attester/pkg/domain"
	"attester/pkg/platform/sentinel"
)

// PostgresStore persists credential records in PostgreSQL for deployments
// that outlive a single process. Claims and attestations are stored as jsonb;
// the monotonic-revocation check runs inside a transaction so concurrent
// writers cannot race it.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the credentials table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS credentials (
			id          uuid PRIMARY KEY,
			claim       jsonb NOT NULL,
			attestation jsonb,
			created_at  timestamptz NOT NULL DEFAULT now()
		)`)
	return err
}

func (s *PostgresStore) Add(ctx context.Context, record *Record) error {
	claimJSON, err := json.Marshal(record.Claim)
	if err != nil {
		return fmt.Errorf("marshal claim: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO credentials (id, claim) VALUES ($1, $2)`,
		record.ID.String(), claimJSON)
	return err
}

func (s *PostgresStore) FindByID(ctx context.Context, credentialID id.CredentialID) (*Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, claim, attestation FROM credentials WHERE id = $1`,
		credentialID.String())
	return scanRecord(row)
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, claim, attestation FROM credentials`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, credentialID id.CredentialID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM credentials WHERE id = $1`, credentialID.String())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetAttestation(ctx context.Context, credentialID id.CredentialID, attestation chain.Attestation) (*Record, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx,
		`SELECT id, claim, attestation FROM credentials WHERE id = $1 FOR UPDATE`,
		credentialID.String())
	record, err := scanRecord(row)
	if err != nil {
		return nil, err
	}
	if record.Revoked() && !attestation.Revoked {
		return nil, fmt.Errorf("%w: revocation is monotonic", sentinel.ErrInvalidState)
	}

	attestationJSON, err := json.Marshal(attestation)
	if err != nil {
		return nil, fmt.Errorf("marshal attestation: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE credentials SET attestation = $2 WHERE id = $1`,
		credentialID.String(), attestationJSON); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	record.Attestation = &attestation
	return record, nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rawID           string
		claimJSON       []byte
		attestationJSON []byte
	)
	if err := row.Scan(&rawID, &claimJSON, &attestationJSON); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}

	credentialID, err := id.ParseCredentialID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse credential id: %w", err)
	}

	record := &Record{ID: credentialID}
	var credentialClaim claim.Credential
	if err := json.Unmarshal(claimJSON, &credentialClaim); err != nil {
		return nil, fmt.Errorf("unmarshal claim: %w", err)
	}
	record.Claim = credentialClaim

	if len(attestationJSON) > 0 {
		var attestation chain.Attestation
		if err := json.Unmarshal(attestationJSON, &attestation); err != nil {
			return nil, fmt.Errorf("unmarshal attestation: %w", err)
		}
		record.Attestation = &attestation
	}
	return record, nil
}
