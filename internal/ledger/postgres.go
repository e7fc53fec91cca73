package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresSchema creates the deployments table used by PostgresStore.
const PostgresSchema = `
	CREATE TABLE IF NOT EXISTS contract_deployments (
		network      TEXT        NOT NULL,
		version      TEXT        NOT NULL,
		contract_key TEXT        NOT NULL,
		address      TEXT        NOT NULL,
		deployed_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (network, version, contract_key)
	)`

// PostgresStore is a Store shared by several machines, for example CI runners
// deploying to the same networks.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// OpenPostgresStore connects to databaseURL and ensures the schema exists.
func OpenPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the deployments table if it is missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Load(ctx context.Context, network, version string) (map[string]common.Address, error) {
	query := `
		SELECT contract_key, address
		FROM contract_deployments
		WHERE network = $1 AND version = $2`

	rows, err := s.pool.Query(ctx, query, network, version)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]common.Address)
	for rows.Next() {
		var key, addr string
		if err := rows.Scan(&key, &addr); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("deployment %s has invalid address %q", key, addr)
		}
		entries[key] = common.HexToAddress(addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Commit(ctx context.Context, network, version, key string, addr common.Address) error {
	insert := `
		INSERT INTO contract_deployments (network, version, contract_key, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (network, version, contract_key) DO NOTHING
		RETURNING address`

	var stored string
	err := s.pool.QueryRow(ctx, insert, network, version, key, addr.Hex()).Scan(&stored)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("insert deployment: %w", err)
	}

	// Key already present: succeed only if it holds the same address.
	existing := `
		SELECT address
		FROM contract_deployments
		WHERE network = $1 AND version = $2 AND contract_key = $3`
	if err := s.pool.QueryRow(ctx, existing, network, version, key).Scan(&stored); err != nil {
		return fmt.Errorf("read deployment: %w", err)
	}
	current := common.HexToAddress(stored)
	if current == addr {
		return nil
	}
	return &LedgerWriteConflictError{
		Network:     network,
		Version:     version,
		ContractKey: key,
		Existing:    current,
		Proposed:    addr,
	}
}

func (s *PostgresStore) Networks(ctx context.Context, version string) ([]string, error) {
	query := `
		SELECT DISTINCT network
		FROM contract_deployments
		WHERE version = $1
		ORDER BY network`

	rows, err := s.pool.Query(ctx, query, version)
	if err != nil {
		return nil, fmt.Errorf("query networks: %w", err)
	}
	networks, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("collect networks: %w", err)
	}
	return networks, nil
}
