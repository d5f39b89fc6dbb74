// Package storage implements the PostgreSQL-backed persistence layer for
// the privacy bridge engine: the commitment tree's leaves, the nullifier
// registry, pool balances and claimed epochs, and the stealth announcement
// index. Schema also creates tree_frontier and tree_meta tables, which no
// method here reads or writes.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shieldbridge/core/internal/announce"
	"github.com/shieldbridge/core/internal/field"
	"github.com/shieldbridge/core/internal/nullifier"
)

// Common errors.
var (
	ErrNotFound     = errors.New("storage: not found")
	ErrDBConnection = errors.New("storage: database connection error")
)

// Schema is the DDL the daemon applies on startup. It is intentionally a
// plain string executed via Exec rather than a migration framework: one
// straight-line schema rather than incremental migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS tree_leaves (
	leaf_index BIGINT PRIMARY KEY,
	commitment BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS tree_frontier (
	level INT PRIMARY KEY,
	value BYTEA NOT NULL
);

CREATE TABLE IF NOT EXISTS tree_meta (
	id INT PRIMARY KEY DEFAULT 1,
	size BIGINT NOT NULL DEFAULT 0,
	root BYTEA,
	CHECK (id = 1)
);

CREATE TABLE IF NOT EXISTS nullifiers (
	nullifier_hash BYTEA PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS pool_state (
	pool_id BIGINT PRIMARY KEY,
	balance_sats BIGINT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pool_claimed_epochs (
	pool_id BIGINT NOT NULL,
	epoch BIGINT NOT NULL,
	PRIMARY KEY (pool_id, epoch)
);

CREATE TABLE IF NOT EXISTS announcements (
	announcement_key BYTEA PRIMARY KEY,
	ephemeral_pub BYTEA NOT NULL,
	commitment BYTEA NOT NULL,
	encrypted_amount BYTEA NOT NULL,
	leaf_index BIGINT NOT NULL,
	created_at BIGINT NOT NULL
);
`

// Config holds database connection configuration.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
}

// DefaultConfig returns default database configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:     "localhost",
		Port:     5432,
		User:     "shieldbridge",
		Password: "",
		Database: "shieldbridge",
		SSLMode:  "disable",
		MaxConns: 20,
	}
}

// PostgresStore is a single connection pool shared by every store adapter
// below (nullifier, announcement, pool state, and the tree's durable
// leaves).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and applies Schema.
func NewPostgresStore(ctx context.Context, cfg *Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode, cfg.MaxConns,
	)

	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBConnection, err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return nil, fmt.Errorf("storage: applying schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close closes the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// NullifierStore adapts PostgresStore to nullifier.Store.
func (s *PostgresStore) NullifierStore() nullifier.Store {
	return (*pgNullifierStore)(s)
}

type pgNullifierStore PostgresStore

func (s *pgNullifierStore) Has(key [32]byte) (bool, error) {
	ctx := context.Background()
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM nullifiers WHERE nullifier_hash = $1)`, key[:]).Scan(&exists)
	return exists, err
}

func (s *pgNullifierStore) Put(key [32]byte) error {
	ctx := context.Background()
	_, err := s.pool.Exec(ctx, `INSERT INTO nullifiers (nullifier_hash) VALUES ($1) ON CONFLICT DO NOTHING`, key[:])
	return err
}

// AnnouncementStore adapts PostgresStore to announce.Store.
func (s *PostgresStore) AnnouncementStore() announce.Store {
	return (*pgAnnouncementStore)(s)
}

type pgAnnouncementStore PostgresStore

func (s *pgAnnouncementStore) Get(key [32]byte) (announce.Announcement, bool, error) {
	ctx := context.Background()
	var ephemeralPubBytes, commitmentBytes, encAmount []byte
	var leafIndex, createdAt uint64

	err := s.pool.QueryRow(ctx,
		`SELECT ephemeral_pub, commitment, encrypted_amount, leaf_index, created_at FROM announcements WHERE announcement_key = $1`,
		key[:],
	).Scan(&ephemeralPubBytes, &commitmentBytes, &encAmount, &leafIndex, &createdAt)
	if err == pgx.ErrNoRows {
		return announce.Announcement{}, false, nil
	}
	if err != nil {
		return announce.Announcement{}, false, err
	}

	ephemeralPub, err := field.Decompress(ephemeralPubBytes)
	if err != nil {
		return announce.Announcement{}, false, err
	}
	commitment, err := field.ScalarFromCanonicalBytes(commitmentBytes)
	if err != nil {
		return announce.Announcement{}, false, err
	}
	var amt [8]byte
	copy(amt[:], encAmount)

	return announce.Announcement{
		EphemeralPub:    ephemeralPub,
		Commitment:      commitment,
		EncryptedAmount: amt,
		LeafIndex:       leafIndex,
		Timestamp:       createdAt,
	}, true, nil
}

func (s *pgAnnouncementStore) Put(key [32]byte, a announce.Announcement) error {
	ctx := context.Background()
	ephemeralPub := a.EphemeralPub.Compress()
	commitment := a.Commitment.Bytes()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO announcements (announcement_key, ephemeral_pub, commitment, encrypted_amount, leaf_index, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (announcement_key) DO NOTHING`,
		key[:], ephemeralPub[:], commitment[:], a.EncryptedAmount[:], a.LeafIndex, a.Timestamp,
	)
	return err
}

// PoolBalance returns a pool's current balance, or 0 if the pool has never
// been credited.
func (s *PostgresStore) PoolBalance(ctx context.Context, poolID uint64) (uint64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx, `SELECT balance_sats FROM pool_state WHERE pool_id = $1`, poolID).Scan(&balance)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(balance), nil
}

// AdjustPoolBalance applies a signed delta to a pool's balance, creating
// the pool row if it does not yet exist.
func (s *PostgresStore) AdjustPoolBalance(ctx context.Context, poolID uint64, delta int64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pool_state (pool_id, balance_sats) VALUES ($1, $2)
		 ON CONFLICT (pool_id) DO UPDATE SET balance_sats = pool_state.balance_sats + $2`,
		poolID, delta,
	)
	return err
}

// MarkEpochClaimed records that a pool's yield epoch has been claimed. A
// repeat mark of an already-claimed epoch is ignored (ON CONFLICT DO
// NOTHING) and returns nil, so it does not report a double claim;
// ClaimedEpoch is the way to detect one.
func (s *PostgresStore) MarkEpochClaimed(ctx context.Context, poolID, epoch uint64) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO pool_claimed_epochs (pool_id, epoch) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		poolID, epoch,
	)
	return err
}

// ClaimedEpoch reports whether a pool's yield epoch has already been
// claimed.
func (s *PostgresStore) ClaimedEpoch(ctx context.Context, poolID, epoch uint64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM pool_claimed_epochs WHERE pool_id = $1 AND epoch = $2)`,
		poolID, epoch,
	).Scan(&exists)
	return exists, err
}

// PersistLeaf durably records one tree leaf, for rebuilding the in-memory
// tree on daemon restart.
func (s *PostgresStore) PersistLeaf(ctx context.Context, leafIndex uint64, commitment [32]byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO tree_leaves (leaf_index, commitment) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		leafIndex, commitment[:],
	)
	return err
}

// LoadLeaves returns every persisted leaf commitment in index order, used
// to replay the tree into memory at daemon startup.
func (s *PostgresStore) LoadLeaves(ctx context.Context) ([][32]byte, error) {
	rows, err := s.pool.Query(ctx, `SELECT commitment FROM tree_leaves ORDER BY leaf_index ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leaves [][32]byte
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var leaf [32]byte
		copy(leaf[:], raw)
		leaves = append(leaves, leaf)
	}
	return leaves, rows.Err()
}
