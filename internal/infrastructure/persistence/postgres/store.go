package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/participation/internal/domain/participation"
	"github.com/campus-hub/participation/internal/domain/shared"
	"github.com/campus-hub/participation/pkg/logger"
	"github.com/campus-hub/participation/pkg/retry"
)

// StoreConfig configures the PostgreSQL participation store.
type StoreConfig struct {
	Conn Config

	// TxAttempts bounds retries of transactions aborted by serialization
	// failures or deadlocks.
	TxAttempts int

	// SkipMigrations leaves the schema untouched on open.
	SkipMigrations bool

	Logger *logger.Logger
}

// Store implements participation.Store, participation.Catalog and
// report.Reader on PostgreSQL.
type Store struct {
	conn    *Connection
	retrier *retry.Retrier
	log     *logger.Logger
}

var (
	_ participation.Store   = (*Store)(nil)
	_ participation.Catalog = (*Store)(nil)
)

// Open connects, migrates and returns a ready store.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.Conn.URL == "" {
		return nil, fmt.Errorf("postgres: database URL is required")
	}
	if cfg.TxAttempts <= 0 {
		cfg.TxAttempts = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}
	log := cfg.Logger.With(logger.Component("postgres"))

	conn, err := NewConnection(ctx, cfg.Conn)
	if err != nil {
		return nil, err
	}

	if !cfg.SkipMigrations {
		migrator := NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		if status, err := migrator.Status(ctx); err == nil {
			log.Info("schema up to date", logger.Int("migrations", len(status)))
		}
	}

	return NewStore(conn, cfg.TxAttempts, log), nil
}

// NewStore wraps an existing connection.
func NewStore(conn *Connection, txAttempts int, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		conn:    conn,
		retrier: retry.TxRetrier(txAttempts, IsSerializationFailure, retry.WithOnRetry(logRetry(log))),
		log:     log,
	}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// WithinTx implements participation.Store. Transactions run at READ COMMITTED;
// LockEvent takes a row lock so capacity checks on one event are serialized.
func (s *Store) WithinTx(ctx context.Context, fn func(tx participation.Tx) error) error {
	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		return s.conn.WithTx(ctx, DefaultTxOptions(), func(pgTx pgx.Tx) error {
			return fn(&tx{q: pgTx})
		})
	})
	if err != nil && IsSerializationFailure(err) {
		s.log.Warn("transaction aborted after retries", logger.Err(err))
		return shared.WrapError("store", "WithinTx", shared.ErrConcurrentModification,
			"concurrent update, retry the request", err)
	}
	return err
}

// logRetry reports a transaction about to be re-run after a serialization failure.
func logRetry(log *logger.Logger) func(attempt int, err error, delay time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		log.Debug("retrying transaction",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	}
}

func conflict(domain, op, message string, err error) error {
	return shared.WrapError(domain, op, shared.ErrConflict, message, err)
}
