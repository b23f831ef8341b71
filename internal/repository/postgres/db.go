package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/repository"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// NewConnection opens and pings a Postgres connection pool
func NewConnection(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

// NewRepositories binds every repository to db, which may be a pool or a transaction
func NewRepositories(db DBTX, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Product:   NewProductRepository(db, logger),
		Coupon:    NewCouponRepository(db, logger),
		Address:   NewAddressRepository(db, logger),
		Order:     NewOrderRepository(db, logger),
		OrderItem: NewOrderItemRepository(db, logger),
		Movement:  NewInventoryMovementRepository(db, logger),
		Event:     NewOrderEventRepository(db, logger),
	}
}

// Store opens transactions whose row-lock waits are bounded by lockTimeout
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *zap.Logger
}

// NewStore creates a transactor over db. A zero lockTimeout keeps the server default.
func NewStore(db *sql.DB, lockTimeout time.Duration, logger *zap.Logger) *Store {
	return &Store{db: db, lockTimeout: lockTimeout, logger: logger}
}

func (s *Store) BeginTx(ctx context.Context) (repository.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.Error(err))
		return nil, err
	}

	if s.lockTimeout > 0 {
		// SET does not take bind parameters
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			s.logger.Error("Failed to set lock timeout", zap.Error(err))
			return nil, err
		}
	}

	return &pgTx{tx: tx, repos: NewRepositories(tx, s.logger)}, nil
}

type pgTx struct {
	tx    *sql.Tx
	repos *repository.Repositories
}

func (t *pgTx) Repos() *repository.Repositories { return t.repos }
func (t *pgTx) Commit() error                    { return t.tx.Commit() }
func (t *pgTx) Rollback() error                  { return t.tx.Rollback() }
