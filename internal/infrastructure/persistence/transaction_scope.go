package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	appinv "github.com/stockledger/backend/internal/application/inventory"
	"github.com/stockledger/backend/internal/domain/inventory"
	"github.com/stockledger/backend/internal/domain/shared"
)

const (
	// maxTxAttempts bounds how often a conflicting transaction is retried
	maxTxAttempts = 3
	// retryBaseDelay spaces the retries apart
	retryBaseDelay = 10 * time.Millisecond
)

// Postgres SQLSTATE codes that signal a retryable conflict
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// GormTransactionScope implements the application TransactionScope using
// GORM transactions at serializable isolation. Transactions that lose a
// serialization race, hit a deadlock, or fail an optimistic version check
// are rolled back and retried a bounded number of times; the closure is
// re-run from scratch each attempt, so its reads see the winner's writes.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a serializable transaction, retrying on conflicts
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormTransactionalRepositories{tx: tx})
		}, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err == nil || !isRetryableTxError(err) {
			return err
		}

		if attempt < maxTxAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			}
		}
	}
	return err
}

// isRetryableTxError reports whether the transaction failed in a way that
// a fresh attempt can resolve
func isRetryableTxError(err error) bool {
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// gormTransactionalRepositories binds the repositories to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// ItemRepo returns the ledger row repository scoped to the transaction
func (r *gormTransactionalRepositories) ItemRepo() inventory.ItemRepository {
	return NewGormItemRepository(r.tx)
}

// MovementRepo returns the movement log repository scoped to the transaction
func (r *gormTransactionalRepositories) MovementRepo() inventory.MovementRepository {
	return NewGormMovementRepository(r.tx)
}

// ReservationRepo returns the reservation repository scoped to the transaction
func (r *gormTransactionalRepositories) ReservationRepo() inventory.ReservationRepository {
	return NewGormReservationRepository(r.tx)
}

// TransferRepo returns the transfer repository scoped to the transaction
func (r *gormTransactionalRepositories) TransferRepo() inventory.TransferRepository {
	return NewGormTransferRepository(r.tx)
}

var _ appinv.TransactionScope = (*GormTransactionScope)(nil)
var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
