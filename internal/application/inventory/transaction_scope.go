package inventory

import (
	"context"

	"github.com/stockledger/backend/internal/domain/inventory"
)

// TransactionScope provides transactional access to the inventory
// repositories. All repository operations performed inside Execute share
// one database transaction and commit or roll back together. Implementations
// may retry fn on serialization or optimistic-lock conflicts, so fn must be
// safe to run more than once and must do all its reads inside the scope.
type TransactionScope interface {
	// Execute runs fn within a database transaction. A returned error
	// rolls the transaction back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the inventory repositories bound to
// the current transaction.
type TransactionalRepositories interface {
	// ItemRepo returns the ledger row repository scoped to the transaction
	ItemRepo() inventory.ItemRepository
	// MovementRepo returns the movement log repository scoped to the transaction
	MovementRepo() inventory.MovementRepository
	// ReservationRepo returns the reservation repository scoped to the transaction
	ReservationRepo() inventory.ReservationRepository
	// TransferRepo returns the transfer repository scoped to the transaction
	TransferRepo() inventory.TransferRepository
}

// NoOpTransactionScope runs the function against fixed repositories without
// a real transaction. Useful in tests.
type NoOpTransactionScope struct {
	itemRepo        inventory.ItemRepository
	movementRepo    inventory.MovementRepository
	reservationRepo inventory.ReservationRepository
	transferRepo    inventory.TransferRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope over the given repositories
func NewNoOpTransactionScope(
	itemRepo inventory.ItemRepository,
	movementRepo inventory.MovementRepository,
	reservationRepo inventory.ReservationRepository,
	transferRepo inventory.TransferRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		itemRepo:        itemRepo,
		movementRepo:    movementRepo,
		reservationRepo: reservationRepo,
		transferRepo:    transferRepo,
	}
}

// Execute runs fn directly, outside any transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// ItemRepo returns the ledger row repository
func (s *NoOpTransactionScope) ItemRepo() inventory.ItemRepository {
	return s.itemRepo
}

// MovementRepo returns the movement log repository
func (s *NoOpTransactionScope) MovementRepo() inventory.MovementRepository {
	return s.movementRepo
}

// ReservationRepo returns the reservation repository
func (s *NoOpTransactionScope) ReservationRepo() inventory.ReservationRepository {
	return s.reservationRepo
}

// TransferRepo returns the transfer repository
func (s *NoOpTransactionScope) TransferRepo() inventory.TransferRepository {
	return s.transferRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
