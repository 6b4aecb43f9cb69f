package persistence_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
)

func TestValidateSortField(t *testing.T) {
	allowed := map[string]bool{"created_at": true, "on_hand": true}

	assert.Equal(t, "created_at", persistence.ValidateSortField("", allowed, "created_at"))
	assert.Equal(t, "on_hand", persistence.ValidateSortField("on_hand", allowed, "created_at"))
	assert.Equal(t, "on_hand", persistence.ValidateSortField("  on_hand  ", allowed, "created_at"))
	assert.Equal(t, "created_at", persistence.ValidateSortField("no_such_column", allowed, "created_at"))

	// expression smuggled through the sort field must fall back to the default
	injected := "(SELECT CASE WHEN (SELECT COUNT(*) FROM inventory_reservations) >= 0 THEN 1 ELSE 2 END)"
	assert.Equal(t, "created_at", persistence.ValidateSortField(injected, allowed, "created_at"))
	assert.Equal(t, "created_at", persistence.ValidateSortField("on_hand; DROP TABLE inventory_items", allowed, "created_at"))
}

func TestValidateSortOrder(t *testing.T) {
	assert.Equal(t, "ASC", persistence.ValidateSortOrder("asc"))
	assert.Equal(t, "ASC", persistence.ValidateSortOrder(" ASC "))
	assert.Equal(t, "DESC", persistence.ValidateSortOrder("desc"))
	assert.Equal(t, "DESC", persistence.ValidateSortOrder(""))
	assert.Equal(t, "DESC", persistence.ValidateSortOrder("desc; --"))
}

func openMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormItemRepository_ListOrderingIsWhitelisted(t *testing.T) {
	db, mock := openMockDB(t)
	repo := persistence.NewGormItemRepository(db)
	tenantID := uuid.New()

	// a subquery supplied as the sort field never reaches the SQL; the
	// query orders by the default column instead
	filter := shared.Filter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "(SELECT CASE WHEN (SELECT COUNT(*) FROM inventory_reservations) >= 0 THEN 1 ELSE 2 END)",
		OrderDir: "asc",
	}

	mock.ExpectQuery(`SELECT count\(\*\) FROM "inventory_items" WHERE tenant_id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE tenant_id = \$1 ORDER BY created_at ASC LIMIT \$2`).
		WithArgs(tenantID, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindAll(context.Background(), tenantID, filter)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormItemRepository_ListOrdersByAllowedField(t *testing.T) {
	db, mock := openMockDB(t)
	repo := persistence.NewGormItemRepository(db)
	tenantID := uuid.New()

	filter := shared.Filter{Page: 1, PageSize: 20, OrderBy: "on_hand", OrderDir: "desc"}

	mock.ExpectQuery(`SELECT count\(\*\) FROM "inventory_items" WHERE tenant_id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "inventory_items" WHERE tenant_id = \$1 ORDER BY on_hand DESC LIMIT \$2`).
		WithArgs(tenantID, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindAll(context.Background(), tenantID, filter)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
