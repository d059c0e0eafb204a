package stock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	"github.com/ombhut175/RetailFlow-sub002/pkg/outbox"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type ledgerFixture struct {
	db    *gorm.DB
	svc   Service
	actor uuid.UUID
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(
		&models.Product{},
		&models.Stock{},
		&models.StockTransaction{},
		&models.OutboxEvent{},
	))
	return conn
}

func newLedgerFixture(t *testing.T, cfg config.StockConfig) *ledgerFixture {
	t.Helper()
	conn := newTestDB(t)
	clock := newTestClock()
	svc, err := NewService(ServiceParams{
		Tx:     db.NewFromGorm(conn),
		Repo:   NewRepository(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
		Config: cfg,
		Clock:  clock.Now,
	})
	require.NoError(t, err)
	return &ledgerFixture{db: conn, svc: svc, actor: uuid.New()}
}

func (f *ledgerFixture) seedProduct(t *testing.T, minimum int) uuid.UUID {
	t.Helper()
	product := models.Product{
		SKU:               "SKU-" + uuid.NewString()[:8],
		Name:              "Widget",
		MinimumStockLevel: minimum,
		CreatedBy:         f.actor,
		UpdatedBy:         f.actor,
	}
	require.NoError(t, f.db.Create(&product).Error)
	return product.ID
}

func (f *ledgerFixture) seedStock(t *testing.T, minimum, available int) uuid.UUID {
	t.Helper()
	productID := f.seedProduct(t, minimum)
	_, err := f.svc.CreateStock(context.Background(), CreateStockInput{
		ProductID:         productID,
		QuantityAvailable: available,
		Actor:             f.actor,
	})
	require.NoError(t, err)
	return productID
}

func (f *ledgerFixture) counters(t *testing.T, productID uuid.UUID) (int, int) {
	t.Helper()
	var row models.Stock
	require.NoError(t, f.db.Unscoped().First(&row, "product_id = ?", productID).Error)
	return row.QuantityAvailable, row.QuantityReserved
}

func (f *ledgerFixture) transactions(t *testing.T, productID uuid.UUID) []models.StockTransaction {
	t.Helper()
	var rows []models.StockTransaction
	require.NoError(t, f.db.Where("product_id = ?", productID).Order("sequence ASC").Find(&rows).Error)
	return rows
}

func (f *ledgerFixture) events(t *testing.T, productID uuid.UUID, eventType enums.OutboxEventType) []models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.
		Where("aggregate_id = ? AND event_type = ?", productID, eventType).
		Order("created_at ASC").
		Find(&rows).Error)
	return rows
}

func (f *ledgerFixture) move(n int) MovementInput {
	return MovementInput{Quantity: n, Actor: f.actor}
}
