package migrate_test

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestStocksMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_stocks")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stocks",
		"CHECK (quantity_available >= 0)",
		"CHECK (quantity_reserved >= 0)",
		"FOREIGN KEY (product_id) REFERENCES products(id)",
		"version            BIGINT NOT NULL DEFAULT 0",
		"DROP TABLE IF EXISTS stocks",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestStockTransactionsMigrationEnforcesSequence(t *testing.T) {
	content := readMigration(t, "create_stock_transactions")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_transactions",
		"CREATE UNIQUE INDEX IF NOT EXISTS ux_stock_transactions_product_sequence ON stock_transactions (product_id, sequence)",
		"'IN', 'OUT', 'ADJUSTMENT', 'RESERVED', 'RELEASED'",
		"'PURCHASE', 'SALE', 'ADJUSTMENT', 'RETURN'",
		"FOREIGN KEY (product_id) REFERENCES stocks(product_id)",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestPurchaseOrderMigrationGuardsReceipts(t *testing.T) {
	content := readMigration(t, "create_purchase_orders")
	if !strings.Contains(content, "CHECK (quantity_received >= 0 AND quantity_received <= quantity_ordered)") {
		t.Error("missing received quantity guard")
	}
}

func TestValidateDir(t *testing.T) {
	require.NoError(t, migrate.ValidateDir("migrations"))

	files, err := migrate.ListFiles("migrations")
	require.NoError(t, err)
	require.Len(t, files, 5)
	require.Equal(t, "create_products", files[0].Name)

	cases := map[string]string{
		"bad-name.sql":                     "-- +goose Up\n-- +goose Down\n",
		"20260101000000_missing_down.sql":  "-- +goose Up\nSELECT 1;\n",
		"20260101000000_down_first.sql":    "-- +goose Down\n-- +goose Up\n",
		"20260101000000_unterminated.sql":  "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"20261399000000_bad_timestamp.sql": "-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
			require.Error(t, migrate.ValidateDir(dir))
		})
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
	require.Error(t, migrate.ValidateDir(dir))
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Stock Locations!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_stock_locations.sql"))

	tableDir := t.TempDir()
	tablePath, err := migrate.CreateSQLMigration(tableDir, "create suppliers")
	require.NoError(t, err)
	body, err := os.ReadFile(tablePath)
	require.NoError(t, err)
	require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS suppliers")
	require.Contains(t, string(body), "DROP TABLE IF EXISTS suppliers;")

	require.NoError(t, migrate.ValidateDir(dir))
	require.NoError(t, migrate.ValidateDir(tableDir))

	_, err = migrate.CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestMigrationsApplyOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	runner, err := migrate.NewRunner(sqlDB, config.DriverSQLite, "migrations")
	require.NoError(t, err)
	ctx := context.Background()

	applied, err := runner.Up(ctx)
	require.NoError(t, err)
	require.Len(t, applied, 5)

	version, err := runner.Version(ctx)
	require.NoError(t, err)
	require.Equal(t, applied[len(applied)-1].Version, version)

	states, err := runner.Status(ctx)
	require.NoError(t, err)
	for _, st := range states {
		require.Truef(t, st.Applied, "expected %s applied", st.Path)
	}

	for _, table := range []string{"products", "stocks", "stock_transactions", "purchase_orders", "purchase_order_items", "outbox_events", "outbox_dlq"} {
		require.Truef(t, conn.Migrator().HasTable(table), "expected table %s", table)
	}
}

func TestRunnerStepsDownAndBack(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	runner, err := migrate.NewRunner(sqlDB, config.DriverSQLite, "migrations")
	require.NoError(t, err)
	ctx := context.Background()
	applied, err := runner.Up(ctx)
	require.NoError(t, err)

	step, err := runner.Down(ctx)
	require.NoError(t, err)
	require.Equal(t, applied[len(applied)-1].Version, step.Version)
	require.False(t, conn.Migrator().HasTable("outbox_events"))

	_, err = runner.To(ctx, "not-a-version")
	require.Error(t, err)

	moved, err := runner.To(ctx, strconv.FormatInt(step.Version, 10))
	require.NoError(t, err)
	require.Len(t, moved, 1)
	require.True(t, conn.Migrator().HasTable("outbox_events"))
}
