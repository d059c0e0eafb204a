package product

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
)

func testDialector() gorm.Dialector {
	if dsn := os.Getenv("RETAILFLOW_TEST_DB_DSN"); dsn != "" {
		return postgres.Open(dsn)
	}
	return sqlite.Open("file:products_" + uuid.NewString() + "?mode=memory&cache=shared")
}

// openTestDB returns a migrated products table, on postgres when
// RETAILFLOW_TEST_DB_DSN is set and on private in-memory sqlite otherwise.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(testDialector(), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&models.Product{}))
	return conn
}
