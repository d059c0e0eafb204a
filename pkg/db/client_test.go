package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&testModel{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := NewFromGorm(db)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&testModel{Name: "lost"}).Error; err != nil {
				return err
			}
			panic("ledger write exploded")
		})
	}()

	var count int64
	if err := db.Model(&testModel{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", count)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	client := &Client{conn: db}
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "stocks_product_id_key"}
	if !IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "") {
		t.Fatal("expected pg unique violation to match")
	}
	if !IsUniqueViolation(pgErr, "stocks_product_id_key") {
		t.Fatal("expected constraint name to match")
	}
	if IsUniqueViolation(pgErr, "products_sku_key") {
		t.Fatal("expected different constraint not to match")
	}
	if !IsUniqueViolation(errors.New("UNIQUE constraint failed: stocks.product_id"), "") {
		t.Fatal("expected sqlite unique message to match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatal("nil must not match")
	}
}

func TestIsSerializationFailure(t *testing.T) {
	cases := map[string]bool{
		"40001": true,
		"40P01": true,
		"23505": false,
	}
	for code, want := range cases {
		got := IsSerializationFailure(fmt.Errorf("commit: %w", &pgconn.PgError{Code: code}))
		if got != want {
			t.Fatalf("code %s expected %v got %v", code, want, got)
		}
	}
	if IsSerializationFailure(errors.New("database is locked")) {
		t.Fatal("expected plain error not to match")
	}
}

func TestIsNumericOutOfRange(t *testing.T) {
	if !IsNumericOutOfRange(fmt.Errorf("update stocks: %w", &pgconn.PgError{Code: "22003"})) {
		t.Fatal("expected 22003 to match")
	}
	if !IsNumericOutOfRange(&pq.Error{Code: "22003"}) {
		t.Fatal("expected lib/pq 22003 to match")
	}
	if IsNumericOutOfRange(&pgconn.PgError{Code: "23514"}) {
		t.Fatal("check violation must not match")
	}
	if IsNumericOutOfRange(errors.New("integer overflow")) {
		t.Fatal("expected plain error not to match")
	}
}

func TestDialectorFor(t *testing.T) {
	if _, err := dialectorFor(config.DBConfig{Driver: config.DriverPostgres}); err == nil {
		t.Fatal("expected missing dsn to fail")
	}
	if _, err := dialectorFor(config.DBConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected unsupported driver to fail")
	}
	d, err := dialectorFor(config.DBConfig{Driver: config.DriverSQLite})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name() != "sqlite" {
		t.Fatalf("expected sqlite dialector, got %s", d.Name())
	}
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	statement := func() (string, int64) { return "UPDATE stocks SET version = 3", 1 }
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), statement, nil)
	if logs.Len() != 0 {
		t.Fatalf("fast statement should not log, got %s", logs.String())
	}

	ql.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
	if !strings.Contains(logs.String(), "db.query.slow") {
		t.Fatalf("expected slow query warning, got %s", logs.String())
	}

	logs.Reset()
	ql.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
	if logs.Len() != 0 {
		t.Fatalf("record not found should not log, got %s", logs.String())
	}

	ql.Trace(ctx, time.Now(), statement, errors.New("relation \"stocks\" does not exist"))
	if !strings.Contains(logs.String(), "db.query.failed") || !strings.Contains(logs.String(), "UPDATE stocks") {
		t.Fatalf("expected failure with sql, got %s", logs.String())
	}

	logs.Reset()
	ql.Trace(ctx, time.Now(), statement, &pgconn.PgError{Code: "23505"})
	if strings.Contains(logs.String(), "db.query.failed") {
		t.Fatalf("unique violations are handled by callers, got %s", logs.String())
	}
}

func TestNewQueryLoggerWithoutLogger(t *testing.T) {
	if newQueryLogger(nil, time.Second) == nil {
		t.Fatal("expected discard logger")
	}
}
