package stock

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ombhut175/RetailFlow-sub002/pkg/config"
	"github.com/ombhut175/RetailFlow-sub002/pkg/db/models"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

// seedHistory books n reservations of one unit each on two products, alternating.
func seedHistory(t *testing.T, f *ledgerFixture, n int) (uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	a := f.seedStock(t, 0, 100)
	b := f.seedStock(t, 0, 100)
	for i := 0; i < n; i++ {
		_, err := f.svc.ReserveStock(ctx, a, f.move(1))
		require.NoError(t, err)
		_, err = f.svc.ReserveStock(ctx, b, f.move(1))
		require.NoError(t, err)
	}
	return a, b
}

func collect(t *testing.T, svc Service, filter TransactionFilter) []TransactionDTO {
	t.Helper()
	seq, err := svc.ListTransactions(context.Background(), filter)
	require.NoError(t, err)
	var out []TransactionDTO
	for txn, err := range seq {
		require.NoError(t, err)
		out = append(out, txn)
	}
	return out
}

func TestListTransactionsStreamsNewestFirstAcrossPages(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, config.StockConfig{TransactionPageLimit: 2})
	a, _ := seedHistory(t, f, 4)

	all := collect(t, f.svc, TransactionFilter{})
	require.Len(t, all, 8)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt), "row %d out of order", i)
	}
	seen := map[uuid.UUID]bool{}
	for _, txn := range all {
		assert.False(t, seen[txn.ID], "duplicate row %s", txn.ID)
		seen[txn.ID] = true
	}

	onlyA := collect(t, f.svc, TransactionFilter{ProductID: &a})
	require.Len(t, onlyA, 4)
	for i, txn := range onlyA {
		assert.Equal(t, a, txn.ProductID)
		assert.Equal(t, int64(4-i), txn.Sequence)
	}
}

func TestListTransactionsIsRestartableAndStoppable(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, config.StockConfig{TransactionPageLimit: 3})
	seedHistory(t, f, 3)

	seq, err := f.svc.ListTransactions(context.Background(), TransactionFilter{})
	require.NoError(t, err)

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	assert.Equal(t, 6, first)
	assert.Equal(t, first, second)

	taken := 0
	for range seq {
		taken++
		if taken == 2 {
			break
		}
	}
	assert.Equal(t, 2, taken)
}

func TestListTransactionsFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newLedgerFixture(t, config.StockConfig{})
	a, _ := seedHistory(t, f, 2)
	orderID := uuid.New()
	in := f.move(1)
	in.ReferenceID = &orderID
	_, err := f.svc.ReleaseStock(ctx, a, in)
	require.NoError(t, err)

	released := enums.StockTransactionReleased
	rows := collect(t, f.svc, TransactionFilter{TransactionType: &released})
	require.Len(t, rows, 1)
	assert.Equal(t, a, rows[0].ProductID)

	rows = collect(t, f.svc, TransactionFilter{ReferenceID: &orderID})
	require.Len(t, rows, 1)

	stranger := uuid.New()
	assert.Empty(t, collect(t, f.svc, TransactionFilter{CreatedBy: &stranger}))
	assert.Len(t, collect(t, f.svc, TransactionFilter{CreatedBy: &f.actor}), 5)

	from := rows[0].CreatedAt
	assert.Len(t, collect(t, f.svc, TransactionFilter{From: &from}), 1)
	to := rows[0].CreatedAt
	assert.Len(t, collect(t, f.svc, TransactionFilter{To: &to}), 5)

	bad := enums.StockTransactionType("TRANSFER")
	_, err = f.svc.ListTransactions(ctx, TransactionFilter{TransactionType: &bad})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)

	later := from.Add(1)
	_, err = f.svc.ListTransactions(ctx, TransactionFilter{From: &later, To: &to})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
}

func TestListTransactionsPage(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, config.StockConfig{})
	a, _ := seedHistory(t, f, 3)

	page, err := f.svc.ListTransactionsPage(context.Background(), TransactionFilter{ProductID: &a}, pagination.Params{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(1), page.Data[0].Sequence)
}

func TestReconcileReplaysHistory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newLedgerFixture(t, config.StockConfig{ConsumeSource: config.ConsumeSourceAvailable})
	productID := f.seedStock(t, 0, 40)

	_, err := f.svc.ReserveStock(ctx, productID, f.move(15))
	require.NoError(t, err)
	_, err = f.svc.ReceiveStock(ctx, productID, f.move(10))
	require.NoError(t, err)
	_, err = f.svc.ConsumeStock(ctx, productID, ConsumeInput{MovementInput: f.move(7)})
	require.NoError(t, err)
	_, err = f.svc.ReleaseStock(ctx, productID, f.move(5))
	require.NoError(t, err)
	_, err = f.svc.AdjustStock(ctx, productID, AdjustStockInput{Delta: -2, Actor: f.actor})
	require.NoError(t, err)
	_, err = f.svc.ReserveStock(ctx, productID, f.move(1000))
	require.Error(t, err)

	report, err := f.svc.Reconcile(ctx, productID)
	require.NoError(t, err)
	assert.True(t, report.Balanced)
	assert.Equal(t, 5, report.TransactionCount)
	assert.Equal(t, int64(5), report.LastSequence)
	assert.Equal(t, report.ActualAvailable, report.ExpectedAvailable)
	assert.Equal(t, 31, report.ExpectedAvailable)
	assert.Equal(t, 10, report.ExpectedReserved)
}

func TestReconcileDetectsDrift(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newLedgerFixture(t, config.StockConfig{})
	productID := f.seedStock(t, 0, 20)
	_, err := f.svc.ReserveStock(ctx, productID, f.move(5))
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.Stock{}).
		Where("product_id = ?", productID).
		Updates(map[string]any{"quantity_available": 99, "version": 3}).Error)

	report, err := f.svc.Reconcile(ctx, productID)
	require.NoError(t, err)
	assert.False(t, report.Balanced)
	assert.Equal(t, 84, report.AvailableDrift())
	assert.Equal(t, 0, report.ReservedDrift())
	assert.Equal(t, []int64{2, 3}, report.SequenceGaps)
}

func TestForEachProductVisitsLiveStock(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newLedgerFixture(t, config.StockConfig{TransactionPageLimit: 2})
	ids := map[uuid.UUID]bool{}
	for i := 0; i < 5; i++ {
		ids[f.seedStock(t, 0, 1)] = true
	}
	gone := f.seedStock(t, 0, 1)
	require.NoError(t, f.svc.DeleteStock(ctx, gone, f.actor))

	visited := map[uuid.UUID]bool{}
	require.NoError(t, f.svc.ForEachProduct(ctx, func(productID uuid.UUID) error {
		visited[productID] = true
		return nil
	}))
	assert.Equal(t, ids, visited)
}

func TestWriteTransactionsXLSX(t *testing.T) {
	t.Parallel()

	f := newLedgerFixture(t, config.StockConfig{})
	seedHistory(t, f, 3)

	seq, err := f.svc.ListTransactions(context.Background(), TransactionFilter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	res, err := WriteTransactionsXLSX(&buf, seq, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Rows)
	assert.True(t, res.Truncated)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Created At", rows[0][0])
	assert.Equal(t, "RESERVED", rows[1][4])
}
