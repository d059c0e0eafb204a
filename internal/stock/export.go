package stock

import (
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Transactions"

var exportHeader = []any{
	"Created At",
	"Transaction ID",
	"Product ID",
	"Sequence",
	"Type",
	"Quantity",
	"Available Delta",
	"Reserved Delta",
	"Available After",
	"Reserved After",
	"Reference Type",
	"Reference ID",
	"Notes",
	"Created By",
}

// ExportResult describes a finished spreadsheet export.
type ExportResult struct {
	Rows      int
	Truncated bool
}

// WriteTransactionsXLSX streams transactions into a single-sheet workbook and
// writes it to w. At most maxRows data rows are written; maxRows <= 0 means no cap.
func WriteTransactionsXLSX(w io.Writer, rows iter.Seq2[TransactionDTO, error], maxRows int) (ExportResult, error) {
	var out ExportResult

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return out, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(exportSheet)
	if err != nil {
		return out, fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetRow("A1", exportHeader); err != nil {
		return out, fmt.Errorf("write header: %w", err)
	}

	for txn, err := range rows {
		if err != nil {
			return out, err
		}
		if maxRows > 0 && out.Rows >= maxRows {
			out.Truncated = true
			break
		}
		cell, err := excelize.CoordinatesToCellName(1, out.Rows+2)
		if err != nil {
			return out, err
		}
		if err := sw.SetRow(cell, exportRow(txn)); err != nil {
			return out, fmt.Errorf("write row %d: %w", out.Rows+1, err)
		}
		out.Rows++
	}

	if err := sw.Flush(); err != nil {
		return out, fmt.Errorf("flush sheet: %w", err)
	}
	if err := f.Write(w); err != nil {
		return out, fmt.Errorf("write workbook: %w", err)
	}
	return out, nil
}

func exportRow(txn TransactionDTO) []any {
	referenceID := ""
	if txn.ReferenceID != nil {
		referenceID = txn.ReferenceID.String()
	}
	notes := ""
	if txn.Notes != nil {
		notes = *txn.Notes
	}
	return []any{
		txn.CreatedAt.UTC().Format(time.RFC3339),
		txn.ID.String(),
		txn.ProductID.String(),
		txn.Sequence,
		string(txn.TransactionType),
		txn.Quantity,
		txn.AvailableDelta,
		txn.ReservedDelta,
		txn.AvailableAfter,
		txn.ReservedAfter,
		string(txn.ReferenceType),
		referenceID,
		notes,
		txn.CreatedBy.String(),
	}
}
