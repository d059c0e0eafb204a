package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/api/responses"
	"github.com/ombhut175/RetailFlow-sub002/api/validators"
	"github.com/ombhut175/RetailFlow-sub002/internal/stock"
	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type createTransactionRequest struct {
	ProductID       string  `json:"product_id" validate:"required,uuid"`
	TransactionType string  `json:"transaction_type" validate:"required"`
	Quantity        *int    `json:"quantity" validate:"required,lte=2147483647"`
	ReferenceType   string  `json:"reference_type" validate:"required"`
	ReferenceID     *string `json:"reference_id,omitempty"`
	Source          *string `json:"source,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	CreatedBy       string  `json:"created_by,omitempty" validate:"omitempty,uuid"`
}

// TransactionCreate records a typed ledger entry. The entry is routed through
// the matching ledger operation so the counters follow it.
func TransactionCreate(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createTransactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.RecordTransaction(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, txn)
	}
}

func (req createTransactionRequest) toInput(r *http.Request) (stock.RecordTransactionInput, error) {
	actor, err := resolveActor(r, "created_by", req.CreatedBy)
	if err != nil {
		return stock.RecordTransactionInput{}, err
	}
	txnType, err := enums.ParseStockTransactionType(req.TransactionType)
	if err != nil {
		return stock.RecordTransactionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{"transaction_type": "is invalid"})
	}
	refType, err := parseOptionalEnum("reference_type", &req.ReferenceType, enums.ParseStockReferenceType)
	if err != nil {
		return stock.RecordTransactionInput{}, err
	}
	refID, err := parseOptionalUUID("reference_id", req.ReferenceID)
	if err != nil {
		return stock.RecordTransactionInput{}, err
	}
	source, err := parseOptionalEnum("source", req.Source, enums.ParseConsumeSource)
	if err != nil {
		return stock.RecordTransactionInput{}, err
	}
	return stock.RecordTransactionInput{
		ProductID:       uuid.MustParse(req.ProductID),
		TransactionType: txnType,
		Quantity:        *req.Quantity,
		ReferenceType:   refType,
		ReferenceID:     refID,
		Notes:           validators.SanitizeOptional(req.Notes, maxNotesLen),
		Source:          source,
		Actor:           actor,
	}, nil
}

func parseTransactionFilter(r *http.Request) (stock.TransactionFilter, error) {
	var filter stock.TransactionFilter
	var err error
	if filter.ProductID, err = validators.ParseQueryUUID(r, "product_id"); err != nil {
		return filter, err
	}
	if filter.TransactionType, err = validators.ParseQueryEnum(r, "transaction_type", enums.ParseStockTransactionType); err != nil {
		return filter, err
	}
	if filter.ReferenceType, err = validators.ParseQueryEnum(r, "reference_type", enums.ParseStockReferenceType); err != nil {
		return filter, err
	}
	if filter.ReferenceID, err = validators.ParseQueryUUID(r, "reference_id"); err != nil {
		return filter, err
	}
	if filter.CreatedBy, err = validators.ParseQueryUUID(r, "created_by"); err != nil {
		return filter, err
	}
	if filter.From, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filter, err
	}
	return filter, nil
}

// TransactionList pages the transaction history newest first.
func TransactionList(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseTransactionFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListTransactionsPage(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// TransactionExport streams the filtered history into an XLSX workbook capped
// at maxRows rows. The workbook is built before any header is written so a
// failure still produces a JSON error.
func TransactionExport(svc stock.Service, maxRows int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseTransactionFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, err := svc.ListTransactions(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var buf bytes.Buffer
		result, err := stock.WriteTransactionsXLSX(&buf, rows, maxRows)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{
				"rows":      result.Rows,
				"truncated": result.Truncated,
			})
			logg.Info(ctx, "stock.transactions.exported")
		}

		filename := fmt.Sprintf("stock-transactions-%s.xlsx", time.Now().UTC().Format("20060102T150405Z"))
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
		w.Header().Set("X-Export-Truncated", strconv.FormatBool(result.Truncated))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
