package stock

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/pkg/enums"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
)

func validateActor(actor uuid.UUID) error {
	if actor == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}
	return nil
}

func validateProductID(productID uuid.UUID) error {
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_id is required")
	}
	return nil
}

// MaxQuantity is the largest value a stock counter or movement may hold; the
// quantity columns are 32-bit integers.
const MaxQuantity = math.MaxInt32

func validatePositive(field string, quantity int) error {
	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("%s must be greater than zero", field)).
			WithDetails(map[string]any{field: quantity})
	}
	return validateCeiling(field, quantity)
}

func validateNonNegative(field string, quantity int) error {
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("%s must not be negative", field)).
			WithDetails(map[string]any{field: quantity})
	}
	return validateCeiling(field, quantity)
}

func validateCeiling(field string, quantity int) error {
	if quantity > MaxQuantity || quantity < -MaxQuantity {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, fmt.Sprintf("%s exceeds %d", field, MaxQuantity)).
			WithDetails(map[string]any{field: quantity, "max": MaxQuantity})
	}
	return nil
}

func validateReference(ref *enums.StockReferenceType) error {
	if ref != nil && !ref.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reference_type %q", *ref))
	}
	return nil
}

func validateCreate(in CreateStockInput) error {
	if err := validateProductID(in.ProductID); err != nil {
		return err
	}
	if err := validateActor(in.Actor); err != nil {
		return err
	}
	if err := validateNonNegative("quantity_available", in.QuantityAvailable); err != nil {
		return err
	}
	if err := validateNonNegative("quantity_reserved", in.QuantityReserved); err != nil {
		return err
	}
	return validateCeiling("quantity_total", in.QuantityAvailable+in.QuantityReserved)
}

func validateMovement(productID uuid.UUID, in MovementInput) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	if err := validateActor(in.Actor); err != nil {
		return err
	}
	if err := validatePositive("quantity", in.Quantity); err != nil {
		return err
	}
	return validateReference(in.ReferenceType)
}

func validateAdjust(productID uuid.UUID, in AdjustStockInput) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	if err := validateActor(in.Actor); err != nil {
		return err
	}
	if in.Delta == 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidQuantity, "quantity_change must not be zero")
	}
	if err := validateCeiling("quantity_change", in.Delta); err != nil {
		return err
	}
	return validateReference(in.ReferenceType)
}

func validateUpdate(productID uuid.UUID, in UpdateStockInput) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	if err := validateActor(in.Actor); err != nil {
		return err
	}
	if in.QuantityAvailable == nil && in.QuantityReserved == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity_available or quantity_reserved is required")
	}
	if in.QuantityAvailable != nil {
		if err := validateNonNegative("quantity_available", *in.QuantityAvailable); err != nil {
			return err
		}
	}
	if in.QuantityReserved != nil {
		if err := validateNonNegative("quantity_reserved", *in.QuantityReserved); err != nil {
			return err
		}
	}
	if in.ExpectedVersion != nil && *in.ExpectedVersion < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "expected_version must not be negative")
	}
	return nil
}

func validateTransactionFilter(filter TransactionFilter) error {
	if filter.TransactionType != nil && !filter.TransactionType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction_type %q", *filter.TransactionType))
	}
	if err := validateReference(filter.ReferenceType); err != nil {
		return err
	}
	if filter.From != nil && filter.To != nil && filter.From.After(*filter.To) {
		return pkgerrors.New(pkgerrors.CodeValidation, "from must not be after to")
	}
	return nil
}
