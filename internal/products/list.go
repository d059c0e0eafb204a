package product

import (
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

// ProductListFilters describe the supported filter knobs for the list endpoint.
type ProductListFilters struct {
	Query       string `json:"q,omitempty"`
	WithDeleted bool   `json:"with_deleted,omitempty"`
}

// ListProductsInput captures the inputs needed to paginate/filter products.
type ListProductsInput struct {
	Filters    ProductListFilters
	Pagination pagination.Params
}
