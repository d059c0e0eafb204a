package controllers

import (
	"net/http"
	"strings"

	"github.com/ombhut175/RetailFlow-sub002/api/responses"
	"github.com/ombhut175/RetailFlow-sub002/api/validators"
	productsvc "github.com/ombhut175/RetailFlow-sub002/internal/products"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/logger"
)

const maxProductQueryLen = 100

type createProductRequest struct {
	SKU               string  `json:"sku" validate:"required,max=64,sku"`
	Name              string  `json:"name" validate:"required,max=255"`
	Description       *string `json:"description,omitempty"`
	MinimumStockLevel *int    `json:"minimum_stock_level,omitempty"`
	CreatedBy         string  `json:"created_by,omitempty" validate:"omitempty,uuid"`
}

type updateProductRequest struct {
	SKU               *string `json:"sku,omitempty" validate:"omitempty,max=64,sku"`
	Name              *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Description       *string `json:"description,omitempty"`
	MinimumStockLevel *int    `json:"minimum_stock_level,omitempty"`
	UpdatedBy         string  `json:"updated_by,omitempty" validate:"omitempty,uuid"`
}

// ProductCreate handles product creation.
func ProductCreate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "created_by", payload.CreatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.CreateProduct(r.Context(), actor, productsvc.CreateProductInput{
			SKU:               payload.SKU,
			Name:              payload.Name,
			Description:       payload.Description,
			MinimumStockLevel: payload.MinimumStockLevel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteCreated(w, product)
	}
}

func ProductGet(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withDeleted, err := validators.ParseQueryFlag(r, "with_deleted")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), productID, withDeleted)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductList pages the catalogue; q matches SKU or name.
func ProductList(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		withDeleted, err := validators.ParseQueryFlag(r, "with_deleted")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListProducts(r.Context(), productsvc.ListProductsInput{
			Filters: productsvc.ProductListFilters{
				Query:       validators.SanitizeString(r.URL.Query().Get("q"), maxProductQueryLen),
				WithDeleted: withDeleted,
			},
			Pagination: params,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProductUpdate applies a partial update.
func ProductUpdate(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "updated_by", payload.UpdatedBy)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.UpdateProduct(r.Context(), actor, productID, productsvc.UpdateProductInput{
			SKU:               payload.SKU,
			Name:              payload.Name,
			Description:       payload.Description,
			MinimumStockLevel: payload.MinimumStockLevel,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

// ProductDelete soft deletes a product. The actor comes from the deleted_by
// query parameter or the X-Actor-Id header.
func ProductDelete(svc productsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.URLParamUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := resolveActor(r, "deleted_by", strings.TrimSpace(r.URL.Query().Get("deleted_by")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeleteProduct(r.Context(), actor, productID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
