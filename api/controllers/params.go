package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ombhut175/RetailFlow-sub002/api/middleware"
	"github.com/ombhut175/RetailFlow-sub002/api/validators"
	pkgerrors "github.com/ombhut175/RetailFlow-sub002/pkg/errors"
	"github.com/ombhut175/RetailFlow-sub002/pkg/pagination"
)

const (
	maxNotesLen = 1000
	maxPage     = 1_000_000
)

// resolveActor parses the acting user from a body field, falling back to the
// X-Actor-Id header when the field is blank.
func resolveActor(r *http.Request, field, raw string) (uuid.UUID, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		if id, ok := middleware.ActorIDFromContext(r.Context()); ok {
			return id, nil
		}
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{field: "is required"})
	}
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{field: "must be a valid UUID"})
	}
	return id, nil
}

func parsePagination(r *http.Request) (pagination.Params, error) {
	page, err := validators.ParseQueryInt(r, "page", 1, 1, maxPage)
	if err != nil {
		return pagination.Params{}, err
	}
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: page, Limit: limit}, nil
}

// parseOptionalEnum parses an optional body field; field names the JSON key in
// the error details.
func parseOptionalEnum[T any](field string, raw *string, parse func(string) (T, error)) (*T, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	value, err := parse(*raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{field: "is invalid"})
	}
	return &value, nil
}

func parseOptionalUUID(field string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed").
			WithDetails(map[string]string{field: "must be a valid UUID"})
	}
	return &id, nil
}
