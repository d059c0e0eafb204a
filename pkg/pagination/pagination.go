package pagination

import (
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows any page query can request.
	MaxLimit = 100
)

// Params holds page/limit inputs from controllers or services.
type Params struct {
	Page  int
	Limit int
}

// Normalize applies the default page and the configured limit bounds.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = 1
	}
	p.Limit = NormalizeLimit(p.Limit)
	return p
}

// Offset returns the row offset for the normalized page.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Page is the list envelope returned by paginated endpoints.
type Page[T any] struct {
	Data  []T   `json:"data"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

// NewPage builds a page for the normalized params; nil data becomes an empty slice.
func NewPage[T any](data []T, total int64, params Params) Page[T] {
	n := params.Normalize()
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, Total: total, Page: n.Page, Limit: n.Limit}
}

// Map converts page items while preserving the page metadata.
func Map[T, U any](in Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(in.Data))
	for _, item := range in.Data {
		out = append(out, fn(item))
	}
	return Page[U]{Data: out, Total: in.Total, Page: in.Page, Limit: in.Limit}
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Cursor is a keyset position for streams ordered by
// (created_at DESC, sequence DESC, id DESC).
type Cursor struct {
	CreatedAt time.Time
	Sequence  int64
	ID        uuid.UUID
}
