package pagination

import (
	"fmt"
	"strings"
)

const (
	// DefaultPage is the first page.
	DefaultPage = 1
	// DefaultSize is the standard page size when a size is not provided.
	DefaultSize = 10
	// MaxSize caps how many rows any page query can request.
	MaxSize = 100
)

// Direction is a sort direction accepted by list endpoints.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Params holds page based pagination inputs from controllers or services.
type Params struct {
	Page int
	Size int
}

// Normalize enforces the default page and the default and maximum sizes.
func (p Params) Normalize() Params {
	if p.Page <= 0 {
		p.Page = DefaultPage
	}
	if p.Size <= 0 {
		p.Size = DefaultSize
	}
	if p.Size > MaxSize {
		p.Size = MaxSize
	}
	return p
}

// Offset is the number of rows skipped before the page starts.
func (p Params) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Size
}

// Page is one slice of a listing together with the total row count.
type Page[T any] struct {
	Items []T   `json:"items"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// NewPage wraps items with the normalized params that produced them.
func NewPage[T any](items []T, params Params, total int64) Page[T] {
	n := params.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{Items: items, Page: n.Page, Size: n.Size, Total: total}
}

// Sort is a validated ORDER BY clause built from an allow-listed field map.
type Sort struct {
	Column    string
	Direction Direction
}

// ParseSort maps a public field name onto a column. An empty field picks fallback.
func ParseSort(field, direction string, columns map[string]string, fallback string) (Sort, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		field = fallback
	}
	column, ok := columns[field]
	if !ok {
		return Sort{}, fmt.Errorf("unsupported sort field %q", field)
	}
	dir := Direction(strings.ToLower(strings.TrimSpace(direction)))
	switch dir {
	case "":
		dir = Desc
	case Asc, Desc:
	default:
		return Sort{}, fmt.Errorf("unsupported sort direction %q", direction)
	}
	return Sort{Column: column, Direction: dir}, nil
}

// Clause renders the sort for gorm's Order.
func (s Sort) Clause() string {
	return fmt.Sprintf("%s %s", s.Column, strings.ToUpper(string(s.Direction)))
}
