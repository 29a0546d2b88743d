package domain

import (
	"sort"
	"strings"
	"time"
)

// Book is a catalog entry. Price is in minor currency units.
type Book struct {
	BookID    string    `json:"id" dynamodbav:"book_id"`
	Title     string    `json:"title" dynamodbav:"title"`
	Author    string    `json:"author" dynamodbav:"author"`
	GenreID   string    `json:"genre_id,omitempty" dynamodbav:"genre_id"`
	Price     int64     `json:"price" dynamodbav:"price"`
	InStock   bool      `json:"instock" dynamodbav:"instock"`
	Quantity  int       `json:"quantity" dynamodbav:"quantity"`
	CreatedAt time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt time.Time `json:"updated" dynamodbav:"updated_at"`
}

type CreateBookRequest struct {
	Title    string `json:"title" validate:"required,max=255"`
	Author   string `json:"author" validate:"required,max=255"`
	GenreID  string `json:"genre_id"`
	Price    int64  `json:"price" validate:"gte=0"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// UpdateBookRequest lists every mutable book field; nil means unchanged.
type UpdateBookRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=255"`
	Author   *string `json:"author" validate:"omitempty,min=1,max=255"`
	GenreID  *string `json:"genre_id"`
	Price    *int64  `json:"price" validate:"omitempty,gte=0"`
	Quantity *int    `json:"quantity" validate:"omitempty,gte=0"`
}

// Empty reports whether no field is set.
func (r UpdateBookRequest) Empty() bool {
	return r.Title == nil && r.Author == nil && r.GenreID == nil && r.Price == nil && r.Quantity == nil
}

// Apply copies the set fields onto b and keeps InStock consistent with Quantity.
func (r UpdateBookRequest) Apply(b *Book) {
	if r.Title != nil {
		b.Title = *r.Title
	}
	if r.Author != nil {
		b.Author = *r.Author
	}
	if r.GenreID != nil {
		b.GenreID = *r.GenreID
	}
	if r.Price != nil {
		b.Price = *r.Price
	}
	if r.Quantity != nil {
		b.Quantity = *r.Quantity
		b.InStock = b.Quantity > 0
	}
}

// Sortable book fields.
const (
	SortByTitle    = "title"
	SortByAuthor   = "author"
	SortByPrice    = "price"
	SortByQuantity = "quantity"
)

const (
	DefaultBookLimit = 10
	MaxBookLimit     = 100
)

// BookQuery describes a catalog search. Zero values mean "no filter".
type BookQuery struct {
	Search   string
	GenreID  string
	MinPrice *int64
	MaxPrice *int64
	InStock  *bool
	SortBy   string
	SortDesc bool
	Skip     int
	Limit    int
}

// Normalize clamps paging and replaces unknown sort fields with title.
func (q BookQuery) Normalize() BookQuery {
	switch q.SortBy {
	case SortByTitle, SortByAuthor, SortByPrice, SortByQuantity:
	default:
		q.SortBy = SortByTitle
	}
	if q.Skip < 0 {
		q.Skip = 0
	}
	if q.Limit <= 0 {
		q.Limit = DefaultBookLimit
	}
	if q.Limit > MaxBookLimit {
		q.Limit = MaxBookLimit
	}
	return q
}

// Match reports whether b passes every filter in q.
func (q BookQuery) Match(b *Book) bool {
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(b.Title), needle) &&
			!strings.Contains(strings.ToLower(b.Author), needle) {
			return false
		}
	}
	if q.GenreID != "" && b.GenreID != q.GenreID {
		return false
	}
	if q.MinPrice != nil && b.Price < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && b.Price > *q.MaxPrice {
		return false
	}
	if q.InStock != nil && (b.Quantity > 0) != *q.InStock {
		return false
	}
	return true
}

// Apply filters, sorts and pages books. Ties are broken by BookID so paging
// is stable.
func (q BookQuery) Apply(books []Book) []Book {
	q = q.Normalize()
	out := make([]Book, 0, len(books))
	for i := range books {
		if q.Match(&books[i]) {
			out = append(out, books[i])
		}
	}
	less := bookLess(q.SortBy)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if q.SortDesc {
			a, b = b, a
		}
		if less(a, b) {
			return true
		}
		if less(b, a) {
			return false
		}
		return out[i].BookID < out[j].BookID
	})
	if q.Skip >= len(out) {
		return []Book{}
	}
	out = out[q.Skip:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func bookLess(field string) func(a, b *Book) bool {
	switch field {
	case SortByAuthor:
		return func(a, b *Book) bool { return strings.ToLower(a.Author) < strings.ToLower(b.Author) }
	case SortByPrice:
		return func(a, b *Book) bool { return a.Price < b.Price }
	case SortByQuantity:
		return func(a, b *Book) bool { return a.Quantity < b.Quantity }
	default:
		return func(a, b *Book) bool { return strings.ToLower(a.Title) < strings.ToLower(b.Title) }
	}
}

// ImportResult summarises a CSV bulk import.
type ImportResult struct {
	Added   []string `json:"books"`
	Skipped int      `json:"skipped"`
	Archive string   `json:"archive,omitempty"`
}
