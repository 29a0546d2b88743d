// Package catalog manages books and genres, including bulk CSV import and
// creation from an ISBN lookup.
package catalog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/googlebooks"
	"github.com/fern-folio/bookstore-api/internal/pkg/id"
)

// Defaults for books created from an ISBN lookup.
const (
	isbnPrice    = 0
	isbnQuantity = 10
)

// MaxImportSize caps the size of an uploaded CSV.
const MaxImportSize = 5 << 20

type Service interface {
	ListBooks(ctx context.Context, q domain.BookQuery) ([]domain.Book, error)
	GetBook(ctx context.Context, bookID string) (*domain.Book, error)
	CreateBook(ctx context.Context, req domain.CreateBookRequest) (*domain.Book, error)
	UpdateBook(ctx context.Context, bookID string, req domain.UpdateBookRequest) (*domain.Book, error)
	DeleteBook(ctx context.Context, bookID string) error
	ImportCSV(ctx context.Context, filename string, r io.Reader) (*domain.ImportResult, error)
	CreateFromISBN(ctx context.Context, isbn string) (*domain.Book, error)

	ListGenres(ctx context.Context) ([]domain.Genre, error)
	GetGenre(ctx context.Context, genreID string) (*domain.Genre, error)
	CreateGenre(ctx context.Context, in domain.GenreInput) (*domain.Genre, error)
	DeleteGenre(ctx context.Context, genreID string) error
}

type bookStore interface {
	Get(ctx context.Context, bookID string) (*domain.Book, error)
	List(ctx context.Context) ([]domain.Book, error)
	Create(ctx context.Context, b *domain.Book) error
	Update(ctx context.Context, bookID string, req domain.UpdateBookRequest, now time.Time) (*domain.Book, error)
	Delete(ctx context.Context, bookID string) error
}

type genreStore interface {
	Get(ctx context.Context, genreID string) (*domain.Genre, error)
	List(ctx context.Context) ([]domain.Genre, error)
	Create(ctx context.Context, g *domain.Genre) error
	Delete(ctx context.Context, genreID string) error
}

type archiver interface {
	ArchiveImport(ctx context.Context, filename string, body []byte) (string, error)
}

type isbnLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*googlebooks.Volume, error)
}

type service struct {
	books   bookStore
	genres  genreStore
	archive archiver
	lookup  isbnLookup
	now     func() time.Time
}

type ServiceDeps struct {
	BookRepo  bookStore
	GenreRepo genreStore
	// Archive is optional; nil skips archiving imports.
	Archive archiver
	Lookup  isbnLookup
	Clock   func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		books:   deps.BookRepo,
		genres:  deps.GenreRepo,
		archive: deps.Archive,
		lookup:  deps.Lookup,
		now:     deps.Clock,
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// --- books ---

func (s *service) ListBooks(ctx context.Context, q domain.BookQuery) ([]domain.Book, error) {
	all, err := s.books.List(ctx)
	if err != nil {
		return nil, err
	}
	return q.Apply(all), nil
}

func (s *service) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	return s.books.Get(ctx, bookID)
}

func (s *service) checkGenre(ctx context.Context, genreID string) error {
	if genreID == "" {
		return nil
	}
	if _, err := s.genres.Get(ctx, genreID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("unknown genre %s: %w", genreID, domain.ErrBadRequest)
		}
		return err
	}
	return nil
}

func (s *service) newBook(title, author, genreID string, price int64, qty int) *domain.Book {
	now := s.now().UTC()
	return &domain.Book{
		BookID:    id.New(),
		Title:     strings.TrimSpace(title),
		Author:    strings.TrimSpace(author),
		GenreID:   genreID,
		Price:     price,
		Quantity:  qty,
		InStock:   qty > 0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *service) CreateBook(ctx context.Context, req domain.CreateBookRequest) (*domain.Book, error) {
	if err := s.checkGenre(ctx, req.GenreID); err != nil {
		return nil, err
	}
	b := s.newBook(req.Title, req.Author, req.GenreID, req.Price, req.Quantity)
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) UpdateBook(ctx context.Context, bookID string, req domain.UpdateBookRequest) (*domain.Book, error) {
	if req.Empty() {
		return s.books.Get(ctx, bookID)
	}
	if req.GenreID != nil {
		if err := s.checkGenre(ctx, *req.GenreID); err != nil {
			return nil, err
		}
	}
	return s.books.Update(ctx, bookID, req, s.now().UTC())
}

func (s *service) DeleteBook(ctx context.Context, bookID string) error {
	return s.books.Delete(ctx, bookID)
}

// ImportCSV adds one book per well-formed row of a CSV with a header row
// naming at least title and author; price, stock and genre_id are optional.
// Rows with a missing title or author, a non-integer or negative price or
// stock, or an unknown genre are skipped and counted.
func (s *service) ImportCSV(ctx context.Context, filename string, r io.Reader) (*domain.ImportResult, error) {
	if !strings.HasSuffix(strings.ToLower(filename), ".csv") {
		return nil, fmt.Errorf("only CSV files are accepted: %w", domain.ErrBadRequest)
	}
	raw, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > MaxImportSize {
		return nil, fmt.Errorf("file exceeds %d bytes: %w", MaxImportSize, domain.ErrBadRequest)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read CSV header: %w", domain.ErrBadRequest)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	if _, ok := cols["title"]; !ok {
		return nil, fmt.Errorf("CSV header must include title and author: %w", domain.ErrBadRequest)
	}
	if _, ok := cols["author"]; !ok {
		return nil, fmt.Errorf("CSV header must include title and author: %w", domain.ErrBadRequest)
	}

	genres, err := s.genreIndex(ctx)
	if err != nil {
		return nil, err
	}

	res := &domain.ImportResult{Added: []string{}}
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			res.Skipped++
			continue
		}
		b, ok := s.bookFromRow(rec, cols, genres)
		if !ok {
			res.Skipped++
			continue
		}
		if err := s.books.Create(ctx, b); err != nil {
			return nil, err
		}
		res.Added = append(res.Added, b.Title)
	}

	if s.archive != nil {
		uri, err := s.archive.ArchiveImport(ctx, filename, raw)
		if err != nil {
			slog.Warn("failed to archive catalog import", "filename", filename, "err", err)
		} else {
			res.Archive = uri
		}
	}
	slog.Info("catalog import", "filename", filename, "added", len(res.Added), "skipped", res.Skipped)
	return res, nil
}

func (s *service) genreIndex(ctx context.Context) (map[string]bool, error) {
	list, err := s.genres.List(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(map[string]bool, len(list))
	for _, g := range list {
		idx[g.GenreID] = true
	}
	return idx, nil
}

func field(rec []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func (s *service) bookFromRow(rec []string, cols map[string]int, genres map[string]bool) (*domain.Book, bool) {
	title, author := field(rec, cols, "title"), field(rec, cols, "author")
	if title == "" || author == "" {
		return nil, false
	}
	var price int64
	if v := field(rec, cols, "price"); v != "" {
		p, err := strconv.ParseInt(v, 10, 64)
		if err != nil || p < 0 {
			return nil, false
		}
		price = p
	}
	var qty int
	if v := field(rec, cols, "stock"); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil || q < 0 {
			return nil, false
		}
		qty = q
	}
	genreID := field(rec, cols, "genre_id")
	if genreID != "" && !genres[genreID] {
		return nil, false
	}
	return s.newBook(title, author, genreID, price, qty), true
}

// CreateFromISBN creates a book from Google Books metadata with price 0 and
// 10 copies. The genre is the first category matching an existing genre name.
func (s *service) CreateFromISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	isbn = strings.ReplaceAll(strings.TrimSpace(isbn), "-", "")
	if isbn == "" {
		return nil, fmt.Errorf("isbn required: %w", domain.ErrBadRequest)
	}
	vol, err := s.lookup.LookupISBN(ctx, isbn)
	if err != nil {
		return nil, err
	}
	title := vol.Title
	if title == "" {
		title = "Unknown Title"
	}
	author := strings.Join(vol.Authors, ", ")
	if author == "" {
		author = "Unknown Author"
	}

	all, err := s.books.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, b := range all {
		if b.Title == title && b.Author == author {
			return nil, fmt.Errorf("%q by %s already exists: %w", title, author, domain.ErrConflict)
		}
	}

	genreID, err := s.matchGenre(ctx, vol.Categories)
	if err != nil {
		return nil, err
	}
	b := s.newBook(title, author, genreID, isbnPrice, isbnQuantity)
	if err := s.books.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *service) matchGenre(ctx context.Context, categories []string) (string, error) {
	if len(categories) == 0 {
		return "", nil
	}
	list, err := s.genres.List(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range categories {
		for _, g := range list {
			if strings.EqualFold(strings.TrimSpace(c), g.Name) {
				return g.GenreID, nil
			}
		}
	}
	return "", nil
}

// --- genres ---

func (s *service) ListGenres(ctx context.Context) ([]domain.Genre, error) {
	return s.genres.List(ctx)
}

func (s *service) GetGenre(ctx context.Context, genreID string) (*domain.Genre, error) {
	return s.genres.Get(ctx, genreID)
}

func (s *service) CreateGenre(ctx context.Context, in domain.GenreInput) (*domain.Genre, error) {
	name := strings.TrimSpace(in.Name)
	list, err := s.genres.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, g := range list {
		if strings.EqualFold(g.Name, name) {
			return nil, fmt.Errorf("genre %q already exists: %w", name, domain.ErrConflict)
		}
	}
	g := &domain.Genre{GenreID: id.New(), Name: name}
	if err := s.genres.Create(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *service) DeleteGenre(ctx context.Context, genreID string) error {
	return s.genres.Delete(ctx, genreID)
}
