package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fern-folio/bookstore-api/internal/application/catalog"
	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/go-chi/chi/v5"
)

// BookHandler serves the catalog: books and genres.
type BookHandler struct {
	svc catalog.Service
}

func NewBookHandler(svc catalog.Service) *BookHandler { return &BookHandler{svc: svc} }

func (h *BookHandler) List(w http.ResponseWriter, r *http.Request) {
	q, err := parseBookQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	books, err := h.svc.ListBooks(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if books == nil {
		books = []domain.Book{}
	}
	writeJSON(w, http.StatusOK, books)
}

func parseBookQuery(v url.Values) (domain.BookQuery, error) {
	q := domain.BookQuery{
		Search:  strings.TrimSpace(v.Get("search")),
		GenreID: v.Get("genre_id"),
		SortBy:  v.Get("sort_by"),
	}
	var err error
	if q.MinPrice, err = optInt64(v, "min_price"); err != nil {
		return q, err
	}
	if q.MaxPrice, err = optInt64(v, "max_price"); err != nil {
		return q, err
	}
	if s := v.Get("in_stock"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return q, fmt.Errorf("in_stock must be a boolean")
		}
		q.InStock = &b
	}
	switch v.Get("sort_order") {
	case "", "asc":
	case "desc":
		q.SortDesc = true
	default:
		return q, fmt.Errorf("sort_order must be asc or desc")
	}
	for name, dst := range map[string]*int{"skip": &q.Skip, "limit": &q.Limit} {
		if s := v.Get(name); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				return q, fmt.Errorf("%s must be a non-negative integer", name)
			}
			*dst = n
		}
	}
	return q, nil
}

func optInt64(v url.Values, name string) (*int64, error) {
	s := v.Get(name)
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return &n, nil
}

func (h *BookHandler) Get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BookHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.CreateBook(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BookHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.svc.UpdateBook(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *BookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "book deleted"})
}

// Import accepts a multipart upload with a single CSV in the "file" field.
func (h *BookHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, catalog.MaxImportSize+1<<20)
	if err := r.ParseMultipartForm(catalog.MaxImportSize); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		writeError(w, http.StatusBadRequest, "only CSV files are accepted")
		return
	}
	res, err := h.svc.ImportCSV(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *BookHandler) CreateFromISBN(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.CreateFromISBN(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *BookHandler) ListGenres(w http.ResponseWriter, r *http.Request) {
	genres, err := h.svc.ListGenres(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if genres == nil {
		genres = []domain.Genre{}
	}
	writeJSON(w, http.StatusOK, genres)
}

func (h *BookHandler) GetGenre(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.GetGenre(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *BookHandler) CreateGenre(w http.ResponseWriter, r *http.Request) {
	var in domain.GenreInput
	if !decodeJSON(w, r, &in) {
		return
	}
	g, err := h.svc.CreateGenre(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *BookHandler) DeleteGenre(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteGenre(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "genre deleted"})
}
