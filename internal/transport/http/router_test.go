package http

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/fern-folio/bookstore-api/internal/application/auth"
	"github.com/fern-folio/bookstore-api/internal/application/cart"
	"github.com/fern-folio/bookstore-api/internal/application/catalog"
	"github.com/fern-folio/bookstore-api/internal/application/notify"
	"github.com/fern-folio/bookstore-api/internal/application/order"
	"github.com/fern-folio/bookstore-api/internal/application/registration"
	"github.com/fern-folio/bookstore-api/internal/application/user"
	"github.com/fern-folio/bookstore-api/internal/config"
	"github.com/fern-folio/bookstore-api/internal/domain"
	jwtinfra "github.com/fern-folio/bookstore-api/internal/infrastructure/jwt"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/memory"
	"github.com/fern-folio/bookstore-api/internal/pkg/async"
	"github.com/fern-folio/bookstore-api/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type inlineDispatcher struct{}

func (inlineDispatcher) Submit(_ string, job async.Job) error { return job(context.Background()) }

type inbox struct {
	mu     sync.Mutex
	bodies map[string][]string
}

func (b *inbox) SendEmail(to, _, htmlBody string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bodies[to] = append(b.bodies[to], htmlBody)
	return nil
}

var verifyLink = regexp.MustCompile(`/v1/users/verify/([0-9a-f]{64})`)

func (b *inbox) token(t *testing.T, to string) string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	msgs := b.bodies[to]
	require.NotEmpty(t, msgs, "no mail for %s", to)
	m := verifyLink.FindStringSubmatch(msgs[len(msgs)-1])
	require.Len(t, m, 2)
	return m[1]
}

type testApp struct {
	handler http.Handler
	inbox   *inbox
	books   *memory.BookRepo
	jwt     *jwtinfra.Provider
}

func newTestApp(t *testing.T, maxRequests int) *testApp {
	t.Helper()
	cfg := &config.Config{
		AllowedOrigins: []string{"*"},
		RateLimit:      config.RateLimit{MaxRequests: maxRequests, Window: time.Minute},
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	provider := jwtinfra.NewProviderFromKeys(key, &key.PublicKey, time.Hour)

	db := memory.New()
	users := memory.NewUserRepo(db)
	books := memory.NewBookRepo(db)
	mail := &inbox{bodies: map[string][]string{}}
	notifier := notify.New(notify.Deps{Dispatcher: inlineDispatcher{}, Mailer: mail, BaseURL: "http://test"})

	store, err := ratelimit.NewMemoryStore(ratelimit.Policy{MaxRequests: maxRequests, Window: time.Minute})
	require.NoError(t, err)

	orders := order.NewService(order.ServiceDeps{
		OrderRepo: memory.NewOrderRepo(db), BookRepo: books, UserRepo: users, Notifier: notifier,
	})
	deps := &Deps{
		Auth: auth.NewService(auth.ServiceDeps{UserRepo: users, TokenIssuer: provider}),
		Registration: registration.NewService(registration.ServiceDeps{
			UserRepo: users, PendingRepo: memory.NewPendingRepo(db), Mailer: notifier,
		}),
		Users:       user.NewService(user.ServiceDeps{UserRepo: users}),
		Catalog:     catalog.NewService(catalog.ServiceDeps{BookRepo: books, GenreRepo: memory.NewGenreRepo(db)}),
		Carts:       cart.NewService(cart.ServiceDeps{CartRepo: memory.NewCartRepo(db), BookRepo: books, OrderService: orders}),
		Orders:      orders,
		JWTProvider: provider,
		Limiter:     ratelimit.New(store),
	}
	return &testApp{handler: NewRouter(cfg, deps), inbox: mail, books: books, jwt: provider}
}

func (a *testApp) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.7:4000"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func TestRouter_RegisterVerifyLoginCheckout(t *testing.T) {
	app := newTestApp(t, 100)
	require.NoError(t, app.books.Create(context.Background(),
		&domain.Book{BookID: "b1", Title: "Dune", Author: "Herbert", Price: 900, Quantity: 1, InStock: true}))

	rr := app.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name": "Alice", "email": "Alice@Example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	rr = app.do(t, http.MethodPost, "/v1/users/register", "", map[string]string{
		"name": "Alice", "email": "alice@example.com", "password": "correct horse",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = app.do(t, http.MethodPost, "/v1/sessions/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "unverified accounts cannot log in")

	tok := app.inbox.token(t, "alice@example.com")
	rr = app.do(t, http.MethodGet, "/v1/users/verify/"+tok, "", nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = app.do(t, http.MethodGet, "/v1/users/verify/"+tok, "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "tokens are single use")

	rr = app.do(t, http.MethodPost, "/v1/sessions/login", "", map[string]string{
		"email": "alice@example.com", "password": "correct horse",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	var login struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&login))
	assert.Equal(t, "bearer", login.TokenType)

	rr = app.do(t, http.MethodPost, "/v1/carts/items", login.AccessToken, map[string]interface{}{"book_id": "b1", "quantity": 1})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = app.do(t, http.MethodPost, "/v1/carts/me/checkout", login.AccessToken, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	b, err := app.books.Get(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 0, b.Quantity)
	assert.False(t, b.InStock)

	rr = app.do(t, http.MethodGet, "/v1/orders/mine", login.AccessToken, nil)
	var mine []domain.Order
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&mine))
	assert.Len(t, mine, 1)
}

func TestRouter_RoleGuards(t *testing.T) {
	app := newTestApp(t, 100)
	customer, err := app.jwt.Issue("u1", domain.RoleCustomer)
	require.NoError(t, err)
	staff, err := app.jwt.Issue("s1", domain.RoleStaff)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/v1/orders", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/v1/orders", customer, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/v1/orders", staff, nil).Code)
	assert.Equal(t, http.StatusForbidden, app.do(t, http.MethodGet, "/v1/users", staff, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/v1/books", "", nil).Code)
}

func TestRouter_RateLimitAppliesToEveryRoute(t *testing.T) {
	app := newTestApp(t, 3)

	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/v1/health-check/ping", "", nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodGet, "/v1/books", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodGet, "/v1/carts/me", "", nil).Code)

	rr := app.do(t, http.MethodGet, "/v1/health-check/ping", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"too many requests, try again later"}`, rr.Body.String())
}

func TestRouter_RateLimitCountsPreflights(t *testing.T) {
	app := newTestApp(t, 2)
	preflight := func() int {
		req := httptest.NewRequest(http.MethodOptions, "/v1/books", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("Origin", "https://shop.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		app.handler.ServeHTTP(rr, req)
		return rr.Code
	}

	assert.NotEqual(t, http.StatusTooManyRequests, preflight())
	assert.NotEqual(t, http.StatusTooManyRequests, preflight())
	assert.Equal(t, http.StatusTooManyRequests, preflight())
	assert.Equal(t, http.StatusTooManyRequests, app.do(t, http.MethodGet, "/v1/books", "", nil).Code)
}
