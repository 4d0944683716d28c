package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/goliatone/go-madr/auth"
	"github.com/goliatone/go-madr/config"
	"github.com/goliatone/go-madr/migrations"
	"github.com/goliatone/go-madr/repository"
)

const (
	testSecret   = "0123456789abcdef0123456789abcdef"
	testPassword = "s3cret-pass"
)

var testArgon2 = auth.Argon2Params{
	Memory:      1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

type testApp struct {
	app    *fiber.App
	repo   *repository.Manager
	sqlDB  *sql.DB
	redis  *miniredis.Miniredis
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
}

func setupApp(t *testing.T, configure ...func(*Options)) *testApp {
	t.Helper()

	sqlDB, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	_, err = sqlDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	migrations.SetLogger(goose.NopLogger())
	require.NoError(t, migrations.Up(context.Background(), sqlDB, migrations.SQLite))

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	repo := repository.NewRepositoryManager(db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &config.Config{
		SecretKey:           testSecret,
		Algorithm:           "HS256",
		SigningKeyID:        auth.DefaultSigningKeyID,
		AccessTokenLifetime: 15 * time.Minute,
	}

	tokens, err := auth.NewTokenService(cfg, nil)
	require.NoError(t, err)

	hasher := auth.NewPasswordHasher(testArgon2)
	registry := auth.NewRedisSessionRegistry(client)
	provider := auth.NewUserProvider(repo.Credentials(), hasher)
	auther := auth.NewAuthenticator(provider, tokens, registry, cfg)

	opts := Options{
		Repo:   repo,
		Auther: auther,
		Hasher: hasher,
	}
	for _, fn := range configure {
		fn(&opts)
	}

	t.Cleanup(func() {
		_ = client.Close()
		_ = db.Close()
	})

	return &testApp{
		app:    New(opts),
		repo:   repo,
		sqlDB:  sqlDB,
		redis:  mr,
		tokens: tokens,
		hasher: hasher,
	}
}

type response struct {
	Status int
	Header http.Header
	Body   map[string]any
}

func (r response) Detail() any {
	return r.Body["detail"]
}

func (ta *testApp) do(t *testing.T, req *http.Request) response {
	t.Helper()

	res, err := ta.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := response{Status: res.StatusCode, Header: res.Header, Body: map[string]any{}}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), "body: %s", raw)
	}
	return out
}

// request sends body as JSON with an optional bearer token
func (ta *testApp) request(t *testing.T, method, path string, body any, token string) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	return ta.do(t, req)
}

func (ta *testApp) form(t *testing.T, path string, values url.Values) response {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return ta.do(t, req)
}

func (ta *testApp) register(t *testing.T, username, email string) int64 {
	t.Helper()

	res := ta.request(t, http.MethodPost, "/users", map[string]any{
		"username": username,
		"email":    email,
		"password": testPassword,
	}, "")
	require.Equal(t, http.StatusCreated, res.Status, "%v", res.Body)
	return int64(res.Body["id"].(float64))
}

func (ta *testApp) login(t *testing.T, identifier string) string {
	t.Helper()

	res := ta.form(t, "/auth/token", url.Values{
		"username": {identifier},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusOK, res.Status, "%v", res.Body)
	return res.Body["access_token"].(string)
}

func (ta *testApp) seedNovelist(t *testing.T, name string) *repository.Novelist {
	t.Helper()
	n, err := ta.repo.Novelists().Create(context.Background(), &repository.Novelist{Name: name})
	require.NoError(t, err)
	return n
}

func (ta *testApp) seedBook(t *testing.T, novelistID int64, name, title string, year int) *repository.Book {
	t.Helper()
	b, err := ta.repo.Books().Create(context.Background(), &repository.Book{
		Name:       name,
		Title:      title,
		Year:       year,
		NovelistID: novelistID,
	})
	require.NoError(t, err)
	return b
}

func dataOf(t *testing.T, res response) []map[string]any {
	t.Helper()
	items, ok := res.Body["data"].([]any)
	require.True(t, ok, "data missing in %v", res.Body)

	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		out = append(out, item.(map[string]any))
	}
	return out
}

func newRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}
