package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/product-catalog/internal/testutil"
	"github.com/Sternrassler/product-catalog/pkg/catalog"
	"github.com/Sternrassler/product-catalog/pkg/store"
)

type fakeStatus struct{ connected bool }

func (f fakeStatus) Connected() bool { return f.connected }

type testEnv struct {
	handler http.Handler
	store   *testutil.MemoryStore
	cache   *testutil.MemoryCache
	logs    *bytes.Buffer
}

func newTestEnv(t *testing.T, status CacheStatus) *testEnv {
	t.Helper()

	st := testutil.NewMemoryStore()
	c := testutil.NewMemoryCache()
	logs := &bytes.Buffer{}
	logger := zerolog.New(logs)

	svc, err := catalog.New(st, c, catalog.Config{PopulateCount: 20}, logger)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}

	return &testEnv{
		handler: NewServer(svc, status, Config{}, logger).Handler(),
		store:   st,
		cache:   c,
		logs:    logs,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestProductsCached_HitAndMiss(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Seed(store.Product{Name: store.Ptr("Widget"), Price: store.Ptr(9.99)})

	first := env.do(t, http.MethodGet, "/products-cached", "")
	if first.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", first.Code, first.Body)
	}
	if got := first.Header().Get("X-Cache"); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	body := decode[listingResponse](t, first)
	if body.Source != "database" || body.Count != 1 || len(body.Data) != 1 {
		t.Errorf("body = %+v", body)
	}

	second := env.do(t, http.MethodGet, "/products-cached", "")
	if got := second.Header().Get("X-Cache"); got != "HIT" {
		t.Errorf("X-Cache = %q, want HIT", got)
	}
	body = decode[listingResponse](t, second)
	if body.Source != "cache" || body.Count != 1 {
		t.Errorf("body = %+v", body)
	}
	if *body.Data[0].Name != "Widget" {
		t.Errorf("name = %q, want Widget", *body.Data[0].Name)
	}
	if env.store.GetFindAllCount() != 1 {
		t.Errorf("store queries = %d, want 1", env.store.GetFindAllCount())
	}
}

func TestProductsCached_EmptyListIsArray(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/products-cached", "")
	if !strings.Contains(rec.Body.String(), `"data":[]`) {
		t.Errorf("body = %s, want empty data array", rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/products", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s, want []", rec.Body)
	}
}

func TestWidgetScenario(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/products", `{"name":"Widget","price":9.99,"category":"Tools","color":"blue"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body)
	}
	id := decode[insertedResponse](t, rec).InsertedID
	if len(id) != 24 {
		t.Fatalf("insertedId = %q", id)
	}

	env.do(t, http.MethodGet, "/products-cached", "")
	if rec := env.do(t, http.MethodGet, "/products-cached", ""); rec.Header().Get("X-Cache") != "HIT" {
		t.Fatal("listing not served from cache")
	}

	rec = env.do(t, http.MethodPut, "/products/"+id, `{"price":12.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", rec.Code, rec.Body)
	}
	res := decode[store.UpdateResult](t, rec)
	if res.MatchedCount != 1 || res.ModifiedCount != 1 {
		t.Errorf("update result = %+v", res)
	}

	rec = env.do(t, http.MethodGet, "/products-cached", "")
	if rec.Header().Get("X-Cache") != "MISS" {
		t.Error("listing served from cache after update")
	}
	body := decode[listingResponse](t, rec)
	if *body.Data[0].Price != 12.5 {
		t.Errorf("price = %v, want 12.5", *body.Data[0].Price)
	}
	if body.Data[0].Extra["color"] != "blue" {
		t.Errorf("extra field lost: %+v", body.Data[0].Extra)
	}

	rec = env.do(t, http.MethodGet, "/products/"+id, "")
	got := decode[store.Product](t, rec)
	if got.ID != id || *got.Name != "Widget" {
		t.Errorf("product = %+v", got)
	}

	rec = env.do(t, http.MethodDelete, "/products/"+id, "")
	if rec.Code != http.StatusOK || decode[deletedResponse](t, rec).DeletedCount != 1 {
		t.Fatalf("delete status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/products-cached", "")
	if decode[listingResponse](t, rec).Count != 0 {
		t.Errorf("listing after delete = %s", rec.Body)
	}

	rec = env.do(t, http.MethodGet, "/products/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		setup      func(env *testEnv)
		wantStatus int
		wantKind   catalog.ErrorKind
	}{
		{
			name:       "unknown id",
			method:     http.MethodGet,
			path:       "/products/000000000000000000000042",
			wantStatus: http.StatusNotFound,
			wantKind:   catalog.KindNotFound,
		},
		{
			name:       "malformed id",
			method:     http.MethodGet,
			path:       "/products/xyz",
			wantStatus: http.StatusNotFound,
			wantKind:   catalog.KindNotFound,
		},
		{
			name:       "update unknown id",
			method:     http.MethodPut,
			path:       "/products/000000000000000000000042",
			body:       `{"price":1}`,
			wantStatus: http.StatusNotFound,
			wantKind:   catalog.KindNotFound,
		},
		{
			name:       "delete unknown id",
			method:     http.MethodDelete,
			path:       "/products/000000000000000000000042",
			wantStatus: http.StatusNotFound,
			wantKind:   catalog.KindNotFound,
		},
		{
			name:       "malformed json",
			method:     http.MethodPost,
			path:       "/products",
			body:       `{"name":`,
			wantStatus: http.StatusBadRequest,
			wantKind:   catalog.KindValidation,
		},
		{
			name:       "wrong field type",
			method:     http.MethodPost,
			path:       "/products",
			body:       `{"name":"Widget","price":"cheap"}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   catalog.KindValidation,
		},
		{
			name:       "negative price",
			method:     http.MethodPost,
			path:       "/products",
			body:       `{"name":"Widget","price":-3}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   catalog.KindValidation,
		},
		{
			name:       "empty patch",
			method:     http.MethodPut,
			path:       "/products/000000000000000000000001",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   catalog.KindValidation,
		},
		{
			name:       "patch of nulls is empty",
			method:     http.MethodPut,
			path:       "/products/000000000000000000000001",
			body:       `{"name":null,"price":null}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   catalog.KindValidation,
		},
		{
			name:       "store down",
			method:     http.MethodGet,
			path:       "/products-cached",
			setup:      func(env *testEnv) { env.store.SetErr(errors.New("server selection timeout")) },
			wantStatus: http.StatusInternalServerError,
			wantKind:   catalog.KindStoreUnavailable,
		},
		{
			name:       "clear cache with cache down",
			method:     http.MethodPost,
			path:       "/clear-cache",
			setup:      func(env *testEnv) { env.cache.SetErrors(nil, nil, errors.New("connection refused")) },
			wantStatus: http.StatusInternalServerError,
			wantKind:   catalog.KindCacheUnavailable,
		},
		{
			name:       "unknown route",
			method:     http.MethodGet,
			path:       "/nope",
			wantStatus: http.StatusNotFound,
			wantKind:   catalog.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			if tt.setup != nil {
				tt.setup(env)
			}

			rec := env.do(t, tt.method, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body = %s)", rec.Code, tt.wantStatus, rec.Body)
			}
			body := decode[errorResponse](t, rec)
			if body.Kind != string(tt.wantKind) {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
			if body.Error == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestStoreErrorDoesNotLeakCause(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.SetErr(errors.New("auth failed for user admin"))

	rec := env.do(t, http.MethodGet, "/products", "")
	if strings.Contains(rec.Body.String(), "admin") {
		t.Errorf("body leaks cause: %s", rec.Body)
	}
	if !strings.Contains(env.logs.String(), "admin") {
		t.Error("cause was not logged")
	}
}

func TestSearchRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	env.store.Seed(
		store.Product{Name: store.Ptr("Blue Widget")},
		store.Product{Name: store.Ptr("Gadget")},
	)

	rec := env.do(t, http.MethodGet, "/products/search/WIDGET", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	results := decode[[]store.Product](t, rec)
	if len(results) != 1 || *results[0].Name != "Blue Widget" {
		t.Errorf("results = %+v", results)
	}

	rec = env.do(t, http.MethodGet, "/products/search/nothing", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %s, want []", rec.Body)
	}
}

func TestStatsRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["count"] != float64(0) || raw["avgPrice"] != nil {
		t.Errorf("empty stats = %s", rec.Body)
	}

	env.store.Seed(
		store.Product{Price: store.Ptr(10.0), Category: store.Ptr("Tools")},
		store.Product{Price: store.Ptr(20.0), Category: store.Ptr("Tools")},
	)
	rec = env.do(t, http.MethodGet, "/stats", "")
	stats := decode[store.Stats](t, rec)
	if stats.Count != 2 || *stats.AvgPrice != 15 || stats.Categories["Tools"] != 2 {
		t.Errorf("stats = %s", rec.Body)
	}
}

func TestPopulateAndClearCache(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/products-cached", "")

	rec := env.do(t, http.MethodPost, "/populate", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("populate status = %d, body = %s", rec.Code, rec.Body)
	}
	if got := decode[populatedResponse](t, rec).InsertedCount; got != 20 {
		t.Errorf("insertedCount = %d, want 20", got)
	}
	if env.cache.Has(catalog.ListingKey) {
		t.Error("listing still cached after populate")
	}

	env.do(t, http.MethodGet, "/products-cached", "")
	rec = env.do(t, http.MethodPost, "/clear-cache", "")
	if rec.Code != http.StatusOK || decode[messageResponse](t, rec).Message != "cache cleared" {
		t.Fatalf("clear status = %d, body = %s", rec.Code, rec.Body)
	}
	if env.cache.Has(catalog.ListingKey) {
		t.Error("listing still cached after clear")
	}

	rec = env.do(t, http.MethodPost, "/clear-cache", "")
	if rec.Code != http.StatusOK {
		t.Errorf("second clear status = %d", rec.Code)
	}
}

func TestMutationSucceedsWhenInvalidationFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.cache.SetErrors(nil, nil, errors.New("connection refused"))

	rec := env.do(t, http.MethodPost, "/products", `{"name":"Widget"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(env.logs.String(), "Listing invalidation failed") {
		t.Error("invalidation failure was not logged")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		status     CacheStatus
		setup      func(env *testEnv)
		wantCode   int
		wantStatus string
		wantMongo  string
		wantRedis  string
	}{
		{
			name:       "all up",
			status:     fakeStatus{connected: true},
			wantCode:   http.StatusOK,
			wantStatus: statusOK,
			wantMongo:  probeConnected,
			wantRedis:  probeConnected,
		},
		{
			name:       "supervisor reports cache down",
			status:     fakeStatus{connected: false},
			wantCode:   http.StatusOK,
			wantStatus: statusDegraded,
			wantMongo:  probeConnected,
			wantRedis:  probeDisconnected,
		},
		{
			name:       "cache ping fails",
			setup:      func(env *testEnv) { env.cache.PingErr = errors.New("refused") },
			wantCode:   http.StatusOK,
			wantStatus: statusDegraded,
			wantMongo:  probeConnected,
			wantRedis:  probeDisconnected,
		},
		{
			name:       "store down",
			status:     fakeStatus{connected: true},
			setup:      func(env *testEnv) { env.store.PingErr = errors.New("no reachable servers") },
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: statusUnhealthy,
			wantMongo:  probeDisconnected,
			wantRedis:  probeConnected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.status)
			if tt.setup != nil {
				tt.setup(env)
			}

			rec := env.do(t, http.MethodGet, "/health", "")
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			body := decode[healthResponse](t, rec)
			if body.Status != tt.wantStatus || body.MongoDB != tt.wantMongo || body.Redis != tt.wantRedis {
				t.Errorf("body = %+v", body)
			}
			if body.UptimeSeconds < 0 {
				t.Errorf("uptime = %v", body.UptimeSeconds)
			}
		})
	}
}

func TestHealth_LogsWithRequestID(t *testing.T) {
	env := newTestEnv(t, fakeStatus{connected: true})
	env.store.PingErr = errors.New("no reachable servers")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "health-1")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}

	var found bool
	for _, line := range strings.Split(env.logs.String(), "\n") {
		if !strings.Contains(line, "Health check failing") {
			continue
		}
		found = true
		if !strings.Contains(line, `"request_id":"health-1"`) {
			t.Errorf("health warning lacks request id: %s", line)
		}
	}
	if !found {
		t.Errorf("no health warning logged: %s", env.logs)
	}
}

func TestRequestID(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/products", "")
	generated := rec.Header().Get(RequestIDHeader)
	if len(generated) != 36 {
		t.Errorf("generated request id = %q, want uuid", generated)
	}

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want abc-123", got)
	}
	if !strings.Contains(env.logs.String(), `"request_id":"abc-123"`) {
		t.Errorf("access log lacks request id: %s", env.logs)
	}
}

func TestRequestIDFromContext(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "req-1" {
		t.Errorf("RequestIDFromContext() = %q, want req-1", seen)
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/products", "")

	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `catalog_http_requests_total{code="200",method="get",route="/products"}`) {
		t.Error("metrics output lacks instrumented /products route")
	}
}
