package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/parking-slot-reservation/internal/config"
	"github.com/iliyamo/parking-slot-reservation/internal/utils"
)

const testSecret = "test-secret"

func serve(e *echo.Echo, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoAmI(c echo.Context) error {
	id, ok := UserID(c)
	if !ok {
		return c.NoContent(http.StatusInternalServerError)
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
}

func TestJWTAuthAndRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoAmI, JWTAuth(testSecret))
	e.GET("/admin", whoAmI, JWTAuth(testSecret), RequireRole("ADMIN"))

	userTok, err := utils.NewAccessToken(testSecret, 7, "USER", 5)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	otherTok, err := utils.NewAccessToken("another-secret", 7, "ADMIN", 5)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	cases := []struct {
		name   string
		path   string
		auth   string
		status int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong secret", "/me", "Bearer " + otherTok.Token, http.StatusUnauthorized},
		{"garbage", "/me", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid user", "/me", "Bearer " + userTok.Token, http.StatusOK},
		{"user on admin route", "/admin", "Bearer " + userTok.Token, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := map[string]string{}
			if tc.auth != "" {
				h["Authorization"] = tc.auth
			}
			if rec := serve(e, http.MethodGet, tc.path, h); rec.Code != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestTokenBucketLocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Hour,
		TTL:            time.Hour,
		KeyStrategy:    "ip",
		Prefix:         "rl",
	}
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }, NewTokenBucket(cfg, nil))

	for i := 0; i < 2; i++ {
		if rec := serve(e, http.MethodGet, "/ping", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: expected 204, got %d", i, rec.Code)
		}
	}
	rec := serve(e, http.MethodGet, "/ping", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the bucket is empty, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	other := serve(e, http.MethodGet, "/ping", map[string]string{"X-Real-IP": "10.0.0.9"})
	if other.Code != http.StatusNoContent {
		t.Fatalf("a different client should have its own bucket, got %d", other.Code)
	}
}

func TestTokenBucketDisabled(t *testing.T) {
	e := echo.New()
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) },
		NewTokenBucket(config.RateLimitConfig{Enabled: false, Capacity: 1}, nil))
	for i := 0; i < 5; i++ {
		if rec := serve(e, http.MethodGet, "/ping", nil); rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
	}
}

type mapStore struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = append([]byte(nil), value...)
}

func TestResponseCacheHitAndBypass(t *testing.T) {
	cfg := config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{"GET": true},
		TTL:          time.Minute,
		KeyStrategy:  "route_query",
		Prefix:       "cache",
		MaxBodyBytes: 1 << 20,
	}
	store := &mapStore{m: map[string][]byte{}}
	calls := 0
	e := echo.New()
	e.GET("/v1/floors/:id/slots", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"floor": c.Param("id"), "calls": calls})
	}, NewResponseCache(cfg, store))

	first := serve(e, http.MethodGet, "/v1/floors/1/slots", nil)
	second := serve(e, http.MethodGet, "/v1/floors/1/slots", nil)
	if first.Header().Get("X-Cache") != "MISS" || second.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("expected MISS then HIT, got %q then %q", first.Header().Get("X-Cache"), second.Header().Get("X-Cache"))
	}
	if first.Body.String() != second.Body.String() {
		t.Fatalf("cached body differs: %q vs %q", first.Body.String(), second.Body.String())
	}
	if second.Header().Get("Content-Type") == "" {
		t.Fatalf("cached response lost its headers")
	}

	serve(e, http.MethodGet, "/v1/floors/2/slots", nil)
	if calls != 2 {
		t.Fatalf("different path must miss, handler calls = %d", calls)
	}

	serve(e, http.MethodGet, "/v1/floors/1/slots", map[string]string{"Authorization": "Bearer x"})
	if calls != 3 {
		t.Fatalf("authenticated request must bypass cache, handler calls = %d", calls)
	}
}

func TestPayloadRoundTripRejectsShortInput(t *testing.T) {
	if _, _, _, ok := decodePayload([]byte{0, 1}); ok {
		t.Fatal("short payload should not decode")
	}
	bs, err := encodePayload(http.StatusOK, http.Header{"X-A": {"b"}}, []byte("body"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	status, hdr, body, ok := decodePayload(bs)
	if !ok || status != http.StatusOK || hdr.Get("X-A") != "b" || string(body) != "body" {
		t.Fatalf("unexpected decode: %d %v %q %v", status, hdr, body, ok)
	}
}
