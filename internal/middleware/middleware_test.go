package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinic-api/internal/config"
	"github.com/clinicdesk/clinic-api/internal/utils"
)

func ok(c echo.Context) error { return c.String(http.StatusOK, "ok") }

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	var seen string
	err := RequestID()(func(c echo.Context) error {
		seen, _ = c.Get("request_id").(string)
		return ok(c)
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("request id %q not echoed, header %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()

	_ = RequestID()(ok)(e.NewContext(req, rec))
	if got := rec.Header().Get(RequestIDHeader); got != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", got)
	}
}

func TestLogger_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/appointments/slots", nil), rec)
	c.Set("request_id", "rid-1")
	c.Set("user_id", uint64(9))

	if err := Logger(zerolog.New(&buf))(ok)(c); err != nil {
		t.Fatal(err)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line is not JSON: %q", buf.String())
	}
	if line["request_id"] != "rid-1" || line["path"] != "/v1/appointments/slots" || line["status"] != float64(200) || line["user_id"] != float64(9) {
		t.Errorf("unexpected log line %v", line)
	}
}

func TestLogger_HandlesErrors(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	err := Logger(zerolog.New(&buf))(func(echo.Context) error {
		return echo.NewHTTPError(http.StatusBadGateway, "upstream")
	})(c)
	if err != nil {
		t.Fatalf("error should be handled, got %v", err)
	}
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"level":"error"`) {
		t.Errorf("expected error level: %s", buf.String())
	}
}

func TestRecovery_ReturnsInternalError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := Recovery(zerolog.New(&buf))(func(echo.Context) error { panic("boom") })(c)
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusInternalServerError {
		t.Fatalf("err = %v, want 500 HTTPError", err)
	}
	if !strings.Contains(buf.String(), "panic recovered") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestJWTAuth(t *testing.T) {
	tok, err := utils.NewAccessToken("secret", 7, "DOCTOR", 5)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok.Token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: tok.Token}) }, http.StatusOK},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized},
		{"tampered", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok.Token+"x") }, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			_ = JWTAuth("secret")(func(c echo.Context) error {
				id, ok := UserID(c)
				if !ok || id != 7 || Role(c) != "DOCTOR" {
					t.Errorf("identity not set: %d %v %q", id, ok, Role(c))
				}
				return c.NoContent(http.StatusOK)
			})(c)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	for role, want := range map[string]int{"ADMIN": 200, "DOCTOR": 200, "USER": 403, "": 403} {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		if role != "" {
			c.Set("role", role)
		}
		_ = RequireRole("ADMIN", "DOCTOR")(ok)(c)
		if rec.Code != want {
			t.Errorf("role %q: status = %d, want %d", role, rec.Code, want)
		}
	}
}

func TestUserIDAcceptsClaimTypes(t *testing.T) {
	e := echo.New()
	for _, v := range []any{uint64(3), float64(3), int64(3), 3, "3"} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.Set("user_id", v)
		if id, ok := UserID(c); !ok || id != 3 {
			t.Errorf("%T: got %d %v", v, id, ok)
		}
	}
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if _, ok := UserID(c); ok {
		t.Error("anonymous context reported a user")
	}
}

func TestTokenBucket_LocalFallback(t *testing.T) {
	cfg := config.RateLimitConfig{
		Enabled: true, KeyStrategy: "ip", Prefix: "rl",
		LocalRPS: 0.001, LocalBurst: 2, TTL: time.Minute,
	}
	e := echo.New()
	e.POST("/v1/appointments", ok, NewTokenBucket(cfg, nil, zerolog.Nop()))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && rec.Header().Get("Retry-After") == "" {
			t.Error("429 without Retry-After")
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 200 429]", codes)
	}

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client status = %d", rec.Code)
	}
}

func TestTokenBucket_Disabled(t *testing.T) {
	e := echo.New()
	e.GET("/", ok, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, zerolog.Nop()))
	for i := 0; i < 20; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d limited", i)
		}
	}
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", nil)
	req.RemoteAddr = "10.0.0.1:1"
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/appointments")
	c.Set("user_id", uint64(5))

	got := buildRateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_user_route"}, c)
	if got != "rl:ip:10.0.0.1:user:5:route:POST /v1/appointments" {
		t.Errorf("key = %q", got)
	}
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(200, hdr, []byte(`{"a":1}`))
	if err != nil {
		t.Fatal(err)
	}
	status, got, body, ok := decodePayload(bs)
	if !ok || status != 200 || got.Get("Content-Type") != "application/json" || string(body) != `{"a":1}` {
		t.Errorf("decoded %d %v %q %v", status, got, body, ok)
	}
	if _, _, _, ok := decodePayload([]byte{0, 0, 0, 200, 0, 0, 1, 0}); ok {
		t.Error("truncated payload accepted")
	}
}

func TestRedisCache_PassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	e.GET("/", ok, NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
		t.Errorf("status %d X-Cache %q", rec.Code, rec.Header().Get("X-Cache"))
	}
}
