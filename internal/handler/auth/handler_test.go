package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zhouzirui/haven/backend/internal/config"
	"github.com/zhouzirui/haven/backend/internal/middleware"
	"github.com/zhouzirui/haven/backend/internal/model/companion"
	authservice "github.com/zhouzirui/haven/backend/internal/service/auth"
	"github.com/zhouzirui/haven/backend/internal/store"
	"github.com/zhouzirui/haven/backend/internal/testutil"
)

func setupRouter(t *testing.T) (*chi.Mux, *authservice.Service) {
	t.Helper()
	svc := authservice.NewService(
		store.NewUserRepository(testutil.NewDB(t)),
		companion.DefaultCatalog(),
		config.AuthConfig{JWTSecret: "0123456789abcdef0123", Issuer: "haven", TokenTTL: time.Hour},
		zap.NewNop(),
	)
	h := New(svc, zap.NewNop())

	r := chi.NewRouter()
	h.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(svc, nil, zap.NewNop()))
		h.RegisterRoutes(r)
	})
	return r, svc
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestRegisterLoginAndMe(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@example.com", "password": "correct horse"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(r, http.MethodPost, "/auth/register", "", map[string]string{"email": "ANA@example.com", "password": "another one"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, "/auth/register", "", map[string]string{"email": "nobody", "password": "correct horse"})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad email, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong password"})
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.Code)
	}

	resp = do(r, http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "correct horse"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var session authservice.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token")
	}

	resp = do(r, http.MethodGet, "/auth/me", session.Token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d", resp.Code)
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte(`"email":"ana@example.com"`)) {
		t.Fatalf("unexpected /auth/me body: %s", resp.Body.String())
	}

	resp = do(r, http.MethodGet, "/auth/me", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	r, _ := setupRouter(t)

	resp := do(r, http.MethodPost, "/auth/register", "", map[string]string{"email": "li@example.com", "password": "correct horse"})
	var session authservice.Session
	if err := json.Unmarshal(resp.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}

	resp = do(r, http.MethodGet, "/settings", session.Token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}

	cases := []map[string]any{
		{"theme": "neon"},
		{"reminderTime": "25:00", "dailyReminder": true},
		{"companionId": "stranger"},
		{"unknownField": 1},
	}
	for _, body := range cases {
		resp = do(r, http.MethodPut, "/settings", session.Token, body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d", body, resp.Code)
		}
	}

	resp = do(r, http.MethodPut, "/settings", session.Token, map[string]any{
		"theme":                "dark",
		"companionId":          "cbt-coach",
		"voiceAnalysisEnabled": false,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var settings struct {
		Theme                string `json:"theme"`
		CompanionID          string `json:"companionId"`
		VoiceAnalysisEnabled bool   `json:"voiceAnalysisEnabled"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.Theme != "dark" || settings.CompanionID != "cbt-coach" || settings.VoiceAnalysisEnabled {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}
