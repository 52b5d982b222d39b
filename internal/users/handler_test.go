package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/sessions"
	"pcos-backend/internal/shared/server/middleware"
	"pcos-backend/internal/shared/storage/kv"
)

func setupAuthRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kv.NewMemoryStore()
	t.Cleanup(store.Close)

	sessionSvc := sessions.NewService(store, 5*time.Minute)
	handler := NewHandler(NewService(NewMemoryRepo()), sessionSvc)

	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterPublicRoutes(api)
	protected := api.Group("")
	protected.Use(middleware.SessionAuth(sessionSvc))
	handler.RegisterRoutes(protected)
	return router
}

func postJSON(t *testing.T, router *gin.Engine, path, body, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(middleware.SessionHeader, sessionID)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestSignUpSignInFlow(t *testing.T) {
	router := setupAuthRouter(t)

	resp := postJSON(t, router, "/api/v1/auth/signup",
		`{"name":"Asha","email":"asha@example.com","password":"correct-horse","role":"patient"}`, "")
	if resp.Code != http.StatusCreated {
		t.Fatalf("signup status = %d body=%s", resp.Code, resp.Body.String())
	}

	resp = postJSON(t, router, "/api/v1/auth/signin",
		`{"email":"asha@example.com","password":"correct-horse"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("signin status = %d body=%s", resp.Code, resp.Body.String())
	}

	var out struct {
		SessionID string `json:"sessionId"`
		ExpiresIn int    `json:"expiresIn"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.SessionID == "" || out.ExpiresIn != 300 {
		t.Fatalf("out = %+v", out)
	}

	// The session works against protected routes.
	resp = postJSON(t, router, "/api/v1/auth/heartbeat", "", out.SessionID)
	if resp.Code != http.StatusOK {
		t.Fatalf("heartbeat status = %d", resp.Code)
	}

	// Second device is locked out while the session lives.
	resp = postJSON(t, router, "/api/v1/auth/signin",
		`{"email":"asha@example.com","password":"correct-horse"}`, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("second signin status = %d, want 403", resp.Code)
	}

	// Signing out frees the slot.
	resp = postJSON(t, router, "/api/v1/auth/signout", "", out.SessionID)
	if resp.Code != http.StatusOK {
		t.Fatalf("signout status = %d", resp.Code)
	}
	resp = postJSON(t, router, "/api/v1/auth/signin",
		`{"email":"asha@example.com","password":"correct-horse"}`, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("signin after signout status = %d", resp.Code)
	}
}

func TestSignInReplaySameDevice(t *testing.T) {
	router := setupAuthRouter(t)

	postJSON(t, router, "/api/v1/auth/signup",
		`{"name":"Asha","email":"asha@example.com","password":"correct-horse","role":"patient"}`, "")
	resp := postJSON(t, router, "/api/v1/auth/signin",
		`{"email":"asha@example.com","password":"correct-horse"}`, "")

	var out struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &out)

	// Same device replays sign-in with its session header and gets the
	// existing session back instead of a conflict.
	resp = postJSON(t, router, "/api/v1/auth/signin",
		`{"email":"asha@example.com","password":"correct-horse"}`, out.SessionID)
	if resp.Code != http.StatusOK {
		t.Fatalf("replay status = %d", resp.Code)
	}
	var replay struct {
		SessionID string `json:"sessionId"`
		Restored  bool   `json:"restored"`
	}
	_ = json.Unmarshal(resp.Body.Bytes(), &replay)
	if replay.SessionID != out.SessionID || !replay.Restored {
		t.Fatalf("replay = %+v", replay)
	}
}

func TestSignInBadCredentials(t *testing.T) {
	router := setupAuthRouter(t)

	postJSON(t, router, "/api/v1/auth/signup",
		`{"name":"Asha","email":"asha@example.com","password":"correct-horse","role":"patient"}`, "")

	resp := postJSON(t, router, "/api/v1/auth/signin",
		`{"email":"asha@example.com","password":"wrong"}`, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestSignUpDuplicateEmail(t *testing.T) {
	router := setupAuthRouter(t)

	body := `{"name":"Asha","email":"asha@example.com","password":"correct-horse","role":"patient"}`
	postJSON(t, router, "/api/v1/auth/signup", body, "")
	resp := postJSON(t, router, "/api/v1/auth/signup", body, "")
	if resp.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.Code)
	}
}
