package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pcos-backend/internal/inference"
	"pcos-backend/internal/pairing"
	"pcos-backend/internal/sessions"
	"pcos-backend/internal/shared/server/middleware"
)

type handlerEnv struct {
	router    *gin.Engine
	svc       *Service
	pairing   *pairing.Service
	sessionID string
}

func setupHandler(t *testing.T) handlerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _, pairingSvc, _, store := setupService(t, &staticInference{
		pred: inference.Prediction{PCOSPrediction: 1, ConfidenceScore: 0.9},
	})

	sessionSvc := sessions.NewService(store, 5*time.Minute)
	sess, err := sessionSvc.Create(context.Background(), "patient@example.com", "")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	router := gin.New()
	protected := router.Group("/api/v1")
	protected.Use(middleware.SessionAuth(sessionSvc))
	NewHandler(svc).RegisterRoutes(protected)

	return handlerEnv{router: router, svc: svc, pairing: pairingSvc, sessionID: sess.ID}
}

func (e handlerEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.SessionHeader, e.sessionID)
	resp := httptest.NewRecorder()
	e.router.ServeHTTP(resp, req)
	return resp
}

func TestSubmitEndpoint(t *testing.T) {
	env := setupHandler(t)
	code := stageReading(t, env.pairing, "patient@example.com")

	resp := env.do(t, http.MethodPost, "/api/v1/analyses/submit", `{"code":"`+code+`"}`)
	if resp.Code != http.StatusAccepted {
		t.Fatalf("status = %d body=%s", resp.Code, resp.Body.String())
	}

	var out struct {
		AnalysisID string `json:"analysisId"`
		Status     string `json:"status"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AnalysisID == "" || out.Status != StatusPending {
		t.Fatalf("out = %+v", out)
	}

	// The record is readable by its owner.
	get := env.do(t, http.MethodGet, "/api/v1/analyses/"+out.AnalysisID, "")
	if get.Code != http.StatusOK {
		t.Fatalf("get status = %d", get.Code)
	}
}

func TestSubmitEndpointBadCode(t *testing.T) {
	env := setupHandler(t)

	resp := env.do(t, http.MethodPost, "/api/v1/analyses/submit", `{"code":"000000"}`)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Code)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/analyses/submit", `{}`)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Code)
	}
}

func TestSubmitEndpointRequiresSession(t *testing.T) {
	env := setupHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses/submit", strings.NewReader(`{"code":"123456"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Code)
	}
}

func TestListEndpoint(t *testing.T) {
	env := setupHandler(t)
	code := stageReading(t, env.pairing, "patient@example.com")
	if _, err := env.svc.FinalizeSubmission(context.Background(), "patient@example.com", code, "req-1"); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	resp := env.do(t, http.MethodGet, "/api/v1/analyses", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	var out struct {
		Analyses []Analysis `json:"analyses"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Analyses) != 1 {
		t.Fatalf("analyses = %+v", out.Analyses)
	}
}
