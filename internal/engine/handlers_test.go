package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/meterly/antifraud/internal/scoring"
)

// ---------------------------------------------------------------------------
// Test router setup
// ---------------------------------------------------------------------------

func setupHandlerTestRouter(t *testing.T, opts ...fixtureOpt) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t, opts...)
	h := NewHandlers(f.engine)

	r := gin.New()
	v1 := r.Group("/v1")
	h.RegisterRoutes(v1)

	return r, f
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal request body: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// POST /v1/signups/validate
// ---------------------------------------------------------------------------

func TestHandler_ValidateSignup_200(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := postJSON(t, router, "/v1/signups/validate", cleanRequest())
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res ValidateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !res.Allowed || res.Decision != scoring.DecisionAllow {
		t.Errorf("Expected allow decision, got %+v", res)
	}
	if res.InitialCredits != CreditsFor(TrustVerified) {
		t.Errorf("Expected verified-tier credits, got %d", res.InitialCredits)
	}
}

func TestHandler_ValidateSignup_BadJSON(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/signups/validate", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "invalid_request" {
		t.Errorf("Expected invalid_request error, got %q", resp["error"])
	}
}

func TestHandler_ValidateSignup_InvalidEmail(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	body := cleanRequest()
	body.Email = "not-an-email"

	w := postJSON(t, router, "/v1/signups/validate", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["error"] != "validation_failed" {
		t.Errorf("Expected validation_failed error, got %q", resp["error"])
	}
}

func TestHandler_ValidateSignup_FallsBackToConnectionIP(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	body := cleanRequest()
	body.IP = ""
	raw, _ := json.Marshal(body)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/signups/validate", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "198.51.100.7")
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res ValidateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if res.Signals.Network.IP != "198.51.100.7" {
		t.Errorf("Expected IP from X-Forwarded-For, got %q", res.Signals.Network.IP)
	}
}

// ---------------------------------------------------------------------------
// POST /v1/signups/:accountId/finalize
// ---------------------------------------------------------------------------

func TestHandler_FinalizeSignup_200(t *testing.T) {
	router, f := setupHandlerTestRouter(t)

	req := cleanRequest()
	vr, err := f.engine.ValidateSignup(context.Background(), req)
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}

	w := postJSON(t, router, "/v1/signups/acct_42/finalize", FinalizeRequest{
		Request:        req,
		ValidateResult: *vr,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res FinalizeResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if res.TrustLevel != TrustVerified {
		t.Errorf("Expected verified tier, got %s", res.TrustLevel)
	}
	if res.Replayed {
		t.Error("First finalize should not be a replay")
	}

	if _, err := f.assessments.GetByAccount(context.Background(), "acct_42"); err != nil {
		t.Errorf("Expected assessment persisted: %v", err)
	}
}

func TestHandler_FinalizeSignup_Replay(t *testing.T) {
	router, f := setupHandlerTestRouter(t)

	req := cleanRequest()
	vr, err := f.engine.ValidateSignup(context.Background(), req)
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}
	body := FinalizeRequest{Request: req, ValidateResult: *vr}

	first := postJSON(t, router, "/v1/signups/acct_43/finalize", body)
	if first.Code != http.StatusOK {
		t.Fatalf("First finalize: expected 200, got %d", first.Code)
	}

	second := postJSON(t, router, "/v1/signups/acct_43/finalize", body)
	if second.Code != http.StatusOK {
		t.Fatalf("Second finalize: expected 200, got %d", second.Code)
	}

	var res FinalizeResult
	if err := json.Unmarshal(second.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !res.Replayed {
		t.Error("Second finalize should report a replay")
	}
}

func TestHandler_FinalizeSignup_MissingDecision(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := postJSON(t, router, "/v1/signups/acct_44/finalize", FinalizeRequest{
		Request: cleanRequest(),
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

// ---------------------------------------------------------------------------
// GET /v1/assessments/:accountId
// ---------------------------------------------------------------------------

func TestHandler_GetAssessment_404(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/assessments/acct_missing", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", w.Code)
	}
}

func TestHandler_GetAssessment_200(t *testing.T) {
	router, f := setupHandlerTestRouter(t)

	sreq := cleanRequest()
	vr, err := f.engine.ValidateSignup(context.Background(), sreq)
	if err != nil {
		t.Fatalf("ValidateSignup: %v", err)
	}
	if _, err := f.engine.FinalizeSignup(context.Background(), "acct_45", vr); err != nil {
		t.Fatalf("FinalizeSignup: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/assessments/acct_45", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var a Assessment
	if err := json.Unmarshal(w.Body.Bytes(), &a); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if a.AccountID != "acct_45" {
		t.Errorf("Expected account acct_45, got %q", a.AccountID)
	}
	if a.TrustLevel != TrustVerified {
		t.Errorf("Expected verified tier, got %s", a.TrustLevel)
	}
}

func TestHandler_RoutesRegistered(t *testing.T) {
	router, _ := setupHandlerTestRouter(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{"POST", "/v1/signups/validate"},
		{"POST", "/v1/signups/x/finalize"},
		{"GET", "/v1/assessments/x"},
	} {
		t.Run(fmt.Sprintf("%s %s", tc.method, tc.path), func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(tc.method, tc.path, bytes.NewBufferString("{}"))
			router.ServeHTTP(w, req)
			if w.Code == http.StatusNotFound && w.Body.String() == "404 page not found" {
				t.Errorf("Route %s %s not registered", tc.method, tc.path)
			}
		})
	}
}
