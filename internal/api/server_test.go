package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/labstack/echo/v5"

	"github.com/samcharles93/loom/internal/toy"
)

func newTestEcho() *echo.Echo {
	server := NewServer(ServerConfig{
		Engine: toy.New(7),
	})
	e := echo.New()
	server.Register(e)
	return e
}

func doJSON(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestGenerateGetDeleteLifecycle(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/generate",
		`{"prompt":"hello","max_tokens":8,"seed":1,"temperature":0}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status: got %d body=%s", rec.Code, rec.Body.String())
	}

	var created GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode generate response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generation id")
	}
	if created.Object != "generation" {
		t.Fatalf("unexpected object: %q", created.Object)
	}
	if created.StopReason == "" || created.StopReason == "none" {
		t.Fatalf("expected a concrete stop reason, got %q", created.StopReason)
	}
	if created.PromptTokens == 0 {
		t.Fatal("expected prompt token count")
	}

	getRec := doJSON(t, e, http.MethodGet, "/v1/generations/"+created.ID, "")
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status: got %d body=%s", getRec.Code, getRec.Body.String())
	}
	var fetched GenerateResponse
	if err := json.Unmarshal(getRec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode get response: %v", err)
	}
	if fetched.ID != created.ID || fetched.Text != created.Text {
		t.Fatalf("stored generation mismatch: %+v vs %+v", fetched, created)
	}

	delRec := doJSON(t, e, http.MethodDelete, "/v1/generations/"+created.ID, "")
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status: got %d body=%s", delRec.Code, delRec.Body.String())
	}
	if !strings.Contains(delRec.Body.String(), `"deleted":true`) {
		t.Fatalf("delete response missing deleted=true: %s", delRec.Body.String())
	}

	getDeleted := doJSON(t, e, http.MethodGet, "/v1/generations/"+created.ID, "")
	if getDeleted.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d body=%s", getDeleted.Code, getDeleted.Body.String())
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	run := func() GenerateResponse {
		rec := doJSON(t, e, http.MethodPost, "/v1/generate",
			`{"prompt":"abc","max_tokens":6,"seed":42}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("generate status: got %d body=%s", rec.Code, rec.Body.String())
		}
		var resp GenerateResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp
	}

	first := run()
	second := run()
	if first.Text != second.Text || first.StopReason != second.StopReason {
		t.Fatalf("same seed produced different generations: %+v vs %+v", first, second)
	}
}

func TestGenerateValidationErrors(t *testing.T) {
	t.Parallel()

	e := newTestEcho()

	rec := doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":""}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty prompt, got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "prompt is required") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/generate", `{"prompt":"x","max_tokens":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative max_tokens, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, e, http.MethodPost, "/v1/generate", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestGenerateStreaming(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodPost, "/v1/generate",
		`{"prompt":"hi","max_tokens":6,"seed":3,"stream":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("unexpected content type: %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "generation.done") {
		t.Fatalf("expected done event in stream, got: %s", body)
	}
	for _, line := range strings.Split(body, "\n") {
		if line != "" && !strings.HasPrefix(line, "data: ") {
			t.Fatalf("non-SSE line in stream: %q", line)
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status: got %d body=%s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("unexpected healthz body: %s", rec.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	e := newTestEcho()
	rec := doJSON(t, e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "loom_") {
		t.Fatalf("expected loom metrics in output, got: %.200s", rec.Body.String())
	}
}
