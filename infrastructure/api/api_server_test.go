package api_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meridiansearch/meridian"
	"github.com/meridiansearch/meridian/infrastructure/api"
	"github.com/meridiansearch/meridian/internal/config"
)

// newTestClient builds a client over an in-memory SQLite database with
// the deterministic hash embedder, so no model files or network are
// needed.
func newTestClient(t *testing.T, opts ...meridian.Option) *meridian.Client {
	t.Helper()

	cfg := config.EnvConfig{
		DatabaseURL:        "sqlite:///:memory:",
		DataDir:            t.TempDir(),
		LogLevel:           "ERROR",
		LogFormat:          "json",
		EmbeddingModel:     "hash",
		EmbeddingDimension: 64,
		VectorWeight:       0.7,
		LexicalWeight:      0.3,
		LLMModel:           "gpt-4o-mini",
		WOTProvider:        "local",
		WOTWeight:          1.0,
	}.Normalize().ToAppConfig()

	opts = append([]meridian.Option{meridian.WithConfig(cfg)}, opts...)
	client, err := meridian.New(opts...)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestAPIServer_ReadEndpointsOpen_WriteEndpointsProtected(t *testing.T) {
	client := newTestClient(t, meridian.WithAPIKeys("test-secret-key"))
	handler := api.NewAPIServer(client).Handler()

	t.Run("GET /health returns 200 without API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	t.Run("GET /api/search returns 200 without API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/search?q=anything", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	t.Run("GET /api/documents returns 200 without API key", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusOK, w.Body.String())
		}
	})

	t.Run("POST /api/documents without key returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"title":"t","content":"c","document_type":"article"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusUnauthorized, w.Body.String())
		}
	})

	t.Run("POST /api/documents with valid key returns 201", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"title":"t","content":"hello world","document_type":"article"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-KEY", "test-secret-key")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
		}
	})

	t.Run("DELETE /api/connectors/nonexistent without key returns 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/connectors/nonexistent", nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusUnauthorized, w.Body.String())
		}
	})

	t.Run("POST /api/frpei/retrieve without key is open", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/frpei/retrieve", strings.NewReader(`{"query":"test"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Code == http.StatusUnauthorized {
			t.Errorf("federated retrieve should be open but got 401; body: %s", w.Body.String())
		}
	})
}

func TestAPIServer_NoKeysConfigured_WritesOpen(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client).Handler()

	req := httptest.NewRequest(http.MethodPost, "/api/documents", strings.NewReader(`{"title":"t","content":"open writes","document_type":"article"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}
}

func TestAPIServer_ErrorEnvelope(t *testing.T) {
	client := newTestClient(t)
	handler := api.NewAPIServer(client).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/documents/does-not-exist", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusNotFound, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":"not_found"`) {
		t.Errorf("body missing not_found code: %s", body)
	}
}
