package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aescanero/promptlab/internal/application/experiments"
	eventsmem "github.com/aescanero/promptlab/pkg/adapters/events/memory"
	objectmem "github.com/aescanero/promptlab/pkg/adapters/objectstore/memory"
	storagemem "github.com/aescanero/promptlab/pkg/adapters/storage/memory"
	"github.com/aescanero/promptlab/pkg/domain"
	"github.com/aescanero/promptlab/pkg/ports"
)

type fakeClient struct {
	provider string
	result   *domain.CompletionResult
	err      error
}

func (c *fakeClient) Complete(ctx context.Context, req domain.CompletionRequest) (*domain.CompletionResult, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.result, nil
}

func (c *fakeClient) Provider() string { return c.provider }

type fakeRegistry struct {
	clients map[string]ports.LLMClient
}

func (r *fakeRegistry) Lookup(provider string) (ports.LLMClient, error) {
	client, ok := r.clients[provider]
	if !ok {
		return nil, errors.New("no client configured for LLM provider: " + provider)
	}
	return client, nil
}

func (r *fakeRegistry) Providers() []string {
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

type serverFixture struct {
	server  *Server
	service *experiments.Service
	objects *objectmem.Store
}

func newTestServer(t *testing.T, client *fakeClient, withObjects bool) *serverFixture {
	t.Helper()

	store := storagemem.NewStore()
	bus := eventsmem.NewBus()
	t.Cleanup(func() { bus.Close() })

	svc := experiments.NewService(
		&fakeRegistry{clients: map[string]ports.LLMClient{client.provider: client}},
		store,
		bus,
		ports.NopMetrics{},
		experiments.NewValidator([]string{client.provider}),
		zap.NewNop(),
		experiments.Defaults{Provider: client.provider, MaxTokens: 1024, Temperature: 0.7},
		time.Minute,
		time.Minute,
	)

	fixture := &serverFixture{service: svc}

	cfg := &Config{
		Port:    8080,
		Service: svc,
		Metrics: ports.NopMetrics{},
		Logger:  zap.NewNop(),
	}
	if withObjects {
		fixture.objects = objectmem.NewStore("test-bucket")
		cfg.Objects = fixture.objects
	}

	fixture.server = NewServer(cfg)
	return fixture
}

func defaultClient() *fakeClient {
	return &fakeClient{
		provider: domain.ProviderAnthropic,
		result: &domain.CompletionResult{
			Text:       "Hello there",
			Model:      "claude-sonnet-4-20250514",
			StopReason: "end_turn",
			Usage:      domain.Usage{InputTokens: 100, OutputTokens: 50, TotalTokens: 150},
			Latency:    20 * time.Millisecond,
		},
	}
}

func (f *serverFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.server.router.ServeHTTP(w, req)
	return w
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadAvatar(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), true)

	body, contentType := multipartBody(t, "avatar", "photo.jpg", []byte("fake image bytes"))
	req := httptest.NewRequest(http.MethodPost, "/users/u123/avatar", body)
	req.Header.Set("Content-Type", contentType)

	w := fixture.do(req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp UploadAvatarResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "avatar uploaded successfully", resp.Message)
	assert.Regexp(t, `^https://storage\.googleapis\.com/test-bucket/avatars/u123/\d+-photo\.jpg$`, resp.AvatarURL)

	assert.Equal(t, 1, fixture.objects.Len())
}

func TestUploadAvatarMissingFile(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), true)

	tests := []struct {
		name    string
		request func() *http.Request
	}{
		{
			name: "no multipart body",
			request: func() *http.Request {
				return httptest.NewRequest(http.MethodPost, "/users/u123/avatar", nil)
			},
		},
		{
			name: "wrong field name",
			request: func() *http.Request {
				body, contentType := multipartBody(t, "file", "photo.jpg", []byte("data"))
				req := httptest.NewRequest(http.MethodPost, "/users/u123/avatar", body)
				req.Header.Set("Content-Type", contentType)
				return req
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := fixture.do(tt.request())
			require.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "avatar file is required", resp["error"])
		})
	}
}

func TestUploadAvatarStorageNotConfigured(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	body, contentType := multipartBody(t, "avatar", "photo.jpg", []byte("data"))
	req := httptest.NewRequest(http.MethodPost, "/users/u123/avatar", body)
	req.Header.Set("Content-Type", contentType)

	w := fixture.do(req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "not configured")
}

func TestRunExperiment(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	payload := []byte(`{"prompt": "Say hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/experiments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := fixture.do(req)
	require.Equal(t, http.StatusCreated, w.Code)

	var exp domain.Experiment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &exp))
	assert.NotEmpty(t, exp.ID)
	assert.Equal(t, "Hello there", exp.Response)
	assert.Equal(t, int64(150), exp.TotalTokens)
	assert.Positive(t, exp.CostUSD)
}

func TestRunExperimentValidationError(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	payload := []byte(`{"prompt": "   "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/experiments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := fixture.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "prompt is required")
}

func TestRunExperimentProviderError(t *testing.T) {
	client := defaultClient()
	client.err = errors.New("anthropic completion failed: 529 overloaded")
	fixture := newTestServer(t, client, false)

	payload := []byte(`{"prompt": "Say hello"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/experiments", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := fixture.do(req)
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "EXPERIMENT_FAILED", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "529 overloaded")
}

func TestGetExperimentNotFound(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/experiments/missing", nil)
	w := fixture.do(req)
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestExperimentLifecycle(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	exp, err := fixture.service.Run(context.Background(), domain.CompletionRequest{Prompt: "Say hello"})
	require.NoError(t, err)

	w := fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/experiments", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Experiments []*domain.Experiment `json:"experiments"`
		Total       int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)

	w = fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/experiments/"+exp.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/experiments/"+exp.ID+"/report", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "Hello there")

	w = fixture.do(httptest.NewRequest(http.MethodDelete, "/api/v1/experiments/"+exp.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/experiments/"+exp.ID, nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListExperimentsInvalidLimit(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	w := fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/experiments?limit=abc", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitBatch(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	payload := []byte(`{
		"prompt": "Compare me",
		"targets": [{"provider": "anthropic", "model": "claude-sonnet-4-20250514"}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := fixture.do(req)
	require.Equal(t, http.StatusAccepted, w.Code)

	var batch domain.Batch
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &batch))
	assert.NotEmpty(t, batch.ID)
	assert.Equal(t, domain.BatchStatusPending, batch.Status)
	require.Len(t, batch.Results, 1)

	w = fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/batches/"+batch.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestSubmitBatchValidationError(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	payload := []byte(`{"prompt": "Compare me", "targets": []}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/batches", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := fixture.do(req)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "INVALID_REQUEST", resp.Error.Code)
}

func TestListProviders(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	w := fixture.do(httptest.NewRequest(http.MethodGet, "/api/v1/providers", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Providers []experiments.ProviderInfo `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Providers, 1)
	assert.Equal(t, domain.ProviderAnthropic, resp.Providers[0].Name)
	assert.Equal(t, domain.DefaultAnthropicModel, resp.Providers[0].DefaultModel)
}

func TestHealth(t *testing.T) {
	fixture := newTestServer(t, defaultClient(), false)

	w := fixture.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
