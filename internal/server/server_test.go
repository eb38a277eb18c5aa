package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgsearch/internal/domain"
	"imgsearch/internal/service"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeService struct {
	err     error
	gotRaw  []byte
	gotURL  string
	gotK    int
	results []domain.Result
}

func (f *fakeService) SearchImage(_ context.Context, raw []byte, k int) ([]domain.Result, error) {
	f.gotRaw, f.gotK = raw, k
	return f.results, f.err
}

func (f *fakeService) SearchURL(_ context.Context, u string, k int) ([]domain.Result, error) {
	f.gotURL, f.gotK = u, k
	return f.results, f.err
}

func (f *fakeService) Status() service.Status {
	return service.Status{Entries: 3, Dimension: 1792, Embedder: "fake", ModelOK: true}
}

func multipartRequest(t *testing.T, field string, data []byte, extra map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "query.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/search", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func formRequest(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(svc SearchService, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	New(":0", "", svc, nil, quiet).Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleSearch_File(t *testing.T) {
	svc := &fakeService{results: []domain.Result{{ID: 1, Name: "Red Shoe", ImageSrc: "a.jpg", Score: 0.9}}}
	rec := serve(svc, multipartRequest(t, "file", []byte("jpeg-bytes"), map[string]string{"k": "5"}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("jpeg-bytes"), svc.gotRaw)
	assert.Equal(t, 5, svc.gotK)

	var body struct {
		Results []domain.Result `json:"results"`
		Total   int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)
	assert.Equal(t, svc.results, body.Results)
}

func TestHandleSearch_URL(t *testing.T) {
	svc := &fakeService{results: []domain.Result{}}
	rec := serve(svc, formRequest(url.Values{"url": {"  https://x.example/q.png "}}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://x.example/q.png", svc.gotURL)
	assert.Equal(t, 0, svc.gotK)
	assert.JSONEq(t, `{"results": [], "total": 0}`, rec.Body.String())
}

func TestHandleSearch_UnencodableResult(t *testing.T) {
	svc := &fakeService{results: []domain.Result{{ID: 1, Name: "Lamp", ImageSrc: "l.jpg", Price: math.Inf(1), Score: 0.5}}}
	rec := serve(svc, formRequest(url.Values{"url": {"https://x.example/q.png"}}))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal", body.Kind)
	assert.NotEmpty(t, body.Error)
}

func TestHandleSearch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		req      func(t *testing.T) *http.Request
		wantCode int
		wantKind string
	}{
		{
			name:     "no input",
			req:      func(t *testing.T) *http.Request { return formRequest(url.Values{}) },
			wantCode: http.StatusBadRequest, wantKind: "bad_request",
		},
		{
			name:     "bad k",
			req:      func(t *testing.T) *http.Request { return formRequest(url.Values{"url": {"http://a/b"}, "k": {"-1"}}) },
			wantCode: http.StatusBadRequest, wantKind: "bad_request",
		},
		{
			name: "wrong method",
			req: func(t *testing.T) *http.Request {
				return httptest.NewRequest(http.MethodGet, "/api/search", nil)
			},
			wantCode: http.StatusMethodNotAllowed, wantKind: "bad_request",
		},
		{
			name:     "unsupported format",
			err:      fmt.Errorf("decode: %w", domain.ErrUnsupportedFormat),
			req:      func(t *testing.T) *http.Request { return multipartRequest(t, "file", []byte("x"), nil) },
			wantCode: http.StatusBadRequest, wantKind: "unsupported_format",
		},
		{
			name:     "fetch failed",
			err:      domain.ErrFetchFailed,
			req:      func(t *testing.T) *http.Request { return formRequest(url.Values{"url": {"http://a/b"}}) },
			wantCode: http.StatusBadRequest, wantKind: "fetch_failed",
		},
		{
			name:     "model unavailable",
			err:      domain.ErrModelUnavailable,
			req:      func(t *testing.T) *http.Request { return formRequest(url.Values{"url": {"http://a/b"}}) },
			wantCode: http.StatusServiceUnavailable, wantKind: "model_unavailable",
		},
		{
			name:     "dimension mismatch",
			err:      domain.ErrDimensionMismatch,
			req:      func(t *testing.T) *http.Request { return formRequest(url.Values{"url": {"http://a/b"}}) },
			wantCode: http.StatusInternalServerError, wantKind: "dimension_mismatch",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(&fakeService{err: tt.err}, tt.req(t))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestHandleStatus(t *testing.T) {
	rec := serve(&fakeService{}, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entries": 3, "dimension": 1792, "embedder": "fake", "model_loaded": true}`, rec.Body.String())
}

func TestServer_MetricsAndStatic(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>search</h1>"), 0o644))

	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "imgsearch_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	h := New(":0", dir, &fakeService{}, reg, quiet).Handler

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "imgsearch_test_total 1")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>search</h1>")
}
