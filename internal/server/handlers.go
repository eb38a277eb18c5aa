package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"imgsearch/internal/domain"
	"imgsearch/internal/service"
)

// maxUploadBytes bounds a multipart query upload.
const maxUploadBytes = 32 << 20

// SearchService is the query side used by the HTTP handlers.
type SearchService interface {
	SearchImage(ctx context.Context, raw []byte, k int) ([]domain.Result, error)
	SearchURL(ctx context.Context, url string, k int) ([]domain.Result, error)
	Status() service.Status
}

type Handlers struct {
	svc    SearchService
	logger *slog.Logger
}

func NewHandlers(svc SearchService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{svc: svc, logger: logger}
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HandleSearch accepts a multipart "file" upload or a form "url" field and an
// optional "k".
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Kind: "bad_request"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var (
		file []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form: " + err.Error(), Kind: "bad_request"})
			return
		}
		if f, _, ferr := r.FormFile("file"); ferr == nil {
			file, err = io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read upload", Kind: "bad_request"})
				return
			}
		}
	} else if err := r.ParseForm(); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid form: " + err.Error(), Kind: "bad_request"})
		return
	}

	k := 0
	if ks := r.FormValue("k"); ks != "" {
		n, err := strconv.Atoi(ks)
		if err != nil || n <= 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "k must be a positive integer", Kind: "bad_request"})
			return
		}
		k = n
	}
	url := strings.TrimSpace(r.FormValue("url"))

	var results []domain.Result
	switch {
	case len(file) > 0:
		results, err = h.svc.SearchImage(r.Context(), file, k)
	case url != "":
		results, err = h.svc.SearchURL(r.Context(), url, k)
	default:
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no file or URL provided", Kind: "bad_request"})
		return
	}
	if err != nil {
		status, msg := statusFor(err)
		if status >= 500 {
			h.logger.Error("search error", "error", err)
		}
		h.writeJSON(w, status, errorResponse{Error: msg, Kind: domain.ErrorKind(err)})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   len(results),
	})
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.svc.Status())
}

// statusFor maps a search failure to an HTTP status and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrUnsupportedFormat), errors.Is(err, domain.ErrFetchFailed):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrModelUnavailable):
		return http.StatusServiceUnavailable, "embedding model unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "request cancelled"
	default:
		return http.StatusInternalServerError, "search failed"
	}
}

// writeJSON encodes v before committing status so an unencodable value
// becomes a 500 instead of a 200 with a truncated body.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("encode response", "error", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorResponse{Error: "could not encode response", Kind: "internal"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		h.logger.Debug("write response", "error", err)
	}
}
