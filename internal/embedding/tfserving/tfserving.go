package tfserving

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"imgsearch/internal/domain"
	"imgsearch/internal/embedding"
)

// Client calls a TensorFlow Serving REST endpoint hosting an image feature
// extractor (for example MobileNetV2 feature_vector) and implements
// domain.Embedder.
type Client struct {
	baseURL    string
	model      string
	client     *http.Client
	maxRetries int
	dimension  atomic.Int64
}

// Config configures the TensorFlow Serving client.
type Config struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// NewClient creates a client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("tfserving: base url is required")
	}
	if cfg.Model == "" {
		cfg.Model = "mobilenet_v2_140_224"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		client:     &http.Client{Timeout: t},
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "tfserving:" + c.model }

// Dimension returns the vector length seen on the first successful call, or 0.
func (c *Client) Dimension() int { return int(c.dimension.Load()) }

// Ready checks that the model has at least one AVAILABLE version.
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/models/%s", c.baseURL, c.model), nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: model status %s", domain.ErrModelUnavailable, resp.Status)
	}
	var status struct {
		ModelVersionStatus []struct {
			Version string `json:"version"`
			State   string `json:"state"`
		} `json:"model_version_status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return fmt.Errorf("%w: decode model status: %v", domain.ErrModelUnavailable, err)
	}
	for _, v := range status.ModelVersionStatus {
		if v.State == "AVAILABLE" {
			return nil
		}
	}
	return fmt.Errorf("%w: no AVAILABLE version of %s", domain.ErrModelUnavailable, c.model)
}

// Embed sends t as a single predict instance and returns the output vector.
func (c *Client) Embed(ctx context.Context, t domain.Tensor) ([]float32, error) {
	if err := embedding.CheckTensor(t); err != nil {
		return nil, err
	}
	data, err := json.Marshal(predictRequest{Instances: [][][][3]float32{toRows(t)}})
	if err != nil {
		return nil, fmt.Errorf("marshal predict request: %w", err)
	}
	url := fmt.Sprintf("%s/v1/models/%s:predict", c.baseURL, c.model)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, retryDelay(attempt-1)); err != nil {
				return nil, err
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
			continue
		}
		payload, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: predict failed: %s", domain.ErrModelUnavailable, resp.Status)
			if ra := resp.Header.Get("Retry-After"); ra != "" && attempt < c.maxRetries {
				if secs, err := strconv.Atoi(ra); err == nil {
					if err := sleep(ctx, time.Duration(secs)*time.Second); err != nil {
						return nil, err
					}
				}
			}
			continue
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: model %s not found", domain.ErrModelUnavailable, c.model)
		case resp.StatusCode >= 300:
			return nil, fmt.Errorf("tfserving predict failed: %s: %s", resp.Status, truncate(payload, 200))
		}
		if err != nil {
			lastErr = fmt.Errorf("read predict response: %w", err)
			continue
		}

		v, err := parsePrediction(payload)
		if err != nil {
			return nil, err
		}
		c.dimension.CompareAndSwap(0, int64(len(v)))
		return v, nil
	}
	return nil, lastErr
}

type predictRequest struct {
	Instances [][][][3]float32 `json:"instances"`
}

// toRows reshapes the flat NHWC data of a single image into rows of pixels.
func toRows(t domain.Tensor) [][][3]float32 {
	h, w := t.Shape[1], t.Shape[2]
	rows := make([][][3]float32, h)
	for y := 0; y < h; y++ {
		row := make([][3]float32, w)
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			row[x] = [3]float32{t.Data[i], t.Data[i+1], t.Data[i+2]}
		}
		rows[y] = row
	}
	return rows
}

// parsePrediction accepts both the single-output row format
// {"predictions": [[...]]} and the named-output format
// {"predictions": [{"name": [...]}]}.
func parsePrediction(payload []byte) ([]float32, error) {
	var out struct {
		Predictions []json.RawMessage `json:"predictions"`
		Error       string            `json:"error"`
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode predict response: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("tfserving: %s", out.Error)
	}
	if len(out.Predictions) == 0 {
		return nil, errors.New("tfserving: no predictions returned")
	}
	var vec []float32
	if err := json.Unmarshal(out.Predictions[0], &vec); err == nil && len(vec) > 0 {
		return vec, nil
	}
	var named map[string][]float32
	if err := json.Unmarshal(out.Predictions[0], &named); err == nil && len(named) == 1 {
		for _, v := range named {
			if len(v) > 0 {
				return v, nil
			}
		}
	}
	return nil, errors.New("tfserving: prediction is not a single vector")
}

func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := 200 * time.Millisecond
	// exponential backoff capped at 5s
	d := base << attempt
	if d > 5*time.Second {
		d = 5 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
