package transcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/sony/gobreaker"
)

// Video is the backend's representation of a transcoding job.
type Video struct {
	UID           string            `json:"uid"`
	ReadyToStream bool              `json:"readyToStream"`
	Thumbnail     string            `json:"thumbnail"`
	Status        VideoStatus       `json:"status"`
	Playback      VideoPlayback     `json:"playback"`
	Meta          map[string]string `json:"meta,omitempty"`
}

type VideoStatus struct {
	State         string `json:"state"`
	ErrReasonCode string `json:"errReasonCode,omitempty"`
	ErrReasonText string `json:"errReasonText,omitempty"`
}

type VideoPlayback struct {
	HLS  string `json:"hls"`
	DASH string `json:"dash"`
}

// DirectUpload is a registered job that accepts the video bytes at UploadURL.
type DirectUpload struct {
	UID       string `json:"uid"`
	UploadURL string `json:"uploadURL"`
}

type directUploadIn struct {
	MaxDurationSeconds int               `json:"maxDurationSeconds"`
	Meta               map[string]string `json:"meta,omitempty"`
}

type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// StreamClient talks to a Cloudflare Stream compatible transcoding API.
type StreamClient struct {
	baseURL    string
	accountID  string
	apiToken   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewStreamClient(cfg config.Transcoding) (*StreamClient, error) {
	if !cfg.Configured() {
		return nil, apperr.New(apperr.TranscodingUnconfigured, "account id and api token are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &StreamClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		accountID:  cfg.AccountID,
		apiToken:   cfg.APIToken,
		httpClient: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "transcoding",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// only backend outages trip the breaker
			IsSuccessful: func(err error) bool {
				return err == nil || !apperr.Is(err, apperr.UpstreamUnavailable)
			},
		}),
	}, nil
}

func (c *StreamClient) CreateDirectUpload(ctx context.Context, maxDurationSeconds int, meta map[string]string) (*DirectUpload, error) {
	body, err := json.Marshal(directUploadIn{MaxDurationSeconds: maxDurationSeconds, Meta: meta})
	if err != nil {
		return nil, err
	}

	var out DirectUpload
	if err := c.do(ctx, http.MethodPost, c.endpoint("direct_upload"), body, &out); err != nil {
		return nil, err
	}
	if out.UID == "" || out.UploadURL == "" {
		return nil, apperr.New(apperr.UpstreamUnavailable, "direct upload response missing uid or uploadURL")
	}
	return &out, nil
}

func (c *StreamClient) GetVideo(ctx context.Context, uid string) (*Video, error) {
	var out Video
	if err := c.do(ctx, http.MethodGet, c.endpoint(url.PathEscape(uid)), nil, &out); err != nil {
		return nil, err
	}
	if out.UID == "" {
		out.UID = uid
	}
	return &out, nil
}

func (c *StreamClient) endpoint(suffix string) string {
	return fmt.Sprintf("%s/accounts/%s/stream/%s", c.baseURL, url.PathEscape(c.accountID), suffix)
}

func (c *StreamClient) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, endpoint, body, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "transcoding circuit open")
	}
	return err
}

func (c *StreamClient) roundTrip(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "transcoding request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "failed to read transcoding response")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return apperr.New(apperr.NotFound, "transcoding job not found")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return apperr.New(apperr.UpstreamUnavailable, fmt.Sprintf("transcoding backend returned %d", resp.StatusCode))
	case resp.StatusCode >= http.StatusBadRequest:
		return apperr.New(apperr.Internal, fmt.Sprintf("transcoding backend rejected request with %d: %s", resp.StatusCode, summarize(raw)))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "malformed transcoding response")
	}
	if !env.Success && len(env.Errors) > 0 {
		return apperr.New(apperr.Internal, "transcoding backend error: "+env.Errors[0].Message)
	}
	if out == nil || len(env.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return apperr.Wrap(apperr.UpstreamUnavailable, err, "malformed transcoding result")
	}
	return nil
}

func summarize(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
