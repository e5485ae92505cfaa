// Package generation calls the external answer-generation service.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yungbote/chatrelay-backend/internal/platform/ctxutil"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type FileContent struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type Request struct {
	Message             string        `json:"message"`
	ConversationHistory []Turn        `json:"conversation_history"`
	Files               []FileContent `json:"files,omitempty"`
	CallbackURL         string        `json:"callback_url"`
}

// Response is the acceptance reply. Everything but the request id is advisory.
type Response struct {
	RequestID   string   `json:"request_id"`
	Status      string   `json:"status"`
	Name        string   `json:"name"`
	Cluster     []string `json:"cluster"`
	Suggestions []string `json:"suggestions"`
}

type Client interface {
	Submit(ctx context.Context, req Request) (*Response, error)
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type client struct {
	log        *logger.Logger
	url        string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, fmt.Errorf("missing GENERATION_SERVICE_URL")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &client{
		log:     log.With("client", "GenerationClient"),
		url:     url,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("generation http %d: %s", e.StatusCode, e.Body)
}

// Submit posts one generation request. Any status other than 200 and any body that
// is not a JSON object is a failure.
func (c *client) Submit(ctx context.Context, in Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if in.ConversationHistory == nil {
		in.ConversationHistory = []Turn{}
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(in); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	if td := ctxutil.GetTraceData(ctx); td != nil && td.RequestID != "" {
		req.Header.Set("X-Request-Id", td.RequestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation request: %w", err)
	}
	raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, fmt.Errorf("generation read: %w", readErr)
	}
	if resp.StatusCode != http.StatusOK {
		body := string(raw)
		if len(body) > 512 {
			body = body[:512]
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}
	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("generation decode: %w", err)
	}
	c.log.Debug("generation request accepted", "request_id", out.RequestID, "status", out.Status)
	return &out, nil
}
