package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/util"
)

// ErrBadStatus is returned when the rendering proxy answers with a non-200
// HTTP status. Callers use it to tell a failed page from a transport error.
var ErrBadStatus = errors.New("rendering proxy returned non-200 status")

// Client talks to a FlareSolverr-compatible rendering proxy. The proxy fetches
// and renders pages inside a browser session and hands back resolved HTML.
type Client struct {
	url        string
	maxTimeout time.Duration
	client     *http.Client
	limiter    *util.RateLimiter
	logger     *logger.Logger
}

// NewClient creates a rendering proxy client. maxTimeout is forwarded to the
// proxy as the per-request render budget.
func NewClient(proxyURL string, maxTimeout time.Duration) *Client {
	return &Client{
		url:        proxyURL,
		maxTimeout: maxTimeout,
		client: &http.Client{
			// Leave headroom over the proxy's own render budget.
			Timeout: maxTimeout + 30*time.Second,
		},
		logger: logger.Get().WithComponent("render_proxy"),
	}
}

// WithRateLimit paces render requests so page walks do not hammer the target
// site. Returns the client for chaining.
func (c *Client) WithRateLimit(interval time.Duration, burst int) *Client {
	c.limiter = util.NewRateLimiter(interval, burst)
	return c
}

type proxyRequest struct {
	Cmd        string `json:"cmd"`
	Session    string `json:"session,omitempty"`
	URL        string `json:"url,omitempty"`
	MaxTimeout int64  `json:"maxTimeout,omitempty"`
}

type proxyResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Session  string `json:"session"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

func (c *Client) post(ctx context.Context, body proxyRequest) (*proxyResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode proxy request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error().
			Str("cmd", body.Cmd).
			Int("status", resp.StatusCode).
			Msg("Rendering proxy rejected request")
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var parsed proxyResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode proxy response: %w", err)
	}
	return &parsed, nil
}

// CreateSession acquires a new browser session from the proxy.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	resp, err := c.post(ctx, proxyRequest{
		Cmd:        "sessions.create",
		MaxTimeout: c.maxTimeout.Milliseconds(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create proxy session: %w", err)
	}
	if resp.Session == "" {
		return "", fmt.Errorf("proxy did not return a session id (status %q, message %q)", resp.Status, resp.Message)
	}

	c.logger.Info().Str("session", resp.Session).Msg("Proxy session created")
	return resp.Session, nil
}

// DestroySession tears down a browser session.
func (c *Client) DestroySession(ctx context.Context, session string) error {
	_, err := c.post(ctx, proxyRequest{
		Cmd:     "sessions.destroy",
		Session: session,
	})
	if err != nil {
		return fmt.Errorf("failed to destroy proxy session: %w", err)
	}

	c.logger.Info().Str("session", session).Msg("Proxy session destroyed")
	return nil
}

// Render fetches pageURL through the given session and returns the resolved HTML.
func (c *Client) Render(ctx context.Context, session, pageURL string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	resp, err := c.post(ctx, proxyRequest{
		Cmd:     "request.get",
		Session: session,
		URL:     pageURL,
	})
	if err != nil {
		return "", err
	}
	return resp.Solution.Response, nil
}
