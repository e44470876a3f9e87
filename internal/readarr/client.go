// Package readarr implements a small client for Readarr's v1 API, used as an
// alternative acquisition backend.
package readarr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/logger"
)

// Client is a client for the Readarr API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient creates a Readarr client. baseURL includes any configured URL
// base (e.g. http://host:8787/readarr).
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Get().WithComponent("readarr_client"),
	}
}

func (c *Client) do(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	log := c.logger.With().Str("method", method).Str("endpoint", endpoint).Logger()

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/api/v1"+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Error().Int("status", resp.StatusCode).Msg("Unexpected status code")
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return respBody, nil
}

// SystemStatus is the subset of /system/status used as a connectivity probe.
type SystemStatus struct {
	AppName string `json:"appName"`
	Version string `json:"version"`
}

// GetSystemStatus checks connectivity and returns the remote version.
func (c *Client) GetSystemStatus(ctx context.Context) (*SystemStatus, error) {
	body, err := c.do(ctx, http.MethodGet, "/system/status", nil)
	if err != nil {
		return nil, err
	}

	var status SystemStatus
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// Book is one lookup result or library entry.
type Book struct {
	Title         string `json:"title"`
	ForeignBookID string `json:"foreignBookId"`
	Monitored     bool   `json:"monitored"`
	Author        struct {
		AuthorName      string `json:"authorName"`
		ForeignAuthorID string `json:"foreignAuthorId"`
	} `json:"author"`
}

// Lookup searches Readarr's metadata source for books matching a term.
func (c *Client) Lookup(ctx context.Context, term string) ([]Book, error) {
	endpoint := "/book/lookup?term=" + url.QueryEscape(term)
	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var books []Book
	if err := json.Unmarshal(body, &books); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return books, nil
}

// AddBookRequest is the payload for adding a monitored book.
type AddBookRequest struct {
	ForeignBookID string `json:"foreignBookId"`
	Monitored     bool   `json:"monitored"`
	AddOptions    struct {
		SearchForNewBook bool `json:"searchForNewBook"`
	} `json:"addOptions"`
}

// AddBook adds a book by its foreign id, monitored, with an immediate search.
func (c *Client) AddBook(ctx context.Context, foreignBookID string) error {
	req := AddBookRequest{ForeignBookID: foreignBookID, Monitored: true}
	req.AddOptions.SearchForNewBook = true

	if _, err := c.do(ctx, http.MethodPost, "/book", req); err != nil {
		return err
	}
	c.logger.Info().Str("foreign_book_id", foreignBookID).Msg("Book added")
	return nil
}
