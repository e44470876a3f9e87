// Package audiobookshelf implements a minimal client for the Audiobookshelf
// API, used to cross-check which audiobooks already exist on the media server.
package audiobookshelf

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/normalize"
)

const apiPath = "/api"

// Library represents a library on the server
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
}

// Book is one library item's metadata, flattened to the fields the
// availability check needs.
type Book struct {
	ID     string
	Title  string
	Author string
}

// Client is a client for the Audiobookshelf API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient creates a new Audiobookshelf client
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Get().WithComponent("audiobookshelf_client"),
	}
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	log := c.logger.With().Str("endpoint", endpoint).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiPath+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("Request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Msg("Unexpected status code")
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return body, nil
}

// GetLibraries fetches all libraries on the server.
func (c *Client) GetLibraries(ctx context.Context) ([]Library, error) {
	body, err := c.get(ctx, "/libraries")
	if err != nil {
		return nil, err
	}

	var result struct {
		Libraries []Library `json:"libraries"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug().Int("count", len(result.Libraries)).Msg("Fetched libraries")
	return result.Libraries, nil
}

// libraryItem mirrors the item payload deeply enough to reach the metadata.
type libraryItem struct {
	ID    string `json:"id"`
	Media struct {
		Metadata struct {
			Title      string `json:"title"`
			AuthorName string `json:"authorName"`
		} `json:"metadata"`
	} `json:"media"`
}

// GetLibraryItems returns every item in a library. Depending on server
// version the items list arrives under "results" or "items".
func (c *Client) GetLibraryItems(ctx context.Context, libraryID string) ([]Book, error) {
	if libraryID == "" {
		return nil, fmt.Errorf("library ID is required")
	}

	body, err := c.get(ctx, fmt.Sprintf("/libraries/%s/items?minified=1", libraryID))
	if err != nil {
		return nil, err
	}

	var payload struct {
		Results []libraryItem `json:"results"`
		Items   []libraryItem `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	items := payload.Results
	if len(items) == 0 {
		items = payload.Items
	}

	books := make([]Book, 0, len(items))
	for _, item := range items {
		books = append(books, Book{
			ID:     item.ID,
			Title:  item.Media.Metadata.Title,
			Author: item.Media.Metadata.AuthorName,
		})
	}

	c.logger.Debug().
		Str("library_id", libraryID).
		Int("count", len(books)).
		Msg("Fetched library items")
	return books, nil
}

// TitleSet loads every book title across all book-type libraries and returns
// them as a normalized lookup set.
func (c *Client) TitleSet(ctx context.Context) (map[string]struct{}, error) {
	libraries, err := c.GetLibraries(ctx)
	if err != nil {
		return nil, err
	}

	titles := make(map[string]struct{})
	for _, lib := range libraries {
		books, err := c.GetLibraryItems(ctx, lib.ID)
		if err != nil {
			c.logger.Warn().Err(err).Str("library", lib.Name).Msg("Skipping unreadable library")
			continue
		}
		for _, book := range books {
			if key := normalize.String(book.Title); key != "" {
				titles[key] = struct{}{}
			}
		}
	}
	return titles, nil
}
