// Package lazylibrarian implements a client for LazyLibrarian's command-style
// HTTP API. The API answers either with the literal text "OK" or with a JSON
// body that is a list or a dict; Response keeps that distinction explicit at
// the client boundary so callers always see one canonical shape.
package lazylibrarian

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shelfgrab/shelfgrab/internal/catalog"
	"github.com/shelfgrab/shelfgrab/internal/logger"
)

// Client is a client for the LazyLibrarian API
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logger.Logger
}

// NewClient creates a LazyLibrarian client for the given base URL
// (scheme://host:port, without the /api suffix).
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger.Get().WithComponent("lazylibrarian_client"),
	}
}

// Response is the tagged union of the three body shapes the API produces.
// Exactly one of OK/List/Object is populated for a successful call.
type Response struct {
	// OK is true when the body was the literal "OK" acknowledgement
	OK bool
	// Message carries a non-JSON, non-"OK" body verbatim
	Message string
	// List is set when the body was a JSON array
	List json.RawMessage
	// Object is set when the body was a JSON object
	Object map[string]json.RawMessage
}

// Data normalizes the response to a canonical JSON list: the array itself,
// or the object's "data" field. Nil when neither is present.
func (r *Response) Data() json.RawMessage {
	if r.List != nil {
		return r.List
	}
	if r.Object != nil {
		if data, ok := r.Object["data"]; ok {
			return data
		}
	}
	return nil
}

func (c *Client) request(ctx context.Context, command string, params url.Values, wait bool) (*Response, error) {
	if params == nil {
		params = url.Values{}
	}
	params.Set("cmd", command)
	params.Set("apikey", c.apiKey)
	if wait {
		params.Set("wait", "1")
	}

	reqURL := fmt.Sprintf("%s/api?%s", c.baseURL, params.Encode())
	log := c.logger.With().Str("cmd", command).Logger()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

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

	text := strings.TrimSpace(string(body))
	if text == "OK" {
		return &Response{OK: true, Message: "OK"}, nil
	}

	switch {
	case strings.HasPrefix(text, "["):
		var list json.RawMessage
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			log.Warn().Err(err).Msg("Body looked like a JSON array but did not parse")
			return &Response{Message: text}, nil
		}
		return &Response{List: list}, nil
	case strings.HasPrefix(text, "{"):
		var obj map[string]json.RawMessage
		if err := json.Unmarshal([]byte(text), &obj); err != nil {
			log.Warn().Err(err).Msg("Body looked like a JSON object but did not parse")
			return &Response{Message: text}, nil
		}
		return &Response{Object: obj}, nil
	default:
		log.Debug().Str("body", text).Msg("Non-JSON response body")
		return &Response{Message: text}, nil
	}
}

// GetVersion returns the remote version payload, used as a connectivity probe.
func (c *Client) GetVersion(ctx context.Context) (*Response, error) {
	return c.request(ctx, "getVersion", nil, false)
}

// GetAllBooks fetches the full catalog dump.
func (c *Client) GetAllBooks(ctx context.Context) ([]catalog.Item, error) {
	resp, err := c.request(ctx, "getAllBooks", nil, false)
	if err != nil {
		return nil, err
	}

	data := resp.Data()
	if data == nil {
		c.logger.Warn().Msg("getAllBooks returned no list payload")
		return nil, nil
	}

	var items []catalog.Item
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode catalog items: %w", err)
	}

	c.logger.Debug().Int("count", len(items)).Msg("Fetched catalog")
	return items, nil
}

// WantedBook is one entry from the wanted list. Identifier and status field
// names vary across remote versions, so the raw map is probed for known keys.
type WantedBook struct {
	BookID string
	Status string
}

// GetWanted lists the books currently marked wanted.
func (c *Client) GetWanted(ctx context.Context) ([]WantedBook, error) {
	resp, err := c.request(ctx, "getWanted", nil, false)
	if err != nil {
		return nil, err
	}

	data := resp.Data()
	if data == nil {
		return nil, nil
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode wanted list: %w", err)
	}

	wanted := make([]WantedBook, 0, len(raw))
	for _, entry := range raw {
		wanted = append(wanted, WantedBook{
			BookID: firstString(entry, "BookID", "bookid", "id"),
			Status: firstString(entry, "Status", "status"),
		})
	}
	return wanted, nil
}

// FindBook runs a remote metadata search for a book by name and returns the
// raw result payload.
func (c *Client) FindBook(ctx context.Context, name string) (json.RawMessage, error) {
	resp, err := c.request(ctx, "findBook", url.Values{"name": {name}}, false)
	if err != nil {
		return nil, err
	}
	if data := resp.Data(); data != nil {
		return data, nil
	}
	if resp.Object != nil {
		raw, err := json.Marshal(resp.Object)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode findBook response: %w", err)
		}
		return raw, nil
	}
	return json.RawMessage("[]"), nil
}

// AddBook adds a book by id. When the id is already present in the catalog
// the add is skipped and the call reports success.
func (c *Client) AddBook(ctx context.Context, bookID string) (*Response, error) {
	items, err := c.GetAllBooks(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Could not check existing books before add")
	} else {
		for _, item := range items {
			if item.BookID == bookID {
				c.logger.Info().Str("book_id", bookID).Msg("Book already in catalog, skipping add")
				return &Response{OK: true, Message: "Book already exists"}, nil
			}
		}
	}

	return c.request(ctx, "addBook", url.Values{"id": {bookID}}, false)
}

// QueueBook marks a book as wanted in the given format. Books already wanted
// with an open status are not re-queued.
func (c *Client) QueueBook(ctx context.Context, bookID string, format catalog.Format) (*Response, error) {
	wanted, err := c.GetWanted(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Could not inspect wanted list before queue")
	} else {
		for _, w := range wanted {
			if w.BookID != bookID {
				continue
			}
			status := strings.ToLower(strings.TrimSpace(w.Status))
			if strings.Contains(status, "open") || strings.Contains(status, "want") {
				c.logger.Info().
					Str("book_id", bookID).
					Str("status", w.Status).
					Msg("Book already wanted, skipping queue")
				return &Response{OK: true, Message: "Already wanted"}, nil
			}
			break
		}
	}

	return c.request(ctx, "queueBook", url.Values{"id": {bookID}, "type": {string(format)}}, false)
}

// UnqueueBook marks a book as skipped in the given format.
func (c *Client) UnqueueBook(ctx context.Context, bookID string, format catalog.Format) (*Response, error) {
	return c.request(ctx, "unqueueBook", url.Values{"id": {bookID}, "type": {string(format)}}, false)
}

// SearchBook triggers a download search for a specific book.
func (c *Client) SearchBook(ctx context.Context, bookID string, format catalog.Format, wait bool) (*Response, error) {
	return c.request(ctx, "searchBook", url.Values{"id": {bookID}, "type": {string(format)}}, wait)
}

// ForceBookSearch searches for all wanted books of the given format.
func (c *Client) ForceBookSearch(ctx context.Context, format catalog.Format, wait bool) (*Response, error) {
	return c.request(ctx, "forceBookSearch", url.Values{"type": {string(format)}}, wait)
}

// ForceLibraryScan rescans the book library, optionally limited to a directory.
func (c *Client) ForceLibraryScan(ctx context.Context, dir string, wait bool) (*Response, error) {
	params := url.Values{}
	if dir != "" {
		params.Set("dir", dir)
	}
	return c.request(ctx, "forceLibraryScan", params, wait)
}

// Author is one entry from the author index.
type Author struct {
	AuthorID   string `json:"AuthorID"`
	AuthorName string `json:"AuthorName"`
	HaveBooks  int    `json:"HaveBooks"`
	TotalBooks int    `json:"TotalBooks"`
	Reason     string `json:"Reason"`
	Status     string `json:"Status"`
}

// GetAllAuthors lists every author in the database.
func (c *Client) GetAllAuthors(ctx context.Context) ([]Author, error) {
	resp, err := c.request(ctx, "getIndex", nil, false)
	if err != nil {
		return nil, err
	}

	data := resp.Data()
	if data == nil {
		return nil, nil
	}

	var authors []Author
	if err := json.Unmarshal(data, &authors); err != nil {
		return nil, fmt.Errorf("failed to decode author index: %w", err)
	}
	return authors, nil
}

// GetAuthor returns an author's record and books.
func (c *Client) GetAuthor(ctx context.Context, authorID string) (*Response, error) {
	return c.request(ctx, "getAuthor", url.Values{"id": {authorID}}, false)
}

// AddAuthorByID adds an author by id, resumes them and leaves book queueing
// to the caller.
func (c *Client) AddAuthorByID(ctx context.Context, authorID string) (*Response, error) {
	resp, err := c.request(ctx, "addAuthorID", url.Values{"id": {authorID}}, false)
	if err != nil {
		return nil, err
	}
	if _, err := c.ResumeAuthor(ctx, authorID); err != nil {
		c.logger.Warn().Err(err).Str("author_id", authorID).Msg("Failed to resume author after add")
	}
	return resp, nil
}

// ListNoBooks lists authors with no owned books, as reported by the remote.
func (c *Client) ListNoBooks(ctx context.Context) (*Response, error) {
	return c.request(ctx, "listNoBooks", nil, false)
}

// ResumeAuthor marks an author as active.
func (c *Client) ResumeAuthor(ctx context.Context, authorID string) (*Response, error) {
	return c.request(ctx, "resumeAuthor", url.Values{"id": {authorID}}, false)
}

// RemoveAuthor removes an author from the database.
func (c *Client) RemoveAuthor(ctx context.Context, authorID string) (*Response, error) {
	return c.request(ctx, "removeAuthor", url.Values{"id": {authorID}}, false)
}

func firstString(m map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%.0f", f)
			}
		}
	}
	return ""
}
