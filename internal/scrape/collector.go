package scrape

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"github.com/shelfgrab/shelfgrab/internal/logger"
)

// pageCap bounds exploratory pagination when the count marker is missing,
// so changed remote markup cannot send us into an endless crawl.
const pageCap = 50

var countMarkerRe = regexp.MustCompile(`<p class="search-results-count">(\d+) books</p>`)

// Session is a rendering-proxy session handle. Sessions opened by the
// Collector are owned by it and torn down on Close; sessions passed in by the
// caller are left alone.
type Session struct {
	ID    string
	owned bool
}

// Collector fetches a user's paginated want list through the rendering proxy
// and turns it into a deduplicated record set.
type Collector struct {
	proxy    *Client
	baseURL  string
	pageSize int
	logger   *logger.Logger
}

// NewCollector creates a Collector. pageSize must match the remote service's
// page rendering (currently 10 entries per page).
func NewCollector(proxy *Client, baseURL string, pageSize int) *Collector {
	return &Collector{
		proxy:    proxy,
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		logger:   logger.Get().WithComponent("collector"),
	}
}

// OpenSession acquires a new proxy session owned by the Collector.
func (c *Collector) OpenSession(ctx context.Context) (Session, error) {
	id, err := c.proxy.CreateSession(ctx)
	if err != nil {
		return Session{}, err
	}
	return Session{ID: id, owned: true}, nil
}

// UseSession wraps an externally created session id. Close will not destroy it.
func UseSession(id string) Session {
	return Session{ID: id}
}

// CloseSession destroys the proxy session if the Collector created it.
func (c *Collector) CloseSession(ctx context.Context, s Session) {
	if !s.owned || s.ID == "" {
		return
	}
	if err := c.proxy.DestroySession(ctx, s.ID); err != nil {
		c.logger.Warn().Err(err).Str("session", s.ID).Msg("Failed to destroy proxy session")
	}
}

func (c *Collector) listURL(username string) string {
	return fmt.Sprintf("%s/to-read/%s", c.baseURL, username)
}

// FetchList collects the user's full want list. The first page decides the
// strategy: when the embedded result count is readable the page count is
// computed up front, otherwise pagination walks forward until a page yields
// nothing new. A failed first page is fatal; later page failures degrade to
// partial results.
func (c *Collector) FetchList(ctx context.Context, session Session, username string) ([]Record, error) {
	log := c.logger.With().Str("username", username).Logger()

	listURL := c.listURL(username)
	first, err := c.proxy.Render(ctx, session.ID, listURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch first list page")
		return nil, fmt.Errorf("failed to fetch list for %q: %w", username, err)
	}

	if m := countMarkerRe.FindStringSubmatch(first); m != nil {
		count, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			log.Info().Int("count", count).Msg("Found result count marker")
			return c.fetchCounted(ctx, session, listURL, count, &log), nil
		}
		log.Warn().Str("marker", m[1]).Msg("Unparseable result count, falling back to exploratory pagination")
	} else {
		log.Warn().Msg("No result count marker found, falling back to exploratory pagination")
	}

	return c.fetchExploratory(ctx, session, listURL, &log), nil
}

// fetchCounted walks a known number of pages. Individual page failures are
// logged and skipped so one broken page does not throw away the rest.
func (c *Collector) fetchCounted(ctx context.Context, session Session, listURL string, count int, log *zerolog.Logger) []Record {
	pages := count / c.pageSize
	if count%c.pageSize != 0 {
		pages++
	}

	var books []Record
	seen := make(map[string]struct{})

	for page := 1; page <= pages; page++ {
		html, err := c.proxy.Render(ctx, session.ID, pageURL(listURL, page))
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Failed to fetch page, skipping")
			continue
		}

		records, err := c.parsePage(html, seen)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Failed to parse page, skipping")
			continue
		}
		books = append(books, records...)
	}

	log.Info().Int("books", len(books)).Int("pages", pages).Msg("Collected want list")
	return books
}

// fetchExploratory pages forward until a page produces no new records, fails,
// or the page cap is reached.
func (c *Collector) fetchExploratory(ctx context.Context, session Session, listURL string, log *zerolog.Logger) []Record {
	var books []Record
	seen := make(map[string]struct{})

	for page := 1; page <= pageCap; page++ {
		html, err := c.proxy.Render(ctx, session.ID, pageURL(listURL, page))
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Page fetch failed, stopping exploratory pagination")
			break
		}

		records, err := c.parsePage(html, seen)
		if err != nil {
			log.Warn().Err(err).Int("page", page).Msg("Page parse failed, stopping exploratory pagination")
			break
		}
		if len(records) == 0 {
			log.Debug().Int("page", page).Msg("No new records, stopping exploratory pagination")
			break
		}
		books = append(books, records...)
	}

	log.Info().Int("books", len(books)).Msg("Collected want list (exploratory)")
	return books
}

func (c *Collector) parsePage(html string, seen map[string]struct{}) ([]Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}
	return extractRecords(doc, c.baseURL, seen), nil
}

func pageURL(listURL string, page int) string {
	return fmt.Sprintf("%s?page=%d", listURL, page)
}
