package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Record is one scraped want-list entry. URL may be empty when the markup
// carried no detail link.
type Record struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

// Identity returns the dedup key for a record: the detail URL when present,
// otherwise title|author.
func (r Record) Identity() string {
	if r.URL != "" {
		return r.URL
	}
	return r.Title + "|" + r.Author
}

// bookBlockSelector matches the known book container layouts. The selectors
// are a contract with the remote markup; drift here breaks extraction.
const bookBlockSelector = "div.book-pane, div.book-pane-content, div.book-title-author-and-series, article.book-tile"

// extractRecords pulls (url, title, author) records out of a rendered page,
// skipping entries whose identity is already in seen. seen is mutated.
func extractRecords(doc *goquery.Document, baseURL string, seen map[string]struct{}) []Record {
	blocks := doc.Find(bookBlockSelector)

	if blocks.Length() == 0 {
		// Fallback: any container with a heading plus either a body-text
		// paragraph or an author link looks enough like a book block.
		blocks = doc.Find("div, article, section").FilterFunction(func(_ int, s *goquery.Selection) bool {
			if s.Find("h3").Length() == 0 {
				return false
			}
			return s.Find("p.font-body").Length() > 0 || s.Find("a[href^='/authors/']").Length() > 0
		})
	}

	var found []Record
	blocks.Each(func(_ int, block *goquery.Selection) {
		link := block.Find("a[href^='/books/']").First()
		if link.Length() == 0 {
			link = block.Find("h3 a").First()
		}
		if link.Length() == 0 {
			link = block.Find("a").First()
		}
		if link.Length() == 0 {
			return
		}

		bookURL, _ := link.Attr("href")
		if strings.HasPrefix(bookURL, "/") {
			bookURL = baseURL + bookURL
		}

		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}

		authorLink := block.Find("a[href^='/authors/']").First()
		if authorLink.Length() == 0 {
			authorLink = block.Find("p.font-body a").First()
		}
		author := strings.TrimSpace(authorLink.Text())

		rec := Record{URL: bookURL, Title: title, Author: author}
		id := rec.Identity()
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		found = append(found, rec)
	})

	return found
}
