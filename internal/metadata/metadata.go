// Package metadata supplies details about the page the user is currently
// looking at, used to enrich newly created bookmarks.
//
// The active page is fetched over HTTP and its title, description and
// keywords are read from the document head.
package metadata

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/njoerd114/bookmarkrelay/internal/model"
)

// maxBodyBytes bounds how much of a page is read looking for its head.
const maxBodyBytes = 1 << 20

// Fetcher returns metadata for the active page. The zero value is not usable;
// create one with [NewFetcher].
type Fetcher struct {
	client *http.Client
	log    *slog.Logger

	mu        sync.Mutex
	activeURL string
}

// NewFetcher returns a Fetcher using client, or a client with a 10 second
// timeout when client is nil.
func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Fetcher{client: client, log: logger}
}

// SetActiveURL records the url of the page currently open. An empty url means
// no page is active.
func (f *Fetcher) SetActiveURL(u string) {
	f.mu.Lock()
	f.activeURL = u
	f.mu.Unlock()
}

// ActiveURL returns the url set by SetActiveURL.
func (f *Fetcher) ActiveURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeURL
}

// PageMetadata fetches the active page. It returns nil, nil when no page is
// active.
func (f *Fetcher) PageMetadata(ctx context.Context) (*model.PageMetadata, error) {
	u := f.ActiveURL()
	if u == "" {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", u, resp.StatusCode)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", u, err)
	}
	meta, err := Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", u, err)
	}
	meta.URL = u
	f.log.Debug("page metadata fetched", "url", u, "title", meta.Title)
	return meta, nil
}

// Parse extracts the title, description and keywords of an HTML document.
// Open Graph values are used when the standard ones are absent.
func Parse(r io.Reader) (*model.PageMetadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	meta := &model.PageMetadata{}
	var ogTitle, ogDescription string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if meta.Title == "" && n.FirstChild != nil {
					meta.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				name := strings.ToLower(attr(n, "name"))
				if name == "" {
					name = strings.ToLower(attr(n, "property"))
				}
				content := strings.TrimSpace(attr(n, "content"))
				switch name {
				case "description":
					meta.Description = content
				case "keywords":
					meta.Tags = content
				case "og:title":
					ogTitle = content
				case "og:description":
					ogDescription = content
				}
			case "body":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if meta.Title == "" {
		meta.Title = ogTitle
	}
	if meta.Description == "" {
		meta.Description = ogDescription
	}
	return meta, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
