// Package webpage lists and fetches help-center pages for ingestion.
//
// Client wraps a colly collector. ListURLs reads the site's sitemap.xml and
// falls back to a configured URL list when the sitemap is missing or
// malformed, so a broken sitemap degrades ingestion instead of aborting it.
// FetchPage extracts the readable article body from a page, dropping
// navigation and boilerplate.
package webpage

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"

	"github.com/tradescholar/supportkb/internal/security"
)

const userAgent = "supportkb-crawler/1.0"

var (
	ErrBlockedURL = errors.New("webpage: url failed validation")
	ErrEmptyPage  = errors.New("webpage: page has no readable content")
)

// Page is the readable content of one fetched page.
type Page struct {
	Title string
	Text  string
}

// Config bounds crawling.
type Config struct {
	// MaxPages caps how many URLs ListURLs returns.
	MaxPages int
	// PageTimeout bounds each HTTP request.
	PageTimeout time.Duration
	// MaxContentLen caps FetchPage's Text in runes; 0 means no cap.
	MaxContentLen int
	// FallbackURLs are returned when the sitemap cannot be read.
	FallbackURLs []string
}

// Client fetches pages from the help center.
type Client struct {
	collector *colly.Collector
	validate  func(string) error
	cfg       Config
	logger    *slog.Logger
}

// NewClient creates a Client. When validator is non-nil every URL is
// checked before fetching and all dials go through the validating
// transport; pass nil only in tests.
func NewClient(cfg Config, validator *security.URL, logger *slog.Logger) *Client {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 20
	}

	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = 10 * time.Second
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	collector := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(2<<20),
	)
	collector.SetRequestTimeout(cfg.PageTimeout)

	validate := func(string) error { return nil }

	if validator != nil {
		collector.WithTransport(validator.SafeTransport())
		validate = validator.Validate
	}

	return &Client{
		collector: collector,
		validate:  validate,
		cfg:       cfg,
		logger:    logger,
	}
}

// ListURLs returns the page URLs to crawl, at most MaxPages of them. It
// reads the sitemap at indexURL; any failure there falls back to the
// configured URL list.
func (c *Client) ListURLs(ctx context.Context, indexURL string) []string {
	urls, err := c.sitemapURLs(ctx, indexURL)
	if err != nil {
		c.logger.Warn("sitemap unavailable, using fallback URL list",
			"sitemap", indexURL,
			"fallback_count", len(c.cfg.FallbackURLs),
			"error", err,
		)

		urls = c.cfg.FallbackURLs
	}

	if len(urls) > c.cfg.MaxPages {
		urls = urls[:c.cfg.MaxPages]
	}

	return urls
}

// FetchPage downloads one page and extracts its readable title and body
// text, truncated to MaxContentLen runes.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	if err := c.validate(pageURL); err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrBlockedURL, err)
	}

	body, err := c.fetch(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("webpage: fetch %s: %w", pageURL, err)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("webpage: parse url %s: %w", pageURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), parsed)
	if err != nil {
		return Page{}, fmt.Errorf("webpage: extract content of %s: %w", pageURL, err)
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = htmlTitle(body)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return Page{}, fmt.Errorf("%w: %s", ErrEmptyPage, pageURL)
	}

	return Page{
		Title: title,
		Text:  truncateRunes(text, c.cfg.MaxContentLen),
	}, nil
}

func (c *Client) sitemapURLs(ctx context.Context, indexURL string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := c.validate(indexURL); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBlockedURL, err)
	}

	body, err := c.fetch(indexURL)
	if err != nil {
		return nil, err
	}

	var set struct {
		URLs []struct {
			Loc string `xml:"loc"`
		} `xml:"url"`
	}

	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	urls := make([]string, 0, len(set.URLs))

	for _, u := range set.URLs {
		if loc := strings.TrimSpace(u.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}

	if len(urls) == 0 {
		return nil, errors.New("sitemap lists no URLs")
	}

	return urls, nil
}

// fetch performs one request on a collector clone so per-request callbacks
// never accumulate on the shared collector.
func (c *Client) fetch(target string) ([]byte, error) {
	collector := c.collector.Clone()

	var (
		body     []byte
		fetchErr error
	)

	collector.OnResponse(func(r *colly.Response) {
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	if err := collector.Visit(target); err != nil {
		return nil, err
	}

	collector.Wait()

	if fetchErr != nil {
		return nil, fetchErr
	}

	if len(body) == 0 {
		return nil, errors.New("empty response body")
	}

	return body, nil
}

func htmlTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(doc.Find("title").First().Text())
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}

	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	return string(runes[:limit])
}
