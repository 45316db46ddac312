// Package loader turns external sources into knowledge documents ready
// for ingestion: plain text files, web pages, and the built-in company
// seed set.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/nexobotics/nova/internal/knowledge"
)

var (
	// ErrNoContent indicates a source yielded no usable text.
	ErrNoContent = errors.New("no content extracted")
)

// DefaultFetchTimeout bounds a single page download.
const DefaultFetchTimeout = 30 * time.Second

// Ingestor accepts document batches. *rag.Pipeline satisfies it.
type Ingestor interface {
	AddDocuments(ctx context.Context, docs []knowledge.Document) error
}

// Loader produces documents from files and URLs.
type Loader struct {
	client *http.Client
	logger *slog.Logger
}

// New creates a Loader. A nil client gets a default with a fetch timeout.
func New(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: DefaultFetchTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: client, logger: logger}
}

// FromDir reads every .txt file under dir (recursively) and splits each
// file into chunks on blank lines. Document ids are derived from the
// file path relative to dir plus a chunk index, so re-ingesting the same
// directory overwrites rather than duplicates.
func (l *Loader) FromDir(dir string) ([]knowledge.Document, error) {
	var docs []knowledge.Document

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".txt") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		rel = filepath.ToSlash(rel)

		chunks := SplitChunks(string(data))
		for i, chunk := range chunks {
			docs = append(docs, knowledge.Document{
				ID:   fmt.Sprintf("file:%s#%d", rel, i),
				Text: chunk,
				Metadata: map[string]string{
					"source": "file",
					"path":   rel,
				},
			})
		}
		l.logger.Debug("loaded file", "path", rel, "chunks", len(chunks))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no .txt files under %s", ErrNoContent, dir)
	}
	return docs, nil
}

// FromURL downloads a page and extracts its readable text. Extraction
// goes through readability first; pages it cannot handle fall back to a
// plain paragraph scrape.
func (l *Loader) FromURL(ctx context.Context, rawURL string) ([]knowledge.Document, error) {
	pageURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "nova-ingest/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %d", pageURL, resp.StatusCode)
	}

	var (
		title string
		text  string
	)
	article, err := readability.FromReader(resp.Body, pageURL)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		title = article.Title
		text = article.TextContent
	} else {
		// Re-fetch for the fallback parse; the body was consumed above.
		title, text, err = l.scrapeParagraphs(ctx, pageURL)
		if err != nil {
			return nil, err
		}
	}

	chunks := SplitChunks(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, pageURL)
	}

	docs := make([]knowledge.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, knowledge.Document{
			ID:   fmt.Sprintf("url:%s#%d", pageURL.String(), i),
			Text: chunk,
			Metadata: map[string]string{
				"source": "url",
				"url":    pageURL.String(),
				"title":  title,
			},
		})
	}
	l.logger.Info("loaded page", "url", pageURL.String(), "title", title, "chunks", len(docs))
	return docs, nil
}

// scrapeParagraphs is the fallback extractor for pages readability
// rejects. It drops boilerplate elements and keeps paragraph text.
func (l *Loader) scrapeParagraphs(ctx context.Context, pageURL *url.URL) (title, text string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return "", "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", "nova-ingest/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	title = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, nav, footer, aside").Remove()

	var sb strings.Builder
	doc.Find("p, h1, h2, h3, li").Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			sb.WriteString(t)
			sb.WriteString("\n\n")
		}
	})
	return title, sb.String(), nil
}

// SplitChunks splits text into chunks on blank lines. Whitespace inside
// a chunk is collapsed to single spaces; empty chunks are dropped.
func SplitChunks(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var chunks []string
	for _, block := range strings.Split(text, "\n\n") {
		chunk := strings.Join(strings.Fields(block), " ")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
