// Package fetch downloads the resource named by an instruction and classifies
// it for answer computation.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

// StatusError reports a non-success HTTP status on a resource download.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
}

// Fetcher retrieves remote resources over HTTP.
type Fetcher struct {
	cfg    config.FetchConfig
	client *http.Client
	logger *zap.Logger
}

// NewFetcher builds a fetcher with its own HTTP client.
func NewFetcher(cfg config.FetchConfig, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout()},
		logger: logger,
	}
}

// Fetch downloads the instruction's resource and classifies it. A non-2xx
// response fails with a *StatusError carrying the HTTP status.
func (f *Fetcher) Fetch(ctx context.Context, instr *task.Instruction) (*task.FetchedResource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instr.ResourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.GetUserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download resource: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: instr.ResourceURL, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.BodyLimit()))
	if err != nil {
		return nil, fmt.Errorf("read resource body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	res := &task.FetchedResource{
		URL:         instr.ResourceURL,
		Body:        body,
		ContentType: contentType,
		Kind:        Classify(instr.ResourceURL, contentType),
	}

	f.logger.Debug("resource fetched",
		zap.String("url", instr.ResourceURL),
		zap.String("content_type", contentType),
		zap.String("kind", string(res.Kind)),
		zap.Int("bytes", len(body)))
	return res, nil
}

// Classify maps a resource to its kind. A resource is a text document when the
// declared content type carries a PDF marker or the URL path ends in .pdf;
// the suffix check covers servers that send arbitrary or missing types.
func Classify(rawURL, contentType string) task.ResourceKind {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return task.KindDocument
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return task.KindDocument
	}
	return task.KindUnknown
}
