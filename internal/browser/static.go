package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

var submitPattern = regexp.MustCompile(`(?i)submit`)

// Static builds a PageExtract from a plain HTTP fetch. It executes no
// JavaScript, so pages that render their payload client-side will come back
// empty; it exists for deployments without Chrome and for tests.
type Static struct {
	cfg    config.BrowserConfig
	client *http.Client
	logger *zap.Logger
}

// NewStatic builds a static navigator.
func NewStatic(cfg config.BrowserConfig, logger *zap.Logger) *Static {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Static{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.NavigationTimeout()},
		logger: logger,
	}
}

// Navigate fetches the URL and walks the HTML tree into a PageExtract.
func (s *Static) Navigate(ctx context.Context, url string) (*task.PageExtract, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("read page body: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	extract := extractFromTree(doc)
	s.logger.Debug("page extracted (static)",
		zap.String("url", url),
		zap.Int("body_len", len(extract.BodyText)),
		zap.Bool("has_pre", extract.PreText != ""))
	return extract, nil
}

// extractFromTree walks a parsed document and builds the extract: full body
// text, the first <pre>, the first id="result" element, and submit-looking
// anchors.
func extractFromTree(doc *html.Node) *task.PageExtract {
	extract := &task.PageExtract{}
	var bodyNode *html.Node

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style":
				return
			case "body":
				if bodyNode == nil {
					bodyNode = n
				}
			case "pre":
				if extract.PreText == "" {
					extract.PreText = textContent(n)
				}
			case "a":
				href := attr(n, "href")
				text := strings.TrimSpace(textContent(n))
				if submitPattern.MatchString(href) || submitPattern.MatchString(text) {
					extract.SubmitLinks = append(extract.SubmitLinks, task.Link{Href: href, Text: text})
				}
			}
			if extract.ResultText == "" && attr(n, "id") == "result" {
				extract.ResultText = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if bodyNode != nil {
		extract.BodyText = textContent(bodyNode)
	} else {
		extract.BodyText = textContent(doc)
	}
	extract.VisibleURLs = absoluteURL.FindAllString(extract.BodyText, -1)
	return extract
}

// textContent concatenates the text nodes under n, skipping script and style.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteString(" ")
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
