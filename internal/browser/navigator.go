// Package browser drives a page to the target URL and snapshots the text and
// DOM fragments the decoder needs. The headless navigator controls Chrome via
// rod; a static HTTP fallback lives alongside it for constrained deployments.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"quizrunner/internal/config"
	"quizrunner/internal/task"
)

// Navigator is the page-navigation contract the orchestrator depends on.
type Navigator interface {
	Navigate(ctx context.Context, url string) (*task.PageExtract, error)
}

// absoluteURL finds absolute URLs inside visible page text (diagnostic only).
var absoluteURL = regexp.MustCompile(`https?://[^\s"'<>]+`)

// Headless drives a shared headless Chrome; each Navigate call runs in its own
// incognito context, torn down before the call returns.
type Headless struct {
	cfg    config.BrowserConfig
	logger *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
}

// NewHeadless builds a headless navigator. The browser itself is launched
// lazily on first use.
func NewHeadless(cfg config.BrowserConfig, logger *zap.Logger) *Headless {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Headless{cfg: cfg, logger: logger}
}

// Start connects to Chrome, launching one when needed.
func (h *Headless) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.browser != nil {
		if _, err := h.browser.Version(); err == nil {
			return nil
		}
		h.logger.Warn("stale browser connection, relaunching")
		_ = h.browser.Close()
		h.browser = nil
	}

	launch := launcher.New().Headless(true)
	if h.cfg.Bin != "" {
		launch = launch.Bin(h.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}
	h.browser = browser
	return nil
}

// Close shuts the browser down.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser == nil {
		return nil
	}
	err := h.browser.Close()
	h.browser = nil
	return err
}

func (h *Headless) ensureStarted(ctx context.Context) (*rod.Browser, error) {
	h.mu.Lock()
	b := h.browser
	h.mu.Unlock()
	if b != nil {
		return b, nil
	}
	if err := h.Start(ctx); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser == nil {
		return nil, errors.New("browser not connected")
	}
	return h.browser, nil
}

// Navigate opens an isolated session, loads the URL, waits for network idle
// plus a settle delay, and reads the extract. The session is released exactly
// once before Navigate returns, whatever stage failed.
func (h *Headless) Navigate(ctx context.Context, url string) (*task.PageExtract, error) {
	browser, err := h.ensureStarted(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		// Scoped release, independent of the orchestrator's outer race.
		_ = page.Close()
	}()

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             h.cfg.GetViewportWidth(),
		Height:            h.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		h.logger.Warn("set viewport failed", zap.Error(err))
	}

	page = page.Context(ctx).Timeout(h.cfg.NavigationTimeout())
	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load: %w", err)
	}
	page.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)()

	// Brief settle so client-side rendering can finish before the DOM read.
	select {
	case <-time.After(h.cfg.SettleDelay()):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	extract, err := readExtract(page)
	if err != nil {
		return nil, err
	}

	h.logger.Debug("page extracted",
		zap.String("url", url),
		zap.Int("body_len", len(extract.BodyText)),
		zap.Bool("has_pre", extract.PreText != ""),
		zap.Int("submit_links", len(extract.SubmitLinks)))
	return extract, nil
}

// readExtract evaluates one script in the page and decodes its snapshot.
func readExtract(page *rod.Page) (*task.PageExtract, error) {
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `
		() => {
			const body = document.body ? (document.body.innerText || '') : '';
			const pre = document.querySelector('pre');
			const result = document.querySelector('#result');
			const links = [];
			for (const a of document.querySelectorAll('a')) {
				const href = a.href || '';
				const text = (a.innerText || '').trim();
				if (/submit/i.test(href) || /submit/i.test(text)) {
					links.push({ href, text });
				}
			}
			return {
				body,
				pre: pre ? (pre.innerText || '') : '',
				result: result ? (result.innerText || '') : '',
				links
			};
		}
		`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil {
		return nil, fmt.Errorf("read page snapshot: %w", err)
	}
	if res == nil {
		return nil, errors.New("empty page snapshot")
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal page snapshot: %w", err)
	}

	var snapshot struct {
		Body   string      `json:"body"`
		Pre    string      `json:"pre"`
		Result string      `json:"result"`
		Links  []task.Link `json:"links"`
	}
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode page snapshot: %w", err)
	}

	return &task.PageExtract{
		BodyText:    snapshot.Body,
		PreText:     snapshot.Pre,
		ResultText:  snapshot.Result,
		SubmitLinks: snapshot.Links,
		VisibleURLs: absoluteURL.FindAllString(snapshot.Body, -1),
	}, nil
}
