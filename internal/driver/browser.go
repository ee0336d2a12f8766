package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/jonathan/leadscout/internal/llm"
	"github.com/jonathan/leadscout/internal/schemas"
	"github.com/jonathan/leadscout/internal/types"
)

// settleDelay gives JavaScript-heavy feeds time to render after the body is
// ready. Social timelines load posts well after the initial document.
const settleDelay = 3 * time.Second

// Options configures a browser session.
type Options struct {
	Headless bool
	LLM      llm.Client // optional; without it extraction falls back to DOM heuristics
	Verbose  bool
}

// BrowserDriver drives a single headless Chrome session via chromedp. One
// driver instance equals one browser session and must not be shared across
// concurrent jobs. Requires Chrome/Chromium on the system.
type BrowserDriver struct {
	browserCtx context.Context
	cancels    []context.CancelFunc
	llm        llm.Client
	verbose    bool
}

// NewBrowserDriver allocates a headless browser session.
func NewBrowserDriver(ctx context.Context, opts Options) (*BrowserDriver, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)...,
	)

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	return &BrowserDriver{
		browserCtx: browserCtx,
		cancels:    []context.CancelFunc{cancelBrowser, cancelAlloc},
		llm:        opts.LLM,
		verbose:    opts.Verbose,
	}, nil
}

// Close tears down the browser session.
func (d *BrowserDriver) Close() {
	for _, cancel := range d.cancels {
		cancel()
	}
}

// run executes chromedp actions against the session, honoring the caller's
// deadline and cancellation.
func (d *BrowserDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := d.browserCtx
	cancel := context.CancelFunc(func() {})
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(d.browserCtx, deadline)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Navigate loads the URL and waits for the page to settle.
func (d *BrowserDriver) Navigate(ctx context.Context, url string) error {
	if d.verbose {
		log.Printf("[BROWSER] navigating to %s", url)
	}

	err := d.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Sleep(settleDelay),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Observe answers a natural-language instruction about the current page.
// With an LLM configured it summarizes the rendered text; without one it
// reports basic page statistics.
func (d *BrowserDriver) Observe(ctx context.Context, instruction string) (string, error) {
	html, err := d.currentHTML(ctx)
	if err != nil {
		return "", err
	}

	if d.llm == nil {
		return summarizeDOM(html), nil
	}

	prompt := fmt.Sprintf(
		"You are observing a web page for a browser automation task.\nInstruction: %s\n\nPage text:\n%s\n\nAnswer the instruction in a short paragraph.",
		instruction, CondenseText(html),
	)
	return d.llm.GenerateContent(ctx, prompt)
}

// Extract pulls structured posts from the current page. LLM output is
// validated against the provided schema before it is trusted; without an LLM
// the driver falls back to DOM selector heuristics.
func (d *BrowserDriver) Extract(ctx context.Context, instruction string, schema string) ([]types.RawPost, error) {
	html, err := d.currentHTML(ctx)
	if err != nil {
		return nil, err
	}

	if d.llm == nil {
		return ParsePosts(html), nil
	}

	prompt := fmt.Sprintf(
		"Instruction: %s\n\nReturn a JSON array conforming to this JSON Schema:\n%s\n\nPage text:\n%s\n\nReturn only the JSON array, nothing else.",
		instruction, schema, CondenseText(html),
	)
	raw, err := d.llm.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extract generation failed: %w", err)
	}

	if err := schemas.ValidateAgainst(schema, raw); err != nil {
		return nil, fmt.Errorf("extract output rejected: %w", err)
	}

	var posts []types.RawPost
	if err := json.Unmarshal([]byte(raw), &posts); err != nil {
		return nil, fmt.Errorf("failed to decode extract output: %w", err)
	}

	if d.verbose {
		log.Printf("[BROWSER] extracted %d posts", len(posts))
	}
	return posts, nil
}

// Screenshot captures the current viewport as PNG for the media sink.
func (d *BrowserDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// currentHTML returns the rendered HTML of the current page.
func (d *BrowserDriver) currentHTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("failed to read rendered page: %w", err)
	}
	return html, nil
}
