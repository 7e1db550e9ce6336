package judicial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Session is one browser tab driving a sequential page-by-page scrape.
// It is bound to the context it was opened with.
type Session interface {
	Navigate(url string, idleTimeout time.Duration) error
	WaitVisible(selector string, timeout time.Duration) error
	WaitNetworkIdle(timeout time.Duration) error
	HTML() (string, error)
	Exists(selector string) (bool, error)
	Click(selector string) error
	Close() error
}

// SessionFactory opens a new browser session
type SessionFactory func(ctx context.Context, profile Profile) (Session, error)

// networkIdleWindow is how long the page must stay without in-flight requests
const networkIdleWindow = 500 * time.Millisecond

type chromeSession struct {
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

// NewChromeSession starts headless Chrome with the profile's user agent
func NewChromeSession(ctx context.Context, profile Profile) (Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(profile.UserAgent),
	)

	// Custom Chrome path (headless-shell in Docker)
	if profile.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(profile.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &chromeSession{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}

	chromedp.ListenTarget(browserCtx, s.onEvent)

	// Start the browser now so launch failures surface here
	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	return s, nil
}

func (s *chromeSession) onEvent(ev interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		s.inflight[e.RequestID] = struct{}{}
	case *network.EventLoadingFinished:
		delete(s.inflight, e.RequestID)
	case *network.EventLoadingFailed:
		delete(s.inflight, e.RequestID)
	default:
		return
	}
	s.lastActivity = time.Now()
}

func (s *chromeSession) idle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight) == 0 && time.Since(s.lastActivity) >= networkIdleWindow
}

func (s *chromeSession) Navigate(url string, idleTimeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, idleTimeout)
	defer cancel()

	if err := chromedp.Run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	return s.WaitNetworkIdle(idleTimeout)
}

func (s *chromeSession) WaitVisible(selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *chromeSession) WaitNetworkIdle(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("network idle: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func (s *chromeSession) HTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Exists(selector string) (bool, error) {
	var nodes []*cdp.Node
	err := chromedp.Run(s.ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return false, err
	}
	return len(nodes) > 0, nil
}

func (s *chromeSession) Click(selector string) error {
	return chromedp.Run(s.ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible))
}

func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}
