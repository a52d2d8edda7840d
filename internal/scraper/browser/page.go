package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Page is the slice of a browser tab the extractor needs.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Evaluate runs script and decodes its JSON result into out.
	Evaluate(ctx context.Context, script string, out any) error
}

// Opener attaches a Page to a session. The returned func closes the tab and
// allocator.
type Opener interface {
	Open(ctx context.Context, sess Session) (Page, func(), error)
}

// ChromeOpener drives pages with chromedp, either over a remote CDP
// websocket or by launching a local headless Chrome.
type ChromeOpener struct {
	UserAgent       string
	NavTimeout      time.Duration
	EvaluateTimeout time.Duration
}

// Open implements Opener.
func (o *ChromeOpener) Open(ctx context.Context, sess Session) (Page, func(), error) {
	// The allocator outlives request cancellation so teardown stays orderly;
	// the caller's close func is the only thing that ends it.
	base := context.WithoutCancel(ctx)

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if sess.ConnectURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(base, sess.ConnectURL, chromedp.NoModifyURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", "new"),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("hide-scrollbars", true),
			chromedp.Flag("enable-automation", false),
			chromedp.WindowSize(1280, 1600),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(base, opts...)
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	closeFn := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run on the tab context attaches the target.
	if err := chromedp.Run(tabCtx, o.setupAction()); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("attach browser tab: %w", err)
	}
	return &chromePage{
		tab:             tabCtx,
		navTimeout:      orDefault(o.NavTimeout, 45*time.Second),
		evaluateTimeout: orDefault(o.EvaluateTimeout, 15*time.Second),
	}, closeFn, nil
}

func (o *ChromeOpener) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if o.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(o.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

type chromePage struct {
	tab             context.Context
	navTimeout      time.Duration
	evaluateTimeout time.Duration
}

func (p *chromePage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.navTimeout, chromedp.Navigate(url))
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var title string
	if err := p.run(ctx, p.evaluateTimeout, chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

func (p *chromePage) Evaluate(ctx context.Context, script string, out any) error {
	return p.run(ctx, p.evaluateTimeout, chromedp.Evaluate(script, out))
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}
