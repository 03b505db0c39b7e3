// Package extract runs authenticated read-only extraction sessions: it
// borrows a browser process from the pool, opens a hardened page with
// the caller's session cookies, reads the post content, and returns the
// process no matter how the session ends.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thevalentinedev/altreach/internal/browser"
	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/humanize"
	"github.com/thevalentinedev/altreach/internal/security"
	"github.com/thevalentinedev/altreach/internal/selectors"
	"github.com/thevalentinedev/altreach/internal/types"
)

// BrowserPool is the slice of the process pool the extractor needs.
type BrowserPool interface {
	Acquire(ctx context.Context) (browser.Process, error)
	Release(proc browser.Process)
	CreatePage(ctx context.Context, proc browser.Process) (*rod.Page, func(), error)
}

// SelectorSource provides the current selector set. Satisfied by
// selectors.Manager, which may swap selectors at runtime.
type SelectorSource interface {
	Get() *selectors.Selectors
}

// Request describes a single extraction.
type Request struct {
	URL       string
	AuthToken string
	CSRFToken string
	Selector  string        // optional override for the post root selector
	Timeout   time.Duration // overall budget, 0 uses the configured default
}

// Extractor runs extraction sessions against pooled browser processes.
type Extractor struct {
	pool      BrowserPool
	selectors SelectorSource

	defaultTimeout time.Duration
	maxTimeout     time.Duration
	navTimeout     time.Duration
	selTimeout     time.Duration

	// newPage is swapped in tests to run the flow without a browser.
	newPage func(ctx context.Context, proc browser.Process) (pageDriver, func(), error)
}

// New creates an extractor on top of the given pool and selector source.
func New(pool BrowserPool, sel SelectorSource, cfg *config.Config) *Extractor {
	x := &Extractor{
		pool:           pool,
		selectors:      sel,
		defaultTimeout: cfg.DefaultTimeout,
		maxTimeout:     cfg.MaxTimeout,
		navTimeout:     cfg.NavigationTimeout,
		selTimeout:     cfg.SelectorTimeout,
	}
	x.newPage = x.rodPage
	return x
}

func (x *Extractor) rodPage(ctx context.Context, proc browser.Process) (pageDriver, func(), error) {
	page, cleanup, err := x.pool.CreatePage(ctx, proc)
	if err != nil {
		return nil, nil, err
	}
	return &rodDriver{page: page}, cleanup, nil
}

// Extract validates the request, borrows a browser process, and reads
// the post behind req.URL with the caller's session cookies injected.
//
// Cleanup is layered in defers: the page is closed before the process
// is released, the release runs on every exit path including panics,
// and the recover sits outermost so a panicked session still returns
// its process to the pool first.
func (x *Extractor) Extract(ctx context.Context, req Request) (post *types.Post, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Str("url", security.RedactURL(req.URL)).
				Msg("Panic during extraction")
			post = nil
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	if verr := security.ValidateTargetURL(req.URL); verr != nil {
		return nil, types.NewInvalidURLError(req.URL, verr.Error())
	}
	if req.AuthToken == "" {
		return nil, types.NewMissingCredentialsError(req.URL)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = x.defaultTimeout
	}
	if timeout > x.maxTimeout {
		timeout = x.maxTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	proc, err := x.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer x.pool.Release(proc)

	page, cleanup, err := x.newPage(ctx, proc)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() {
		if cleanup != nil {
			cleanup()
		}
		if cerr := page.Close(); cerr != nil {
			log.Debug().Err(cerr).Msg("Page close failed")
		}
	}()

	// Cookies must be in place before the first navigation or the page
	// renders the logged-out shell.
	if err := page.SetCookies(AuthCookies(req.AuthToken, req.CSRFToken)); err != nil {
		return nil, fmt.Errorf("inject session cookies: %w", err)
	}

	log.Info().
		Str("url", security.RedactURL(req.URL)).
		Str("token", security.RedactToken(req.AuthToken)).
		Msg("Starting extraction")

	if err := page.Navigate(ctx, req.URL, x.navTimeout); err != nil {
		return nil, types.NewNavigationError(req.URL, err)
	}

	sel := x.selectors.Get()
	rootSelector := req.Selector
	if rootSelector == "" {
		rootSelector = sel.PostRoot
	}

	if err := page.WaitVisible(ctx, rootSelector, x.selTimeout); err != nil {
		// The post markup never appeared. Server-rendered crawler pages
		// still carry OpenGraph tags, so try those before giving up.
		if fallback := x.metaFallback(page, req.URL); fallback != nil {
			log.Debug().Str("url", security.RedactURL(req.URL)).Msg("Recovered post from meta tags")
			return fallback, nil
		}
		return nil, types.NewContentNotFoundError(req.URL)
	}

	if serr := page.ScrollIntoView(ctx, rootSelector); serr != nil {
		log.Debug().Err(serr).Msg("Scroll to post failed, reading in place")
	}
	humanize.SleepWithContext(ctx, humanize.SettleDelay())

	var (
		text  string
		media []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, terr := page.Text(gctx, sel.PostText)
		if terr != nil {
			return fmt.Errorf("read post text: %w", terr)
		}
		text = v
		return nil
	})
	g.Go(func() error {
		v, merr := page.MediaURLs(gctx, rootSelector, sel.PostMedia, sel.PostVideo)
		if merr != nil {
			return fmt.Errorf("read post media: %w", merr)
		}
		media = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		if fallback := x.metaFallback(page, req.URL); fallback != nil {
			text = fallback.Text
			if len(media) == 0 {
				media = fallback.Media
			}
		}
	}
	if strings.TrimSpace(text) == "" && len(media) == 0 {
		return nil, types.NewContentNotFoundError(req.URL)
	}

	log.Info().
		Str("url", security.RedactURL(req.URL)).
		Dur("elapsed", time.Since(start)).
		Int("media_count", len(media)).
		Msg("Extraction complete")

	return &types.Post{URL: req.URL, Text: text, Media: media}, nil
}

// metaFallback snapshots the page HTML and mines OpenGraph tags for a
// usable description and image. Returns nil when nothing useful exists.
func (x *Extractor) metaFallback(page pageDriver, url string) *types.Post {
	src, err := page.HTML()
	if err != nil {
		log.Debug().Err(err).Msg("HTML snapshot for meta fallback failed")
		return nil
	}
	meta, err := ParseMeta(src)
	if err != nil {
		log.Debug().Err(err).Msg("Meta tag parse failed")
		return nil
	}
	if meta.Description == "" && meta.Image == "" {
		return nil
	}
	post := &types.Post{URL: url, Text: meta.Description}
	if meta.Image != "" {
		post.Media = []string{meta.Image}
	}
	return post
}
