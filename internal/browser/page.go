package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/rs/zerolog/log"

	"github.com/thevalentinedev/altreach/pkg/version"
)

// PageOptions configures page hardening.
type PageOptions struct {
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int

	// BlockStaticAssets aborts stylesheet, font, and image requests.
	// The DOM still carries src attributes for media extraction, the
	// bytes just never transfer.
	BlockStaticAssets bool
}

// DefaultPageOptions returns the hardening applied to extraction pages.
func DefaultPageOptions() PageOptions {
	return PageOptions{
		UserAgent:         version.UserAgent,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		BlockStaticAssets: true,
	}
}

// CreatePage opens a hardened page on the given process: stealth
// patches, spoofed user agent, fixed viewport, and static asset
// blocking. Must be called before any navigation so the patches land
// before page scripts run.
//
// The returned cleanup stops the request interception listeners. Call
// it before closing the page.
func (p *Pool) CreatePage(ctx context.Context, proc Process) (*rod.Page, func(), error) {
	return newHardenedPage(ctx, proc, DefaultPageOptions())
}

func newHardenedPage(ctx context.Context, proc Process, opts PageOptions) (*rod.Page, func(), error) {
	page, err := proc.NewPage()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := ApplyStealthToPage(page); err != nil {
		closePage(page)
		return nil, nil, fmt.Errorf("failed to apply stealth patches: %w", err)
	}

	if err := SetUserAgent(page, opts.UserAgent); err != nil {
		closePage(page)
		return nil, nil, fmt.Errorf("failed to set user agent: %w", err)
	}

	if err := SetViewport(page, opts.ViewportWidth, opts.ViewportHeight); err != nil {
		closePage(page)
		return nil, nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	cleanup := func() {}
	if opts.BlockStaticAssets {
		cleanup, err = BlockStaticAssets(ctx, page)
		if err != nil {
			// Non-fatal: the page still works, it just loads more bytes.
			log.Warn().Err(err).Msg("Static asset blocking unavailable, continuing without it")
			cleanup = func() {}
		}
	}

	return page, cleanup, nil
}

func closePage(page *rod.Page) {
	if err := page.Close(); err != nil {
		log.Warn().Err(err).Msg("Error closing page after setup failure")
	}
}
