package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// ApplyStealthToPage applies anti-detection measures to a page.
// This should be called after page creation but BEFORE navigation.
//
// The patches modify JavaScript properties that are commonly used to
// detect headless browsers and automation tools. They complement the
// go-rod/stealth injection done at page creation.
//
// Returns an error for critical failures (e.g., syntax errors in the
// script), but logs and continues for non-critical issues.
func ApplyStealthToPage(page *rod.Page) error {
	log.Debug().Msg("Applying stealth patches to page")

	_, err := page.Evaluate(rod.Eval(stealthScript))
	if err != nil {
		errStr := err.Error()

		if strings.Contains(errStr, "SyntaxError") {
			return fmt.Errorf("stealth script syntax error: %w", err)
		}
		if strings.Contains(errStr, "ReferenceError") {
			return fmt.Errorf("stealth script reference error: %w", err)
		}

		// Common on about:blank pages where some APIs don't exist yet.
		log.Warn().Err(err).Msg("Stealth script had non-fatal errors, continuing")
		return nil
	}

	return nil
}

// stealthScript contains JavaScript to mask automation. These patches
// address the detection vectors that matter when loading authenticated
// social pages: webdriver flag, empty plugin list, and headless-shaped
// hardware values.
const stealthScript = `
(() => {
    'use strict';

    // Survives across navigations within the same page context.
    if (window.__hardened) {
        return;
    }
    window.__hardened = true;

    try {

    // Automation tools set navigator.webdriver = true. This is the
    // most common detection vector.
    Object.defineProperty(navigator, 'webdriver', {
        get: () => undefined,
        configurable: true
    });

    // Headless browsers typically have empty plugins. Real browsers
    // carry the PDF viewer at minimum.
    Object.defineProperty(navigator, 'plugins', {
        get: () => {
            const plugins = [
                {
                    name: 'Chrome PDF Plugin',
                    filename: 'internal-pdf-viewer',
                    description: 'Portable Document Format',
                    length: 1,
                    item: () => null,
                    namedItem: () => null,
                    [Symbol.iterator]: function* () {}
                },
                {
                    name: 'Chrome PDF Viewer',
                    filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai',
                    description: '',
                    length: 1,
                    item: () => null,
                    namedItem: () => null,
                    [Symbol.iterator]: function* () {}
                }
            ];
            plugins.length = 2;
            plugins.item = (index) => plugins[index] || null;
            plugins.namedItem = (name) => plugins.find(p => p.name === name) || null;
            plugins.refresh = () => {};
            return plugins;
        },
        configurable: true
    });

    Object.defineProperty(navigator, 'languages', {
        get: () => ['en-US', 'en'],
        configurable: true
    });

    // Real Chrome exposes window.chrome with runtime helpers.
    if (!window.chrome) {
        window.chrome = {};
    }
    if (!window.chrome.runtime) {
        window.chrome.runtime = {
            connect: function() { return { onMessage: { addListener: function() {} }, postMessage: function() {} }; },
            sendMessage: function() {},
            onMessage: { addListener: function() {} },
            id: undefined
        };
    }

    // Notification permission probes are a common headless check.
    if (window.navigator && window.navigator.permissions && window.navigator.permissions.query) {
        const originalQuery = window.navigator.permissions.query.bind(window.navigator.permissions);
        window.navigator.permissions.query = (parameters) => {
            if (parameters.name === 'notifications') {
                return Promise.resolve({
                    state: typeof Notification !== 'undefined' ? Notification.permission : 'default',
                    onchange: null
                });
            }
            return originalQuery(parameters);
        };
    }

    // Containers report unusual values for these.
    Object.defineProperty(navigator, 'hardwareConcurrency', {
        get: () => 8,
        configurable: true
    });
    Object.defineProperty(navigator, 'deviceMemory', {
        get: () => 8,
        configurable: true
    });

    } catch (e) {
        // A failed patch is better than a thrown one: detection of a
        // partially patched browser still beats a crashed script.
    }
})();
`

// BlockStaticAssets configures the page to abort stylesheet, font, and
// image requests. Post pages render their text content without any of
// them, and skipping the transfers cuts both latency and bandwidth.
//
// The returned cleanup stops the interception listeners. It is safe to
// call more than once.
func BlockStaticAssets(ctx context.Context, page *rod.Page) (cleanup func(), err error) {
	log.Debug().Msg("Configuring static asset blocking")

	err = proto.FetchEnable{
		Patterns: blockPatterns(),
	}.Call(page)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to enable asset blocking")
		return func() {}, err
	}

	// Cancelable context for event listeners, canceled on cleanup or
	// when the parent context is done.
	listenerCtx, cancel := context.WithCancel(ctx)
	pageWithCtx := page.Context(listenerCtx)

	var wg sync.WaitGroup

	var cleanupOnce sync.Once
	cleanupFunc := func() {
		cleanupOnce.Do(func() {
			cancel()
			done := make(chan struct{})
			go func() {
				wg.Wait()
				close(done)
			}()
			select {
			case <-done:
				log.Debug().Msg("Asset blocking listeners cleaned up")
			case <-time.After(5 * time.Second):
				log.Warn().Msg("Timeout waiting for asset blocking listeners to cleanup")
			}
		})
	}

	// Auto-cleanup when the page goes away.
	wg.Add(1)
	go func() {
		defer wg.Done()
		pageWithCtx.EachEvent(func(e *proto.TargetTargetDestroyed) bool {
			cleanupFunc()
			return true // Stop listening
		})()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pageWithCtx.EachEvent(func(e *proto.FetchRequestPaused) bool {
			select {
			case <-listenerCtx.Done():
				return true // Stop listening
			default:
			}
			// Ignore error: request may have been canceled or page closed
			_ = proto.FetchFailRequest{
				RequestID:   e.RequestID,
				ErrorReason: proto.NetworkErrorReasonBlockedByClient,
			}.Call(page)
			return false // Continue listening
		})()
	}()

	return cleanupFunc, nil
}

// blockPatterns matches the resource classes a post page can render
// without. Scripts and XHR stay enabled: the page needs them to hydrate
// the post content.
func blockPatterns() []*proto.FetchRequestPattern {
	patterns := make([]*proto.FetchRequestPattern, 0, 3)
	for _, rt := range []proto.NetworkResourceType{
		proto.NetworkResourceTypeStylesheet,
		proto.NetworkResourceTypeFont,
		proto.NetworkResourceTypeImage,
	} {
		patterns = append(patterns, &proto.FetchRequestPattern{
			URLPattern:   "*",
			ResourceType: rt,
		})
	}
	return patterns
}

// SetUserAgent sets a custom user agent on the page.
func SetUserAgent(page *rod.Page, userAgent string) error {
	return proto.NetworkSetUserAgentOverride{
		UserAgent: userAgent,
	}.Call(page)
}

// SetViewport sets the page viewport size.
func SetViewport(page *rod.Page, width, height int) error {
	return page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            false,
	})
}

// SetCookies sets cookies on the page.
func SetCookies(page *rod.Page, cookies []*proto.NetworkCookieParam) error {
	return page.SetCookies(cookies)
}

// GetCookies returns all cookies visible to the page.
func GetCookies(page *rod.Page) ([]*proto.NetworkCookie, error) {
	return page.Cookies(nil)
}
