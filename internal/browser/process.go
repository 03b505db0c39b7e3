package browser

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/rs/zerolog/log"

	"github.com/thevalentinedev/altreach/internal/config"
)

// Process is a handle to a single running browser instance.
// The pool hands these out and takes them back; extraction code opens
// pages on them but never closes the process itself.
type Process interface {
	// NewPage opens a fresh tab with the stealth patches from
	// go-rod/stealth already injected.
	NewPage() (*rod.Page, error)

	// Alive reports whether the browser still responds to CDP calls.
	Alive() bool

	// Close terminates the browser process.
	Close() error
}

// launchFunc creates a new browser process. The pool uses a real Chrome
// launcher in production and a fake in tests.
type launchFunc func(ctx context.Context) (Process, error)

// chromeProcess wraps a rod browser connected over CDP.
type chromeProcess struct {
	browser *rod.Browser
}

// NewPage opens a blank tab with stealth patches applied before any
// page content can run.
func (c *chromeProcess) NewPage() (*rod.Page, error) {
	page, err := stealth.Page(c.browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	return page, nil
}

// Alive performs a cheap CDP round-trip. A crashed or hung Chrome fails
// this call quickly instead of hanging the caller.
func (c *chromeProcess) Alive() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := proto.BrowserGetVersion{}.Call(c.browser.Context(ctx))
	if err != nil {
		log.Debug().Err(err).Msg("Browser liveness check failed")
		return false
	}
	return true
}

func (c *chromeProcess) Close() error {
	return c.browser.Close()
}

// createLauncher creates a configured Rod launcher.
// These flags are tuned for anti-detection: no automation-controlled
// blink features, realistic WebGL via SwiftShader, and a standard
// desktop window size.
func createLauncher(cfg *config.Config) *launcher.Launcher {
	l := launcher.New()

	if cfg.BrowserPath != "" {
		l = l.Bin(cfg.BrowserPath)
	}

	// HEADLESS=true uses --headless=new (Chrome 109+). With
	// HEADLESS=false Chrome renders into whatever DISPLAY points at,
	// typically an Xvfb virtual display in containers, which is the
	// stronger option against bot detection.
	if cfg.Headless {
		l = l.Set("headless", "new")
	} else {
		// Rod enables headless by default, disable it explicitly.
		l = l.Headless(false)
	}

	// Container security flags
	l = l.Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-dev-shm-usage")

	// Prevent WebRTC from revealing the server's real public IP.
	l = l.Set("force-webrtc-ip-handling-policy", "disable_non_proxied_udp")

	// The most important anti-detection flag: prevents
	// navigator.webdriver from being set.
	l = l.Set("disable-blink-features", "AutomationControlled")
	l = l.Delete("enable-automation")

	l = l.Set("disable-features", "Translate,TranslateUI,BlinkGenPropertyTrees,WebRtcHideLocalIpsWithMdns")
	l = l.Set("enable-features", "NetworkService,NetworkServiceInProcess")

	// WebGL via SwiftShader gives a realistic GPU fingerprint.
	// Empty WebGL values are a detection signal.
	l = l.Set("use-gl", "swiftshader").
		Set("use-angle", "swiftshader").
		Set("enable-unsafe-swiftshader").
		Set("enable-webgl").
		Set("enable-webgl2")

	// Language consistent with the user agent
	l = l.Set("accept-lang", "en-US,en;q=0.9")

	l = l.Set("no-first-run").
		Set("no-default-browser-check").
		Set("disable-infobars").
		Set("disable-search-engine-choice-screen")

	l = l.Set("window-size", "1920,1080")

	// Performance and stability
	l = l.Set("disable-background-networking").
		Set("disable-default-apps").
		Set("disable-extensions").
		Set("disable-sync").
		Set("mute-audio").
		Set("no-zygote").
		Set("safebrowsing-disable-auto-update")

	l = l.Set("js-flags", "--max-old-space-size=256").
		Set("disable-ipc-flooding-protection").
		Set("disable-renderer-backgrounding")

	l = l.Set("disable-gpu-sandbox")

	// Do NOT use --disable-gpu on ARM, it breaks SwiftShader WebGL.
	if isARM() {
		l = l.Set("disable-gpu-compositing")
		log.Debug().Msg("ARM detected: using software rendering with SwiftShader for WebGL")
	}

	return l
}

// launchChrome starts a new Chrome process and connects to it via CDP.
// Each call creates a fresh launcher since launchers can only be used once.
func launchChrome(ctx context.Context, cfg *config.Config) (Process, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	log.Debug().Msg("Launching new browser process")

	l := createLauncher(cfg)

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Debug().Str("url", url).Msg("Browser process launched")
	return &chromeProcess{browser: browser}, nil
}

// isARM returns true if running on ARM architecture.
func isARM() bool {
	arch := runtime.GOARCH
	return arch == "arm" || arch == "arm64"
}
