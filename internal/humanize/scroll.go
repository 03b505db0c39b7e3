package humanize

import (
	"context"
	"math"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
)

// ScrollConfig contains configuration for humanized scroll behavior.
type ScrollConfig struct {
	// MinScrollSteps is the minimum number of scroll increments for smooth scrolling.
	MinScrollSteps int
	// MaxScrollSteps is the maximum number of scroll increments.
	MaxScrollSteps int
	// MinStepDelayMs is the minimum delay between scroll steps.
	MinStepDelayMs int
	// MaxStepDelayMs is the maximum delay between scroll steps.
	MaxStepDelayMs int
	// ScrollMargin is the margin to add when checking element visibility (pixels).
	ScrollMargin float64
	// PreScrollDelayMinMs is the delay before starting to scroll.
	PreScrollDelayMinMs int
	PreScrollDelayMaxMs int
	// PostScrollDelayMinMs is the delay after completing scroll.
	PostScrollDelayMinMs int
	PostScrollDelayMaxMs int
}

// DefaultScrollConfig returns sensible defaults for human-like scrolling.
func DefaultScrollConfig() ScrollConfig {
	return ScrollConfig{
		MinScrollSteps:       8,
		MaxScrollSteps:       20,
		MinStepDelayMs:       20,
		MaxStepDelayMs:       60,
		ScrollMargin:         100,
		PreScrollDelayMinMs:  50,
		PreScrollDelayMaxMs:  200,
		PostScrollDelayMinMs: 100,
		PostScrollDelayMaxMs: 300,
	}
}

// Scroller provides humanized scroll interactions for a browser page.
// Scrolling a post into view before reading it both looks natural and
// triggers the feed's lazy media loading.
type Scroller struct {
	page   *rod.Page
	config ScrollConfig
}

// NewScroller creates a scroller with default config.
func NewScroller(page *rod.Page) *Scroller {
	return &Scroller{
		page:   page,
		config: DefaultScrollConfig(),
	}
}

// NewScrollerWithConfig creates a scroller with custom config.
func NewScrollerWithConfig(page *rod.Page, config ScrollConfig) *Scroller {
	return &Scroller{
		page:   page,
		config: config,
	}
}

// ScrollToElement smoothly scrolls to bring an element into view.
// Uses incremental scrolling with easing for natural appearance.
func (s *Scroller) ScrollToElement(ctx context.Context, element *rod.Element) error {
	shape, err := element.Shape()
	if err != nil {
		return err
	}
	if shape == nil || len(shape.Quads) == 0 {
		return ErrElementNotVisible
	}

	layoutMetrics, err := proto.PageGetLayoutMetrics{}.Call(s.page)
	if err != nil {
		return err
	}

	quad := shape.Quads[0]
	elementCenterY := (quad[1] + quad[3] + quad[5] + quad[7]) / 4

	currentScrollY := layoutMetrics.VisualViewport.PageY
	viewportHeight := layoutMetrics.VisualViewport.ClientHeight

	viewportTop := currentScrollY
	viewportBottom := currentScrollY + viewportHeight

	if elementCenterY >= viewportTop+s.config.ScrollMargin &&
		elementCenterY <= viewportBottom-s.config.ScrollMargin {
		log.Debug().Msg("Element already in view, no scroll needed")
		return nil
	}

	// Center the element in the viewport.
	targetScrollY := elementCenterY - viewportHeight/2

	maxScrollY := layoutMetrics.ContentSize.Height - viewportHeight
	if targetScrollY < 0 {
		targetScrollY = 0
	}
	if targetScrollY > maxScrollY {
		targetScrollY = maxScrollY
	}

	return s.smoothScrollTo(ctx, currentScrollY, targetScrollY)
}

// ScrollBy scrolls the page by the specified delta with smooth animation.
func (s *Scroller) ScrollBy(ctx context.Context, deltaY float64) error {
	layoutMetrics, err := proto.PageGetLayoutMetrics{}.Call(s.page)
	if err != nil {
		return err
	}

	currentScrollY := layoutMetrics.VisualViewport.PageY
	targetScrollY := currentScrollY + deltaY

	maxScrollY := layoutMetrics.ContentSize.Height - layoutMetrics.VisualViewport.ClientHeight
	if targetScrollY < 0 {
		targetScrollY = 0
	}
	if targetScrollY > maxScrollY {
		targetScrollY = maxScrollY
	}

	return s.smoothScrollTo(ctx, currentScrollY, targetScrollY)
}

// smoothScrollTo performs a smooth scroll animation from current to target Y position.
func (s *Scroller) smoothScrollTo(ctx context.Context, fromY, toY float64) error {
	preDelay := RandomDuration(s.config.PreScrollDelayMinMs, s.config.PreScrollDelayMaxMs)
	if !SleepWithContext(ctx, preDelay) {
		return ctx.Err()
	}

	distance := math.Abs(toY - fromY)
	if distance < 1 {
		return nil
	}

	// Number of steps scales with distance.
	numSteps := s.config.MinScrollSteps + int(distance/100)
	if numSteps > s.config.MaxScrollSteps {
		numSteps = s.config.MaxScrollSteps
	}

	log.Debug().
		Float64("from_y", fromY).
		Float64("to_y", toY).
		Int("steps", numSteps).
		Msg("Starting smooth scroll")

	for i := 1; i <= numSteps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		t := float64(i) / float64(numSteps)
		easedT := easeOutCubic(t)

		currentY := fromY + (toY-fromY)*easedT

		_, err := s.page.Eval(`y => window.scrollTo({top: y, behavior: 'instant'})`, currentY)
		if err != nil {
			log.Debug().Err(err).Msg("Scroll step failed")
			// Continue anyway, might still work
		}

		stepDelay := RandomDuration(s.config.MinStepDelayMs, s.config.MaxStepDelayMs)
		if !SleepWithContext(ctx, stepDelay) {
			return ctx.Err()
		}
	}

	postDelay := RandomDuration(s.config.PostScrollDelayMinMs, s.config.PostScrollDelayMaxMs)
	if !SleepWithContext(ctx, postDelay) {
		return ctx.Err()
	}

	log.Debug().Float64("target_y", toY).Msg("Smooth scroll completed")
	return nil
}

// easeOutCubic provides deceleration easing for natural scroll ending.
func easeOutCubic(t float64) float64 {
	return 1 - math.Pow(1-t, 3)
}
