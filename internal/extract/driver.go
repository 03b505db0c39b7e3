package extract

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"
	"github.com/ysmood/gson"

	"github.com/thevalentinedev/altreach/internal/browser"
	"github.com/thevalentinedev/altreach/internal/humanize"
)

// pageDriver is the slice of page behavior the extraction flow needs.
// The production driver wraps a rod page; tests substitute a scripted
// fake so the flow can be exercised without a browser.
type pageDriver interface {
	SetCookies(cookies []*proto.NetworkCookieParam) error
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, selector string) error
	Text(ctx context.Context, selector string) (string, error)
	MediaURLs(ctx context.Context, root, img, video string) ([]string, error)
	HTML() (string, error)
	Close() error
}

// rodDriver implements pageDriver on a hardened rod page.
type rodDriver struct {
	page *rod.Page
}

func (d *rodDriver) SetCookies(cookies []*proto.NetworkCookieParam) error {
	return browser.SetCookies(d.page, cookies)
}

// Navigate loads the URL with its own deadline. A timed-out load event
// is tolerated: the platform is a single-page app whose load event can
// stay pending long after the post has rendered, so the selector wait
// is the real readiness signal.
func (d *rodDriver) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p := d.page.Context(ctx).Timeout(timeout)
	if err := p.Navigate(url); err != nil {
		return err
	}
	if err := p.WaitLoad(); err != nil {
		log.Debug().Err(err).Msg("Load event wait timed out, continuing")
	}
	return nil
}

func (d *rodDriver) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := d.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

// ScrollIntoView brings the element into the viewport with a human-like
// smooth scroll. Besides looking natural this triggers the feed's lazy
// media loading.
func (d *rodDriver) ScrollIntoView(ctx context.Context, selector string) error {
	el, err := d.page.Context(ctx).Timeout(2 * time.Second).Element(selector)
	if err != nil {
		return err
	}
	return humanize.NewScroller(d.page).ScrollToElement(ctx, el)
}

const readTextJS = `sel => {
	const node = document.querySelector(sel);
	return node ? node.innerText : '';
}`

func (d *rodDriver) Text(ctx context.Context, selector string) (string, error) {
	res, err := d.page.Context(ctx).Eval(readTextJS, selector)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

const readMediaJS = `(root, img, video) => {
	const scope = document.querySelector(root) || document;
	const urls = [];
	for (const el of scope.querySelectorAll(img)) {
		if (el.src) urls.push(el.src);
	}
	for (const el of scope.querySelectorAll(video)) {
		const source = el.querySelector && el.querySelector('source');
		const src = el.src || (source && source.src) || el.poster;
		if (src) urls.push(src);
	}
	return urls;
}`

func (d *rodDriver) MediaURLs(ctx context.Context, root, img, video string) ([]string, error) {
	res, err := d.page.Context(ctx).Eval(readMediaJS, root, img, video)
	if err != nil {
		return nil, err
	}
	return gsonStrings(res.Value.Arr()), nil
}

func gsonStrings(arr []gson.JSON) []string {
	var out []string
	for _, v := range arr {
		if s := v.Str(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (d *rodDriver) HTML() (string, error) {
	return d.page.HTML()
}

func (d *rodDriver) Close() error {
	return d.page.Close()
}
