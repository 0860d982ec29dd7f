package browser

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/semanticbrowser/kb/internal/errs"
)

// WaitUntil selects when navigate considers the page ready, per
// spec.md §4.8.
type WaitUntil string

const (
	WaitLoad             WaitUntil = "load"
	WaitDOMContentLoaded WaitUntil = "domcontentloaded"
	WaitNetworkIdle      WaitUntil = "networkidle"
)

// NavigateOpts configures a single navigate call.
type NavigateOpts struct {
	Timeout time.Duration
	Wait    WaitUntil
}

// Tab is a single reusable page checked out of a Pool. Every method may
// fail with one of spec.md §4.8's typed errors (errs.Kind).
type Tab struct {
	id   string
	page *rod.Page
	cfg  Config
}

// ID identifies the tab for logging/telemetry.
func (t *Tab) ID() string { return t.id }

// Navigate loads url, waiting up to opts.Timeout (defaulting to the
// pool's configured navigation timeout) for opts.Wait to be satisfied.
// Returns the final URL after any redirects.
func (t *Tab) Navigate(url string, opts NavigateOpts) (string, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = t.cfg.navigationTimeout()
	}
	page := t.page.Timeout(timeout)

	if err := page.Navigate(url); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeoutErr(err) {
			return "", errs.Wrap(errs.KindNavigationTimeout, "navigate timed out", err)
		}
		return "", errs.Wrap(errs.KindNavigationTimeout, "navigate failed", err)
	}

	var waitErr error
	switch opts.Wait {
	case WaitNetworkIdle:
		waitErr = page.WaitIdle(timeout)
	case WaitDOMContentLoaded:
		waitErr = page.WaitDOMStable(300*time.Millisecond, 0)
	default:
		waitErr = page.WaitLoad()
	}
	if waitErr != nil {
		return "", errs.Wrap(errs.KindNavigationTimeout, "wait condition not reached", waitErr)
	}

	info, err := t.page.Info()
	if err != nil {
		return url, nil
	}
	return info.URL, nil
}

func isTimeoutErr(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "timeout") ||
		strings.Contains(strings.ToLower(err.Error()), "deadline exceeded")
}

func (t *Tab) element(selector string) (*rod.Element, error) {
	timeout := t.cfg.defaultTimeout()
	el, err := t.page.Timeout(timeout).Element(selector)
	if err != nil {
		return nil, errs.Wrap(errs.KindElementNotFound, "element not found: "+selector, err)
	}
	return el, nil
}

// Click waits for selector up to the default timeout and clicks it.
func (t *Tab) Click(selector string) error {
	el, err := t.element(selector)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return errs.Wrap(errs.KindElementNotUsable, "click failed: "+selector, err)
	}
	return nil
}

// Fill focuses selector, clears its current value, and types value.
func (t *Tab) Fill(selector, value string) error {
	el, err := t.element(selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err == nil {
		_ = el.Input("")
	}
	if err := el.Input(value); err != nil {
		return errs.Wrap(errs.KindElementNotUsable, "fill failed: "+selector, err)
	}
	return nil
}

// Evaluate runs js in the page context and returns its JSON-decoded
// result.
func (t *Tab) Evaluate(js string) (any, error) {
	res, err := t.page.Eval(js)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "evaluate failed", err)
	}
	var out any
	if err := json.Unmarshal([]byte(res.Value.Raw), &out); err != nil {
		return res.Value.Str(), nil
	}
	return out, nil
}

// EvaluateInto runs js and unmarshals its JSON result directly into out,
// for callers (e.g. Smart Form Filler field discovery) that expect a
// fixed shape rather than a generic value.
func (t *Tab) EvaluateInto(js string, out any) error {
	res, err := t.page.Eval(js)
	if err != nil {
		return errs.Wrap(errs.KindInternal, "evaluate failed", err)
	}
	if err := json.Unmarshal([]byte(res.Value.Raw), out); err != nil {
		return errs.Wrap(errs.KindInternal, "evaluate result was not the expected shape", err)
	}
	return nil
}

// ContentFormat selects get_content's output shape.
type ContentFormat string

const (
	ContentHTML ContentFormat = "html"
	ContentText ContentFormat = "text"
)

// GetContent returns the page's rendered HTML or visible text.
func (t *Tab) GetContent(format ContentFormat) (string, error) {
	if format == ContentText {
		res, err := t.page.Eval(`() => document.body ? document.body.innerText : ""`)
		if err != nil {
			return "", errs.Wrap(errs.KindInternal, "get_content text failed", err)
		}
		return res.Value.Str(), nil
	}
	html, err := t.page.HTML()
	if err != nil {
		return "", errs.Wrap(errs.KindInternal, "get_content html failed", err)
	}
	return html, nil
}

// Screenshot captures the page as PNG bytes.
func (t *Tab) Screenshot(fullPage bool) ([]byte, error) {
	data, err := t.page.Screenshot(fullPage, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindInternal, "screenshot failed", err)
	}
	return data, nil
}

// ExtractData resolves each selector in selectors and returns, per name,
// the first matching element's text, or nil if the selector has no
// match. It never fails on a missing selector.
func (t *Tab) ExtractData(selectors map[string]string) map[string]any {
	out := make(map[string]any, len(selectors))
	for name, selector := range selectors {
		el, err := t.page.Timeout(t.cfg.defaultTimeout()).Element(selector)
		if err != nil {
			out[name] = nil
			continue
		}
		text, err := el.Text()
		if err != nil {
			out[name] = nil
			continue
		}
		out[name] = text
	}
	return out
}
