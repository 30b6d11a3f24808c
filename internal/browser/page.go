// Package browser drives a Chromium tab over the DevTools protocol. It
// resolves abstract intents to clickable controls and reads the
// participant count from the call UI.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrControlNotFound is returned when no element matches an intent.
var ErrControlNotFound = errors.New("control not found")

// ErrWaitTimeout is returned when a predicate does not hold in time.
var ErrWaitTimeout = errors.New("timed out waiting for page condition")

// ErrPageClosed is returned for calls on a closed Page.
var ErrPageClosed = errors.New("browser tab closed")

// Predicate is a script expression evaluated in the page that must
// yield a boolean.
type Predicate string

// DocumentReady holds once the page has finished loading.
const DocumentReady Predicate = `document.readyState === "complete"`

const handleAttr = "data-meetbot-handle"

// Handle refers to a control located by FindControl.
type Handle struct {
	Token  string
	Action string
}

// Page is a tab the bot opened in an already running browser.
type Page struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	log         *zap.Logger
	// PollInterval is the spacing of WaitUntil checks.
	PollInterval time.Duration
}

// Attach connects to the browser behind ep and opens a new tab in it.
// The tab is not bound to ctx, which only limits the attach itself, so
// a cancelled run can still drive the page while it leaves the call.
func Attach(ctx context.Context, ep *Endpoint, log *zap.Logger) (*Page, error) {
	v, err := ep.Version(ctx)
	if err != nil {
		return nil, err
	}
	if v.WebSocketDebuggerURL == "" {
		return nil, ErrNoDebuggerURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "browser"))
	sugar := log.Sugar()

	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(context.Background(), v.WebSocketDebuggerURL, chromedp.NoModifyURL)
	tab, cancelTab := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Infof),
		chromedp.WithErrorf(sugar.Errorf),
	)
	p := &Page{
		tab:          tab,
		cancelTab:    cancelTab,
		cancelAlloc:  cancelAlloc,
		log:          log,
		PollInterval: 500 * time.Millisecond,
	}

	opened := make(chan error, 1)
	go func() { opened <- chromedp.Run(tab) }()
	select {
	case err = <-opened:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("opening browser tab: %w", err)
	}

	log.Info("opened browser tab",
		zap.String("browser", v.Browser),
		zap.String("target", string(chromedp.FromContext(tab).Target.TargetID)))
	return p, nil
}

// Close closes the bot's tab. The browser itself keeps running.
func (p *Page) Close() error {
	err := chromedp.Cancel(p.tab)
	p.cancelTab()
	p.cancelAlloc()
	return err
}

// run executes actions against the tab, bounded by both ctx and the
// tab's lifetime.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if p.tab.Err() != nil {
		return ErrPageClosed
	}
	c := chromedp.FromContext(p.tab)
	if c == nil || c.Target == nil {
		return ErrPageClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.tab, cancel)
	defer stop()

	err := chromedp.Tasks(actions).Do(cdp.WithExecutor(ctx, c.Target))
	if err != nil && p.tab.Err() != nil {
		return ErrPageClosed
	}
	return err
}

// Navigate loads url in the tab. It does not wait for the load to finish.
func (p *Page) Navigate(ctx context.Context, url string) error {
	var errText string
	err := p.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, _, errText, err = page.Navigate(url).Do(ctx)
		return err
	}))
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	if errText != "" {
		return fmt.Errorf("navigating to %s: %s", url, errText)
	}
	return nil
}

// Evaluate runs expr in the page and decodes its value into out.
func (p *Page) Evaluate(ctx context.Context, expr string, out any) error {
	err := p.run(ctx, chromedp.Evaluate(expr, out, awaitPromise))
	var ex *runtime.ExceptionDetails
	if errors.As(err, &ex) {
		return fmt.Errorf("script error: %w", err)
	}
	return err
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// CurrentLocation returns the tab's URL.
func (p *Page) CurrentLocation(ctx context.Context) (string, error) {
	var href string
	if err := p.Evaluate(ctx, "location.href", &href); err != nil {
		return "", err
	}
	return href, nil
}

// WaitUntil polls pred until it holds, ctx ends or timeout elapses.
func (p *Page) WaitUntil(ctx context.Context, pred Predicate, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()
	for {
		var ok bool
		err := p.Evaluate(ctx, "Boolean("+string(pred)+")", &ok)
		if err == nil && ok {
			return nil
		}
		if errors.Is(err, ErrPageClosed) {
			return err
		}
		if err != nil && ctx.Err() == nil {
			p.log.Debug("predicate check failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrWaitTimeout
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// FindControl locates a visible clickable element matching intent and
// tags it so Activate can find it again.
func (p *Page) FindControl(ctx context.Context, intent Intent) (Handle, error) {
	desc, err := json.Marshal(intent)
	if err != nil {
		return Handle{}, err
	}
	token := uuid.NewString()
	tokenJSON, _ := json.Marshal(token)

	var found bool
	expr := fmt.Sprintf(findControlJS, desc, handleAttr, tokenJSON)
	if err := p.Evaluate(ctx, expr, &found); err != nil {
		return Handle{}, fmt.Errorf("finding %q: %w", intent.Action, err)
	}
	if !found {
		return Handle{}, fmt.Errorf("%s: %w", intent.Action, ErrControlNotFound)
	}
	return Handle{Token: token, Action: intent.Action}, nil
}

// Activate clicks a control returned by FindControl.
func (p *Page) Activate(ctx context.Context, h Handle) error {
	tokenJSON, _ := json.Marshal(h.Token)
	var clicked bool
	expr := fmt.Sprintf(activateJS, handleAttr, tokenJSON)
	if err := p.Evaluate(ctx, expr, &clicked); err != nil {
		return fmt.Errorf("activating %q: %w", h.Action, err)
	}
	if !clicked {
		return fmt.Errorf("%s: control detached: %w", h.Action, ErrControlNotFound)
	}
	return nil
}

// ParticipantCount reads the participant count from the call UI. It
// returns -1 when the count cannot be determined.
func (p *Page) ParticipantCount(ctx context.Context) (int, error) {
	var n int
	if err := p.Evaluate(ctx, participantCountJS, &n); err != nil {
		return -1, fmt.Errorf("reading participant count: %w", err)
	}
	return n, nil
}

const findControlJS = `(() => {
  const desc = %s;
  const attr = %q;
  const token = %s;
  const lower = (s) => (s || "").toLowerCase();
  const any = (hay, needles) => (needles || []).some((n) => hay.includes(n));
  const visible = (el) => {
    const r = el.getBoundingClientRect();
    const st = getComputedStyle(el);
    return r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none";
  };
  const els = document.querySelectorAll('button, [role="button"]');
  for (const el of els) {
    if (!visible(el) || el.disabled || el.getAttribute("aria-disabled") === "true") continue;
    const label = lower(el.getAttribute("aria-label"));
    const text = lower(el.innerText);
    const tip = lower(el.getAttribute("data-tooltip"));
    const all = label + " " + text + " " + tip;
    if (any(all, desc.exclude)) continue;
    if (any(label, desc.labels) || any(text, desc.texts) || any(tip, desc.tooltips)) {
      el.setAttribute(attr, token);
      return true;
    }
  }
  return false;
})()`

const activateJS = `(() => {
  const el = document.querySelector('[' + %q + '="' + %s + '"]');
  if (!el) return false;
  el.scrollIntoView({block: "center"});
  el.click();
  return true;
})()`

const participantCountJS = `(() => {
  const keys = ["participant", "people", "person"];
  const els = document.querySelectorAll("[aria-label], [data-tooltip]");
  for (const el of els) {
    const label = (el.getAttribute("aria-label") || "") + " " + (el.getAttribute("data-tooltip") || "");
    const l = label.toLowerCase();
    if (!keys.some((k) => l.includes(k))) continue;
    const m = (label + " " + (el.innerText || "")).match(/\d+/);
    if (m) return parseInt(m[0], 10);
  }
  const body = (document.body && document.body.innerText || "").toLowerCase();
  if (body.includes("only you") || body.includes("waiting for others")) return 1;
  return -1;
})()`
