package agmarknet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/chromedp/chromedp"

	"agmark-sync/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeOptions configures the headless Chrome used for each run.
type ChromeOptions struct {
	ExecPath string
	Headless bool
}

// NewChromeSessionFactory returns a SessionFactory that launches a fresh
// Chrome process per session.
func NewChromeSessionFactory(opts ChromeOptions, logger *utils.Logger) SessionFactory {
	execPath := opts.ExecPath
	if execPath == "" {
		execPath = findChromeBinary()
	}
	logger.Info("[chrome] Using browser binary: %s", displayBinary(execPath))

	return func(ctx context.Context) (Browser, error) {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.UserAgent(userAgent),
		)
		if execPath != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
		}

		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)

		// Suppress chromedp log noise
		tabCtx, cancelTab := chromedp.NewContext(allocCtx,
			chromedp.WithLogf(func(string, ...interface{}) {}),
			chromedp.WithErrorf(func(format string, args ...interface{}) {
				logger.Debug("[chrome] "+format, args...)
			}),
		)

		// Run with no actions starts the browser.
		if err := chromedp.Run(tabCtx); err != nil {
			cancelTab()
			cancelAlloc()
			return nil, fmt.Errorf("chrome: start: %w", err)
		}

		return &chromeSession{
			ctx: tabCtx,
			cancel: func() {
				cancelTab()
				cancelAlloc()
			},
		}, nil
	}
}

// chromeSession implements Browser on one chromedp tab.
type chromeSession struct {
	ctx       context.Context
	cancel    func()
	closeOnce sync.Once
}

// run executes actions on the tab, honouring the deadline and cancellation
// of the caller's ctx.
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *chromeSession) WaitPresent(ctx context.Context, sel Selector) error {
	err := s.run(ctx, chromedp.WaitReady(sel.CSS(), chromedp.ByQuery))
	if errors.Is(err, context.DeadlineExceeded) {
		return &ElementNotPresentError{Selector: sel, Err: err}
	}
	return err
}

const selectByLabelJS = `(function(sel, label) {
	var el = document.querySelector(sel);
	if (!el) return "missing";
	for (var i = 0; i < el.options.length; i++) {
		if (el.options[i].text.trim() === label) {
			el.selectedIndex = i;
			el.dispatchEvent(new Event("change", { bubbles: true }));
			return "ok";
		}
	}
	return "notfound";
})(%s, %s)`

func (s *chromeSession) SelectByLabel(ctx context.Context, sel Selector, label string) error {
	var outcome string
	script := fmt.Sprintf(selectByLabelJS, jsString(sel.CSS()), jsString(label))
	if err := s.run(ctx, chromedp.Evaluate(script, &outcome)); err != nil {
		return fmt.Errorf("select %q in %s: %w", label, sel, err)
	}

	switch outcome {
	case "ok":
		return nil
	case "notfound":
		return &OptionNotFoundError{Selector: sel, Label: label}
	default:
		return &ElementNotPresentError{Selector: sel, Err: errors.New("element vanished before selection")}
	}
}

func (s *chromeSession) SetValue(ctx context.Context, sel Selector, value string) error {
	return s.run(ctx, chromedp.SetValue(sel.CSS(), value, chromedp.ByQuery))
}

func (s *chromeSession) Click(ctx context.Context, sel Selector) error {
	return s.run(ctx, chromedp.Click(sel.CSS(), chromedp.ByQuery))
}

const clickIfPresentJS = `(function(sel) {
	var el = document.querySelector(sel);
	if (!el) return false;
	el.click();
	return true;
})(%s)`

func (s *chromeSession) ClickIfPresent(ctx context.Context, sel Selector) (bool, error) {
	var clicked bool
	err := s.run(ctx, chromedp.Evaluate(fmt.Sprintf(clickIfPresentJS, jsString(sel.CSS())), &clicked))
	return clicked, err
}

func (s *chromeSession) HTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (s *chromeSession) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func displayBinary(path string) string {
	if path == "" {
		return "(chromedp default lookup)"
	}
	return path
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
