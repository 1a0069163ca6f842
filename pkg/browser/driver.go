package browser

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// DefaultOperationTimeout bounds a single driver operation when the caller
// does not supply its own.
const DefaultOperationTimeout = 10 * time.Second

// chromeCandidates returns the well-known install locations for Chrome and
// Chromium on this platform.
func chromeCandidates() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	default:
		return []string{
			"/usr/bin/google-chrome",
			"/usr/bin/google-chrome-stable",
			"/usr/bin/chromium",
			"/usr/bin/chromium-browser",
		}
	}
}

// FindChromeBinary returns the path of an installed Chrome/Chromium binary,
// or empty string if none is present.
func FindChromeBinary() string {
	for _, candidate := range chromeCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// Installed reports whether a compatible browser binary is available.
func Installed() bool {
	return FindChromeBinary() != ""
}

// Options configures a driver session.
type Options struct {
	// Headless controls whether the browser runs without a visible window.
	// Opt-out runs are headful so the user can take over on gated steps.
	Headless bool

	// ExecutablePath overrides browser binary discovery. Mostly for tests.
	ExecutablePath string

	// OperationTimeout bounds each driver operation unless the call
	// supplies its own. Zero means DefaultOperationTimeout.
	OperationTimeout time.Duration
}

// Driver owns exactly one live browser connection and one active page for
// the duration of a run or recording session. Operations never retry
// internally; retry policy belongs to the step executor.
type Driver struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	opts    Options
}

// NewDriver creates an unlaunched driver with the given options.
func NewDriver(opts Options) *Driver {
	if opts.OperationTimeout <= 0 {
		opts.OperationTimeout = DefaultOperationTimeout
	}
	return &Driver{opts: opts}
}

// Launch starts the browser and opens the session's single page. It fails
// with ErrBrowserUnavailable when no compatible binary can be started.
func (d *Driver) Launch() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil {
		return fmt.Errorf("session already launched")
	}

	execPath := d.opts.ExecutablePath
	if execPath == "" {
		execPath = FindChromeBinary()
	}
	if execPath == "" {
		return fmt.Errorf("%w: no Chrome or Chromium binary found", ErrBrowserUnavailable)
	}

	// Run the playwright driver quietly so it cannot interfere with the TUI.
	runOpts := &playwright.RunOptions{
		Verbose:             false,
		Stdout:              io.Discard,
		Stderr:              io.Discard,
		SkipInstallBrowsers: true,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("%w: install driver: %v", ErrBrowserUnavailable, err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("%w: start driver: %v", ErrBrowserUnavailable, err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless:       playwright.Bool(d.opts.Headless),
		ExecutablePath: playwright.String(execPath),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--no-first-run",
			"--no-default-browser-check",
			"--disable-background-timer-throttling",
		},
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("%w: launch: %v", ErrBrowserUnavailable, err)
	}

	context, err := browser.NewContext()
	if err != nil {
		browser.Close()
		pw.Stop()
		return fmt.Errorf("%w: new context: %v", ErrBrowserUnavailable, err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		pw.Stop()
		return fmt.Errorf("%w: new page: %v", ErrBrowserUnavailable, err)
	}
	page.SetDefaultTimeout(float64(d.opts.OperationTimeout.Milliseconds()))

	d.pw = pw
	d.browser = browser
	d.context = context
	d.page = page
	return nil
}

// Close tears the session down deterministically: page, then context, then
// browser, then the playwright driver. Safe to call on an unlaunched or
// already-closed driver, and on every exit path of a run.
func (d *Driver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.page != nil {
		_ = d.page.Close()
		d.page = nil
	}
	if d.context != nil {
		_ = d.context.Close()
		d.context = nil
	}
	if d.browser != nil {
		_ = d.browser.Close()
		d.browser = nil
	}
	if d.pw != nil {
		_ = d.pw.Stop()
		d.pw = nil
	}
}

// activePage returns the session's page, or ErrNoSession.
func (d *Driver) activePage() (playwright.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.page == nil {
		return nil, ErrNoSession
	}
	return d.page, nil
}

// timeoutMS converts a caller timeout to playwright milliseconds, applying
// the driver default when unset.
func (d *Driver) timeoutMS(timeout time.Duration) float64 {
	if timeout <= 0 {
		timeout = d.opts.OperationTimeout
	}
	return float64(timeout.Milliseconds())
}

// URL returns the current page URL, or empty string with no session.
func (d *Driver) URL() string {
	page, err := d.activePage()
	if err != nil {
		return ""
	}
	return page.URL()
}
