// Package browser owns the playwright lifecycle for the CLI: one driver
// install, one browser, one page.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultViewportWidth is the initial viewport width in pixels.
	DefaultViewportWidth = 1280

	// DefaultViewportHeight is the initial viewport height in pixels.
	DefaultViewportHeight = 900

	// DefaultTimeout is the default operation timeout in milliseconds.
	DefaultTimeout = 30000.0
)

// Options configures the launched browser.
type Options struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// Timeout is the default page operation timeout in milliseconds. Zero
	// selects DefaultTimeout.
	Timeout float64
}

// Manager owns the playwright driver and the single page the enhancement
// engine runs against.
type Manager struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	page        playwright.Page
	initialized bool
}

// NewManager creates an uninitialized manager; call Initialize before Start.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize installs and starts the playwright driver. Idempotent.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	// Discard driver output so it never pollutes the CLI's own output.
	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.playwright = pw
	m.initialized = true
	return nil
}

// Start launches the browser and opens the single page.
func (m *Manager) Start(opts Options) (playwright.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	if m.page != nil {
		return nil, fmt.Errorf("browser already started")
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	browser, err := m.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		},
	})
	if err != nil {
		browser.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	page, err := context.NewPage()
	if err != nil {
		context.Close()
		browser.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page.SetDefaultTimeout(opts.Timeout)

	m.browser = browser
	m.context = context
	m.page = page
	return page, nil
}

// Navigate loads the URL and waits for the DOM to be ready.
func (m *Manager) Navigate(url string) error {
	m.mu.Lock()
	page := m.page
	m.mu.Unlock()

	if page == nil {
		return fmt.Errorf("browser not started")
	}

	if _, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Shutdown closes the page, context, browser, and driver. Safe to call with
// nothing started.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.page != nil {
		_ = m.page.Close()
		m.page = nil
	}
	if m.context != nil {
		_ = m.context.Close()
		m.context = nil
	}
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.initialized && m.playwright != nil {
		if err := m.playwright.Stop(); err != nil {
			return fmt.Errorf("failed to stop playwright: %w", err)
		}
		m.initialized = false
	}
	return nil
}
