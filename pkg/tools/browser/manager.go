// Package browser provides playwright-backed browser automation tools for
// the scraper worker: navigation, content extraction, and simple page
// interaction, behind a managed browser session.
package browser

import (
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/gobwas/glob"
	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultTimeout is the per-operation timeout in milliseconds.
	DefaultTimeout = 30000.0

	// DefaultMaxContentLength caps extracted page text.
	DefaultMaxContentLength = 20000
)

// SessionManager owns the playwright process and a single shared browser
// session. It is safe for concurrent use; page operations themselves are
// serialized by the session lock because one turn drives one page at a time.
type SessionManager struct {
	mu             sync.Mutex
	pw             *playwright.Playwright
	browser        playwright.Browser
	page           playwright.Page
	headless       bool
	allowedDomains []glob.Glob
	initialized    bool
}

// NewSessionManager creates a manager. allowedDomains are glob patterns
// matched against navigation hosts; an empty list allows any host.
func NewSessionManager(headless bool, allowedDomains []string) (*SessionManager, error) {
	globs := make([]glob.Glob, 0, len(allowedDomains))
	for _, pattern := range allowedDomains {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid domain pattern %q: %w", pattern, err)
		}
		globs = append(globs, g)
	}
	return &SessionManager{headless: headless, allowedDomains: globs}, nil
}

// ensureSession lazily installs and starts playwright and launches the
// browser on first use, so deployments without browser tools never pay the
// startup cost.
func (m *SessionManager) ensureSession() (playwright.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return m.page, nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &m.headless,
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	page, err := browser.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	m.pw = pw
	m.browser = browser
	m.page = page
	m.initialized = true
	return page, nil
}

// hostAllowed checks a navigation target against the domain allow-list.
func (m *SessionManager) hostAllowed(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid URL %q", rawURL)
	}
	if len(m.allowedDomains) == 0 {
		return nil
	}
	host := parsed.Hostname()
	for _, g := range m.allowedDomains {
		if g.Match(host) {
			return nil
		}
	}
	return fmt.Errorf("host %q is not in the allowed domain list", host)
}

// Close shuts down the browser and playwright process. Safe to call when
// nothing was started.
func (m *SessionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil
	}
	m.initialized = false

	var firstErr error
	if err := m.browser.Close(); err != nil {
		firstErr = err
	}
	if err := m.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// timeoutOption converts the default timeout for playwright option structs.
func timeoutOption() *float64 {
	t := DefaultTimeout
	return &t
}
