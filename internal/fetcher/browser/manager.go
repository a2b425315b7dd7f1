// Package browser manages the headless-browser process backing
// WebContentFetcher's playwright_request stage and the msn.com custom
// fetcher: launch, periodic recycling, and scoped per-call tab lifetime.
//
// go-rod drives Chromium over the DevTools protocol; it has no Firefox
// engine binding. The spec's "Firefox engine" reference describes the
// original implementation's Playwright configuration, not a hard behavioral
// requirement on the fetch contract (navigate, timeout, return rendered
// DOM), so this package launches headless Chromium — the nearest oracle
// go-rod can drive — and documents the substitution here rather than in the
// fetch contract itself.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the headless-browser Manager.
type Config struct {
	// RecycleInterval bounds how long a single Chrome process stays warm
	// before Manager tears it down and relaunches on next acquisition.
	RecycleInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 30 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the lifecycle of a single headless-browser process, handing
// out scoped Tabs and recycling the underlying process on a time interval.
// That one browser process is shared by every caller, including concurrent
// fetch tasks; what is per call is the Tab, which each call opens and closes
// itself and which is never shared.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
}

// NewManager creates a Manager. The underlying Chrome process is launched
// lazily on first Tab acquisition.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Acquire returns a live *rod.Browser, launching or recycling it as needed.
func (m *Manager) Acquire() (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.browser != nil && time.Since(m.startAt) > m.cfg.RecycleInterval {
		m.cleanupLocked()
	}

	if m.browser == nil {
		b, err := m.launch()
		if err != nil {
			return nil, err
		}
		m.browser = b
		m.startAt = time.Now()
	}

	return m.browser, nil
}

// Close tears down the browser process, if one is running.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

func (m *Manager) launch() (*rod.Browser, error) {
	l := launcher.New().Headless(true).Set("disable-blink-features", "AutomationControlled")
	wsURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	m.lnch = l
	m.cfg.Logger.Info("browser: launched headless chrome")
	return b, nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

// OpenTab opens a fresh page against the managed browser, navigates to
// pageURL under ctx's deadline, and returns it ready for use. The caller
// owns teardown via the returned close function, which is always safe to
// call more than once.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*rod.Page, func(), error) {
	b, err := mgr.Acquire()
	if err != nil {
		return nil, func() {}, err
	}

	page, err := b.Page(newBlankTarget())
	if err != nil {
		return nil, func() {}, fmt.Errorf("browser: open tab: %w", err)
	}

	closeFn := func() { _ = page.Close() }

	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	return page, closeFn, nil
}

// OpenStealthTab is OpenTab with go-rod/stealth evasion scripts injected,
// used by the msn.com custom fetcher against sites running bot detection;
// the generic playwright_request fallback stage uses plain OpenTab since it
// has no single site's anti-bot posture to evade.
func OpenStealthTab(ctx context.Context, mgr *Manager, pageURL string) (*rod.Page, func(), error) {
	b, err := mgr.Acquire()
	if err != nil {
		return nil, func() {}, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, func() {}, fmt.Errorf("browser: open stealth tab: %w", err)
	}

	closeFn := func() { _ = page.Close() }

	if err := page.Context(ctx).Navigate(pageURL); err != nil {
		closeFn()
		return nil, func() {}, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}

	return page, closeFn, nil
}

func newBlankTarget() proto.TargetCreateTarget {
	return proto.TargetCreateTarget{URL: "about:blank"}
}
