// Package browser owns the automated Chromium session that site providers drive.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rewired-gh/otawatch/internal/config"
	"github.com/rewired-gh/otawatch/internal/logger"
)

// Page is the narrow set of page interactions providers rely on.
type Page interface {
	// Navigate loads url and waits for the page to settle.
	Navigate(url string) error
	// URL returns the current location, or "" if it cannot be read.
	URL() string
	HTML() (string, error)
	// Has reports whether selector matches now, without waiting.
	Has(selector string) bool
	Input(selector, text string) error
	Click(selector string) error
	Close() error
}

// Session is a single Chromium tab driven over the DevTools protocol.
type Session struct {
	ctx      context.Context
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	timeout  time.Duration
	settle   time.Duration
	tempDir  bool
	popups   []string
}

// Launch starts Chromium and opens a blank tab.
func Launch(ctx context.Context, cfg config.BrowserConfig) (*Session, error) {
	l := launcher.New().Context(ctx).Headless(cfg.Headless)
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}
	if cfg.UserDataDir != "" {
		l = l.UserDataDir(cfg.UserDataDir)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	logger.Debug("Browser session started (headless: %v)", cfg.Headless)
	return &Session{
		ctx:      ctx,
		launcher: l,
		browser:  b,
		page:     page,
		timeout:  cfg.Timeout,
		settle:   cfg.SettleDelay,
		tempDir:  cfg.UserDataDir == "",
		popups:   cfg.PopupSelectors,
	}, nil
}

func (s *Session) Navigate(url string) error {
	p := s.page.Timeout(s.timeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		logger.Debug("Page load wait for %s ended early: %v", url, err)
	}
	if err := s.wait(s.settle); err != nil {
		return err
	}
	DismissPopups(s, s.popups)
	return nil
}

func (s *Session) URL() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *Session) HTML() (string, error) {
	p := s.page.Timeout(s.timeout)
	defer p.CancelTimeout()
	return p.HTML()
}

func (s *Session) Has(selector string) bool {
	ok, _, err := s.page.Has(selector)
	return err == nil && ok
}

func (s *Session) Input(selector, text string) error {
	p := s.page.Timeout(s.timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		logger.Debug("Could not clear %s: %v", selector, err)
	}
	return el.Input(text)
}

func (s *Session) Click(selector string) error {
	p := s.page.Timeout(s.timeout)
	defer p.CancelTimeout()

	el, err := p.Element(selector)
	if err != nil {
		return fmt.Errorf("element %s not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return err
	}
	return s.wait(s.settle)
}

// Close shuts the browser down. A launcher-created profile directory is removed.
func (s *Session) Close() error {
	err := s.browser.Close()
	if s.tempDir {
		s.launcher.Cleanup()
	} else {
		s.launcher.Kill()
	}
	if err != nil {
		return fmt.Errorf("failed to close browser: %w", err)
	}
	logger.Debug("Browser session closed")
	return nil
}

func (s *Session) wait(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	case <-timer.C:
		return nil
	}
}
