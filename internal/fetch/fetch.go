// Package fetch retrieves marketplace pages over HTTP with a
// browser-shaped client. Marketplaces fingerprint their callers, so the
// session carries a cookie jar and desktop headers across requests.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	// Pages past this size are almost certainly not product listings.
	maxBodyBytes = 8 << 20
)

// ErrBadStatus is returned for non-2xx marketplace responses.
var ErrBadStatus = errors.New("unexpected response status")

// Config tunes the HTTP fetcher.
type Config struct {
	Timeout   time.Duration `koanf:"timeout"`
	UserAgent string        `koanf:"user_agent"`
}

// Session fetches pages with shared cookies. One session serves one
// pipeline run and must be closed when the run ends.
type Session interface {
	Fetch(ctx context.Context, url string) (string, error)
	Close() error
}

// Fetcher opens sessions. Implementations decide how pages are rendered.
type Fetcher interface {
	NewSession(ctx context.Context) (Session, error)
}

// HTTPFetcher is the plain net/http implementation of Fetcher.
type HTTPFetcher struct {
	cfg Config
}

func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &HTTPFetcher{cfg: cfg}
}

func (f *HTTPFetcher) NewSession(_ context.Context) (Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &httpSession{
		client: &http.Client{
			Jar:     jar,
			Timeout: f.cfg.Timeout,
		},
		userAgent: f.cfg.UserAgent,
	}, nil
}

type httpSession struct {
	client    *http.Client
	userAgent string
}

func (s *httpSession) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9,en;q=0.8")

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d for %s", ErrBadStatus, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body of %s: %w", url, err)
	}

	slog.Debug("page fetched",
		"url", url,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)
	return string(body), nil
}

func (s *httpSession) Close() error {
	s.client.CloseIdleConnections()
	return nil
}
