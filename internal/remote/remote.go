// Package remote fetches authoritative liturgical content from the canonical store.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/livinlefevreloca/lectio/internal/liturgy"
)

// maxBodySize caps a single day payload
const maxBodySize = 4 << 20

// Source fetches the remote snapshot for one date
type Source interface {
	Fetch(ctx context.Context, date time.Time) (*liturgy.Snapshot, error)
}

// FetchError reports a failed remote fetch for Date
type FetchError struct {
	Date       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Date, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Date, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err came from the remote source
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Config holds remote source settings
type Config struct {
	BaseURL        string        `toml:"base_url"`
	Timeout        time.Duration `toml:"timeout"`
	MaxAttempts    int           `toml:"max_attempts"`
	InitialBackoff time.Duration `toml:"initial_backoff"`
	MaxBackoff     time.Duration `toml:"max_backoff"`
	UserAgent      string        `toml:"user_agent"`
}

// DefaultConfig returns the default remote settings
func DefaultConfig() Config {
	return Config{
		BaseURL:        "http://localhost:8081",
		Timeout:        15 * time.Second,
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		UserAgent:      "lectio/1.0",
	}
}

// ValidateConfig checks remote settings
func ValidateConfig(cfg Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("BaseURL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BaseURL must be an absolute URL, got %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", cfg.Timeout)
	}
	if cfg.MaxAttempts <= 0 {
		return fmt.Errorf("MaxAttempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialBackoff <= 0 {
		return fmt.Errorf("InitialBackoff must be positive, got %v", cfg.InitialBackoff)
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		return fmt.Errorf("MaxBackoff (%v) must be >= InitialBackoff (%v)", cfg.MaxBackoff, cfg.InitialBackoff)
	}
	return nil
}

// ProbeAddress returns host:port of the base URL for reachability checks
func ProbeAddress(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("base url %q has no host", baseURL)
	}
	if u.Port() != "" {
		return u.Host, nil
	}
	if u.Scheme == "https" {
		return u.Hostname() + ":443", nil
	}
	return u.Hostname() + ":80", nil
}

// HTTPSource fetches snapshots from GET {BaseURL}/days/{YYYY-MM-DD}
type HTTPSource struct {
	config Config
	client *http.Client
	logger *slog.Logger
}

// NewHTTPSource creates an HTTP source. A nil client gets one with the
// configured timeout.
func NewHTTPSource(config Config, client *http.Client, logger *slog.Logger) (*HTTPSource, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid remote config: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSource{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

// Fetch returns the remote snapshot for date. Transport errors and 5xx/429
// responses are retried with exponential backoff; other failures are final.
func (s *HTTPSource) Fetch(ctx context.Context, date time.Time) (*liturgy.Snapshot, error) {
	key := liturgy.DateKey(date)
	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/days/" + key

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.config.InitialBackoff
	b.MaxInterval = s.config.MaxBackoff

	attempt := 0
	snapshot, err := backoff.Retry(ctx, func() (*liturgy.Snapshot, error) {
		attempt++
		return s.fetchOnce(ctx, endpoint, key)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.config.MaxAttempts)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			s.logger.Warn("remote fetch failed, retrying",
				"date", key,
				"attempt", attempt,
				"wait", wait,
				"error", err)
		}),
	)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{Date: key, Err: err}
	}

	return snapshot, nil
}

func (s *HTTPSource) fetchOnce(ctx context.Context, endpoint, key string) (*liturgy.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(&FetchError{Date: key, Err: err})
	}
	req.Header.Set("Accept", "application/json")
	if s.config.UserAgent != "" {
		req.Header.Set("User-Agent", s.config.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(&FetchError{Date: key, Err: err})
		}
		return nil, &FetchError{Date: key, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Date: key, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{
			Date:       key,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", strings.TrimSpace(truncate(string(body), 200))),
		}
		if retryable(resp.StatusCode) {
			return nil, fe
		}
		return nil, backoff.Permanent(fe)
	}

	var snapshot liturgy.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, backoff.Permanent(&FetchError{Date: key, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode snapshot: %w", err)})
	}
	if err := snapshot.Normalize(key); err != nil {
		return nil, backoff.Permanent(&FetchError{Date: key, StatusCode: resp.StatusCode, Err: err})
	}

	return &snapshot, nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
