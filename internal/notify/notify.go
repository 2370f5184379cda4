// Package notify implements the ntfy push used to report a run's
// outcome. An unconfigured notifier (no URL or topic set) is a no-op,
// never an error.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// httpClientTimeout mirrors the reference CLI's default HTTP client
// timeout for metadata/control-plane calls.
const httpClientTimeout = 30 * time.Second

// Config holds ntfy push destination and credentials.
type Config struct {
	URL      string
	Topic    string
	Username string
	Password string
}

// Enabled reports whether enough configuration is present to push.
func (c Config) Enabled() bool {
	return c.URL != "" && c.Topic != ""
}

// Notifier pushes run-summary messages to an ntfy topic over HTTP POST.
type Notifier struct {
	cfg    Config
	client *http.Client
}

// New builds a Notifier. Callers should check cfg.Enabled() first if
// they want to skip constructing an HTTP client entirely; New itself
// never errors.
func New(cfg Config) *Notifier {
	return &Notifier{cfg: cfg, client: &http.Client{Timeout: httpClientTimeout}}
}

// Push sends message to the configured ntfy topic. A no-op when the
// notifier isn't configured.
func (n *Notifier) Push(ctx context.Context, title, message string) error {
	if !n.cfg.Enabled() {
		return nil
	}

	url := strings.TrimRight(n.cfg.URL, "/") + "/" + n.cfg.Topic

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}

	req.Header.Set("Title", title)

	if n.cfg.Username != "" {
		req.SetBasicAuth(n.cfg.Username, n.cfg.Password)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("notify: ntfy returned status %d", resp.StatusCode)
	}

	return nil
}
