package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// httpBase carries the HTTP plumbing shared by every manager kind.
type httpBase struct {
	section    Section
	httpClient *http.Client
	logger     zerolog.Logger
}

func newHTTPBase(section Section) httpBase {
	return httpBase{
		section:    section,
		httpClient: &http.Client{Timeout: section.HTTPTimeout},
		logger:     zerolog.Nop(),
	}
}

// setLogger implements configurable for shared options.
func (b *httpBase) setLogger(logger zerolog.Logger) {
	b.logger = logger
}

// setHTTPClient implements configurable for shared options.
func (b *httpBase) setHTTPClient(client *http.Client) {
	b.httpClient = client
}

// Section returns the manager's configuration.
func (b *httpBase) Section() Section {
	return b.section
}

// withTimeout bounds ctx by d when d is set.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// do sends req and returns the body of a 2xx response. Transport failures are
// wrapped with ErrConnection.
func (b *httpBase) do(req *http.Request) ([]byte, error) {
	b.logger.Debug().Str("method", req.Method).Str("url", redact(req.URL.String(), b.section.APIKey)).Msg("opening url")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnection, b.section.Name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrConnection, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return body, fmt.Errorf("%w: %s returned status %d: %s", ErrRejected, b.section.Name, resp.StatusCode, string(body))
	}

	return body, nil
}

// getJSON issues a GET and decodes the JSON response into out.
func (b *httpBase) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	body, err := b.do(req)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrRejected, err)
	}
	return nil
}

// redact hides secret in logged URLs.
func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "REDACTED")
}
