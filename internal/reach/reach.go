// Package reach answers "does this endpoint respond?" with a single bounded
// HTTP round trip. Every failure mode collapses into an unreachable result.
package reach

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Endpoint is a named probe target.
type Endpoint struct {
	Name string
	URL  string
	// WantStatus, when non-zero, is the only status that counts as reachable.
	// Useful for generate_204 style checks that a captive portal cannot fake.
	WantStatus int
}

// Result records a single probe. It is never cached.
type Result struct {
	Target    string
	URL       string
	Reachable bool
	Status    int
	Latency   time.Duration
	Err       error
}

func (r Result) String() string {
	if r.Reachable {
		return fmt.Sprintf("%s reachable (HTTP %d, %s)", r.Target, r.Status, r.Latency.Round(time.Millisecond))
	}
	if r.Err != nil {
		return fmt.Sprintf("%s unreachable: %v", r.Target, r.Err)
	}
	return fmt.Sprintf("%s unreachable (HTTP %d)", r.Target, r.Status)
}

const defaultBodyLimit = 32 << 10

// Prober issues reachability checks.
type Prober struct {
	Client *http.Client
	Log    zerolog.Logger
	Now    func() time.Time
}

func NewProber(log zerolog.Logger) *Prober {
	return &Prober{
		Client: &http.Client{},
		Log:    log.With().Str("component", "reach").Logger(),
		Now:    time.Now,
	}
}

// Check performs one GET against ep bounded by timeout.
func (p *Prober) Check(ctx context.Context, ep Endpoint, timeout time.Duration) Result {
	res := Result{Target: ep.Name, URL: ep.URL}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	start := now()

	resp, err := p.get(ctx, ep.URL, timeout)
	res.Latency = now().Sub(start)
	if err != nil {
		res.Err = err
		p.Log.Debug().Err(err).Str("target", ep.Name).Str("url", ep.URL).Msg("probe failed")
		return res
	}
	// Drain a little so keep-alive connections can be reused; the body is irrelevant.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, defaultBodyLimit))
	resp.Body.Close()

	res.Status = resp.StatusCode
	res.Reachable = ep.WantStatus == 0 || resp.StatusCode == ep.WantStatus
	p.Log.Debug().
		Str("target", ep.Name).
		Int("status", res.Status).
		Dur("latency", res.Latency).
		Bool("reachable", res.Reachable).
		Msg("probe done")
	return res
}

// IsReachable is Check reduced to its boolean outcome.
func (p *Prober) IsReachable(ctx context.Context, ep Endpoint, timeout time.Duration) bool {
	return p.Check(ctx, ep, timeout).Reachable
}

// Page is a partially downloaded response body used for diagnostics.
type Page struct {
	Body        []byte
	ContentType string
	LooksHTML   bool
	Status      int
}

// Fetch downloads up to maxBytes from ep. Content counts as HTML when the
// Content-Type mentions html or the first chunk contains "<html".
func (p *Prober) Fetch(ctx context.Context, ep Endpoint, timeout time.Duration, maxBytes int) (*Page, error) {
	resp, err := p.get(ctx, ep.URL, timeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if maxBytes <= 0 {
		maxBytes = defaultBodyLimit
	}
	ct := resp.Header.Get("Content-Type")
	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ep.Name, err)
	}

	looksHTML := strings.Contains(strings.ToLower(ct), "html") ||
		bytes.Contains(bytes.ToLower(body), []byte("<html"))

	return &Page{Body: body, ContentType: ct, LooksHTML: looksHTML, Status: resp.StatusCode}, nil
}

// get issues the request under its own deadline. The deadline is released
// when the response body is closed, so callers can still read it.
func (p *Prober) get(ctx context.Context, url string, timeout time.Duration) (*http.Response, error) {
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}

	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
