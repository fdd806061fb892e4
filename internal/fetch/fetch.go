// Package fetch downloads rasters over HTTP. Fetches are bound to the
// caller's context, cached in memory and coalesced per URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/pspoerri/roofmeasure/internal/metrics"
)

var (
	// ErrUpstream is returned when the server answers with a non-2xx status.
	ErrUpstream = errors.New("upstream error")
	// ErrTooLarge is returned when a body exceeds Config.MaxBytes.
	ErrTooLarge = errors.New("response too large")
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid URL")
)

// StatusError carries the status of a failed upstream response.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("GET %s: HTTP %d: %s", e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("GET %s: HTTP %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return ErrUpstream }

// Config configures a Fetcher.
type Config struct {
	// APIKey is appended as the "key" query parameter for APIKeyHosts.
	APIKey      string
	APIKeyHosts []string
	// Timeout bounds each download; zero selects DefaultTimeout.
	Timeout time.Duration
	// CacheSize is the cache capacity in MiB; 0 disables caching.
	CacheSize int
	CacheTTL  time.Duration
	UserAgent string
	MaxBytes  int64
}

// DefaultAPIKeyHosts are the hosts that receive the API key when none are
// configured.
var DefaultAPIKeyHosts = []string{"solar.googleapis.com"}

// DefaultTimeout bounds a download when Config.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// Raster is a fetched body.
type Raster struct {
	Data        []byte
	ContentType string
}

// Size lets the cache bound its capacity in bytes.
func (r *Raster) Size() int64 { return int64(len(r.Data)) }

// Fetcher downloads rasters. It is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	cfg    Config
	cache  *ccache.Cache[*Raster]
	group  singleflight.Group
}

// New creates a Fetcher. A nil client uses a fresh http.Client.
func New(cfg Config, client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if len(cfg.APIKeyHosts) == 0 {
		cfg.APIKeyHosts = DefaultAPIKeyHosts
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "roofmeasure"
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 256 << 20
	}
	f := &Fetcher{client: client, cfg: cfg}
	if cfg.CacheSize > 0 && cfg.CacheTTL > 0 {
		f.cache = ccache.New(ccache.Configure[*Raster]().MaxSize(int64(cfg.CacheSize) << 20).ItemsToPrune(8))
	}
	return f
}

// Close stops the cache's background worker.
func (f *Fetcher) Close() {
	if f.cache != nil {
		f.cache.Stop()
	}
}

// Fetch downloads rawURL, appending the API key for configured hosts.
// Concurrent fetches of the same URL share one request. The shared request
// keeps the first caller's context values but not its cancellation, so one
// caller leaving does not fail the others; it is bounded by Config.Timeout,
// and every caller stops waiting when its own context is done.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Raster, error) {
	u, err := WithAPIKey(rawURL, f.cfg.APIKey, f.cfg.APIKeyHosts)
	if err != nil {
		return nil, err
	}

	if f.cache != nil {
		if item := f.cache.Get(u); item != nil && !item.Expired() {
			metrics.FetchCacheHits.Inc()
			return item.Value(), nil
		}
	}

	ch := f.group.DoChan(u, func() (any, error) {
		r, err := f.download(context.WithoutCancel(ctx), u)
		if err != nil {
			return nil, err
		}
		if f.cache != nil {
			f.cache.Set(u, r, f.cfg.CacheTTL)
		}
		return r, nil
	})

	select {
	case <-ctx.Done():
		metrics.RasterFetches.WithLabelValues("cancelled").Inc()
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			result := "error"
			if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
				result = "cancelled"
			}
			metrics.RasterFetches.WithLabelValues(result).Inc()
			return nil, res.Err
		}
		metrics.RasterFetches.WithLabelValues("ok").Inc()
		return res.Val.(*Raster), nil
	}
}

func (f *Fetcher) download(ctx context.Context, u string) (*Raster, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// *url.Error repeats the full URL, key included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, fmt.Errorf("GET %s: %w", redact(u), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: redact(u), StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, fmt.Errorf("GET %s: %d bytes (max %d): %w", redact(u), resp.ContentLength, f.cfg.MaxBytes, ErrTooLarge)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("reading %s: %w", redact(u), err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("GET %s: more than %d bytes: %w", redact(u), f.cfg.MaxBytes, ErrTooLarge)
	}
	return &Raster{Data: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// WithAPIKey appends key=apiKey to rawURL when its host is one of hosts and
// the query carries no key yet. Other URLs are returned unchanged.
func WithAPIKey(rawURL, apiKey string, hosts []string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidURL, redact(rawURL))
	}
	if apiKey == "" || !slices.Contains(hosts, strings.ToLower(u.Hostname())) {
		return rawURL, nil
	}
	q := u.Query()
	if q.Has("key") {
		return rawURL, nil
	}
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact hides the API key in URLs that end up in errors and logs.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if !q.Has("key") {
		return rawURL
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
