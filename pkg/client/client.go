// Package client provides the HTTP client for the paginated catalog API.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/pokedex-elt/pkg/cache"
	"github.com/Sternrassler/pokedex-elt/pkg/logging"
	"github.com/Sternrassler/pokedex-elt/pkg/pagination"
	"github.com/go-resty/resty/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// DefaultBaseURL is the public PokeAPI listing endpoint.
const DefaultBaseURL = "https://pokeapi.co/api/v2/pokemon"

// DefaultTimeout bounds a single page request.
const DefaultTimeout = 10 * time.Second

// Prometheus metrics for catalog requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_requests_total",
		Help: "Total catalog requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pokedex_request_duration_seconds",
		Help:    "Catalog request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pokedex_fetch_errors_total",
		Help: "Total catalog fetch errors by class",
	}, []string{"class"})
)

// Record is one catalog listing entry.
type Record struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Page is one decoded catalog listing page.
type Page struct {
	Count    int      `json:"count"`
	Next     *string  `json:"next"`
	Previous *string  `json:"previous"`
	Results  []Record `json:"results"`

	// Cached is true when the page was served from the page cache.
	Cached bool `json:"-"`
}

// Fetcher fetches one window of the catalog.
type Fetcher interface {
	FetchPage(ctx context.Context, w pagination.Window) (*Page, error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the listing endpoint; window parameters are appended to it.
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout for a single request, including reading the body
	Timeout time.Duration

	// Cache is optional; nil disables page caching
	Cache *cache.Manager
}

// DefaultConfig returns the configuration for the public catalog.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "pokedex-elt/0.1.0",
		Timeout:   DefaultTimeout,
	}
}

// Client fetches catalog pages.
type Client struct {
	http     *resty.Client
	baseURL  string
	endpoint string
	cache    *cache.Manager
	logger   zerolog.Logger
}

var _ Fetcher = (*Client)(nil)

// New creates a new catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}

	httpClient := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		httpClient.SetHeader("User-Agent", cfg.UserAgent)
	}

	return &Client{
		http:     httpClient,
		baseURL:  cfg.BaseURL,
		endpoint: u.Path,
		cache:    cfg.Cache,
		logger:   logging.NewLogger("catalog-client"),
	}, nil
}

// FetchPage requests one window of the catalog. It makes a single attempt; any
// failure is returned as a *FetchError.
func (c *Client) FetchPage(ctx context.Context, w pagination.Window) (*Page, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	key := cache.CacheKey{Endpoint: c.endpoint, QueryParams: w.Query()}
	if page, ok := c.cachedPage(ctx, key); ok {
		return page, nil
	}

	c.logger.Info().
		Str("url", c.baseURL).
		Int("offset", w.Offset).
		Int("limit", w.Limit).
		Msg("Fetching catalog page")

	startTime := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(w.Query()).
		Get(c.baseURL)
	requestDuration.Observe(time.Since(startTime).Seconds())

	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&FetchError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		})
	}

	status := resp.StatusCode()
	requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

	if class := classifyStatus(status); class != "" {
		return nil, c.fail(&FetchError{
			StatusCode: status,
			ErrorClass: class,
			Message:    resp.Status(),
		})
	}

	body := resp.Body()
	page, err := decodePage(body)
	if err != nil {
		return nil, c.fail(&FetchError{
			StatusCode: status,
			ErrorClass: ErrorClassDecode,
			Message:    "invalid listing body",
			Err:        err,
		})
	}

	c.logger.Debug().
		Int("status", status).
		Int("rows", len(page.Results)).
		Int("count", page.Count).
		Dur("duration", time.Since(startTime)).
		Msg("Catalog page fetched")

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, cache.NewEntry(body, status, c.cache.TTL())); err != nil {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache page")
		}
	}

	return page, nil
}

// cachedPage returns the cached page for key, if any. Cache errors are logged
// and treated as misses.
func (c *Client) cachedPage(ctx context.Context, key cache.CacheKey) (*Page, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil, false
	}

	page, err := decodePage(entry.Data)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Discarding undecodable cache entry")
		_ = c.cache.Delete(ctx, key)
		return nil, false
	}
	page.Cached = true

	c.logger.Debug().Str("key", key.String()).Msg("Catalog page served from cache")
	return page, true
}

func (c *Client) fail(err *FetchError) error {
	fetchErrorsTotal.WithLabelValues(string(err.ErrorClass)).Inc()
	c.logger.Error().
		Err(err).
		Int("status", err.StatusCode).
		Str("error_class", string(err.ErrorClass)).
		Msg("Catalog fetch failed")
	return err
}

func decodePage(body []byte) (*Page, error) {
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, err
	}
	if page.Results == nil {
		return nil, ErrMissingResults
	}
	return &page, nil
}
