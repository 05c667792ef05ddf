// Package cityapi is the HTTP client for the city-safety backend serving 112
// calls and neighbourhood region metrics.
package cityapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/crime-map/internal/model"
)

// Client fetches calls and regions from the backend.
type Client interface {
	// FetchCalls lists every call known to the backend.
	FetchCalls(ctx context.Context) ([]model.Call, error)

	// FetchRegionsNear lists regions whose centroid lies within the query
	// radius of (lat, lon), in backend order.
	FetchRegionsNear(ctx context.Context, lat, lon float64, q RegionQuery) ([]model.Region, error)
}

// RegionQuery holds the optional region filters. Zero values are not sent.
type RegionQuery struct {
	RadiusKM  float64
	MonthYear string
	CrimeType string
}

// QueryFromFilters converts selection filters into a region query.
func QueryFromFilters(f model.Filters) RegionQuery {
	return RegionQuery{RadiusKM: f.RadiusKM, MonthYear: f.MonthYear, CrimeType: f.CrimeType}
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded. A client
// passed to WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		c.timeout = &d
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *client) {
		c.userAgent = ua
	}
}

type client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	timeout    *time.Duration
}

// NewClient creates a backend client rooted at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		userAgent:  "crime-map/1.0",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout != nil {
		hc := *c.httpClient
		hc.Timeout = *c.timeout
		c.httpClient = &hc
	}
	return c
}

// FetchCalls implements Client.
func (c *client) FetchCalls(ctx context.Context) ([]model.Call, error) {
	var calls []model.Call
	if err := c.getJSON(ctx, "calls", c.baseURL+"/calls", &calls); err != nil {
		return nil, err
	}
	return calls, nil
}

// FetchRegionsNear implements Client.
func (c *client) FetchRegionsNear(ctx context.Context, lat, lon float64, q RegionQuery) ([]model.Region, error) {
	if !finite(lat) || !finite(lon) {
		return nil, eris.Errorf("cityapi: invalid coordinates (%v, %v)", lat, lon)
	}

	var regions []model.Region
	if err := c.getJSON(ctx, "regions", c.baseURL+"/regions/near?"+regionParams(lat, lon, q).Encode(), &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// regionParams builds the query string; unset filters are omitted entirely.
func regionParams(lat, lon float64, q RegionQuery) url.Values {
	params := url.Values{
		"lat": {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon": {strconv.FormatFloat(lon, 'f', -1, 64)},
	}
	if q.RadiusKM > 0 && finite(q.RadiusKM) {
		params.Set("radius_km", strconv.FormatFloat(q.RadiusKM, 'f', -1, 64))
	}
	if q.MonthYear != "" {
		params.Set("month_year", q.MonthYear)
	}
	if q.CrimeType != "" {
		params.Set("crime_type", q.CrimeType)
	}
	return params
}

func (c *client) getJSON(ctx context.Context, endpoint, reqURL string, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return eris.Wrapf(err, "cityapi: %s rate limit", endpoint)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrapf(err, "cityapi: %s build request", endpoint)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return eris.Wrapf(err, "cityapi: %s request", endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused; the body carries no contract.
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "cityapi: %s parse response", endpoint)
	}

	zap.L().Debug("cityapi: fetched",
		zap.String("endpoint", endpoint),
		zap.String("request_id", requestID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Endpoint   string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cityapi: %s returned status %d", e.Endpoint, e.StatusCode)
}

// IsStatus reports whether err carries a backend status error with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == code
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
