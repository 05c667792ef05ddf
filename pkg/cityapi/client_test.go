package cityapi

import (
	"context"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crime-map/internal/model"
)

func TestFetchCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"id": 1, "address": "Grote Markt 1, Groningen", "transcript": "...", "lat": 53.2194, "lon": 6.5665, "is_e33": false},
			{"id": 2, "address": "Onbekend", "lat": null, "lon": null, "is_e33": true}
		]`)
	}))
	defer srv.Close()

	calls, err := NewClient(srv.URL).FetchCalls(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, 1, calls[0].ID)
	assert.Equal(t, "Grote Markt 1, Groningen", calls[0].Address)
	_, _, ok := calls[0].Location()
	assert.True(t, ok)
	_, _, ok = calls[1].Location()
	assert.False(t, ok)
	assert.True(t, calls[1].IsE33)
}

func TestFetchCalls_TrailingSlashBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls", r.URL.Path)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	calls, err := NewClient(srv.URL + "/").FetchCalls(context.Background())
	require.NoError(t, err)
	assert.Empty(t, calls)
}

func TestFetchCalls_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"detail":"db down"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchCalls(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusServiceUnavailable))
	assert.False(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "calls returned status 503")
}

func TestFetchCalls_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchCalls(context.Background())
	require.Error(t, err)
	assert.False(t, IsStatus(err, http.StatusOK))
}

func TestFetchRegionsNear_AllFilters(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/regions/near", r.URL.Path)
		got = r.URL.Query()
		_, _ = io.WriteString(w, `[
			{"id": 7, "name": "Binnenstad", "center_lat": 53.2194, "center_lon": 6.5665, "crime_level": 3,
			 "incident_count": 12, "e33_count": 2, "e33_percent": 0.167, "month_year": "2025-08",
			 "prevalent_crime_type": "drugs"},
			{"id": 3, "name": "Oosterpoort", "center_lat": 53.213, "center_lon": 6.577, "crime_level": 2,
			 "incident_count": 4, "month_year": "2025-08", "prevalent_crime_type": "other"}
		]`)
	}))
	defer srv.Close()

	regions, err := NewClient(srv.URL).FetchRegionsNear(context.Background(), 53.22, 6.57, RegionQuery{
		RadiusKM:  6,
		MonthYear: "2025-08",
		CrimeType: "drugs",
	})
	require.NoError(t, err)

	assert.Equal(t, "53.22", got.Get("lat"))
	assert.Equal(t, "6.57", got.Get("lon"))
	assert.Equal(t, "6", got.Get("radius_km"))
	assert.Equal(t, "2025-08", got.Get("month_year"))
	assert.Equal(t, "drugs", got.Get("crime_type"))

	// Backend order is preserved.
	require.Len(t, regions, 2)
	assert.Equal(t, 7, regions[0].ID)
	assert.Equal(t, 3, regions[1].ID)
	require.NotNil(t, regions[0].E33Percent)
	assert.InDelta(t, 0.167, *regions[0].E33Percent, 1e-9)
	assert.False(t, regions[1].HasE33())
}

func TestFetchRegionsNear_OmitsUnsetFilters(t *testing.T) {
	var got url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	regions, err := NewClient(srv.URL).FetchRegionsNear(context.Background(), 53.22, 6.57, RegionQuery{})
	require.NoError(t, err)
	assert.Empty(t, regions)

	assert.True(t, got.Has("lat"))
	assert.True(t, got.Has("lon"))
	assert.False(t, got.Has("radius_km"))
	assert.False(t, got.Has("month_year"))
	assert.False(t, got.Has("crime_type"))
}

func TestFetchRegionsNear_InvalidCoordinates(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchRegionsNear(context.Background(), math.NaN(), 6.57, RegionQuery{})
	assert.Error(t, err)
	_, err = c.FetchRegionsNear(context.Background(), 53.2, math.Inf(1), RegionQuery{})
	assert.Error(t, err)
	assert.Equal(t, int32(0), hits.Load(), "no request for invalid coordinates")
}

func TestFetchRegionsNear_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient(srv.URL).FetchRegionsNear(context.Background(), 53.22, 6.57, RegionQuery{})
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestFetchRegionsNear_NoCaching(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	for range 3 {
		_, err := c.FetchRegionsNear(context.Background(), 53.22, 6.57, RegionQuery{MonthYear: "2025-08"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestOptions(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL,
		WithHTTPClient(&http.Client{}),
		WithTimeout(5*time.Second),
		WithRateLimit(100),
		WithUserAgent("test-agent"),
	)
	_, err := c.FetchCalls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-agent", ua)

	impl := c.(*client)
	assert.Equal(t, 5*time.Second, impl.httpClient.Timeout)
	require.NotNil(t, impl.limiter)

	WithRateLimit(0)(impl)
	assert.Nil(t, impl.limiter)
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(srv.URL).FetchCalls(ctx)
	assert.Error(t, err)
}

func TestQueryFromFilters(t *testing.T) {
	q := QueryFromFilters(model.Filters{MonthYear: "2025-07", CrimeType: "violent", RadiusKM: 2.5})
	assert.Equal(t, RegionQuery{RadiusKM: 2.5, MonthYear: "2025-07", CrimeType: "violent"}, q)
}

func TestWithTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	for _, opts := range [][]Option{
		{WithHTTPClient(shared), WithTimeout(5 * time.Second)},
		{WithTimeout(5 * time.Second), WithHTTPClient(shared)},
	} {
		impl := NewClient("http://localhost:8001", opts...).(*client)
		assert.Equal(t, 5*time.Second, impl.httpClient.Timeout)
		assert.NotSame(t, shared, impl.httpClient)
	}
	assert.Equal(t, time.Minute, shared.Timeout)
}
