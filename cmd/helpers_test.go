package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/crime-map/internal/config"
)

const backendCalls = `[
 {"id":7,"address":"Grote Markt 1","lat":53.2194,"lon":6.5665,"is_e33":true},
 {"id":8,"address":"Onbekend","lat":null,"lon":null}
]`

const backendRegions = `[
 {"id":1,"name":"Binnenstad","center_lat":53.2194,"center_lon":6.5665,"crime_level":4,"incident_count":42,
  "e33_count":3,"e33_percent":0.3,"month_year":"2025-08","prevalent_crime_type":"violent"},
 {"id":2,"name":"Nergenshuizen","center_lat":53.2,"center_lon":6.5,"crime_level":1,"incident_count":2,
  "month_year":"2025-08","prevalent_crime_type":"drugs"}
]`

const boundaryGeoJSON = `{"type":"FeatureCollection","features":[
 {"type":"Feature","properties":{"BUURTNAAM":"Binnenstad","GM_NAAM":"Groningen"},
  "geometry":{"type":"Polygon","coordinates":[[[6.56,53.21],[6.58,53.21],[6.58,53.23],[6.56,53.21]]]}}
]}`

type fakeBackend struct {
	*httptest.Server
	regionQueries atomic.Value
}

// newFakeBackend serves /calls and /regions/near. A non-OK status makes
// every endpoint fail with it.
func newFakeBackend(t *testing.T, status int) *fakeBackend {
	t.Helper()
	fb := &fakeBackend{}
	fb.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/calls":
			_, _ = w.Write([]byte(backendCalls))
		case strings.HasPrefix(r.URL.Path, "/regions/near"):
			fb.regionQueries.Store(r.URL.RawQuery)
			_, _ = w.Write([]byte(backendRegions))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(fb.Close)
	return fb
}

// testConfig points cfg at the fake backend and a temp boundary file.
func testConfig(t *testing.T, backendURL string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "buurten.geojson")
	require.NoError(t, os.WriteFile(path, []byte(boundaryGeoJSON), 0o644))

	cfg = &config.Config{
		Backend: config.BackendConfig{BaseURL: backendURL, UserAgent: "crime-map-test"},
		Boundary: config.BoundaryConfig{
			Source:            path,
			Municipality:      "groningen",
			NameField:         "BUURTNAAM",
			MunicipalityField: "GM_NAAM",
		},
		Map: config.MapConfig{
			RadiusKM:    6,
			MonthYear:   "2025-08",
			Metric:      "incidents",
			RenderMode:  "polygon",
			FillOpacity: 0.35,
		},
		Dataset: config.DatasetConfig{Profile: "groningen"},
		Notify:  config.NotifyConfig{MaxNotices: 10},
	}
}
