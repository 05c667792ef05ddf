package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestParseMetric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Metric
		wantErr bool
	}{
		{in: "incidents", want: MetricIncidents},
		{in: "CRIME_LEVEL", want: MetricCrimeLevel},
		{in: " e33_percent ", want: MetricE33Percent},
		{in: "heat", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseMetric(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownMetric, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestAllMetricsHaveLabels(t *testing.T) {
	t.Parallel()
	for _, m := range AllMetrics() {
		assert.NotEqual(t, string(m), m.Label(), "metric %s has no label", m)
	}
}

func TestCallLocation(t *testing.T) {
	t.Parallel()

	lat, lon, ok := Call{Lat: ptr(53.22), Lon: ptr(6.57)}.Location()
	assert.True(t, ok)
	assert.InDelta(t, 53.22, lat, 1e-9)
	assert.InDelta(t, 6.57, lon, 1e-9)

	_, _, ok = Call{Lat: ptr(53.22)}.Location()
	assert.False(t, ok, "missing lon")

	_, _, ok = Call{}.Location()
	assert.False(t, ok, "ungeocoded")

	_, _, ok = Call{Lat: ptr(math.NaN()), Lon: ptr(6.57)}.Location()
	assert.False(t, ok, "NaN latitude")
}

func TestCallDecodeNullCoordinates(t *testing.T) {
	t.Parallel()

	var c Call
	require.NoError(t, json.Unmarshal([]byte(`{"id":4,"address":"Grote Markt","lat":null,"lon":null,"is_e33":true}`), &c))
	assert.Equal(t, 4, c.ID)
	assert.True(t, c.IsE33)
	_, _, ok := c.Location()
	assert.False(t, ok)
}

func TestFindCall(t *testing.T) {
	t.Parallel()

	calls := []Call{{ID: 1, Address: "a"}, {ID: 2, Address: "b"}}
	c, ok := FindCall(calls, 2)
	require.True(t, ok)
	assert.Equal(t, "b", c.Address)

	_, ok = FindCall(calls, 3)
	assert.False(t, ok)
}

func TestRegionE33(t *testing.T) {
	t.Parallel()

	var r Region
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"Binnenstad","crime_level":3,"incident_count":12}`), &r))
	assert.False(t, r.HasE33())
	assert.Zero(t, r.E33())

	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"name":"Binnenstad","e33_percent":0.125}`), &r))
	assert.True(t, r.HasE33())
	assert.InDelta(t, 0.125, r.E33(), 1e-9)
}

func TestValidMonthYear(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidMonthYear(""))
	assert.True(t, ValidMonthYear("2025-08"))
	assert.True(t, ValidMonthYear("2023-12"))
	assert.False(t, ValidMonthYear("2025-13"))
	assert.False(t, ValidMonthYear("2025-8"))
	assert.False(t, ValidMonthYear("aug 2025"))
}

func TestValidRadius(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidRadius(6))
	assert.True(t, ValidRadius(0.25))
	for _, km := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.False(t, ValidRadius(km), "%g", km)
	}
}
