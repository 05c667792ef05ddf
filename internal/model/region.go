package model

import (
	"math"
	"regexp"
)

// Region holds one neighbourhood's aggregated metrics for a reporting month.
type Region struct {
	ID                 int      `json:"id"`
	Name               string   `json:"name"`
	CenterLat          float64  `json:"center_lat"`
	CenterLon          float64  `json:"center_lon"`
	CrimeLevel         int      `json:"crime_level"`
	IncidentCount      int      `json:"incident_count"`
	E33Count           *int     `json:"e33_count,omitempty"`
	E33Percent         *float64 `json:"e33_percent,omitempty"`
	MonthYear          string   `json:"month_year"`
	PrevalentCrimeType string   `json:"prevalent_crime_type"`
}

// HasE33 reports whether the backend supplied a crisis-call share.
func (r Region) HasE33() bool {
	return r.E33Percent != nil
}

// E33 returns the crisis-call share, or 0 when absent.
func (r Region) E33() float64 {
	if r.E33Percent == nil {
		return 0
	}
	return *r.E33Percent
}

// Filters constrains a region query. Zero values are unconstrained.
type Filters struct {
	MonthYear string  `json:"month_year"`
	CrimeType string  `json:"crime_type"`
	RadiusKM  float64 `json:"radius_km"`
}

var monthYearRe = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidMonthYear reports whether s is a YYYY-MM period key. Empty is valid
// and means unconstrained.
func ValidMonthYear(s string) bool {
	return s == "" || monthYearRe.MatchString(s)
}

// ValidRadius reports whether km is a usable search radius: finite and positive.
func ValidRadius(km float64) bool {
	return !math.IsNaN(km) && !math.IsInf(km, 0) && km > 0
}
