package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Metric selects which region attribute drives the visual encoding.
type Metric string

const (
	// MetricIncidents colours by prevalent crime type and thickens the
	// outline with the incident count.
	MetricIncidents  Metric = "incidents"
	MetricCrimeLevel Metric = "crime_level"
	MetricE33Percent Metric = "e33_percent"
)

// ErrUnknownMetric is returned by ParseMetric for unrecognized names.
var ErrUnknownMetric = eris.New("model: unknown metric")

// AllMetrics returns all defined metrics in display order.
func AllMetrics() []Metric {
	return []Metric{
		MetricIncidents,
		MetricCrimeLevel,
		MetricE33Percent,
	}
}

// ParseMetric resolves a metric name, ignoring case and surrounding space.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllMetrics() {
		if m == known {
			return m, nil
		}
	}
	return "", eris.Wrapf(ErrUnknownMetric, "%q", s)
}

// Label returns the Dutch UI label for the metric.
func (m Metric) Label() string {
	switch m {
	case MetricIncidents:
		return "Delicttype (kleur) & incidenten (dikte)"
	case MetricCrimeLevel:
		return "Crimeniveau (kleur)"
	case MetricE33Percent:
		return "E33 mentale-crisismeldingen (%)"
	default:
		return string(m)
	}
}
