// Package dataset declares which region metrics a deployed backend variant
// actually serves.
package dataset

import (
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crime-map/internal/model"
)

// Profile is the capability set of one backend variant.
type Profile struct {
	Name       string         `yaml:"name"`
	Metrics    []model.Metric `yaml:"metrics"`
	HasE33     bool           `yaml:"has_e33"`
	CrimeTypes []string       `yaml:"crime_types"`
}

// Groningen is the full city-safety dataset with crisis-call shares.
var Groningen = Profile{
	Name:       "groningen",
	Metrics:    []model.Metric{model.MetricIncidents, model.MetricCrimeLevel, model.MetricE33Percent},
	HasE33:     true,
	CrimeTypes: []string{"drugs", "robberies", "violent", "other"},
}

// Basic is the demo dataset without E33 counts.
var Basic = Profile{
	Name:       "basic",
	Metrics:    []model.Metric{model.MetricIncidents, model.MetricCrimeLevel},
	CrimeTypes: []string{"drugs", "robberies", "violent", "other"},
}

// Lookup returns a built-in profile by name.
func Lookup(name string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case Groningen.Name:
		return Groningen, nil
	case Basic.Name:
		return Basic, nil
	default:
		return Profile{}, eris.Errorf("dataset: unknown profile %q", name)
	}
}

// LoadProfile reads a profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, eris.Wrapf(err, "dataset: read profile %s", path)
	}
	return ParseProfile(data)
}

// ParseProfile decodes and validates a YAML profile.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, eris.Wrap(err, "dataset: parse profile")
	}
	if p.Name == "" {
		return Profile{}, eris.New("dataset: profile name is required")
	}
	if len(p.Metrics) == 0 {
		return Profile{}, eris.Errorf("dataset: profile %q declares no metrics", p.Name)
	}
	for i, m := range p.Metrics {
		parsed, err := model.ParseMetric(string(m))
		if err != nil {
			return Profile{}, eris.Wrapf(err, "dataset: profile %q", p.Name)
		}
		p.Metrics[i] = parsed
	}
	if p.Supports(model.MetricE33Percent) && !p.HasE33 {
		return Profile{}, eris.Errorf("dataset: profile %q enables e33_percent without has_e33", p.Name)
	}
	return p, nil
}

// Resolve picks the profile file when set, otherwise the named built-in.
func Resolve(name, path string) (Profile, error) {
	if path != "" {
		return LoadProfile(path)
	}
	return Lookup(name)
}

// Supports reports whether the metric can be encoded for this dataset.
func (p Profile) Supports(m model.Metric) bool {
	return slices.Contains(p.Metrics, m)
}

// AcceptsCrimeType reports whether crimeType is a valid region filter. The
// empty filter and profiles that declare no crime types accept anything.
func (p Profile) AcceptsCrimeType(crimeType string) bool {
	if crimeType == "" || len(p.CrimeTypes) == 0 {
		return true
	}
	return slices.Contains(p.CrimeTypes, crimeType)
}

// DefaultMetric is the first declared metric.
func (p Profile) DefaultMetric() model.Metric {
	if len(p.Metrics) == 0 {
		return model.MetricIncidents
	}
	return p.Metrics[0]
}
