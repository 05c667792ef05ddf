package style

import (
	"fmt"

	"github.com/sells-group/crime-map/internal/model"
)

// LegendEntry is one swatch in a map legend.
type LegendEntry struct {
	Label  string `json:"label"`
	Color  string `json:"color,omitempty"`
	Weight int    `json:"weight,omitempty"`
}

// Legend is a titled group of swatches.
type Legend struct {
	Title   string        `json:"title"`
	Entries []LegendEntry `json:"entries"`
}

var crimeTypeLabels = []struct{ key, label string }{
	{CrimeTypeDrugs, "Drugs / overlast"},
	{CrimeTypeRobberies, "Diefstal / beroving"},
	{CrimeTypeViolent, "Geweld / agressie"},
	{CrimeTypeOther, "Overig / gemengd"},
}

var e33Samples = []float64{0.02, 0.08, 0.16, 0.30, 0.45}

// CrimeLevelLegend lists levels 1 to 5.
func CrimeLevelLegend() Legend {
	l := Legend{Title: "Crimeniveau (kleur)"}
	for level := 1; level <= 5; level++ {
		l.Entries = append(l.Entries, LegendEntry{
			Label: fmt.Sprintf("Niveau %d", level),
			Color: ColorForCrimeLevel(level),
		})
	}
	return l
}

// CrimeTypeLegend lists the categorical palette.
func CrimeTypeLegend() Legend {
	l := Legend{Title: "Delicttype (kleur)"}
	for _, ct := range crimeTypeLabels {
		l.Entries = append(l.Entries, LegendEntry{Label: ct.label, Color: ColorForCrimeType(ct.key)})
	}
	return l
}

// E33Legend samples one value from each bucket.
func E33Legend() Legend {
	l := Legend{Title: "E33 mentale-crisis (%) – kleur"}
	for _, v := range e33Samples {
		l.Entries = append(l.Entries, LegendEntry{
			Label: fmt.Sprintf("%.0f%%", v*100),
			Color: ColorForE33(v),
		})
	}
	return l
}

// StrokeLegend describes the outline weight tiers.
func StrokeLegend() Legend {
	return Legend{
		Title: "Incidenten (lijndikte)",
		Entries: []LegendEntry{
			{Label: "< 10", Weight: 1},
			{Label: "10 – 24", Weight: 2},
			{Label: "25 – 39", Weight: 3},
			{Label: "≥ 40", Weight: 4},
		},
	}
}

// LegendsFor returns the legends relevant to a metric.
func LegendsFor(metric model.Metric) []Legend {
	switch metric {
	case model.MetricCrimeLevel:
		return []Legend{CrimeLevelLegend(), StrokeLegend()}
	case model.MetricE33Percent:
		return []Legend{E33Legend(), StrokeLegend()}
	default:
		return []Legend{CrimeTypeLegend(), StrokeLegend()}
	}
}
