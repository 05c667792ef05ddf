package overlay

import (
	"fmt"
	"html"
	"strings"

	"github.com/sells-group/crime-map/internal/model"
)

// Tooltip summarizes a region for hover display.
type Tooltip struct {
	Name       string `json:"name"`
	Period     string `json:"period"`
	Incidents  int    `json:"incidents"`
	CrimeLevel int    `json:"crime_level"`
	CrimeType  string `json:"crime_type"`
	// E33 is the crisis-call share formatted to one decimal, empty when the
	// region carries no share.
	E33 string `json:"e33,omitempty"`
}

// TooltipFor builds the tooltip of a region.
func TooltipFor(r model.Region) Tooltip {
	t := Tooltip{
		Name:       r.Name,
		Period:     r.MonthYear,
		Incidents:  r.IncidentCount,
		CrimeLevel: r.CrimeLevel,
		CrimeType:  r.PrevalentCrimeType,
	}
	if r.HasE33() {
		t.E33 = FormatPercent(r.E33())
	}
	return t
}

// FormatPercent renders a fraction as a percentage with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p*100)
}

// HTML renders the tooltip with Dutch labels for a sticky Leaflet tooltip.
func (t Tooltip) HTML() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b><br/>", html.EscapeString(t.Name))
	fmt.Fprintf(&b, "Maand: %s<br/>", html.EscapeString(t.Period))
	fmt.Fprintf(&b, "Incidenten: %d<br/>", t.Incidents)
	if t.E33 != "" {
		fmt.Fprintf(&b, "E33: %s<br/>", t.E33)
	}
	fmt.Fprintf(&b, "Delicttype: %s<br/>", html.EscapeString(t.CrimeType))
	fmt.Fprintf(&b, "Crimeniveau: %d/5", t.CrimeLevel)
	return b.String()
}
