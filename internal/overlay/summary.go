package overlay

import "github.com/sells-group/crime-map/internal/style"

// Summary aggregates the full region set, drawn or not.
type Summary struct {
	Regions     int            `json:"regions"`
	Rendered    int            `json:"rendered"`
	Unmatched   int            `json:"unmatched"`
	Incidents   int            `json:"incidents"`
	ByCrimeType map[string]int `json:"by_crime_type"`
	ByLevel     [5]int         `json:"by_level"`
}

// Summary counts every region, including those without a boundary shape.
func (o *Overlay) Summary() Summary {
	s := Summary{
		Regions:     len(o.Regions),
		Rendered:    len(o.Features),
		Unmatched:   len(o.Unmatched),
		ByCrimeType: make(map[string]int),
	}
	for _, r := range o.Regions {
		s.Incidents += max(r.IncidentCount, 0)

		s.ByCrimeType[style.CrimeTypeKey(r.PrevalentCrimeType)]++

		level := min(max(r.CrimeLevel, 1), 5)
		s.ByLevel[level-1]++
	}
	return s
}
