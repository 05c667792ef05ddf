package model

import "math"

// Call is a single 112 emergency-call record.
type Call struct {
	ID         int      `json:"id"`
	Address    string   `json:"address"`
	Transcript string   `json:"transcript,omitempty"`
	CallLog    string   `json:"call_log,omitempty"`
	Lat        *float64 `json:"lat"`
	Lon        *float64 `json:"lon"`
	IsE33      bool     `json:"is_e33"`
}

// Location returns the call coordinates. ok is false when the call was never
// geocoded or carries non-finite values.
func (c Call) Location() (lat, lon float64, ok bool) {
	if c.Lat == nil || c.Lon == nil {
		return 0, 0, false
	}
	lat, lon = *c.Lat, *c.Lon
	if !finite(lat) || !finite(lon) {
		return 0, 0, false
	}
	return lat, lon, true
}

// FindCall returns the call with the given id.
func FindCall(calls []Call, id int) (Call, bool) {
	for _, c := range calls {
		if c.ID == id {
			return c, true
		}
	}
	return Call{}, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
