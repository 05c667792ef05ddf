package mapserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/notice"
	"github.com/sells-group/crime-map/internal/overlay"
	"github.com/sells-group/crime-map/internal/pipeline"
	"github.com/sells-group/crime-map/internal/selection"
	"github.com/sells-group/crime-map/internal/style"
)

type overlayResponse struct {
	Metric     model.Metric               `json:"metric"`
	Mode       overlay.Mode               `json:"mode"`
	Collection *geojson.FeatureCollection `json:"collection"`
	Summary    overlay.Summary            `json:"summary"`
	Unmatched  []string                   `json:"unmatched"`
	Legends    []style.Legend             `json:"legends"`
	Warning    string                     `json:"warning,omitempty"`
}

func newOverlayResponse(o *overlay.Overlay) overlayResponse {
	unmatched := make([]string, 0, len(o.Unmatched))
	for _, r := range o.Unmatched {
		unmatched = append(unmatched, r.Name)
	}
	return overlayResponse{
		Metric:     o.Metric,
		Mode:       o.Mode,
		Collection: o.FeatureCollection(),
		Summary:    o.Summary(),
		Unmatched:  unmatched,
		Legends:    style.LegendsFor(o.Metric),
	}
}

type sessionResponse struct {
	CallID      *int           `json:"call_id"`
	Call        *model.Call    `json:"call"`
	MonthYear   string         `json:"month_year"`
	CrimeType   string         `json:"crime_type"`
	RadiusKM    float64        `json:"radius_km"`
	Metric      model.Metric   `json:"metric"`
	Generation  uint64         `json:"generation"`
	Applied     uint64         `json:"applied"`
	Loading     bool           `json:"loading"`
	RegionCount int            `json:"region_count"`
	Center      LatLon         `json:"center"`
	Profile     string         `json:"profile"`
	Metrics     []model.Metric `json:"metrics"`
	CrimeTypes  []string       `json:"crime_types"`
}

// sessionPatch is the PUT /session body. Absent fields are left alone.
type sessionPatch struct {
	CallID    *int     `json:"call_id"`
	ClearCall bool     `json:"clear_call"`
	MonthYear *string  `json:"month_year"`
	CrimeType *string  `json:"crime_type"`
	RadiusKM  *float64 `json:"radius_km"`
	Metric    *string  `json:"metric"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) calls(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Calls())
}

func (s *Server) legend(w http.ResponseWriter, r *http.Request) {
	metric := s.defaults.Metric
	if raw := r.URL.Query().Get("metric"); raw != "" {
		m, err := model.ParseMetric(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown metric")
			return
		}
		metric = m
	}
	writeJSON(w, http.StatusOK, style.LegendsFor(metric))
}

func (s *Server) notices(w http.ResponseWriter, r *http.Request) {
	recent := s.notifier.Recent()
	if recent == nil {
		recent = []notice.Notice{}
	}
	writeJSON(w, http.StatusOK, recent)
}

// overlay runs the pipeline once for the call and filters in the query,
// independent of the shared session.
func (s *Server) overlay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	id, err := strconv.Atoi(q.Get("call_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "call_id must be an integer")
		return
	}
	call, ok := model.FindCall(s.session.Calls(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "call not found")
		return
	}

	filters, metric, p, msg := s.parseOverlayQuery(r)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	o, err := p.Run(r.Context(), call, filters, metric)
	if errors.Is(err, pipeline.ErrUnsupportedMetric) {
		writeError(w, http.StatusBadRequest, "metric not supported by dataset")
		return
	}

	resp := newOverlayResponse(o)
	if err != nil {
		zap.L().Warn("mapserver: overlay degraded to empty",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Int("call_id", id),
			zap.Error(err),
		)
		resp.Warning = "regions could not be loaded"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) parseOverlayQuery(r *http.Request) (model.Filters, model.Metric, *pipeline.Pipeline, string) {
	q := r.URL.Query()
	filters := s.defaults.Filters
	metric := s.defaults.Metric
	p := s.pipeline

	if v, ok := q["month_year"]; ok {
		filters.MonthYear = strings.TrimSpace(v[0])
		if !model.ValidMonthYear(filters.MonthYear) {
			return filters, metric, p, "month_year must be formatted as YYYY-MM"
		}
	}
	if v, ok := q["crime_type"]; ok {
		filters.CrimeType = strings.TrimSpace(v[0])
		if !p.Profile().AcceptsCrimeType(filters.CrimeType) {
			return filters, metric, p, "crime_type not in dataset"
		}
	}
	if raw := q.Get("radius_km"); raw != "" {
		km, err := strconv.ParseFloat(raw, 64)
		if err != nil || !model.ValidRadius(km) {
			return filters, metric, p, "radius_km must be a positive number"
		}
		filters.RadiusKM = km
	}
	if raw := q.Get("metric"); raw != "" {
		m, err := model.ParseMetric(raw)
		if err != nil {
			return filters, metric, p, "unknown metric"
		}
		metric = m
	}
	if raw := q.Get("mode"); raw != "" {
		mode, err := overlay.ParseMode(raw)
		if err != nil {
			return filters, metric, p, "mode must be polygon or marker"
		}
		p = p.WithMode(mode)
	}
	return filters, metric, p, ""
}

func (s *Server) sessionState() sessionResponse {
	return s.stateResponse(s.session.Snapshot())
}

func (s *Server) stateResponse(st selection.State) sessionResponse {
	profile := s.pipeline.Profile()
	center := s.defaults.Center
	if st.Call != nil {
		if lat, lon, ok := st.Call.Location(); ok {
			center = LatLon{Lat: lat, Lon: lon}
		}
	}
	return sessionResponse{
		CallID:      st.CallID,
		Call:        st.Call,
		MonthYear:   st.Filters.MonthYear,
		CrimeType:   st.Filters.CrimeType,
		RadiusKM:    st.Filters.RadiusKM,
		Metric:      st.Metric,
		Generation:  st.Generation,
		Applied:     st.Applied,
		Loading:     st.Loading(),
		RegionCount: len(st.Regions),
		Center:      center,
		Profile:     profile.Name,
		Metrics:     profile.Metrics,
		CrimeTypes:  profile.CrimeTypes,
	}
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sessionState())
}

func (s *Server) putSession(w http.ResponseWriter, r *http.Request) {
	var patch sessionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	u := selection.Update{
		CallID:    patch.CallID,
		ClearCall: patch.ClearCall,
		MonthYear: patch.MonthYear,
		CrimeType: patch.CrimeType,
		RadiusKM:  patch.RadiusKM,
	}
	if patch.Metric != nil {
		m := model.Metric(strings.ToLower(strings.TrimSpace(*patch.Metric)))
		u.Metric = &m
	}

	if err := s.session.Apply(u); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, selection.ErrUnknownCall) {
			status = http.StatusNotFound
		}
		zap.L().Debug("mapserver: session patch rejected",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sessionState())
}

// sessionOverlay renders the regions the session currently shows with its
// active metric. No request to the backend is made.
func (s *Server) sessionOverlay(w http.ResponseWriter, r *http.Request) {
	st := s.session.Snapshot()

	p := s.pipeline
	if raw := r.URL.Query().Get("mode"); raw != "" {
		mode, err := overlay.ParseMode(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "mode must be polygon or marker")
			return
		}
		p = p.WithMode(mode)
	}

	o, err := p.Render(st.Regions, st.Metric)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp := newOverlayResponse(o)
	if st.Loading() {
		resp.Warning = "refresh in progress"
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}
