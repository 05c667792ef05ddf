// Package pipeline wires the region retrieval, boundary join, and visual
// encoding steps into one parameterized flow.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/boundary"
	"github.com/sells-group/crime-map/internal/dataset"
	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/notice"
	"github.com/sells-group/crime-map/internal/overlay"
	"github.com/sells-group/crime-map/pkg/cityapi"
)

// ErrUnsupportedMetric is returned when the dataset profile cannot encode a metric.
var ErrUnsupportedMetric = eris.New("pipeline: metric not supported by dataset")

// Pipeline fetches regions for a call and renders them as an overlay.
type Pipeline struct {
	client     cityapi.Client
	boundaries *boundary.Collection
	profile    dataset.Profile
	renderer   overlay.Renderer
	notifier   *notice.Notifier
}

// New creates a Pipeline. boundaries and notifier may be nil.
func New(
	client cityapi.Client,
	boundaries *boundary.Collection,
	profile dataset.Profile,
	renderer overlay.Renderer,
	notifier *notice.Notifier,
) *Pipeline {
	return &Pipeline{
		client:     client,
		boundaries: boundaries,
		profile:    profile,
		renderer:   renderer,
		notifier:   notifier,
	}
}

// Profile returns the dataset capability profile.
func (p *Pipeline) Profile() dataset.Profile {
	return p.profile
}

// Boundaries returns the boundary collection used for joins.
func (p *Pipeline) Boundaries() *boundary.Collection {
	return p.boundaries
}

// Mode returns the render mode of the pipeline's renderer.
func (p *Pipeline) Mode() overlay.Mode {
	return p.renderer.Mode
}

// WithMode returns a copy of the pipeline that renders in mode. The copy
// shares the client, boundaries, and notifier.
func (p *Pipeline) WithMode(mode overlay.Mode) *Pipeline {
	cp := *p
	cp.renderer.Mode = mode
	return &cp
}

// Regions fetches the regions around a call. A call without a location
// yields no regions and no request. Fetch failures are logged, reported as a
// notice, and returned.
func (p *Pipeline) Regions(ctx context.Context, call model.Call, filters model.Filters) ([]model.Region, error) {
	lat, lon, ok := call.Location()
	if !ok {
		return nil, nil
	}

	regions, err := p.client.FetchRegionsNear(ctx, lat, lon, cityapi.QueryFromFilters(filters))
	if err != nil {
		if ctx.Err() != nil {
			zap.L().Debug("pipeline: region fetch cancelled", zap.Int("call_id", call.ID))
			return nil, err
		}
		zap.L().Warn("pipeline: region fetch failed",
			zap.Int("call_id", call.ID),
			zap.String("month_year", filters.MonthYear),
			zap.String("crime_type", filters.CrimeType),
			zap.Error(err),
		)
		p.notifier.Warn(notice.SourceRegions, "Buurtgegevens konden niet worden geladen", err)
		return nil, err
	}

	if !p.profile.HasE33 {
		regions = stripE33(regions)
	}
	return regions, nil
}

// stripE33 drops crisis-call fields a dataset does not declare.
func stripE33(regions []model.Region) []model.Region {
	out := make([]model.Region, len(regions))
	for i, r := range regions {
		r.E33Count = nil
		r.E33Percent = nil
		out[i] = r
	}
	return out
}

// CheckMetric verifies the dataset can encode the metric.
func (p *Pipeline) CheckMetric(metric model.Metric) error {
	if !p.profile.Supports(metric) {
		return eris.Wrapf(ErrUnsupportedMetric, "%s on %s", metric, p.profile.Name)
	}
	return nil
}

// Render encodes regions for the metric and joins them to boundaries.
func (p *Pipeline) Render(regions []model.Region, metric model.Metric) (*overlay.Overlay, error) {
	if err := p.CheckMetric(metric); err != nil {
		return nil, err
	}
	return p.renderer.Render(regions, p.boundaries, metric), nil
}

// Run fetches and renders in one step. On a fetch failure it returns an
// empty overlay together with the error so callers can keep drawing.
func (p *Pipeline) Run(ctx context.Context, call model.Call, filters model.Filters, metric model.Metric) (*overlay.Overlay, error) {
	if err := p.CheckMetric(metric); err != nil {
		return nil, err
	}
	regions, fetchErr := p.Regions(ctx, call, filters)
	o, err := p.Render(regions, metric)
	if err != nil {
		return nil, err
	}
	return o, fetchErr
}
