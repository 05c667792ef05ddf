package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crime-map/internal/boundary"
	"github.com/sells-group/crime-map/internal/dataset"
	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/notice"
	"github.com/sells-group/crime-map/internal/overlay"
	"github.com/sells-group/crime-map/internal/pipeline"
	"github.com/sells-group/crime-map/pkg/cityapi"
)

// mapEnv holds the loaded session data and the pipeline needed by the
// overlay and serve commands.
type mapEnv struct {
	Client   cityapi.Client
	Pipeline *pipeline.Pipeline
	Session  *pipeline.Session
	Notifier *notice.Notifier
	Profile  dataset.Profile
}

// Close waits for pending notice deliveries.
func (e *mapEnv) Close() {
	if e == nil {
		return
	}
	e.Notifier.Flush()
}

// initMapEnv resolves the dataset profile, loads calls and boundaries, and
// builds the Pipeline. Callers should defer env.Close().
func initMapEnv(ctx context.Context) (*mapEnv, error) {
	profile, err := dataset.Resolve(cfg.Dataset.Profile, cfg.Dataset.ProfilePath)
	if err != nil {
		return nil, err
	}

	mode, err := overlay.ParseMode(cfg.Map.RenderMode)
	if err != nil {
		return nil, err
	}

	client := newCityClient()
	notifier := notice.NewNotifier(cfg.Notify)

	session, err := pipeline.LoadSession(ctx, client, boundarySource(), notifier)
	if err != nil {
		return nil, eris.Wrap(err, "load session")
	}

	p := pipeline.New(client, session.Boundaries, profile,
		overlay.NewRenderer(mode, cfg.Map.FillOpacity), notifier)

	return &mapEnv{
		Client:   client,
		Pipeline: p,
		Session:  session,
		Notifier: notifier,
		Profile:  profile,
	}, nil
}

func newCityClient() cityapi.Client {
	opts := []cityapi.Option{cityapi.WithUserAgent(cfg.Backend.UserAgent)}
	if cfg.Backend.TimeoutSecs > 0 {
		opts = append(opts, cityapi.WithTimeout(time.Duration(cfg.Backend.TimeoutSecs)*time.Second))
	}
	if cfg.Backend.RateLimit > 0 {
		opts = append(opts, cityapi.WithRateLimit(cfg.Backend.RateLimit))
	}
	return cityapi.NewClient(cfg.Backend.BaseURL, opts...)
}

func boundarySource() pipeline.BoundarySource {
	return pipeline.BoundarySource{
		Location: cfg.Boundary.Source,
		Fields: boundary.Fields{
			Name:         cfg.Boundary.NameField,
			Municipality: cfg.Boundary.MunicipalityField,
		},
		Municipality: cfg.Boundary.Municipality,
	}
}

func defaultFilters() model.Filters {
	return model.Filters{
		MonthYear: cfg.Map.MonthYear,
		CrimeType: cfg.Map.CrimeType,
		RadiusKM:  cfg.Map.RadiusKM,
	}
}

// defaultMetric resolves the configured metric, falling back to the
// profile's default when the profile cannot encode it.
func defaultMetric(profile dataset.Profile) (model.Metric, error) {
	m, err := model.ParseMetric(cfg.Map.Metric)
	if err != nil {
		return "", err
	}
	if !profile.Supports(m) {
		return profile.DefaultMetric(), nil
	}
	return m, nil
}
