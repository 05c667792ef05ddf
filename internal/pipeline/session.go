package pipeline

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/crime-map/internal/boundary"
	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/notice"
	"github.com/sells-group/crime-map/pkg/cityapi"
)

// BoundarySource locates the boundary dataset and its pre-filter.
type BoundarySource struct {
	Location     string
	Fields       boundary.Fields
	Municipality string
}

// Session is the data loaded once at startup.
type Session struct {
	Calls      []model.Call
	Boundaries *boundary.Collection
}

// LoadSession fetches the call list and the boundary dataset concurrently.
// Either failure degrades to an empty collection and a notice; LoadSession
// itself only fails when ctx is cancelled.
func LoadSession(ctx context.Context, client cityapi.Client, src BoundarySource, notifier *notice.Notifier) (*Session, error) {
	s := &Session{}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		calls, err := client.FetchCalls(gCtx)
		if err != nil {
			zap.L().Warn("pipeline: call fetch failed", zap.Error(err))
			notifier.Warn(notice.SourceCalls, "112-meldingen konden niet worden geladen", err)
			s.Calls = []model.Call{}
			return nil
		}
		s.Calls = calls
		zap.L().Info("pipeline: calls loaded", zap.Int("count", len(calls)))
		return nil
	})

	g.Go(func() error {
		all, err := boundary.Load(gCtx, src.Location, src.Fields)
		if err != nil {
			zap.L().Warn("pipeline: boundary load failed",
				zap.String("source", src.Location),
				zap.Error(err),
			)
			notifier.Warn(notice.SourceBoundaries, "Buurtgrenzen konden niet worden geladen", err)
			s.Boundaries = boundary.NewCollection(nil)
			return nil
		}
		s.Boundaries = all.FilterMunicipality(src.Municipality)
		zap.L().Info("pipeline: boundaries loaded",
			zap.Int("total", all.Len()),
			zap.Int("kept", s.Boundaries.Len()),
			zap.String("municipality", src.Municipality),
		)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
