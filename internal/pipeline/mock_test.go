package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/pkg/cityapi"
)

// --- City API Mock ---

type mockCityClient struct {
	mock.Mock
}

func (m *mockCityClient) FetchCalls(ctx context.Context) ([]model.Call, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Call), args.Error(1)
}

func (m *mockCityClient) FetchRegionsNear(ctx context.Context, lat, lon float64, q cityapi.RegionQuery) ([]model.Region, error) {
	args := m.Called(ctx, lat, lon, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Region), args.Error(1)
}
