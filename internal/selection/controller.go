// Package selection owns the interactive map state: the selected call, the
// region filters, and the active metric. Every change that affects which
// regions are shown issues a refresh; only the newest refresh may update
// the displayed regions.
package selection

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/dataset"
	"github.com/sells-group/crime-map/internal/model"
)

var (
	// ErrUnknownMetric is returned for metric names outside the model.
	ErrUnknownMetric = model.ErrUnknownMetric
	// ErrUnsupportedMetric is returned when the dataset profile lacks a metric.
	ErrUnsupportedMetric = eris.New("selection: metric not supported by dataset")
	// ErrInvalidRadius is returned for non-positive or non-finite radii.
	ErrInvalidRadius = eris.New("selection: radius must be a positive number")
	// ErrInvalidMonth is returned for a month that is not YYYY-MM.
	ErrInvalidMonth = eris.New("selection: month must be formatted as YYYY-MM")
	// ErrUnknownCrimeType is returned for a crime type the dataset does not declare.
	ErrUnknownCrimeType = eris.New("selection: crime type not in dataset")
	// ErrUnknownCall is returned when selecting an id that is not in the call list.
	ErrUnknownCall = eris.New("selection: unknown call")
)

// RegionSource loads the regions around a call.
type RegionSource interface {
	Regions(ctx context.Context, call model.Call, filters model.Filters) ([]model.Region, error)
}

// EventType names a state transition.
type EventType string

const (
	// SelectionChanged fires synchronously when the call or a filter changes.
	SelectionChanged EventType = "selection_changed"
	// RegionsUpdated fires when a refresh result (possibly empty) is applied.
	RegionsUpdated EventType = "regions_updated"
	// RefreshFailed fires when the newest refresh failed; regions are cleared.
	RefreshFailed EventType = "refresh_failed"
	// MetricChanged fires when the metric changes. Regions are re-encoded, not refetched.
	MetricChanged EventType = "metric_changed"
)

// Event describes one transition together with the state right after it.
type Event struct {
	Type  EventType
	State State
	Err   error
}

// State is a point-in-time copy of the controller state.
type State struct {
	CallID  *int
	Call    *model.Call
	Filters model.Filters
	Metric  model.Metric
	// Generation is the latest refresh issued; Applied is the refresh whose
	// result Regions holds.
	Generation uint64
	Applied    uint64
	Regions    []model.Region
}

// Loading reports whether a newer refresh than the displayed one is in flight.
func (s State) Loading() bool {
	return s.Applied != s.Generation
}

// Update is an atomic patch of several fields. Nil fields are left alone.
type Update struct {
	CallID    *int
	ClearCall bool
	MonthYear *string
	CrimeType *string
	RadiusKM  *float64
	Metric    *model.Metric
}

// Option configures a Controller.
type Option func(*Controller)

// WithFilters sets the initial filters.
func WithFilters(f model.Filters) Option {
	return func(c *Controller) {
		c.filters = f
	}
}

// WithMetric sets the initial metric.
func WithMetric(m model.Metric) Option {
	return func(c *Controller) {
		c.metric = m
	}
}

// WithProfile restricts metrics to those the dataset profile supports.
func WithProfile(p dataset.Profile) Option {
	return func(c *Controller) {
		c.profile = p
	}
}

// Listener receives events in the order they were produced. Listeners run
// synchronously and must not call back into the Controller; the State on
// the event is already a consistent copy.
type Listener func(Event)

// Controller is safe for concurrent use.
type Controller struct {
	source  RegionSource
	profile dataset.Profile

	base      context.Context
	cancelAll context.CancelFunc

	mu      sync.Mutex
	calls   []model.Call
	callID  *int
	filters model.Filters
	metric  model.Metric
	issued  uint64
	applied uint64
	regions []model.Region

	emitMu    sync.Mutex
	listeners []Listener

	wg sync.WaitGroup
}

// NewController creates a Controller with no call selected and no regions.
func NewController(source RegionSource, calls []model.Call, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:    source,
		profile:   dataset.Groningen,
		base:      ctx,
		cancelAll: cancel,
		calls:     calls,
		regions:   []model.Region{},
		metric:    model.MetricIncidents,
	}
	for _, o := range opts {
		o(c)
	}
	if !c.profile.Supports(c.metric) {
		c.metric = c.profile.DefaultMetric()
	}
	return c
}

// Subscribe registers a listener for all subsequent events.
func (c *Controller) Subscribe(l Listener) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Calls returns the current call list.
func (c *Controller) Calls() []model.Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// SetCalls replaces the call list and refreshes, since the selected call
// may have gained or lost its location.
func (c *Controller) SetCalls(calls []model.Call) {
	c.mu.Lock()
	c.calls = calls
	c.commit(SelectionChanged)
}

// SelectCall selects a call by id and refreshes.
func (c *Controller) SelectCall(id int) error {
	return c.Apply(Update{CallID: &id})
}

// ClearCall deselects the current call. Regions become empty.
func (c *Controller) ClearCall() {
	_ = c.Apply(Update{ClearCall: true})
}

// SetMonth sets the month filter ("" clears it) and refreshes.
func (c *Controller) SetMonth(monthYear string) error {
	return c.Apply(Update{MonthYear: &monthYear})
}

// SetCrimeType sets the crime type filter ("" clears it) and refreshes.
func (c *Controller) SetCrimeType(crimeType string) error {
	return c.Apply(Update{CrimeType: &crimeType})
}

// SetRadius sets the search radius in kilometres and refreshes.
func (c *Controller) SetRadius(km float64) error {
	return c.Apply(Update{RadiusKM: &km})
}

// SetMetric changes the active metric without refetching.
func (c *Controller) SetMetric(m model.Metric) error {
	return c.Apply(Update{Metric: &m})
}

// Apply validates and applies every field of u at once. A change to the
// call or a filter issues exactly one refresh; a metric-only change does not.
func (c *Controller) Apply(u Update) error {
	if err := c.validate(u); err != nil {
		return err
	}

	c.mu.Lock()
	if u.CallID != nil {
		if _, ok := model.FindCall(c.calls, *u.CallID); !ok {
			c.mu.Unlock()
			return eris.Wrapf(ErrUnknownCall, "id %d", *u.CallID)
		}
	}

	refetch := false
	if u.ClearCall {
		refetch = c.callID != nil
		c.callID = nil
	}
	if u.CallID != nil {
		id := *u.CallID
		c.callID = &id
		refetch = true
	}
	if u.MonthYear != nil {
		c.filters.MonthYear = *u.MonthYear
		refetch = true
	}
	if u.CrimeType != nil {
		c.filters.CrimeType = *u.CrimeType
		refetch = true
	}
	if u.RadiusKM != nil {
		c.filters.RadiusKM = *u.RadiusKM
		refetch = true
	}
	metricChanged := u.Metric != nil && *u.Metric != c.metric
	if u.Metric != nil {
		c.metric = *u.Metric
	}

	switch {
	case refetch:
		c.commit(SelectionChanged, metricEvent(metricChanged)...)
	case metricChanged:
		c.commit(MetricChanged)
	default:
		c.mu.Unlock()
	}
	return nil
}

func metricEvent(changed bool) []EventType {
	if changed {
		return []EventType{MetricChanged}
	}
	return nil
}

func (c *Controller) validate(u Update) error {
	if u.MonthYear != nil && !model.ValidMonthYear(*u.MonthYear) {
		return eris.Wrapf(ErrInvalidMonth, "%q", *u.MonthYear)
	}
	if u.CrimeType != nil && !c.profile.AcceptsCrimeType(*u.CrimeType) {
		return eris.Wrapf(ErrUnknownCrimeType, "%q", *u.CrimeType)
	}
	if u.RadiusKM != nil && !model.ValidRadius(*u.RadiusKM) {
		return eris.Wrapf(ErrInvalidRadius, "%g", *u.RadiusKM)
	}
	if u.Metric != nil {
		if _, err := model.ParseMetric(string(*u.Metric)); err != nil {
			return err
		}
		if !c.profile.Supports(*u.Metric) {
			return eris.Wrapf(ErrUnsupportedMetric, "%s on %s", *u.Metric, c.profile.Name)
		}
	}
	return nil
}

// commit finishes a transition started with c.mu held. SelectionChanged
// issues a refresh; the events are delivered in order after c.mu is released.
func (c *Controller) commit(first EventType, rest ...EventType) {
	var events []Event
	for _, t := range append([]EventType{first}, rest...) {
		if t == SelectionChanged {
			if ev, ok := c.refreshLocked(); ok {
				events = append(events, Event{Type: SelectionChanged, State: c.snapshotLocked()}, ev)
				continue
			}
		}
		events = append(events, Event{Type: t, State: c.snapshotLocked()})
	}
	c.deliver(events)
}

// refreshLocked issues a new generation. When no located call is selected
// the empty result is applied immediately and returned as an event.
func (c *Controller) refreshLocked() (Event, bool) {
	c.issued++
	gen := c.issued

	call, ok := c.selectedLocked()
	if !ok {
		c.regions = []model.Region{}
		c.applied = gen
		return Event{Type: RegionsUpdated, State: c.snapshotLocked()}, true
	}
	if _, _, located := call.Location(); !located {
		c.regions = []model.Region{}
		c.applied = gen
		return Event{Type: RegionsUpdated, State: c.snapshotLocked()}, true
	}

	// Superseded refreshes run to completion and are discarded by
	// generation; only Close cancels them.
	c.wg.Add(1)
	go c.fetch(gen, call, c.filters)
	return Event{}, false
}

func (c *Controller) fetch(gen uint64, call model.Call, filters model.Filters) {
	defer c.wg.Done()

	regions, err := c.source.Regions(c.base, call, filters)

	c.mu.Lock()
	if gen != c.issued || c.base.Err() != nil {
		latest := c.issued
		c.mu.Unlock()
		zap.L().Debug("selection: discarding stale refresh",
			zap.Uint64("generation", gen),
			zap.Uint64("latest", latest),
			zap.Int("call_id", call.ID),
		)
		return
	}
	c.applied = gen

	ev := Event{Type: RegionsUpdated}
	if err != nil {
		c.regions = []model.Region{}
		ev = Event{Type: RefreshFailed, Err: err}
	} else {
		if regions == nil {
			regions = []model.Region{}
		}
		c.regions = regions
	}
	ev.State = c.snapshotLocked()
	c.deliver([]Event{ev})
}

// deliver releases c.mu and hands events to the listeners in order.
func (c *Controller) deliver(events []Event) {
	c.emitMu.Lock()
	c.mu.Unlock()
	defer c.emitMu.Unlock()

	for _, ev := range events {
		for _, l := range c.listeners {
			l(ev)
		}
	}
}

func (c *Controller) selectedLocked() (model.Call, bool) {
	if c.callID == nil {
		return model.Call{}, false
	}
	return model.FindCall(c.calls, *c.callID)
}

func (c *Controller) snapshotLocked() State {
	s := State{
		Filters:    c.filters,
		Metric:     c.metric,
		Generation: c.issued,
		Applied:    c.applied,
		Regions:    make([]model.Region, len(c.regions)),
	}
	copy(s.Regions, c.regions)
	if c.callID != nil {
		id := *c.callID
		s.CallID = &id
		if call, ok := model.FindCall(c.calls, id); ok {
			s.Call = &call
		}
	}
	return s
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Regions returns the regions of the most recently applied refresh.
func (c *Controller) Regions() []model.Region {
	return c.Snapshot().Regions
}

// Wait blocks until every in-flight refresh has settled.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels in-flight refreshes and waits for them to settle.
func (c *Controller) Close() {
	c.cancelAll()
	c.wg.Wait()
}
