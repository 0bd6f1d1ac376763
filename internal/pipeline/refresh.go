package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/observability"
)

// Fetcher retrieves raw samples from the health-monitoring API. A zero since
// requests the full dataset.
type Fetcher interface {
	FetchSamples(ctx context.Context, since time.Time) ([]domain.RawSample, error)
}

// DatasetStore loads and persists the raw dataset.
type DatasetStore interface {
	Load() ([]domain.RawSample, error)
	Save(samples []domain.RawSample) error
}

// CompositePublisher pushes a refreshed composite series downstream.
type CompositePublisher interface {
	PublishComposite(ctx context.Context, points []domain.WeightedPoint, refreshedAt time.Time) error
}

// Snapshot is one immutable aggregation result. A new one is swapped in
// atomically after every refresh; readers never observe partial state.
type Snapshot struct {
	Stations    []string
	Series      map[string][]domain.AggregatedPoint
	Composite   []domain.WeightedPoint
	UpperBound  float64
	SampleCount int
	RefreshedAt time.Time
}

// SeriesFor returns the aggregated series of one station and whether the
// station exists in the dataset.
func (s *Snapshot) SeriesFor(station string) ([]domain.AggregatedPoint, bool) {
	points, ok := s.Series[station]
	return points, ok
}

// Refresher runs the fetch-merge-aggregate cycle: pull new samples from the
// API, fold them into the persisted dataset, recompute every station series,
// the global upper bound, and the weighted composite, then swap the snapshot.
type Refresher struct {
	fetcher   Fetcher
	store     DatasetStore
	publisher CompositePublisher // nil disables downstream publishing
	weights   domain.PopulationWeights
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock

	// samples is the in-memory dataset, touched only by Run/Refresh.
	samples []domain.RawSample
	loaded  bool

	snapshot atomic.Pointer[Snapshot]
}

// Retry backoff for failed refreshes before the first snapshot exists.
const (
	initialBackoff = 5 * time.Second
	maxBackoff     = 5 * time.Minute
)

// New creates a Refresher. Pass a nil publisher to disable Kafka publishing.
func New(fetcher Fetcher, store DatasetStore, publisher CompositePublisher, weights domain.PopulationWeights, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Refresher {
	return &Refresher{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		weights:   weights,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
	}
}

// SetClock swaps the time source. Pass nil to reset to real time.
func (r *Refresher) SetClock(c clockwork.Clock) {
	if c == nil {
		r.clock = clockwork.NewRealClock()
		return
	}
	r.clock = c
}

// Snapshot returns the latest aggregation result, or nil before the first
// successful refresh.
func (r *Refresher) Snapshot() *Snapshot {
	return r.snapshot.Load()
}

// CheckReadiness returns nil once a snapshot is available.
func (r *Refresher) CheckReadiness(_ context.Context) error {
	if r.snapshot.Load() == nil {
		return errors.New("no dataset refresh has completed yet")
	}
	return nil
}

// Run executes an initial refresh (retried with backoff until it succeeds)
// and then refreshes on every interval tick until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	r.logger.Info("refresh loop started", "interval", r.interval)
	r.metrics.PipelineRunning.Set(1)
	defer r.metrics.PipelineRunning.Set(0)

	backoff := initialBackoff
	for {
		err := r.Refresh(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		r.logger.Error("initial refresh failed", "error", err, "retry_in", backoff)
		r.metrics.RefreshErrors.Inc()
		if !r.sleep(ctx, backoff) {
			return nil
		}
		backoff = nextBackoff(backoff)
	}

	ticker := r.clock.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresh loop stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			if err := r.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Error("refresh failed", "error", err)
				r.metrics.RefreshErrors.Inc()
			}
		}
	}
}

// Refresh runs one fetch-merge-aggregate cycle. The previous snapshot stays
// in place when the cycle fails, so readers keep serving the last good state.
func (r *Refresher) Refresh(ctx context.Context) error {
	start := r.clock.Now()

	if !r.loaded {
		samples, err := r.store.Load()
		if err != nil {
			return fmt.Errorf("load dataset: %w", err)
		}
		r.samples = samples
		r.loaded = true
	}

	var since time.Time
	if latest, ok := domain.LatestExtraction(r.samples); ok {
		since = latest
	}

	fetched, err := r.fetcher.FetchSamples(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch samples: %w", err)
	}
	r.metrics.SamplesFetched.Add(float64(len(fetched)))

	if len(fetched) > 0 {
		r.samples = domain.MergeSamples(r.samples, fetched)
		if err := r.store.Save(r.samples); err != nil {
			return fmt.Errorf("persist dataset: %w", err)
		}
	}

	snap := r.buildSnapshot()
	r.snapshot.Store(snap)

	r.metrics.DatasetSamples.Set(float64(snap.SampleCount))
	r.metrics.StationsTracked.Set(float64(len(snap.Stations)))
	r.metrics.GlobalUpperBound.Set(snap.UpperBound)
	r.metrics.CompositePoints.Set(float64(len(snap.Composite)))

	r.publish(ctx, snap)

	r.metrics.RefreshDuration.Observe(r.clock.Since(start).Seconds())
	r.metrics.RefreshesTotal.Inc()
	r.logger.Info("dataset refreshed",
		"fetched", len(fetched),
		"samples", snap.SampleCount,
		"stations", len(snap.Stations),
		"composite_points", len(snap.Composite),
		"upper_bound", snap.UpperBound,
	)
	return nil
}

// buildSnapshot recomputes all derived series from the in-memory dataset.
func (r *Refresher) buildSnapshot() *Snapshot {
	stations := domain.Stations(r.samples)

	series := make(map[string][]domain.AggregatedPoint, len(stations))
	all := make([][]domain.AggregatedPoint, 0, len(stations))
	for _, station := range stations {
		points := domain.AggregateStation(r.samples, station, r.logger)
		series[station] = points
		all = append(all, points)
	}

	// The weight table names exactly the three contributing plants; sorting
	// keeps the builder's argument order deterministic.
	weighted := slices.Sorted(maps.Keys(r.weights))
	composite := domain.WeightedComposite(r.weights,
		domain.StationSeries{Station: weighted[0], Points: series[weighted[0]]},
		domain.StationSeries{Station: weighted[1], Points: series[weighted[1]]},
		domain.StationSeries{Station: weighted[2], Points: series[weighted[2]]},
	)

	return &Snapshot{
		Stations:    stations,
		Series:      series,
		Composite:   composite,
		UpperBound:  domain.GlobalUpperBound(all...),
		SampleCount: len(r.samples),
		RefreshedAt: r.clock.Now(),
	}
}

func (r *Refresher) publish(ctx context.Context, snap *Snapshot) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishComposite(ctx, snap.Composite, snap.RefreshedAt); err != nil {
		// Publishing is best-effort; the snapshot is already live.
		r.logger.Warn("composite publish failed", "error", err)
		r.metrics.PublishErrors.Inc()
		return
	}
	r.metrics.PublishesTotal.Inc()
}

// sleep waits for d on the pipeline clock. Returns false when the context
// was cancelled first.
func (r *Refresher) sleep(ctx context.Context, d time.Duration) bool {
	timer := r.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
