package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windforecast/windforecast/internal/forecast"
	"github.com/windforecast/windforecast/internal/ingest"
	"github.com/windforecast/windforecast/internal/station"
)

// fakeClock advances only when slept on.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// advance moves time forward without recording a sleep, standing in for time
// spent on upstream requests.
func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type fetchResult struct {
	hourly forecast.Result[[]forecast.HourlyPoint]
	daily  forecast.Result[[]forecast.DailySummary]
	panics bool
}

// fakeFetcher returns canned results keyed by municipality code.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]fetchResult
	calls   []string

	// clock, when set, is advanced by latency on every fetch.
	clock   *fakeClock
	latency time.Duration
}

func (f *fakeFetcher) FetchHourly(_ context.Context, code, _ string) forecast.Result[[]forecast.HourlyPoint] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "hourly:"+code)
	if f.clock != nil {
		f.clock.advance(f.latency)
	}
	r := f.results[code]
	if r.panics {
		panic("decoder exploded")
	}
	return r.hourly
}

func (f *fakeFetcher) FetchDaily(_ context.Context, code, _ string) forecast.Result[[]forecast.DailySummary] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "daily:"+code)
	if f.clock != nil {
		f.clock.advance(f.latency)
	}
	return f.results[code].daily
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type failingStore struct {
	*station.InMemoryRepository
	err error
}

func (s failingStore) SaveForecast(context.Context, string, forecast.Record) error {
	return s.err
}

type recordingNotifier struct {
	mu       sync.Mutex
	stations []string
	err      error
}

func (n *recordingNotifier) ForecastUpdated(_ context.Context, stationID string, _ forecast.Record) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stations = append(n.stations, stationID)
	return n.err
}

func hourly(n int) forecast.Result[[]forecast.HourlyPoint] {
	points := make([]forecast.HourlyPoint, n)
	for i := range points {
		points[i].WindKts = i
	}
	return forecast.OK(points)
}

func daily(n int) forecast.Result[[]forecast.DailySummary] {
	days := make([]forecast.DailySummary, n)
	for i := range days {
		days[i].Date = time.Date(2025, 11, 20+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	return forecast.OK(days)
}

func st(id, code, key string) *station.Station {
	return &station.Station{ID: id, Name: id, Credential: station.Credential{MunicipalityCode: code, APIKey: key}}
}

func newOrchestrator(store ingest.Store, fetcher ingest.Fetcher, clock ingest.Clock, notifier ingest.Notifier) *ingest.Orchestrator {
	cfg := ingest.Config{
		Fetcher: fetcher,
		Store:   store,
		Clock:   clock,
		Logger:  zerolog.Nop(),
	}
	if notifier != nil {
		cfg.Notifier = notifier
	}
	return ingest.NewOrchestrator(cfg)
}

func TestOrchestrator_ClassifiesStations(t *testing.T) {
	repo := station.NewInMemoryRepository(
		st("a-ok", "1", "k1"),
		st("b-nokey", "2", ""),
		st("c-fail", "3", "k3"),
		st("d-hourly-only", "4", "k4"),
		st("e-daily-only", "5", "k5"),
		st("f-empty", "6", "k6"),
	)
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"1": {hourly: hourly(3), daily: daily(7)},
		"3": {hourly: forecast.Failed[[]forecast.HourlyPoint]("metadata estado 404"), daily: forecast.Failed[[]forecast.DailySummary]("boom")},
		"4": {hourly: hourly(2), daily: forecast.Failed[[]forecast.DailySummary]("data request: unexpected status code: 500")},
		"5": {hourly: forecast.Failed[[]forecast.HourlyPoint]("429"), daily: daily(1)},
		"6": {hourly: hourly(0), daily: daily(0)},
	}}
	clock := newFakeClock()
	notifier := &recordingNotifier{}

	summary, err := newOrchestrator(repo, fetcher, clock, notifier).Run(context.Background(), ingest.RunOptions{Trigger: ingest.TriggerSchedule})
	require.NoError(t, err)

	assert.Equal(t, []string{"a-ok", "d-hourly-only", "e-daily-only"}, summary.Success)
	assert.Equal(t, []ingest.Outcome{
		{StationID: "c-fail", Reason: ingest.ReasonNoForecastData},
		{StationID: "f-empty", Reason: ingest.ReasonNoForecastData},
	}, summary.Failed)
	assert.Equal(t, []ingest.Outcome{{StationID: "b-nokey", Reason: ingest.ReasonMissingConfiguration}}, summary.Skipped)
	assert.Equal(t, ingest.TriggerSchedule, summary.Trigger)
	assert.NotEmpty(t, summary.RunID)

	ctx := context.Background()

	full, err := repo.GetForecast(ctx, "a-ok")
	require.NoError(t, err)
	assert.Len(t, full.Data.Hourly, 3)
	assert.Len(t, full.Data.Weekly, 7)
	assert.Equal(t, forecast.SourceAEMET, full.Source)

	hourlyOnly, err := repo.GetForecast(ctx, "d-hourly-only")
	require.NoError(t, err)
	assert.Len(t, hourlyOnly.Data.Hourly, 2)
	assert.Nil(t, hourlyOnly.Data.Weekly)

	dailyOnly, err := repo.GetForecast(ctx, "e-daily-only")
	require.NoError(t, err)
	assert.Nil(t, dailyOnly.Data.Hourly)
	assert.Len(t, dailyOnly.Data.Weekly, 1)

	for _, id := range []string{"b-nokey", "c-fail", "f-empty"} {
		_, err := repo.GetForecast(ctx, id)
		assert.ErrorIs(t, err, station.ErrForecastNotFound, id)
	}

	assert.Equal(t, []string{"a-ok", "d-hourly-only", "e-daily-only"}, notifier.stations)
}

func TestOrchestrator_SkippedStationsNeverFetch(t *testing.T) {
	repo := station.NewInMemoryRepository(
		st("a", "", "key"),
		st("b", "11035", " "),
	)
	fetcher := &fakeFetcher{}
	clock := newFakeClock()

	summary, err := newOrchestrator(repo, fetcher, clock, nil).Run(context.Background(), ingest.RunOptions{})
	require.NoError(t, err)

	assert.Empty(t, fetcher.Calls())
	assert.Empty(t, clock.Sleeps())
	assert.Len(t, summary.Skipped, 2)
	assert.Empty(t, summary.Success)
	assert.Empty(t, summary.Failed)
}

func TestOrchestrator_CooldownBetweenStations(t *testing.T) {
	repo := station.NewInMemoryRepository(
		st("a", "1", "k"),
		st("b", "2", ""),
		st("c", "3", "k"),
		st("d", "4", "k"),
	)
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"1": {hourly: hourly(1)},
		"3": {hourly: hourly(1)},
		"4": {daily: daily(1)},
	}}
	clock := newFakeClock()

	_, err := newOrchestrator(repo, fetcher, clock, nil).Run(context.Background(), ingest.RunOptions{})
	require.NoError(t, err)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2, "one wait before each processed station except the first")
	for _, d := range sleeps {
		assert.InDelta(t, ingest.DefaultCooldown.Seconds(), d.Seconds(), 0.001)
	}
	assert.Equal(t, []string{"hourly:1", "daily:1", "hourly:3", "daily:3", "hourly:4", "daily:4"}, fetcher.Calls())
}

func TestOrchestrator_CooldownCountsFromLastRequest(t *testing.T) {
	repo := station.NewInMemoryRepository(st("a", "1", "k"), st("b", "2", "k"), st("c", "3", "k"))
	clock := newFakeClock()
	fetcher := &fakeFetcher{
		results: map[string]fetchResult{"1": {hourly: hourly(1)}, "2": {hourly: hourly(1)}, "3": {hourly: hourly(1)}},
		clock:   clock,
		// Each fetch takes a minute, as when network retries kick in.
		latency: 60 * time.Second,
	}

	_, err := newOrchestrator(repo, fetcher, clock, nil).Run(context.Background(), ingest.RunOptions{})
	require.NoError(t, err)

	sleeps := clock.Sleeps()
	require.Len(t, sleeps, 2)
	for _, d := range sleeps {
		assert.InDelta(t, ingest.DefaultCooldown.Seconds(), d.Seconds(), 0.001)
	}
}

func TestOrchestrator_SingleStation(t *testing.T) {
	repo := station.NewInMemoryRepository(st("a", "1", "k"), st("b", "2", "k"))
	fetcher := &fakeFetcher{results: map[string]fetchResult{"2": {hourly: hourly(1)}}}
	clock := newFakeClock()
	orch := newOrchestrator(repo, fetcher, clock, nil)

	summary, err := orch.Run(context.Background(), ingest.RunOptions{StationID: "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, summary.Success)
	assert.Empty(t, clock.Sleeps())

	_, err = orch.Run(context.Background(), ingest.RunOptions{StationID: "zzz"})
	assert.ErrorIs(t, err, station.ErrStationNotFound)
}

func TestOrchestrator_NoStations(t *testing.T) {
	orch := newOrchestrator(station.NewInMemoryRepository(), &fakeFetcher{}, newFakeClock(), nil)

	summary, err := orch.Run(context.Background(), ingest.RunOptions{})
	assert.ErrorIs(t, err, ingest.ErrNoStations)
	assert.Nil(t, summary)
}

func TestOrchestrator_PanicIsContainedToStation(t *testing.T) {
	repo := station.NewInMemoryRepository(st("a", "1", "k"), st("b", "2", "k"))
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"1": {panics: true},
		"2": {hourly: hourly(1)},
	}}

	summary, err := newOrchestrator(repo, fetcher, newFakeClock(), nil).Run(context.Background(), ingest.RunOptions{})
	require.NoError(t, err)

	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "a", summary.Failed[0].StationID)
	assert.Contains(t, summary.Failed[0].Reason, "decoder exploded")
	assert.Equal(t, []string{"b"}, summary.Success)
}

func TestOrchestrator_SaveErrorIsFatal(t *testing.T) {
	saveErr := errors.New("connection refused")
	store := failingStore{
		InMemoryRepository: station.NewInMemoryRepository(st("a", "1", "k"), st("b", "2", "k")),
		err:                saveErr,
	}
	fetcher := &fakeFetcher{results: map[string]fetchResult{
		"1": {hourly: hourly(1)},
		"2": {hourly: hourly(1)},
	}}

	summary, err := newOrchestrator(store, fetcher, newFakeClock(), nil).Run(context.Background(), ingest.RunOptions{})

	require.ErrorIs(t, err, saveErr)
	require.NotNil(t, summary)
	assert.Empty(t, summary.Success)
	assert.Equal(t, []string{"hourly:1", "daily:1"}, fetcher.Calls())
}

func TestOrchestrator_NotifierErrorIsNotFatal(t *testing.T) {
	repo := station.NewInMemoryRepository(st("a", "1", "k"))
	fetcher := &fakeFetcher{results: map[string]fetchResult{"1": {daily: daily(2)}}}
	notifier := &recordingNotifier{err: errors.New("broker down")}

	summary, err := newOrchestrator(repo, fetcher, newFakeClock(), notifier).Run(context.Background(), ingest.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, summary.Success)
	assert.Equal(t, []string{"a"}, notifier.stations)
}

func TestOrchestrator_CancelledContext(t *testing.T) {
	repo := station.NewInMemoryRepository(st("a", "1", "k"))
	fetcher := &fakeFetcher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := newOrchestrator(repo, fetcher, newFakeClock(), nil).Run(ctx, ingest.RunOptions{})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.Empty(t, fetcher.Calls())
}

func TestOrchestrator_RecordsStats(t *testing.T) {
	repo := station.NewInMemoryRepository(st("a", "1", "k"), st("b", "", ""))
	fetcher := &fakeFetcher{results: map[string]fetchResult{"1": {hourly: hourly(1)}}}
	orch := newOrchestrator(repo, fetcher, newFakeClock(), nil)

	summary, err := orch.Run(context.Background(), ingest.RunOptions{})
	require.NoError(t, err)
	_, err = orch.Run(context.Background(), ingest.RunOptions{StationID: "missing"})
	require.Error(t, err)

	stats := orch.Stats().Snapshot()
	assert.EqualValues(t, 2, stats.TotalRuns)
	assert.EqualValues(t, 1, stats.FailedRuns)
	assert.EqualValues(t, 1, stats.StationsSuccess)
	assert.EqualValues(t, 1, stats.StationsSkipped)
	assert.Equal(t, station.ErrStationNotFound.Error(), stats.LastRunError)
	assert.NotEqual(t, summary.RunID, stats.LastRunID)

	m := orch.Stats().Map()
	assert.EqualValues(t, 2, m["total_runs"])
	assert.Contains(t, m, "last_run_error")
}
