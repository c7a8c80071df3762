package location

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = geo.Coordinate{Latitude: 12.9716, Longitude: 77.5946}

func acc(v float64) *float64 { return &v }

func fixAt(c geo.Coordinate, accuracy float64) location.LocationFix {
	return location.NewFix(c, acc(accuracy), time.Now())
}

// scriptedSource replays a fixed sequence of fixes on every Watch.
type scriptedSource struct {
	once      location.LocationFix
	onceErr   error
	onceBlock bool
	fixes     []location.LocationFix
	watchErr  error
	interval  time.Duration

	watches int32
	cancels int32
}

func (s *scriptedSource) GetOnce(ctx context.Context, opts location.Options) (location.LocationFix, error) {
	if s.onceBlock {
		<-ctx.Done()
		return location.LocationFix{}, ctx.Err()
	}
	if s.onceErr != nil {
		return location.LocationFix{}, s.onceErr
	}
	return s.once, nil
}

func (s *scriptedSource) Watch(opts location.Options, onFix func(location.LocationFix), onError func(error)) (func(), error) {
	atomic.AddInt32(&s.watches, 1)
	var stopped atomic.Bool
	go func() {
		for _, f := range s.fixes {
			if s.interval > 0 {
				time.Sleep(s.interval)
			}
			if stopped.Load() {
				return
			}
			onFix(f)
		}
		if s.watchErr != nil && !stopped.Load() {
			onError(s.watchErr)
		}
	}()
	return func() {
		stopped.Store(true)
		atomic.AddInt32(&s.cancels, 1)
	}, nil
}

type countingGeocoder struct {
	calls int32
	mu    sync.Mutex
	gate  map[geo.Coordinate]chan struct{}
}

func (g *countingGeocoder) ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error) {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	gate := g.gate[c]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return "addr " + c.String(), nil
}

func testConfig() Config {
	return Config{
		FastFixTimeout:        50 * time.Millisecond,
		RefineTimeout:         2 * time.Second,
		TargetAccuracyMeters:  10,
		GeocodeEpsilonDegrees: 1e-6,
		GeocodeTimeout:        time.Second,
	}
}

func TestPipeline_ConvergesOnTargetAndCancelsOnce(t *testing.T) {
	src := &scriptedSource{
		once: fixAt(base, 120),
		fixes: []location.LocationFix{
			fixAt(base, 50),
			fixAt(base, 30),
			fixAt(base, 8),
		},
	}
	p := NewPipeline(src, nil, testConfig())

	var states []location.State
	var mu sync.Mutex
	fix, err := p.AcquireAndImprove(context.Background(), 10, 2*time.Second, func(u location.Update) {
		mu.Lock()
		states = append(states, u.State)
		mu.Unlock()
	})

	require.NoError(t, err)
	assert.Equal(t, 8.0, *fix.AccuracyMeters)
	assert.Equal(t, location.StateSettled, p.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.watches))
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.cancels))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, states, location.StateFastFix)
	assert.Contains(t, states, location.StateRefining)
	assert.Equal(t, location.StateSettled, states[len(states)-1])
}

func TestPipeline_TimeoutSettlesWithBestFix(t *testing.T) {
	src := &scriptedSource{
		onceErr: location.ErrTimeout,
		fixes: []location.LocationFix{
			fixAt(base, 40),
			fixAt(geo.Coordinate{Latitude: 12.9717, Longitude: 77.5946}, 25),
			fixAt(base, 60),
		},
	}
	cfg := testConfig()
	p := NewPipeline(src, nil, cfg)

	timeout := 150 * time.Millisecond
	start := time.Now()
	fix, err := p.AcquireAndImprove(context.Background(), 10, timeout, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 25.0, *fix.AccuracyMeters)
	assert.Equal(t, location.StateSettled, p.State())
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+cfg.FastFixTimeout+500*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.cancels))
}

func TestPipeline_TimeoutWithoutAnyFixFails(t *testing.T) {
	src := &scriptedSource{onceBlock: true}
	p := NewPipeline(src, nil, testConfig())

	_, err := p.AcquireAndImprove(context.Background(), 10, 100*time.Millisecond, nil)
	assert.ErrorIs(t, err, location.ErrTimeout)
	assert.Equal(t, location.StateFailed, p.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.cancels))
}

func TestPipeline_PermissionDeniedFailsWithoutWatch(t *testing.T) {
	src := &scriptedSource{onceErr: location.ErrPermissionDenied}
	p := NewPipeline(src, nil, testConfig())

	_, err := p.AcquireAndImprove(context.Background(), 10, time.Second, nil)
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
	assert.Equal(t, location.StateFailed, p.State())
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.watches))
}

func TestPipeline_PermissionDeniedDuringWatch(t *testing.T) {
	src := &scriptedSource{
		once:     fixAt(base, 80),
		fixes:    []location.LocationFix{fixAt(base, 40)},
		watchErr: location.ErrPermissionDenied,
	}
	p := NewPipeline(src, nil, testConfig())

	_, err := p.AcquireAndImprove(context.Background(), 10, time.Second, nil)
	assert.ErrorIs(t, err, location.ErrPermissionDenied)
	assert.Equal(t, location.StateFailed, p.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.cancels))
}

func TestPipeline_UnavailableAfterFixKeepsRefining(t *testing.T) {
	src := &scriptedSource{
		once:     fixAt(base, 80),
		fixes:    []location.LocationFix{fixAt(base, 40)},
		watchErr: location.ErrPositionUnavailable,
	}
	p := NewPipeline(src, nil, testConfig())

	fix, err := p.AcquireAndImprove(context.Background(), 10, 150*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, 40.0, *fix.AccuracyMeters)
	assert.Equal(t, location.StateSettled, p.State())
}

func TestPipeline_AcquireFast(t *testing.T) {
	src := &scriptedSource{once: fixAt(base, 65)}
	p := NewPipeline(src, nil, testConfig())

	fix, err := p.AcquireFast(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 65.0, *fix.AccuracyMeters)
	assert.Equal(t, location.StateFastFix, p.State())
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.watches))

	// nothing is running, so Cancel leaves the unrefined fix in place
	p.Cancel()
	assert.Equal(t, location.StateFastFix, p.State())
	best, ok := p.Best()
	require.True(t, ok)
	assert.Equal(t, 65.0, *best.AccuracyMeters)
	assert.Equal(t, int32(0), atomic.LoadInt32(&src.watches))
}

func TestPipeline_AcquireFastTimesOut(t *testing.T) {
	src := &scriptedSource{onceBlock: true}
	p := NewPipeline(src, nil, testConfig())

	start := time.Now()
	_, err := p.AcquireFast(context.Background())
	assert.ErrorIs(t, err, location.ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, location.StateFailed, p.State())
}

func TestPipeline_CancelReleasesWatch(t *testing.T) {
	src := &scriptedSource{
		once:     fixAt(base, 90),
		fixes:    []location.LocationFix{fixAt(base, 50)},
		interval: 10 * time.Millisecond,
	}
	p := NewPipeline(src, nil, testConfig())

	done := make(chan error, 1)
	go func() {
		_, err := p.AcquireAndImprove(context.Background(), 10, 5*time.Second, nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.State() == location.StateRefining && atomic.LoadInt32(&src.watches) == 1 },
		time.Second, 5*time.Millisecond)
	p.Cancel()
	p.Cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, location.ErrAcquisitionCancelled)
	case <-time.After(time.Second):
		t.Fatal("acquisition did not stop after Cancel")
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.cancels))
	assert.Equal(t, location.StateSettled, p.State())
}

func TestPipeline_ImproveSupersedesActiveWatch(t *testing.T) {
	src := &scriptedSource{once: fixAt(base, 90)}
	p := NewPipeline(src, nil, testConfig())

	first := make(chan error, 1)
	go func() {
		_, err := p.AcquireAndImprove(context.Background(), 10, 5*time.Second, nil)
		first <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&src.watches) == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := p.Improve(context.Background(), nil)
		second <- err
	}()

	select {
	case err := <-first:
		assert.ErrorIs(t, err, location.ErrAcquisitionCancelled)
	case <-time.After(time.Second):
		t.Fatal("first run was not superseded")
	}
	require.Eventually(t, func() bool { return atomic.LoadInt32(&src.watches) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.cancels))
	assert.Equal(t, location.StateRefining, p.State())

	best, ok := p.Best()
	require.True(t, ok)
	assert.Equal(t, 90.0, *best.AccuracyMeters)

	p.Cancel()
	<-second
	assert.Equal(t, int32(2), atomic.LoadInt32(&src.cancels))
}

func TestPipeline_GeocodeDebounced(t *testing.T) {
	g := &countingGeocoder{}
	src := &scriptedSource{
		once: fixAt(base, 100),
		fixes: []location.LocationFix{
			fixAt(geo.Coordinate{Latitude: base.Latitude + 2e-7, Longitude: base.Longitude}, 50),
			fixAt(geo.Coordinate{Latitude: base.Latitude, Longitude: base.Longitude + 5e-7}, 30),
			fixAt(base, 8),
		},
	}
	p := NewPipeline(src, g, testConfig())

	_, err := p.AcquireAndImprove(context.Background(), 10, time.Second, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		best, _ := p.Best()
		return best.Address != nil
	}, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&g.calls))
}

func TestPipeline_StaleGeocodeDiscarded(t *testing.T) {
	far := geo.Coordinate{Latitude: base.Latitude + 0.01, Longitude: base.Longitude}
	release := make(chan struct{})
	g := &countingGeocoder{gate: map[geo.Coordinate]chan struct{}{base: release}}
	src := &scriptedSource{
		onceErr: location.ErrTimeout,
		fixes: []location.LocationFix{
			fixAt(base, 50),
			fixAt(far, 8),
		},
	}
	p := NewPipeline(src, g, testConfig())

	fix, err := p.AcquireAndImprove(context.Background(), 10, time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, far, fix.Coordinate)

	require.Eventually(t, func() bool {
		best, _ := p.Best()
		return best.Address != nil
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return atomic.LoadInt32(&g.calls) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	best, _ := p.Best()
	assert.Equal(t, "addr "+far.String(), *best.Address)
	snap := p.Snapshot()
	assert.Equal(t, "addr "+far.String(), *snap.Latest.Address)
}
