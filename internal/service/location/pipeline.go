package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/metrics"
)

// Config holds the acquisition tunables.
type Config struct {
	FastFixTimeout        time.Duration
	FastFixMaxAge         time.Duration
	RefineTimeout         time.Duration
	TargetAccuracyMeters  float64
	GeocodeEpsilonDegrees float64
	GeocodeTimeout        time.Duration
}

func (c Config) withDefaults() Config {
	if c.FastFixTimeout <= 0 {
		c.FastFixTimeout = 5 * time.Second
	}
	if c.FastFixMaxAge < 0 {
		c.FastFixMaxAge = 0
	}
	if c.RefineTimeout <= 0 {
		c.RefineTimeout = 30 * time.Second
	}
	if c.TargetAccuracyMeters <= 0 {
		c.TargetAccuracyMeters = 10
	}
	if c.GeocodeEpsilonDegrees <= 0 {
		c.GeocodeEpsilonDegrees = 1e-6
	}
	if c.GeocodeTimeout <= 0 {
		c.GeocodeTimeout = 5 * time.Second
	}
	return c
}

// Listener receives pipeline updates. It is called serially and must not call back
// into the pipeline that invoked it.
type Listener func(location.Update)

// run is one acquisition attempt. Starting a new run cancels the previous one
// and releases its watch before the new watch is opened.
type run struct {
	ctx       context.Context
	cancel    context.CancelFunc
	stopWatch func()
}

// Pipeline turns a PositionSource into a fast fix followed by background refinement.
//
//	Idle -> FastFix -> Refining -> Settled
//	any  -> Failed
type Pipeline struct {
	source   location.PositionSource
	geocoder location.Geocoder
	cfg      Config

	mu         sync.Mutex
	state      location.State
	best       *location.LocationFix
	latest     *location.LocationFix
	lastErr    error
	current    *run
	listener   Listener
	geocoded   *geo.Coordinate
	geoAddress *string

	notifyMu sync.Mutex
}

// NewPipeline creates an idle pipeline. geocoder may be nil.
func NewPipeline(source location.PositionSource, geocoder location.Geocoder, cfg Config) *Pipeline {
	return &Pipeline{
		source:   source,
		geocoder: geocoder,
		cfg:      cfg.withDefaults(),
		state:    location.StateIdle,
	}
}

// AcquireFast returns the first fix the source produces, using relaxed accuracy and
// the fast-fix timeout. It does not refine: on success the pipeline rests in FastFix
// with no run or watch active, until Improve, Refresh or AcquireAndImprove moves it on.
func (p *Pipeline) AcquireFast(ctx context.Context) (location.LocationFix, error) {
	r := p.begin(ctx, location.StateFastFix, true, nil)
	defer r.cancel()

	fix, err := p.fastFix(r)
	if err != nil {
		if errors.Is(err, location.ErrAcquisitionCancelled) {
			return p.abort(r)
		}
		return p.fail(r, err)
	}

	p.mu.Lock()
	if p.current == r {
		p.current = nil
	}
	p.mu.Unlock()
	return fix, nil
}

// AcquireAndImprove takes a fast fix and then watches until a fix reaches targetAccuracy
// or timeout elapses. It blocks until the pipeline settles, fails, or is superseded.
// Non-positive arguments fall back to the configured defaults.
func (p *Pipeline) AcquireAndImprove(ctx context.Context, targetAccuracy float64, timeout time.Duration, onUpdate Listener) (location.LocationFix, error) {
	if targetAccuracy <= 0 {
		targetAccuracy = p.cfg.TargetAccuracyMeters
	}
	if timeout <= 0 {
		timeout = p.cfg.RefineTimeout
	}

	r := p.begin(ctx, location.StateFastFix, true, onUpdate)
	defer r.cancel()

	if _, err := p.fastFix(r); err != nil {
		switch {
		case errors.Is(err, location.ErrAcquisitionCancelled):
			return p.abort(r)
		case errors.Is(err, location.ErrTimeout):
			slog.Debug("Fast fix timed out, continuing with refinement")
		default:
			return p.fail(r, err)
		}
	}

	return p.refine(r, targetAccuracy, timeout)
}

// Improve restarts directly in Refining, keeping the best fix seen so far.
func (p *Pipeline) Improve(ctx context.Context, onUpdate Listener) (location.LocationFix, error) {
	return p.ImproveTo(ctx, 0, 0, onUpdate)
}

// ImproveTo is Improve with an explicit target and timeout. Non-positive arguments fall
// back to the configured defaults.
func (p *Pipeline) ImproveTo(ctx context.Context, targetAccuracy float64, timeout time.Duration, onUpdate Listener) (location.LocationFix, error) {
	if targetAccuracy <= 0 {
		targetAccuracy = p.cfg.TargetAccuracyMeters
	}
	if timeout <= 0 {
		timeout = p.cfg.RefineTimeout
	}

	r := p.begin(ctx, location.StateRefining, false, onUpdate)
	defer r.cancel()
	return p.refine(r, targetAccuracy, timeout)
}

// Refresh discards previous fixes and restarts from FastFix.
func (p *Pipeline) Refresh(ctx context.Context, onUpdate Listener) (location.LocationFix, error) {
	return p.AcquireAndImprove(ctx, 0, 0, onUpdate)
}

// Cancel stops the active run and releases its watch. The pipeline settles on the best
// fix when one exists and returns to Idle otherwise.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	r := p.current
	if r == nil {
		p.mu.Unlock()
		return
	}
	p.current = nil
	stop := r.stopWatch
	p.state = p.restingState()
	p.mu.Unlock()

	r.cancel()
	if stop != nil {
		stop()
	}
	metrics.AcquisitionOutcomesTotal.WithLabelValues("cancelled").Inc()
	p.notify()
}

// State returns the current pipeline state. FastFix is also the resting state after a
// successful AcquireFast.
func (p *Pipeline) State() location.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Best returns a copy of the most accurate fix seen since the last reset.
func (p *Pipeline) Best() (location.LocationFix, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.best == nil {
		return location.LocationFix{}, false
	}
	return p.best.Copy(), true
}

// Snapshot returns the same view listeners receive.
func (p *Pipeline) Snapshot() location.Update {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Pipeline) begin(ctx context.Context, state location.State, reset bool, listener Listener) *run {
	rctx, cancel := context.WithCancel(ctx)
	r := &run{ctx: rctx, cancel: cancel}

	p.mu.Lock()
	prev := p.current
	var prevStop func()
	if prev != nil {
		prevStop = prev.stopWatch
	}
	p.current = r
	if listener != nil {
		p.listener = listener
	}
	if reset {
		p.best = nil
		p.latest = nil
		p.geocoded = nil
		p.geoAddress = nil
	}
	p.lastErr = nil
	p.state = state
	p.mu.Unlock()

	if prev != nil {
		prev.cancel()
		if prevStop != nil {
			prevStop()
		}
	}

	p.notify()
	return r
}

func (p *Pipeline) fastFix(r *run) (location.LocationFix, error) {
	ctx, cancel := context.WithTimeout(r.ctx, p.cfg.FastFixTimeout)
	defer cancel()

	type result struct {
		fix location.LocationFix
		err error
	}
	ch := make(chan result, 1)
	opts := location.Options{
		EnableHighAccuracy: false,
		Timeout:            p.cfg.FastFixTimeout,
		MaxAge:             p.cfg.FastFixMaxAge,
	}
	go func() {
		fix, err := p.source.GetOnce(ctx, opts)
		ch <- result{fix: fix, err: err}
	}()

	// The source may never answer (an ignored permission prompt), so the deadline is ours.
	select {
	case res := <-ch:
		if res.err != nil {
			if r.ctx.Err() != nil {
				return location.LocationFix{}, location.ErrAcquisitionCancelled
			}
			if errors.Is(res.err, context.DeadlineExceeded) {
				return location.LocationFix{}, location.ErrTimeout
			}
			return location.LocationFix{}, res.err
		}
		return p.accept(r, res.fix), nil
	case <-ctx.Done():
		if r.ctx.Err() != nil {
			return location.LocationFix{}, location.ErrAcquisitionCancelled
		}
		return location.LocationFix{}, location.ErrTimeout
	}
}

func (p *Pipeline) refine(r *run, target float64, timeout time.Duration) (location.LocationFix, error) {
	if !p.setState(r, location.StateRefining) {
		return p.abort(r)
	}

	fixes := make(chan location.LocationFix)
	errs := make(chan error)
	cancelWatch, err := p.source.Watch(
		location.Options{EnableHighAccuracy: true, Timeout: timeout},
		func(f location.LocationFix) {
			select {
			case fixes <- f:
			case <-r.ctx.Done():
			}
		},
		func(e error) {
			select {
			case errs <- e:
			case <-r.ctx.Done():
			}
		},
	)
	if err != nil {
		return p.fail(r, err)
	}
	stop := p.attachWatch(r, cancelWatch)
	defer stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return p.abort(r)

		case f := <-fixes:
			p.accept(r, f)
			if f.MeetsTarget(target) {
				stop()
				return p.settle(r, "settled_target")
			}

		case e := <-errs:
			if p.fatal(e) {
				stop()
				return p.fail(r, e)
			}
			slog.Warn("Position watch reported an error, still refining", "error", e)

		case <-timer.C:
			stop()
			if _, ok := p.Best(); ok {
				return p.settle(r, "settled_timeout")
			}
			return p.fail(r, location.ErrTimeout)
		}
	}
}

// attachWatch wraps cancel so it runs exactly once and records it on the run.
// A run that was superseded while Watch was opening releases the watch immediately.
func (p *Pipeline) attachWatch(r *run, cancel func()) func() {
	var once sync.Once
	metrics.ActiveWatches.Inc()
	stop := func() {
		once.Do(func() {
			cancel()
			metrics.ActiveWatches.Dec()
		})
	}

	p.mu.Lock()
	if p.current != r {
		p.mu.Unlock()
		stop()
		return stop
	}
	r.stopWatch = stop
	p.mu.Unlock()
	return stop
}

// accept records a fix as latest and, when more accurate, as best. It schedules a
// reverse geocode unless the coordinate is within epsilon of the last geocoded one.
func (p *Pipeline) accept(r *run, fix location.LocationFix) location.LocationFix {
	f := fix.Copy()

	p.mu.Lock()
	if p.current != r {
		p.mu.Unlock()
		return f
	}

	var geocode bool
	if f.Address == nil {
		if p.geocoded != nil && f.Coordinate.Near(*p.geocoded, p.cfg.GeocodeEpsilonDegrees) {
			if p.geoAddress != nil {
				f = f.WithAddress(*p.geoAddress)
			}
		} else if p.geocoder != nil {
			c := f.Coordinate
			p.geocoded = &c
			p.geoAddress = nil
			geocode = true
		}
	}

	latest := f
	p.latest = &latest
	if p.best == nil || f.BetterThan(*p.best) {
		best := f
		p.best = &best
	}
	p.mu.Unlock()

	if geocode {
		go p.geocode(f.Coordinate)
	}
	p.notify()
	return f
}

// geocode resolves c and attaches the address to the latest and best fixes when they are
// still at c. A result that arrives after both have moved away is dropped.
func (p *Pipeline) geocode(c geo.Coordinate) {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.GeocodeTimeout)
	defer cancel()

	addr, err := p.geocoder.ReverseGeocode(ctx, c)
	if err != nil {
		slog.Warn("Reverse geocode failed, using coordinates", "coordinate", c.String(), "error", err)
		addr = c.String()
	}

	eps := p.cfg.GeocodeEpsilonDegrees
	applied := false

	p.mu.Lock()
	if p.geocoded != nil && *p.geocoded == c {
		a := addr
		p.geoAddress = &a
	}
	if p.latest != nil && p.latest.Address == nil && p.latest.Coordinate.Near(c, eps) {
		l := p.latest.WithAddress(addr)
		p.latest = &l
		applied = true
	}
	if p.best != nil && p.best.Address == nil && p.best.Coordinate.Near(c, eps) {
		b := p.best.WithAddress(addr)
		p.best = &b
		applied = true
	}
	p.mu.Unlock()

	if !applied {
		slog.Debug("Discarding stale geocode result", "coordinate", c.String())
		return
	}
	p.notify()
}

func (p *Pipeline) fatal(err error) bool {
	if errors.Is(err, location.ErrPermissionDenied) {
		return true
	}
	if errors.Is(err, location.ErrPositionUnavailable) {
		_, ok := p.Best()
		return !ok
	}
	return false
}

func (p *Pipeline) setState(r *run, state location.State) bool {
	p.mu.Lock()
	if p.current != r {
		p.mu.Unlock()
		return false
	}
	p.state = state
	p.mu.Unlock()
	p.notify()
	return true
}

func (p *Pipeline) settle(r *run, outcome string) (location.LocationFix, error) {
	p.mu.Lock()
	if p.current != r {
		p.mu.Unlock()
		return p.abort(r)
	}
	p.current = nil
	p.state = location.StateSettled
	best := p.best.Copy()
	p.mu.Unlock()

	metrics.AcquisitionOutcomesTotal.WithLabelValues(outcome).Inc()
	p.notify()
	return best, nil
}

func (p *Pipeline) fail(r *run, err error) (location.LocationFix, error) {
	p.mu.Lock()
	if p.current != r {
		p.mu.Unlock()
		return location.LocationFix{}, location.ErrAcquisitionCancelled
	}
	p.current = nil
	p.state = location.StateFailed
	p.lastErr = err
	p.mu.Unlock()

	metrics.AcquisitionOutcomesTotal.WithLabelValues("failed").Inc()
	slog.Warn("Location acquisition failed", "error", err)
	p.notify()
	return location.LocationFix{}, err
}

// abort ends a run whose context was cancelled, either by Cancel, by a newer run,
// or by the caller.
func (p *Pipeline) abort(r *run) (location.LocationFix, error) {
	p.mu.Lock()
	owned := p.current == r
	if owned {
		p.current = nil
		p.state = p.restingState()
	}
	var best location.LocationFix
	if p.best != nil {
		best = p.best.Copy()
	}
	p.mu.Unlock()

	if owned {
		metrics.AcquisitionOutcomesTotal.WithLabelValues("cancelled").Inc()
		p.notify()
	}
	return best, location.ErrAcquisitionCancelled
}

func (p *Pipeline) restingState() location.State {
	if p.best != nil {
		return location.StateSettled
	}
	return location.StateIdle
}

func (p *Pipeline) snapshotLocked() location.Update {
	u := location.Update{State: p.state, Err: p.lastErr}
	if p.latest != nil {
		l := p.latest.Copy()
		u.Latest = &l
	}
	if p.best != nil {
		b := p.best.Copy()
		u.Best = &b
	}
	return u
}

func (p *Pipeline) notify() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	listener := p.listener
	u := p.snapshotLocked()
	p.mu.Unlock()

	if listener != nil {
		listener(u)
	}
}
