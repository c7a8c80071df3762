package location

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
)

// PushSource is a PositionSource fed by readings the employee's device posts to the API.
// GetOnce waits for the next pushed reading unless a recent enough one is already held.
type PushSource struct {
	mu       sync.Mutex
	latest   *location.LocationFix
	seq      uint64
	watchers map[uint64]*watcher
	waiters  map[uint64]chan pushed
	now      func() time.Time
}

type pushed struct {
	fix location.LocationFix
	err error
}

type watcher struct {
	closed  atomic.Bool
	deliver sync.Mutex
	onFix   func(location.LocationFix)
	onError func(error)
}

func NewPushSource() *PushSource {
	return &PushSource{
		watchers: make(map[uint64]*watcher),
		waiters:  make(map[uint64]chan pushed),
		now:      time.Now,
	}
}

// GetOnce implements location.PositionSource.
func (s *PushSource) GetOnce(ctx context.Context, opts location.Options) (location.LocationFix, error) {
	s.mu.Lock()
	if s.latest != nil && opts.MaxAge > 0 && s.now().Sub(s.latest.CapturedAt) <= opts.MaxAge {
		fix := s.latest.Copy()
		s.mu.Unlock()
		return fix, nil
	}
	s.seq++
	id := s.seq
	ch := make(chan pushed, 1)
	s.waiters[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.waiters, id)
		s.mu.Unlock()
	}()

	var timeout <-chan time.Time
	if opts.Timeout > 0 {
		t := time.NewTimer(opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case p := <-ch:
		return p.fix, p.err
	case <-timeout:
		return location.LocationFix{}, location.ErrTimeout
	case <-ctx.Done():
		return location.LocationFix{}, location.ErrTimeout
	}
}

// Watch implements location.PositionSource.
func (s *PushSource) Watch(opts location.Options, onFix func(location.LocationFix), onError func(error)) (func(), error) {
	w := &watcher{onFix: onFix, onError: onError}

	s.mu.Lock()
	s.seq++
	id := s.seq
	s.watchers[id] = w
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.closed.Store(true)
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
	return cancel, nil
}

// PushFix hands a reading to every pending GetOnce and open watch.
func (s *PushSource) PushFix(fix location.LocationFix) {
	f := fix.Copy()

	s.mu.Lock()
	s.latest = &f
	waiters := s.drainWaiters()
	watchers := s.activeWatchers()
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- pushed{fix: f.Copy()}
	}
	for _, w := range watchers {
		w.deliver.Lock()
		if !w.closed.Load() && w.onFix != nil {
			w.onFix(f.Copy())
		}
		w.deliver.Unlock()
	}
}

// PushError reports a device-side failure to pending GetOnce calls and open watches.
func (s *PushSource) PushError(err error) {
	s.mu.Lock()
	waiters := s.drainWaiters()
	watchers := s.activeWatchers()
	s.mu.Unlock()

	for _, ch := range waiters {
		ch <- pushed{err: err}
	}
	for _, w := range watchers {
		w.deliver.Lock()
		if !w.closed.Load() && w.onError != nil {
			w.onError(err)
		}
		w.deliver.Unlock()
	}
}

// Watching returns the number of open watches.
func (s *PushSource) Watching() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers)
}

func (s *PushSource) drainWaiters() []chan pushed {
	out := make([]chan pushed, 0, len(s.waiters))
	for id, ch := range s.waiters {
		out = append(out, ch)
		delete(s.waiters, id)
	}
	return out
}

func (s *PushSource) activeWatchers() []*watcher {
	out := make([]*watcher, 0, len(s.watchers))
	for _, w := range s.watchers {
		out = append(out, w)
	}
	return out
}
