package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/location"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/sse"
	"github.com/google/uuid"
)

const sessionUpdateEvent = "location"

type session struct {
	id           string
	userID       string
	createdAt    time.Time
	lastActivity atomic.Int64
	source       *PushSource
	pipeline     *Pipeline

	// requested tunables; zero means the configured default
	targetAccuracy float64
	refineTimeout  time.Duration
}

func (s *session) touch(now time.Time) {
	s.lastActivity.Store(now.UnixNano())
}

func (s *session) idleSince() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

type SessionServiceImpl struct {
	cfg         Config
	idleTimeout time.Duration
	geocoder    location.Geocoder
	hub         *sse.Hub

	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

// NewSessionService manages acquisition sessions. geocoder may be nil.
func NewSessionService(cfg Config, idleTimeout time.Duration, geocoder location.Geocoder, hub *sse.Hub) location.SessionService {
	if idleTimeout <= 0 {
		idleTimeout = 10 * time.Minute
	}
	return &SessionServiceImpl{
		cfg:         cfg.withDefaults(),
		idleTimeout: idleTimeout,
		geocoder:    geocoder,
		hub:         hub,
		sessions:    make(map[string]*session),
		now:         time.Now,
	}
}

// Start implements location.SessionService.
func (s *SessionServiceImpl) Start(ctx context.Context, userID string, req location.StartSessionRequest) (location.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return location.SessionResponse{}, err
	}

	source := NewPushSource()
	sess := &session{
		id:        uuid.NewString(),
		userID:    userID,
		createdAt: s.now(),
		source:    source,
		pipeline:  NewPipeline(source, s.geocoder, s.cfg),
	}
	if req.TargetAccuracy != nil {
		sess.targetAccuracy = *req.TargetAccuracy
	}
	if req.RefineTimeoutSeconds != nil {
		sess.refineTimeout = time.Duration(*req.RefineTimeoutSeconds) * time.Second
	}
	sess.touch(sess.createdAt)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.drive(sess, "acquire", func(listener Listener) (location.LocationFix, error) {
		return sess.pipeline.AcquireAndImprove(context.Background(), sess.targetAccuracy, sess.refineTimeout, listener)
	})

	slog.Info("Location session started", "session_id", sess.id, "user_id", userID)
	return s.response(sess, sess.pipeline.Snapshot()), nil
}

// Push implements location.SessionService.
func (s *SessionServiceImpl) Push(ctx context.Context, userID string, sessionID string, req location.PushFixRequest) (location.SessionResponse, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return location.SessionResponse{}, err
	}
	if err := req.Validate(); err != nil {
		return location.SessionResponse{}, err
	}

	now := s.now()
	sess.touch(now)
	if req.Error != nil {
		sess.source.PushError(location.ErrorFromCode(*req.Error))
	} else {
		sess.source.PushFix(req.Fix(now))
	}

	return s.response(sess, sess.pipeline.Snapshot()), nil
}

// Improve implements location.SessionService.
func (s *SessionServiceImpl) Improve(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return location.SessionResponse{}, err
	}
	sess.touch(s.now())

	s.drive(sess, "improve", func(listener Listener) (location.LocationFix, error) {
		return sess.pipeline.ImproveTo(context.Background(), sess.targetAccuracy, sess.refineTimeout, listener)
	})
	return s.response(sess, sess.pipeline.Snapshot()), nil
}

// Refresh implements location.SessionService.
func (s *SessionServiceImpl) Refresh(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return location.SessionResponse{}, err
	}
	sess.touch(s.now())

	s.drive(sess, "refresh", func(listener Listener) (location.LocationFix, error) {
		return sess.pipeline.AcquireAndImprove(context.Background(), sess.targetAccuracy, sess.refineTimeout, listener)
	})
	return s.response(sess, sess.pipeline.Snapshot()), nil
}

// Cancel implements location.SessionService.
func (s *SessionServiceImpl) Cancel(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return location.SessionResponse{}, err
	}
	sess.touch(s.now())
	sess.pipeline.Cancel()
	return s.response(sess, sess.pipeline.Snapshot()), nil
}

// Get implements location.SessionService.
func (s *SessionServiceImpl) Get(ctx context.Context, userID string, sessionID string) (location.SessionResponse, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return location.SessionResponse{}, err
	}
	return s.response(sess, sess.pipeline.Snapshot()), nil
}

// BestFix implements location.SessionService.
func (s *SessionServiceImpl) BestFix(ctx context.Context, userID string, sessionID string) (location.LocationFix, error) {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return location.LocationFix{}, err
	}
	fix, ok := sess.pipeline.Best()
	if !ok {
		if u := sess.pipeline.Snapshot(); u.Err != nil {
			return location.LocationFix{}, u.Err
		}
		return location.LocationFix{}, location.ErrNoFix
	}
	return fix, nil
}

// Close implements location.SessionService.
func (s *SessionServiceImpl) Close(ctx context.Context, userID string, sessionID string) error {
	sess, err := s.lookup(userID, sessionID)
	if err != nil {
		return err
	}
	s.remove(sess)
	return nil
}

// ReapIdle implements location.SessionService.
func (s *SessionServiceImpl) ReapIdle(ctx context.Context) error {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.RLock()
	var idle []*session
	for _, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			idle = append(idle, sess)
		}
	}
	s.mu.RUnlock()

	for _, sess := range idle {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.remove(sess)
	}
	if len(idle) > 0 {
		slog.Info("Reaped idle location sessions", "count", len(idle))
	}
	return nil
}

// drive runs one pipeline operation in the background, publishing every update to the
// session's SSE topic.
func (s *SessionServiceImpl) drive(sess *session, op string, fn func(Listener) (location.LocationFix, error)) {
	listener := func(u location.Update) {
		if s.hub != nil {
			s.hub.Publish(sess.id, sse.Event{Event: sessionUpdateEvent, Data: s.response(sess, u)})
		}
	}
	go func() {
		_, err := fn(listener)
		if err != nil && !errors.Is(err, location.ErrAcquisitionCancelled) {
			slog.Info("Location acquisition ended without a fix", "session_id", sess.id, "op", op, "error", err)
		}
	}()
}

func (s *SessionServiceImpl) lookup(userID, sessionID string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok || sess.userID != userID {
		return nil, location.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionServiceImpl) remove(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	sess.pipeline.Cancel()
	if s.hub != nil {
		s.hub.Close(sess.id)
	}
}

func (s *SessionServiceImpl) response(sess *session, u location.Update) location.SessionResponse {
	resp := location.SessionResponse{
		ID:           sess.id,
		State:        u.State,
		Best:         location.NewFixResponse(u.Best),
		Latest:       location.NewFixResponse(u.Latest),
		CreatedAt:    sess.createdAt,
		LastActivity: sess.idleSince(),
	}
	if u.Err != nil {
		code := errorCode(u.Err)
		msg := location.UserMessage(u.Err)
		resp.Error = &code
		if msg != "" {
			resp.Message = &msg
		}
	}
	return resp
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, location.ErrPermissionDenied):
		return location.CodePermissionDenied
	case errors.Is(err, location.ErrPositionUnavailable):
		return location.CodePositionUnavailable
	case errors.Is(err, location.ErrTimeout):
		return location.CodeTimeout
	}
	return "unknown"
}
