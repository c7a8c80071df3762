package location

import (
	"context"

	"github.com/cmlabs-hris/attendance-engine/internal/pkg/geo"
)

// PositionSource wraps a location-sensing capability.
//
// A permission prompt behind a source may never resolve, so every caller bounds
// GetOnce with its own context deadline.
type PositionSource interface {
	// GetOnce returns a single fix or ErrPermissionDenied, ErrPositionUnavailable, ErrTimeout.
	GetOnce(ctx context.Context, opts Options) (LocationFix, error)

	// Watch streams fixes in capture order until cancel is called. cancel is idempotent.
	// Callbacks run on the source's own goroutines, never inside Watch itself.
	Watch(opts Options, onFix func(LocationFix), onError func(error)) (cancel func(), err error)
}

// Geocoder resolves a coordinate to a human-readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, c geo.Coordinate) (string, error)
}

// SessionService exposes acquisition sessions driven by fixes pushed from employee devices.
type SessionService interface {
	Start(ctx context.Context, userID string, req StartSessionRequest) (SessionResponse, error)
	Push(ctx context.Context, userID string, sessionID string, req PushFixRequest) (SessionResponse, error)
	Improve(ctx context.Context, userID string, sessionID string) (SessionResponse, error)
	Refresh(ctx context.Context, userID string, sessionID string) (SessionResponse, error)
	Cancel(ctx context.Context, userID string, sessionID string) (SessionResponse, error)
	Get(ctx context.Context, userID string, sessionID string) (SessionResponse, error)

	// BestFix returns a copy of the most accurate fix the session has seen.
	BestFix(ctx context.Context, userID string, sessionID string) (LocationFix, error)

	// Close releases a session after its fix has been consumed.
	Close(ctx context.Context, userID string, sessionID string) error

	// ReapIdle closes sessions with no activity within the configured idle window.
	ReapIdle(ctx context.Context) error
}
