package presence

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/kazihub/kazi/core"
)

var (
	// errors
	ErrNotFound = errors.New("presence not found")
)

type (
	Repository interface {
		GetPresence(ctx context.Context, userID string) (Presence, error)
		// UpsertPresence replaces the user's presence row.
		UpsertPresence(ctx context.Context, p Presence) (Presence, error)
		// TouchPresence bumps last_seen and status without moving the recorded position.
		TouchPresence(ctx context.Context, userID, status string, lastSeen time.Time) (Presence, error)
		// QuerySeenSince returns presences whose last_seen is within the cutoff.
		QuerySeenSince(ctx context.Context, since time.Time) ([]Presence, error)
	}

	Service interface {
		// Beat records a heartbeat. Beats arriving faster than the configured
		// minimum interval are throttled (last_seen still moves) unless the
		// position moved more than the configured minimum distance.
		Beat(ctx context.Context, userID string, hb Heartbeat) (Presence, error)
		Get(ctx context.Context, userID string) (Presence, error)
		QueryOnline(ctx context.Context) ([]Presence, error)
	}

	service struct {
		conf *core.Config
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, repo Repository) Service {
	return &service{conf: conf, repo: repo}
}

func (svc *service) Beat(ctx context.Context, userID string, hb Heartbeat) (Presence, error) {
	now := time.Now().UTC()

	prev, err := svc.repo.GetPresence(ctx, userID)
	if err != nil {
		if err != ErrNotFound {
			return Presence{}, err
		}
		// first beat, store as-is
		return svc.repo.UpsertPresence(ctx, Presence{
			UserID:     userID,
			Status:     hb.Status,
			Latitude:   hb.Latitude,
			Longitude:  hb.Longitude,
			Accuracy:   hb.Accuracy,
			RecordedAt: now,
			LastSeen:   now,
		})
	}

	if svc.throttled(prev, hb, now) {
		return svc.repo.TouchPresence(ctx, userID, hb.Status, now)
	}

	return svc.repo.UpsertPresence(ctx, Presence{
		UserID:     userID,
		Status:     hb.Status,
		Latitude:   hb.Latitude,
		Longitude:  hb.Longitude,
		Accuracy:   hb.Accuracy,
		RecordedAt: now,
		LastSeen:   now,
	})
}

func (svc *service) Get(ctx context.Context, userID string) (Presence, error) {
	return svc.repo.GetPresence(ctx, userID)
}

func (svc *service) QueryOnline(ctx context.Context) ([]Presence, error) {
	cutoff := time.Now().UTC().Add(-svc.conf.Presence.OnlineCutoff)
	return svc.repo.QuerySeenSince(ctx, cutoff)
}

// throttled reports whether this beat's position should be dropped:
// it arrived within MinInterval of the stored one and did not move
// more than MinDistance meters.
func (svc *service) throttled(prev Presence, hb Heartbeat, now time.Time) bool {
	if now.Sub(prev.RecordedAt) >= svc.conf.Presence.MinInterval {
		return false
	}
	if hb.Latitude == nil || hb.Longitude == nil {
		return true // no position to record, nothing lost
	}
	if !prev.HasPosition() {
		return false
	}
	dist := haversineMeters(*prev.Latitude, *prev.Longitude, *hb.Latitude, *hb.Longitude)
	return dist <= svc.conf.Presence.MinDistance
}

const earthRadiusMeters = 6371000

// haversineMeters returns the great-circle distance between two coordinates.
func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
