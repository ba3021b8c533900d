package presence_test

import (
	"context"
	"testing"
	"time"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/presence"
	inmemdb "github.com/kazihub/kazi/storage/database/inmem"
)

func fptr(f float64) *float64 { return &f }

func newTestService(t *testing.T) presence.Service {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	conf := &core.Config{
		Presence: core.PresenceConfig{
			MinInterval:  30 * time.Second,
			MinDistance:  50,
			OnlineCutoff: 2 * time.Minute,
		},
	}
	return presence.NewService(conf, inmemdb.NewPresenceRepository(db))
}

func TestBeat(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := "11111111-1111-4111-8111-111111111111"

	// first beat stores the position
	p, err := svc.Beat(ctx, userID, presence.Heartbeat{
		Status:    presence.StatusOnline,
		Latitude:  fptr(-4.3250),
		Longitude: fptr(15.3220),
	})
	if err != nil {
		t.Fatalf("Beat() error = %v", err)
	}
	if !p.HasPosition() {
		t.Fatal("Beat() dropped the first position")
	}
	firstRecorded := p.RecordedAt

	// an immediate beat with a tiny move is throttled: last_seen advances,
	// the recorded position does not
	p, err = svc.Beat(ctx, userID, presence.Heartbeat{
		Status:    presence.StatusOnline,
		Latitude:  fptr(-4.32501),
		Longitude: fptr(15.32201),
	})
	if err != nil {
		t.Fatalf("Beat() error = %v", err)
	}
	if !p.RecordedAt.Equal(firstRecorded) {
		t.Errorf("RecordedAt moved on a throttled beat: %v -> %v", firstRecorded, p.RecordedAt)
	}
	if *p.Latitude != -4.3250 {
		t.Errorf("Latitude = %v, want the original position kept", *p.Latitude)
	}
	if !p.LastSeen.After(firstRecorded) && !p.LastSeen.Equal(firstRecorded) {
		t.Errorf("LastSeen did not advance on a throttled beat")
	}

	// a real move lands immediately
	p, err = svc.Beat(ctx, userID, presence.Heartbeat{
		Status:    presence.StatusOnline,
		Latitude:  fptr(-4.3300),
		Longitude: fptr(15.3220),
	})
	if err != nil {
		t.Fatalf("Beat() error = %v", err)
	}
	if *p.Latitude != -4.3300 {
		t.Errorf("Latitude = %v, want the new position", *p.Latitude)
	}
}

func TestBeatStatusChangeWhileThrottled(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	userID := "22222222-2222-4222-8222-222222222222"

	if _, err := svc.Beat(ctx, userID, presence.Heartbeat{Status: presence.StatusOnline}); err != nil {
		t.Fatalf("Beat() error = %v", err)
	}

	// positionless beats are always throttled but still move the status
	p, err := svc.Beat(ctx, userID, presence.Heartbeat{Status: presence.StatusAway})
	if err != nil {
		t.Fatalf("Beat() error = %v", err)
	}
	if p.Status != presence.StatusAway {
		t.Errorf("Status = %q, want %q", p.Status, presence.StatusAway)
	}
}

func TestQueryOnline(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Beat(ctx, "33333333-3333-4333-8333-333333333333", presence.Heartbeat{Status: presence.StatusOnline}); err != nil {
		t.Fatalf("Beat() error = %v", err)
	}

	online, err := svc.QueryOnline(ctx)
	if err != nil {
		t.Fatalf("QueryOnline() error = %v", err)
	}
	if len(online) != 1 {
		t.Errorf("QueryOnline() returned %d presence(s), want 1", len(online))
	}
}

func TestGetUnknownUser(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Get(context.Background(), "nope"); err != presence.ErrNotFound {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}
