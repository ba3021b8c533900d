package notification_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/user"
	emailsvc "github.com/kazihub/kazi/services/email"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	inmemdb "github.com/kazihub/kazi/storage/database/inmem"
)

type fixture struct {
	svc     notification.Service
	usrRepo user.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}

	conf := &core.Config{AppName: "Kazi", TestMode: true}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrRepo := inmemdb.NewUserRepository(db)
	usrSvc := user.NewService(conf, usrRepo, mailSvc, logger)

	svc := notification.NewService(
		conf,
		inmemdb.NewNotificationRepository(db),
		usrSvc,
		mailSvc,
		realtimesvc.NewMemoryBroker(),
		logger,
	)
	return &fixture{svc: svc, usrRepo: usrRepo}
}

func (f *fixture) addUser(t *testing.T, uname string, active bool) user.User {
	t.Helper()
	usr := user.User{Name: uname, Username: uname, Email: uname + "@kazi.cd", Roles: []string{user.RoleDesigner}}
	usr.SetActive(active)
	usr, err := f.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", uname, err)
	}
	return usr
}

func TestSendToSingleRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sender := f.addUser(t, "boss", true)
	rcpt := f.addUser(t, "dezi", true)

	notifs, err := f.svc.Send(ctx, sender, notification.NewUrgent{RecipientID: rcpt.ID, Message: "Client is on the phone"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if len(notifs) != 1 {
		t.Fatalf("Send() created %d notification(s), want 1", len(notifs))
	}
	if notifs[0].RecipientID != rcpt.ID || notifs[0].Acknowledged {
		t.Errorf("unexpected notification %+v", notifs[0])
	}

	pending, err := f.svc.QueryPending(ctx, rcpt.ID)
	if err != nil {
		t.Fatalf("QueryPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %d, want 1", len(pending))
	}
}

func TestSendBroadcastFansOutToActiveUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sender := f.addUser(t, "boss", true)
	a := f.addUser(t, "a", true)
	b := f.addUser(t, "b", true)
	inactive := f.addUser(t, "gone", false)

	notifs, err := f.svc.Send(ctx, sender, notification.NewUrgent{Broadcast: true, Message: "All hands"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	// one row per active user, sender and deactivated users excluded
	if len(notifs) != 2 {
		t.Fatalf("Send() created %d notification(s), want 2", len(notifs))
	}
	recipients := map[string]bool{}
	for _, n := range notifs {
		if !n.Broadcast {
			t.Errorf("notification %s not flagged broadcast", n.ID)
		}
		recipients[n.RecipientID] = true
	}
	if !recipients[a.ID] || !recipients[b.ID] || recipients[sender.ID] || recipients[inactive.ID] {
		t.Errorf("unexpected recipients %v", recipients)
	}
}

func TestAcknowledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sender := f.addUser(t, "boss", true)
	rcpt := f.addUser(t, "dezi", true)
	other := f.addUser(t, "other", true)

	notifs, err := f.svc.Send(ctx, sender, notification.NewUrgent{RecipientID: rcpt.ID, Message: "ping"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	id := notifs[0].ID

	// only the recipient may acknowledge
	if _, err := f.svc.Acknowledge(ctx, id, other.ID); err != notification.ErrNotRecipient {
		t.Errorf("Acknowledge(other) error = %v, want ErrNotRecipient", err)
	}

	acked, err := f.svc.Acknowledge(ctx, id, rcpt.ID)
	if err != nil {
		t.Fatalf("Acknowledge() error = %v", err)
	}
	if !acked.Acknowledged || acked.AcknowledgedAt == nil {
		t.Errorf("Acknowledge() did not stamp the notification: %+v", acked)
	}

	// acknowledging twice is a no-op
	again, err := f.svc.Acknowledge(ctx, id, rcpt.ID)
	if err != nil {
		t.Fatalf("Acknowledge() retry error = %v", err)
	}
	if !again.AcknowledgedAt.Equal(*acked.AcknowledgedAt) {
		t.Errorf("retry moved AcknowledgedAt from %v to %v", acked.AcknowledgedAt, again.AcknowledgedAt)
	}

	pending, err := f.svc.QueryPending(ctx, rcpt.ID)
	if err != nil {
		t.Fatalf("QueryPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %d after ack, want 0", len(pending))
	}

	if _, err := f.svc.Acknowledge(ctx, "nope", rcpt.ID); err != notification.ErrNotFound {
		t.Errorf("Acknowledge(unknown) error = %v, want ErrNotFound", err)
	}
}
