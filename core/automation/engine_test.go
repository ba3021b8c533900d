package automation_test

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/automation"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
	emailsvc "github.com/kazihub/kazi/services/email"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	inmemdb "github.com/kazihub/kazi/storage/database/inmem"
)

type fixture struct {
	engine   *automation.Engine
	autoSvc  automation.Service
	taskSvc  task.Service
	notifSvc notification.Service
	usrRepo  user.Repository
	taskRepo task.Repository
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
	broker := realtimesvc.NewMemoryBroker()

	usrRepo := inmemdb.NewUserRepository(db)
	taskRepo := inmemdb.NewTaskRepository(db)

	usrSvc := user.NewService(conf, usrRepo, mailSvc, logger)
	taskSvc := task.NewService(taskRepo, broker, logger)
	notifSvc := notification.NewService(conf, inmemdb.NewNotificationRepository(db), usrSvc, mailSvc, broker, logger)
	autoSvc := automation.NewService(inmemdb.NewAutomationRepository(db))

	return &fixture{
		engine:   automation.NewEngine(autoSvc, taskSvc, usrSvc, notifSvc, logger),
		autoSvc:  autoSvc,
		taskSvc:  taskSvc,
		notifSvc: notifSvc,
		usrRepo:  usrRepo,
		taskRepo: taskRepo,
	}
}

func (f *fixture) addUser(t *testing.T, uname string, roles []string) user.User {
	t.Helper()
	usr := user.User{
		Name:     uname,
		Username: uname,
		Email:    uname + "@kazi.cd",
		Roles:    roles,
	}
	usr.SetActive(true)
	usr, err := f.usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", uname, err)
	}
	return usr
}

// addStuckTask creates a task and parks it in the given status for `idle`.
func (f *fixture) addStuckTask(t *testing.T, title, assigneeID, status string, idle time.Duration) task.Task {
	t.Helper()
	ctx := context.Background()
	tsk, err := f.taskSvc.Create(ctx, task.NewTask{Title: title, AssigneeID: assigneeID}, "creator-id")
	if err != nil {
		t.Fatalf("Create(%s): %v", title, err)
	}
	tsk, err = f.taskRepo.SetTaskStatus(ctx, tsk.ID, status, time.Now().UTC().Add(-idle))
	if err != nil {
		t.Fatalf("SetTaskStatus(%s): %v", title, err)
	}
	return tsk
}

func TestEngineNotifiesAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assignee := f.addUser(t, "dezi", []string{user.RoleDesigner})
	stuck := f.addStuckTask(t, "Stuck banner", assignee.ID, task.StatusInDesign, 150*time.Minute)
	f.addStuckTask(t, "Fresh banner", assignee.ID, task.StatusInDesign, 10*time.Minute)

	if _, err := f.autoSvc.Create(ctx, automation.NewRule{
		Name:      "nudge assignee",
		Threshold: 2 * time.Hour,
		Action:    automation.ActionNotifyAssignee,
	}); err != nil {
		t.Fatalf("creating rule: %v", err)
	}

	summary, err := f.engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Notified != 1 {
		t.Errorf("Notified = %d, want 1", summary.Notified)
	}
	if summary.Failures != 0 {
		t.Errorf("Failures = %d, want 0", summary.Failures)
	}

	pending, err := f.notifSvc.QueryPending(ctx, assignee.ID)
	if err != nil {
		t.Fatalf("QueryPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d notification(s), want 1", len(pending))
	}

	// the task remembers the level, a second run stays quiet
	got, err := f.taskSvc.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.EscalatedLevel != 2 {
		t.Errorf("EscalatedLevel = %d, want 2", got.EscalatedLevel)
	}

	summary, err = f.engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Notified != 0 {
		t.Errorf("second run Notified = %d, want 0", summary.Notified)
	}
}

func TestEngineStrongestRuleShadowsWeaker(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	admin := f.addUser(t, "boss", []string{user.RoleAdmin})
	assignee := f.addUser(t, "dezi", []string{user.RoleDesigner})
	f.addStuckTask(t, "Very stuck", assignee.ID, task.StatusInDesign, 200*time.Minute)

	for _, nr := range []automation.NewRule{
		{Name: "nudge assignee", Threshold: 2 * time.Hour, Action: automation.ActionNotifyAssignee},
		{Name: "page admins", Threshold: 3 * time.Hour, Action: automation.ActionNotifyRoles, NotifyRoles: []string{user.RoleAdmin}},
	} {
		if _, err := f.autoSvc.Create(ctx, nr); err != nil {
			t.Fatalf("creating rule %q: %v", nr.Name, err)
		}
	}

	summary, err := f.engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	// only the 3h rule fires; the 2h rule is shadowed by the applied level
	if summary.Notified != 1 {
		t.Errorf("Notified = %d, want 1", summary.Notified)
	}

	adminPending, err := f.notifSvc.QueryPending(ctx, admin.ID)
	if err != nil {
		t.Fatalf("QueryPending(admin) error = %v", err)
	}
	if len(adminPending) != 1 {
		t.Errorf("admin pending = %d, want 1", len(adminPending))
	}
	assigneePending, err := f.notifSvc.QueryPending(ctx, assignee.ID)
	if err != nil {
		t.Fatalf("QueryPending(assignee) error = %v", err)
	}
	if len(assigneePending) != 0 {
		t.Errorf("assignee pending = %d, want 0", len(assigneePending))
	}
}

func TestEngineReassignsToLeastBusy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assignee := f.addUser(t, "dezi", []string{user.RoleDesigner})
	busy := f.addUser(t, "busy", []string{user.RoleDesigner})
	free := f.addUser(t, "free", []string{user.RoleDesigner})

	// load the busy designer
	for i := 0; i < 2; i++ {
		if _, err := f.taskSvc.Create(ctx, task.NewTask{Title: "Load", AssigneeID: busy.ID}, "creator-id"); err != nil {
			t.Fatalf("Create(): %v", err)
		}
	}

	stuck := f.addStuckTask(t, "Abandoned", assignee.ID, task.StatusInDesign, 6*time.Hour)

	if _, err := f.autoSvc.Create(ctx, automation.NewRule{
		Name:        "hand off",
		Threshold:   5 * time.Hour,
		Action:      automation.ActionReassign,
		NotifyRoles: []string{user.RoleDesigner},
	}); err != nil {
		t.Fatalf("creating rule: %v", err)
	}

	summary, err := f.engine.Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Reassigned != 1 {
		t.Errorf("Reassigned = %d, want 1", summary.Reassigned)
	}

	got, err := f.taskSvc.GetByID(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.AssigneeID != free.ID {
		t.Errorf("AssigneeID = %q, want the least busy designer %q", got.AssigneeID, free.ID)
	}

	// the new assignee is told about the handoff
	pending, err := f.notifSvc.QueryPending(ctx, free.ID)
	if err != nil {
		t.Fatalf("QueryPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("new assignee pending = %d, want 1", len(pending))
	}
}

func TestEngineBroadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.addUser(t, "a", []string{user.RoleDesigner})
	b := f.addUser(t, "b", []string{user.RoleOperations})
	f.addStuckTask(t, "Forgotten", a.ID, task.StatusInDesign, 5*time.Hour)

	if _, err := f.autoSvc.Create(ctx, automation.NewRule{
		Name:      "sound the alarm",
		Threshold: 4 * time.Hour,
		Action:    automation.ActionBroadcast,
	}); err != nil {
		t.Fatalf("creating rule: %v", err)
	}

	if _, err := f.engine.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, usr := range []user.User{a, b} {
		pending, err := f.notifSvc.QueryPending(ctx, usr.ID)
		if err != nil {
			t.Fatalf("QueryPending(%s) error = %v", usr.Username, err)
		}
		if len(pending) != 1 {
			t.Errorf("%s pending = %d, want 1", usr.Username, len(pending))
		}
	}
}
