package report_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"log"
	"net/mail"
	"testing"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/report"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
	emailsvc "github.com/kazihub/kazi/services/email"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	inmemdb "github.com/kazihub/kazi/storage/database/inmem"
)

func newTestService(t *testing.T) (report.Service, task.Service, user.User) {
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
	taskSvc := task.NewService(inmemdb.NewTaskRepository(db), realtimesvc.NewMemoryBroker(), logger)

	designer := user.User{Name: "Dezi Gner", Username: "dezi", Email: "dezi@kazi.cd", Roles: []string{user.RoleDesigner}}
	designer.SetActive(true)
	designer, err = usrRepo.CreateUser(context.Background(), designer)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}

	return report.NewService(conf, taskSvc, usrSvc, mailSvc), taskSvc, designer
}

func TestTasksCSV(t *testing.T) {
	svc, taskSvc, designer := newTestService(t)
	ctx := context.Background()

	if _, err := taskSvc.Create(ctx, task.NewTask{Title: "Mall banner", Client: "Acme", AssigneeID: designer.ID}, "creator-id"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := taskSvc.Create(ctx, task.NewTask{Title: "Business cards", Client: "Initech"}, "creator-id"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	out, err := svc.TasksCSV(ctx, nil, nil)
	if err != nil {
		t.Fatalf("TasksCSV() error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parsing csv: %v", err)
	}
	if len(records) != 3 { // header + 2 tasks
		t.Fatalf("csv has %d record(s), want 3", len(records))
	}
	if records[0][0] != "id" || records[0][5] != "assignee" {
		t.Errorf("unexpected header %v", records[0])
	}

	// assignee IDs resolve to display names
	var sawName bool
	for _, rec := range records[1:] {
		if rec[5] == designer.Name {
			sawName = true
		}
	}
	if !sawName {
		t.Errorf("no record carries the assignee name %q", designer.Name)
	}
}

func TestTasksCSVHonorsFilter(t *testing.T) {
	svc, taskSvc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := taskSvc.Create(ctx, task.NewTask{Title: "Acme banner", Client: "Acme"}, "creator-id"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := taskSvc.Create(ctx, task.NewTask{Title: "Initech cards", Client: "Initech"}, "creator-id"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	out, err := svc.TasksCSV(ctx, &task.QueryFilter{Client: "Acme"}, nil)
	if err != nil {
		t.Fatalf("TasksCSV() error = %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(out)).ReadAll()
	if err != nil {
		t.Fatalf("parsing csv: %v", err)
	}
	if len(records) != 2 { // header + 1 task
		t.Fatalf("csv has %d record(s), want 2", len(records))
	}
	if records[1][2] != "Acme" {
		t.Errorf("client = %q, want Acme", records[1][2])
	}
}

func TestTasksPDF(t *testing.T) {
	svc, taskSvc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := taskSvc.Create(ctx, task.NewTask{Title: "Mall banner"}, "creator-id"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	out, err := svc.TasksPDF(ctx, nil, nil)
	if err != nil {
		t.Fatalf("TasksPDF() error = %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF (starts with %q)", out[:min(8, len(out))])
	}
}

func TestEmailTasksReportUnknownFormat(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.EmailTasksReport(context.Background(), nil, nil, "xlsx", []mail.Address{{Address: "boss@kazi.cd"}})
	if err == nil {
		t.Fatal("EmailTasksReport() expected error for unknown format")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
