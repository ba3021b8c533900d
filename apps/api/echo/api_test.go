package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	echoapi "github.com/kazihub/kazi/apps/api/echo"
	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/automation"
	"github.com/kazihub/kazi/core/chat"
	"github.com/kazihub/kazi/core/notification"
	"github.com/kazihub/kazi/core/presence"
	"github.com/kazihub/kazi/core/report"
	"github.com/kazihub/kazi/core/syncq"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
	emailsvc "github.com/kazihub/kazi/services/email"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	inmemdb "github.com/kazihub/kazi/storage/database/inmem"
)

var (
	conf    *core.Config
	app     echoapi.Server
	usrRepo user.Repository
	usrSvc  user.Service
	taskSvc task.Service
)

func TestMain(m *testing.M) {
	conf = &core.Config{
		Env:       "TEST",
		TestMode:  true,
		AppName:   "Kazi",
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		Presence: core.PresenceConfig{
			MinInterval:  30 * time.Second,
			MinDistance:  50,
			OnlineCutoff: 2 * time.Minute,
		},
	}

	db, err := inmemdb.Open()
	if err != nil {
		fmt.Printf("inmemdb.Open(): %v", err)
		os.Exit(1)
	}

	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	broker := realtimesvc.NewMemoryBroker()

	usrRepo = inmemdb.NewUserRepository(db)
	usrSvc = user.NewService(conf, usrRepo, mailSvc, logger)
	taskSvc = task.NewService(inmemdb.NewTaskRepository(db), broker, logger)
	chatSvc := chat.NewService(inmemdb.NewChatRepository(db), broker, logger)
	notifSvc := notification.NewService(conf, inmemdb.NewNotificationRepository(db), usrSvc, mailSvc, broker, logger)
	presenceSvc := presence.NewService(conf, inmemdb.NewPresenceRepository(db))
	autoSvc := automation.NewService(inmemdb.NewAutomationRepository(db))
	reportSvc := report.NewService(conf, taskSvc, usrSvc, mailSvc)
	syncSvc := syncq.NewService(inmemdb.NewSyncRepository(db), taskSvc, logger)

	app = echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		Broker:         broker,
		UserSvc:        usrSvc,
		TaskSvc:        taskSvc,
		ChatSvc:        chatSvc,
		NotifSvc:       notifSvc,
		PresenceSvc:    presenceSvc,
		AutoSvc:        autoSvc,
		ReportSvc:      reportSvc,
		SyncSvc:        syncSvc,
	})

	os.Exit(m.Run())
}

// Helpers

func createUser(t *testing.T, uname string, roles []string) user.User {
	t.Helper()
	usr := user.User{
		Name:     uname,
		Username: uname,
		Email:    uname + "@kazi.cd",
		Roles:    roles,
	}
	usr.SetActive(true)
	if err := usr.SetPassword("s3cr3t-pwd"); err != nil {
		t.Fatalf("SetPassword(): %v", err)
	}
	usr, err := usrRepo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(%s): %v", uname, err)
	}
	return usr
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()
	claims := echoapi.GetUserClaims(conf, usr)
	token, err := echoapi.GenerateToken(conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

// Tests

func TestTaskStatuses(t *testing.T) {
	usr := createUser(t, "statuses-user", []string{user.RoleDesigner})

	req, rec := newAuthRequest(http.MethodGet, "/v1/tasks/statuses", getToken(t, usr))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", rec.Code)
	}
	var statuses []string
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("unmarshalling statuses: %v", err)
	}
	assert.ElementsMatch(t, task.AllStatuses, statuses)
}

func TestHome(t *testing.T) {
	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/v1/tasks"},
		{http.MethodGet, "/v1/chat/rooms"},
		{http.MethodGet, "/v1/notifications/pending"},
		{http.MethodPost, "/v1/presence/beat"},
		{http.MethodGet, "/v1/automation/rules"},
		{http.MethodGet, "/v1/reports/tasks"},
		{http.MethodPost, "/v1/sync"},
	}
	for _, tt := range paths {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("code = %d, want 401", rec.Code)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	usr := createUser(t, "login-user", []string{user.RoleDesigner})

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
	}{
		{name: "ok", body: echoapi.LoginRequest{Username: usr.Username, Password: "s3cr3t-pwd"}, wantCode: http.StatusOK},
		{name: "by email", body: echoapi.LoginRequest{Username: usr.Email, Password: "s3cr3t-pwd"}, wantCode: http.StatusOK},
		{name: "wrong password", body: echoapi.LoginRequest{Username: usr.Username, Password: "nope"}, wantCode: http.StatusBadRequest},
		{name: "unknown user", body: echoapi.LoginRequest{Username: "ghost", Password: "s3cr3t-pwd"}, wantCode: http.StatusBadRequest},
		{name: "missing fields", body: echoapi.LoginRequest{}, wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", marshallObj(t, tt.body))
			app.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d; body %s", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				var resp echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("unmarshalling response: %v", err)
				}
				if resp.Token == "" {
					t.Error("empty token")
				}
			}
		})
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	usr := createUser(t, "inactive-user", []string{user.RoleDesigner})
	usr.SetActive(false)
	if _, err := usrRepo.UpdateUser(context.Background(), usr); err != nil {
		t.Fatalf("UpdateUser(): %v", err)
	}

	body := marshallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "s3cr3t-pwd"})
	req, rec := newRequest(http.MethodPost, "/v1/users/login", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("code = %d, want 403; body %s", rec.Code, rec.Body.String())
	}
}

func TestTaskLifecycle(t *testing.T) {
	usr := createUser(t, "task-user", []string{user.RoleOperations})
	token := getToken(t, usr)

	// create
	body := marshallObj(t, task.NewTask{Title: "Storefront banner", Client: "Acme"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/tasks", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create code = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var created task.Task
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshalling created task: %v", err)
	}
	if created.Status != task.StatusRFQ || created.CreatedBy != usr.ID {
		t.Errorf("unexpected created task %+v", created)
	}

	// retrieve
	req, rec = newAuthRequest(http.MethodGet, "/v1/tasks/"+created.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve code = %d, want 200", rec.Code)
	}

	// invalid transition
	body = marshallObj(t, task.ChangeStatus{Status: task.StatusDone})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tasks/"+created.ID+"/status", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid transition code = %d, want 400; body %s", rec.Code, rec.Body.String())
	}

	// valid transition
	body = marshallObj(t, task.ChangeStatus{Status: task.StatusEstimating})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tasks/"+created.ID+"/status", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("transition code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	// assign
	assignee := createUser(t, "task-assignee", []string{user.RoleDesigner})
	body = marshallObj(t, task.AssignTask{AssigneeID: assignee.ID})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tasks/"+created.ID+"/assign", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	// soft delete
	req, rec = newAuthRequest(http.MethodDelete, "/v1/tasks/"+created.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete code = %d, want 204", rec.Code)
	}

	// fetching by ID still works after a soft delete
	req, rec = newAuthRequest(http.MethodGet, "/v1/tasks/"+created.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("retrieve after delete code = %d, want 200", rec.Code)
	}

	// recycle bin is admin-only
	req, rec = newAuthRequest(http.MethodGet, "/v1/tasks?only_deleted=true", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("recycle bin code = %d, want 403 for non-admin", rec.Code)
	}

	// restore is admin-only
	req, rec = newAuthRequest(http.MethodPost, "/v1/tasks/"+created.ID+"/restore", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("restore code = %d, want 403 for non-admin", rec.Code)
	}

	admin := createUser(t, "task-admin", []string{user.RoleAdmin})
	req, rec = newAuthRequest(http.MethodPost, "/v1/tasks/"+created.ID+"/restore", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin restore code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestNotificationFlow(t *testing.T) {
	sender := createUser(t, "notif-sender", []string{user.RoleOperations})
	rcpt := createUser(t, "notif-rcpt", []string{user.RoleDesigner})
	other := createUser(t, "notif-other", []string{user.RoleDesigner})

	// send
	body := marshallObj(t, notification.NewUrgent{RecipientID: rcpt.ID, Message: "Client on the phone"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", getToken(t, sender), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("send code = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var notifs []notification.Urgent
	if err := json.Unmarshal(rec.Body.Bytes(), &notifs); err != nil {
		t.Fatalf("unmarshalling notifications: %v", err)
	}

	// broadcast is admin-only
	body = marshallObj(t, notification.NewUrgent{Broadcast: true, Message: "All hands"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/notifications", getToken(t, sender), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("broadcast code = %d, want 403 for non-admin", rec.Code)
	}

	// pending shows up for the recipient only
	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications/pending", getToken(t, rcpt))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("pending code = %d, want 200", rec.Code)
	}
	var pending []notification.Urgent
	if err := json.Unmarshal(rec.Body.Bytes(), &pending); err != nil {
		t.Fatalf("unmarshalling pending: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d, want 1", len(pending))
	}

	// only the recipient can acknowledge
	req, rec = newAuthRequest(http.MethodPost, "/v1/notifications/"+notifs[0].ID+"/ack", getToken(t, other))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("foreign ack code = %d, want 403", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodPost, "/v1/notifications/"+notifs[0].ID+"/ack", getToken(t, rcpt))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("ack code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
}

func TestPresenceBeat(t *testing.T) {
	usr := createUser(t, "presence-user", []string{user.RoleOperations})
	token := getToken(t, usr)

	lat, lng := -4.3250, 15.3220
	body := marshallObj(t, presence.Heartbeat{Status: presence.StatusOnline, Latitude: &lat, Longitude: &lng})
	req, rec := newAuthRequest(http.MethodPost, "/v1/presence/beat", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("beat code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	// bad status is rejected
	body = marshallObj(t, presence.Heartbeat{Status: "sleeping"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/presence/beat", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad status code = %d, want 400", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/presence/online", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("online code = %d, want 200", rec.Code)
	}
	var online []presence.Presence
	if err := json.Unmarshal(rec.Body.Bytes(), &online); err != nil {
		t.Fatalf("unmarshalling online: %v", err)
	}
	var found bool
	for _, p := range online {
		if p.UserID == usr.ID {
			found = true
		}
	}
	if !found {
		t.Error("beat did not show up in the online list")
	}
}

func TestAutomationRulesAdminOnly(t *testing.T) {
	designer := createUser(t, "rules-designer", []string{user.RoleDesigner})
	admin := createUser(t, "rules-admin", []string{user.RoleAdmin})

	req, rec := newAuthRequest(http.MethodGet, "/v1/automation/rules", getToken(t, designer))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("designer code = %d, want 403", rec.Code)
	}

	body := marshallObj(t, automation.NewRule{
		Name:      "nudge assignee",
		Threshold: 2 * time.Hour,
		Action:    automation.ActionNotifyAssignee,
	})
	req, rec = newAuthRequest(http.MethodPost, "/v1/automation/rules", getToken(t, admin), body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create code = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/automation/rules", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin list code = %d, want 200", rec.Code)
	}
}

func TestReportDownload(t *testing.T) {
	usr := createUser(t, "report-user", []string{user.RoleEstimation})
	token := getToken(t, usr)

	req, rec := newAuthRequest(http.MethodGet, "/v1/reports/tasks?format=csv", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("csv code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q, want text/csv", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd == "" {
		t.Error("missing Content-Disposition header")
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/reports/tasks?format=pdf", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("pdf code = %d, want 200", rec.Code)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("pdf body does not start with %PDF")
	}

	// designers do not get reports
	designer := createUser(t, "report-designer", []string{user.RoleDesigner})
	req, rec = newAuthRequest(http.MethodGet, "/v1/reports/tasks", getToken(t, designer))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("designer code = %d, want 403", rec.Code)
	}
}

func TestSyncReplay(t *testing.T) {
	usr := createUser(t, "sync-user", []string{user.RoleOperations})
	token := getToken(t, usr)

	batch := syncq.Batch{Ops: []syncq.Op{
		{
			ClientRef: "api-ref-1",
			Action:    syncq.ActionCreate,
			Create:    &task.NewTask{Title: "Offline flyer"},
		},
		{
			ClientRef: "api-ref-2",
			Action:    syncq.ActionStatus,
			TaskID:    "api-ref-1",
			Status:    &task.ChangeStatus{Status: task.StatusEstimating},
		},
	}}

	req, rec := newAuthRequest(http.MethodPost, "/v1/sync", token, marshallObj(t, batch))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("replay code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}
	var resp echoapi.SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].Status != syncq.ResultApplied || resp.Results[1].Status != syncq.ResultApplied {
		t.Fatalf("unexpected results %+v", resp.Results)
	}

	// replaying the same queue is harmless
	req, rec = newAuthRequest(http.MethodPost, "/v1/sync", token, marshallObj(t, batch))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("retry code = %d, want 200", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshalling retry response: %v", err)
	}
	for i, res := range resp.Results {
		if res.Status != syncq.ResultSkipped {
			t.Errorf("retry result[%d].Status = %q, want skipped", i, res.Status)
		}
	}

	// empty batch is rejected
	req, rec = newAuthRequest(http.MethodPost, "/v1/sync", token, marshallObj(t, syncq.Batch{}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty batch code = %d, want 400", rec.Code)
	}
}

func TestChatFlow(t *testing.T) {
	usr := createUser(t, "chat-user", []string{user.RoleDesigner})
	token := getToken(t, usr)

	// team rooms are admin-only
	body := marshallObj(t, chat.NewRoom{Name: "all hands", IsTeam: true})
	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/rooms", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("team room code = %d, want 403 for non-admin", rec.Code)
	}

	body = marshallObj(t, chat.NewRoom{Name: "design"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/chat/rooms", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("room code = %d, want 201; body %s", rec.Code, rec.Body.String())
	}
	var room chat.Room
	if err := json.Unmarshal(rec.Body.Bytes(), &room); err != nil {
		t.Fatalf("unmarshalling room: %v", err)
	}

	body = marshallObj(t, chat.NewMessage{Body: "new brief is in"})
	req, rec = newAuthRequest(http.MethodPost, "/v1/chat/rooms/"+room.ID+"/messages", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("message code = %d, want 201; body %s", rec.Code, rec.Body.String())
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/chat/rooms/"+room.ID+"/messages", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("history code = %d, want 200", rec.Code)
	}
	var msgs []chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("unmarshalling history: %v", err)
	}
	if len(msgs) != 1 || msgs[0].SenderName != usr.Name {
		t.Errorf("unexpected history %+v", msgs)
	}

	// unknown room
	req, rec = newAuthRequest(http.MethodGet, "/v1/chat/rooms/nope/messages", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown room code = %d, want 404", rec.Code)
	}
}

func TestUserAdminEndpoints(t *testing.T) {
	admin := createUser(t, "users-admin", []string{user.RoleAdmin})
	designer := createUser(t, "users-designer", []string{user.RoleDesigner})

	// listing users is admin-only
	req, rec := newAuthRequest(http.MethodGet, "/v1/users", getToken(t, designer))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("designer list code = %d, want 403", rec.Code)
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/users", getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin list code = %d, want 200; body %s", rec.Code, rec.Body.String())
	}

	// users may fetch themselves but not others
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+designer.ID, getToken(t, designer))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("self retrieve code = %d, want 200", rec.Code)
	}
	req, rec = newAuthRequest(http.MethodGet, "/v1/users/"+admin.ID, getToken(t, designer))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("foreign retrieve code = %d, want 404", rec.Code)
	}

	// admins cannot delete themselves
	req, rec = newAuthRequest(http.MethodDelete, "/v1/users/"+admin.ID, getToken(t, admin))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("self delete code = %d, want 403", rec.Code)
	}
}
