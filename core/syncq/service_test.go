package syncq_test

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/kazihub/kazi/core/syncq"
	"github.com/kazihub/kazi/core/task"
	logsvc "github.com/kazihub/kazi/services/logger"
	realtimesvc "github.com/kazihub/kazi/services/realtime"
	inmemdb "github.com/kazihub/kazi/storage/database/inmem"
)

const userID = "11111111-1111-4111-8111-111111111111"

func newTestService(t *testing.T) (syncq.Service, task.Service) {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	logger := logsvc.NewStdLogger(log.New(io.Discard, "", 0))
	taskSvc := task.NewService(inmemdb.NewTaskRepository(db), realtimesvc.NewMemoryBroker(), logger)
	return syncq.NewService(inmemdb.NewSyncRepository(db), taskSvc, logger), taskSvc
}

func TestReplayCreatesAndChains(t *testing.T) {
	svc, taskSvc := newTestService(t)
	ctx := context.Background()

	// a batch queued offline: create a task, then move it by its client_ref
	batch := syncq.Batch{Ops: []syncq.Op{
		{
			ClientRef: "ref-create-1",
			Action:    syncq.ActionCreate,
			Create:    &task.NewTask{Title: "Offline banner"},
		},
		{
			ClientRef: "ref-status-1",
			Action:    syncq.ActionStatus,
			TaskID:    "ref-create-1",
			Status:    &task.ChangeStatus{Status: task.StatusEstimating},
		},
	}}

	results, err := svc.Replay(ctx, userID, batch)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Replay() returned %d result(s), want 2", len(results))
	}
	for i, res := range results {
		if res.Status != syncq.ResultApplied {
			t.Errorf("result[%d].Status = %q (%s), want applied", i, res.Status, res.Error)
		}
	}
	if results[0].TaskID == "" || results[0].TaskID != results[1].TaskID {
		t.Fatalf("chained op targeted %q, want the created task %q", results[1].TaskID, results[0].TaskID)
	}

	tsk, err := taskSvc.GetByID(ctx, results[0].TaskID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if tsk.Status != task.StatusEstimating {
		t.Errorf("Status = %q, want %q", tsk.Status, task.StatusEstimating)
	}
	if tsk.CreatedBy != userID {
		t.Errorf("CreatedBy = %q, want the replaying user", tsk.CreatedBy)
	}
}

func TestReplayIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	batch := syncq.Batch{Ops: []syncq.Op{{
		ClientRef: "ref-create-1",
		Action:    syncq.ActionCreate,
		Create:    &task.NewTask{Title: "Offline banner"},
	}}}

	first, err := svc.Replay(ctx, userID, batch)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	second, err := svc.Replay(ctx, userID, batch)
	if err != nil {
		t.Fatalf("Replay() retry error = %v", err)
	}

	if second[0].Status != syncq.ResultSkipped {
		t.Errorf("retried op Status = %q, want skipped", second[0].Status)
	}
	if second[0].TaskID != first[0].TaskID {
		t.Errorf("retried op TaskID = %q, want %q", second[0].TaskID, first[0].TaskID)
	}
}

func TestReplayFailureDoesNotStopBatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	batch := syncq.Batch{Ops: []syncq.Op{
		{
			ClientRef: "ref-bad",
			Action:    syncq.ActionStatus,
			TaskID:    "ffffffff-ffff-4fff-8fff-ffffffffffff",
			Status:    &task.ChangeStatus{Status: task.StatusEstimating},
		},
		{
			ClientRef: "ref-good",
			Action:    syncq.ActionCreate,
			Create:    &task.NewTask{Title: "Still lands"},
		},
	}}

	results, err := svc.Replay(ctx, userID, batch)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if results[0].Status != syncq.ResultFailed {
		t.Errorf("result[0].Status = %q, want failed", results[0].Status)
	}
	if results[0].Error == "" {
		t.Error("result[0].Error is empty")
	}
	if results[1].Status != syncq.ResultApplied {
		t.Errorf("result[1].Status = %q, want applied", results[1].Status)
	}
}

func TestReplayRejectsUnknownAction(t *testing.T) {
	svc, _ := newTestService(t)

	batch := syncq.Batch{Ops: []syncq.Op{{
		ClientRef: "ref-bad-action",
		Action:    "teleport",
		TaskID:    "whatever",
	}}}
	results, err := svc.Replay(context.Background(), userID, batch)
	if err != nil {
		t.Fatalf("Replay() failed, %v", err)
	}
	if len(results) != 1 || results[0].Status != syncq.ResultFailed {
		t.Fatalf("unexpected results %+v", results)
	}
	if results[0].Error == "" {
		t.Error("expected a validation error message")
	}
}

func TestReplayRejectsEmptyBatch(t *testing.T) {
	svc, _ := newTestService(t)

	if _, err := svc.Replay(context.Background(), userID, syncq.Batch{}); err == nil {
		t.Error("Replay() expected validation error for empty batch")
	}
}

func TestReplayFailedOpRetries(t *testing.T) {
	svc, taskSvc := newTestService(t)
	ctx := context.Background()

	tsk, err := taskSvc.Create(ctx, task.NewTask{Title: "Banner"}, userID)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// done is unreachable from rfq, so the op fails
	batch := syncq.Batch{Ops: []syncq.Op{{
		ClientRef: "ref-status",
		Action:    syncq.ActionStatus,
		TaskID:    tsk.ID,
		Status:    &task.ChangeStatus{Status: task.StatusDone},
	}}}
	results, err := svc.Replay(ctx, userID, batch)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if results[0].Status != syncq.ResultFailed {
		t.Fatalf("result Status = %q, want failed", results[0].Status)
	}

	// failed ops are not recorded as applied; a corrected retry lands
	batch.Ops[0].Status.Status = task.StatusEstimating
	results, err = svc.Replay(ctx, userID, batch)
	if err != nil {
		t.Fatalf("Replay() retry error = %v", err)
	}
	if results[0].Status != syncq.ResultApplied {
		t.Errorf("retried result Status = %q, want applied", results[0].Status)
	}
}
