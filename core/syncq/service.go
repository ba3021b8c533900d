package syncq

import (
	"context"
	"errors"
	"time"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/task"
)

var ErrRefNotFound = errors.New("sync ref not found")

type (
	// AppliedOp records that a client_ref has been replayed for a user.
	AppliedOp struct {
		UserID    string    `json:"user_id"`
		ClientRef string    `json:"client_ref"`
		TaskID    string    `json:"task_id"`
		AppliedAt time.Time `json:"applied_at"` // UTC
	}

	Repository interface {
		GetAppliedOp(ctx context.Context, userID, clientRef string) (AppliedOp, error)
		CreateAppliedOp(ctx context.Context, op AppliedOp) error
	}

	Service interface {
		// Replay applies a queued batch of offline writes in order. Ops whose
		// client_ref was already applied are skipped, failures are reported
		// per op and do not stop the batch.
		Replay(ctx context.Context, userID string, batch Batch) ([]Result, error)
	}

	service struct {
		repo    Repository
		taskSvc task.Service
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, taskSvc task.Service, logger core.Logger) Service {
	return &service{
		repo:    repo,
		taskSvc: taskSvc,
		logger:  logger,
	}
}

func (svc *service) Replay(ctx context.Context, userID string, batch Batch) ([]Result, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(batch.Ops))
	// refs maps client_refs to server task IDs so later ops in the batch
	// can target tasks created earlier in it.
	refs := make(map[string]string)

	for i := range batch.Ops {
		op := batch.Ops[i]
		res := Result{ClientRef: op.ClientRef, Status: ResultApplied}

		applied, err := svc.repo.GetAppliedOp(ctx, userID, op.ClientRef)
		switch {
		case err == nil:
			res.Status = ResultSkipped
			res.TaskID = applied.TaskID
			if applied.TaskID != "" {
				refs[op.ClientRef] = applied.TaskID
			}
			results = append(results, res)
			continue
		case !errors.Is(err, ErrRefNotFound):
			return nil, err
		}

		taskID, err := svc.apply(ctx, userID, op, refs)
		if err != nil {
			svc.logger.Warn("sync replay failed", "client_ref", op.ClientRef, "err", err)
			res.Status = ResultFailed
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		res.TaskID = taskID
		refs[op.ClientRef] = taskID
		if err = svc.repo.CreateAppliedOp(ctx, AppliedOp{
			UserID:    userID,
			ClientRef: op.ClientRef,
			TaskID:    taskID,
			AppliedAt: time.Now().UTC(),
		}); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (svc *service) apply(ctx context.Context, userID string, op Op, refs map[string]string) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}

	taskID := op.TaskID
	if id, ok := refs[taskID]; ok {
		taskID = id
	}

	switch op.Action {
	case ActionCreate:
		if op.Create == nil {
			return "", errors.New("create payload is required")
		}
		if err := op.Create.Validate(); err != nil {
			return "", err
		}
		tsk, err := svc.taskSvc.Create(ctx, *op.Create, userID)
		if err != nil {
			return "", err
		}
		return tsk.ID, nil

	case ActionUpdate:
		if op.Update == nil {
			return "", errors.New("update payload is required")
		}
		orig, err := svc.taskSvc.GetByID(ctx, taskID)
		if err != nil {
			return "", err
		}
		if err = op.Update.Validate(orig); err != nil {
			return "", err
		}
		tsk, err := svc.taskSvc.Update(ctx, taskID, *op.Update)
		if err != nil {
			return "", err
		}
		return tsk.ID, nil

	case ActionStatus:
		if op.Status == nil {
			return "", errors.New("status payload is required")
		}
		if err := op.Status.Validate(); err != nil {
			return "", err
		}
		tsk, err := svc.taskSvc.ChangeStatus(ctx, taskID, op.Status.Status)
		if err != nil {
			return "", err
		}
		return tsk.ID, nil

	case ActionDelete:
		if err := svc.taskSvc.SoftDelete(ctx, taskID); err != nil {
			return "", err
		}
		return taskID, nil
	}
	return "", errors.New("unknown action " + op.Action)
}
