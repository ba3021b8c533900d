package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
)

type taskApi struct {
	svc     task.Service
	userSvc user.Service
}

func registerTaskAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc task.Service, userSvc user.Service) {
	api := taskApi{
		svc:     svc,
		userSvc: userSvc,
	}

	tg := g.Group("/tasks", jwt)
	tg.POST("", api.create)
	tg.GET("", api.query)
	tg.GET("/statuses", api.queryStatuses)
	tg.GET("/workload", api.workload, adminMiddleware())

	dg := tg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.POST("/status", api.changeStatus)
	dg.POST("/assign", api.assign)
	dg.POST("/restore", api.restore, adminMiddleware())
	dg.DELETE("", api.destroy)
}

// Handlers

func (api *taskApi) create(ctx echo.Context) error {
	var data task.NewTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTask")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	tsk, err := api.svc.Create(ctx.Request().Context(), data, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "creating task")
	}
	return ctx.JSON(http.StatusCreated, tsk)
}

func (api *taskApi) query(ctx echo.Context) error {
	filter := new(task.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []task.Task{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	// only admins may browse the recycle bin
	if filter.IncludeDeleted || filter.OnlyDeleted {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.IsAdmin {
			return errHttpForbidden
		}
	}

	tasks, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying tasks")
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	return ctx.JSON(http.StatusOK, tasks)
}

func (api *taskApi) retrieve(ctx echo.Context) error {
	tsk, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding task by ID")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) update(ctx echo.Context) error {
	orig, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding task by ID")
	}

	var data task.UpdateTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTask")
	}
	if err := data.Validate(orig); err != nil {
		return err
	}

	tsk, err := api.svc.Update(ctx.Request().Context(), orig.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) changeStatus(ctx echo.Context) error {
	var data task.ChangeStatus
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangeStatus")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	tsk, err := api.svc.ChangeStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		switch errors.Cause(err) {
		case task.ErrNotFound:
			return errHttpNotFound
		case task.ErrDeleted:
			return echo.NewHTTPError(http.StatusConflict, task.ErrDeleted.Error())
		}
		return errors.Wrap(err, "changing task status")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) assign(ctx echo.Context) error {
	var data task.AssignTask
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignTask")
	}
	if err := data.Validate(ctx.Request().Context()); err != nil {
		return err
	}

	// the assignee must be an existing active user
	if _, err := api.userSvc.GetByID(ctx.Request().Context(), data.AssigneeID); err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding assignee by ID")
	}

	tsk, err := api.svc.Assign(ctx.Request().Context(), ctx.Param("id"), data.AssigneeID)
	if err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "assigning task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) restore(ctx echo.Context) error {
	tsk, err := api.svc.Restore(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "restoring task")
	}
	return ctx.JSON(http.StatusOK, tsk)
}

func (api *taskApi) destroy(ctx echo.Context) error {
	if err := api.svc.SoftDelete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == task.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting task")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *taskApi) queryStatuses(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, task.AllStatuses)
}

// workload returns open task counts per assignee for the admin dashboard.
func (api *taskApi) workload(ctx echo.Context) error {
	counts, err := api.svc.CountOpenByAssignee(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "counting open tasks by assignee")
	}
	return ctx.JSON(http.StatusOK, counts)
}
