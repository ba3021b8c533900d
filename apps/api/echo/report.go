package echoapi

import (
	"fmt"
	"net/http"
	"net/mail"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/report"
	"github.com/kazihub/kazi/core/task"
)

type reportApi struct {
	svc report.Service
}

func registerReportAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc report.Service) {
	api := reportApi{svc: svc}

	rg := g.Group("/reports", jwt, dashboardMiddleware(func(c Claims) bool { return c.IsEstimation || c.IsOperations }))
	rg.GET("/tasks", api.tasks)
	rg.POST("/tasks/email", api.emailTasks)
}

// Handlers

// tasks renders the filtered task list as a CSV or PDF download.
func (api *reportApi) tasks(ctx echo.Context) error {
	filter := new(task.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	format := ctx.QueryParam("format")
	if format == "" {
		format = report.FormatCSV
	}

	var (
		content []byte
		ct      string
		err     error
	)
	switch format {
	case report.FormatCSV:
		ct = "text/csv"
		content, err = api.svc.TasksCSV(ctx.Request().Context(), filter, ordering.Orderings)
	case report.FormatPDF:
		ct = "application/pdf"
		content, err = api.svc.TasksPDF(ctx.Request().Context(), filter, ordering.Orderings)
	default:
		return core.NewValidationError(report.ErrUnknownFormat, core.FieldError{Field: "format", Error: report.ErrUnknownFormat.Error()})
	}
	if err != nil {
		return errors.Wrap(err, "rendering report")
	}

	filename := fmt.Sprintf("tasks-%s.%s", time.Now().UTC().Format("20060102"), format)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, ct, content)
}

func (api *reportApi) emailTasks(ctx echo.Context) error {
	var data EmailReportRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailReportRequest")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	to := make([]mail.Address, 0, len(data.To))
	for _, addr := range data.To {
		to = append(to, mail.Address{Address: addr})
	}

	filter := &task.QueryFilter{
		Status:     data.Status,
		AssigneeID: data.AssigneeID,
		Client:     data.Client,
	}
	if err := api.svc.EmailTasksReport(ctx.Request().Context(), filter, nil, data.Format, to); err != nil {
		return errors.Wrap(err, "emailing report")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Report is on its way to your inbox."})
}

type EmailReportRequest struct {
	To         []string `json:"to" validate:"required,min=1,dive,email"`
	Format     string   `json:"format" validate:"required,oneof=csv pdf"`
	Status     []string `json:"status"`
	AssigneeID string   `json:"assignee_id"`
	Client     string   `json:"client"`
}

func (er *EmailReportRequest) Validate() error {
	for i, addr := range er.To {
		er.To[i] = core.CleanString(addr, true /* lower */)
	}
	er.Format = core.CleanString(er.Format, true /* lower */)
	return core.Validate.Struct(er)
}
