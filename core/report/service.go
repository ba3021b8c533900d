package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/task"
	"github.com/kazihub/kazi/core/user"
)

// Formats
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

var (
	// errors
	ErrUnknownFormat = errors.New("unknown report format")
)

type (
	Service interface {
		// TasksCSV renders the filtered tasks as a CSV document.
		TasksCSV(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]byte, error)
		// TasksPDF renders the filtered tasks as a tabular PDF document.
		TasksPDF(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]byte, error)
		// EmailTasksReport renders the report and emails it as an attachment.
		EmailTasksReport(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering, format string, to []mail.Address) error
	}

	service struct {
		conf    *core.Config
		taskSvc task.Service
		usrSvc  user.Service
		mailSvc core.EmailService
	}

	// row is a single report line with the assignee resolved to a name.
	row struct {
		task     task.Task
		assignee string
	}
)

var _ Service = (*service)(nil)

func NewService(conf *core.Config, taskSvc task.Service, usrSvc user.Service, mailSvc core.EmailService) Service {
	return &service{
		conf:    conf,
		taskSvc: taskSvc,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}
}

func (svc *service) TasksCSV(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]byte, error) {
	rows, err := svc.rows(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	return renderCSV(rows)
}

func (svc *service) TasksPDF(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]byte, error) {
	rows, err := svc.rows(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}
	return renderPDF(svc.conf.AppName, rows)
}

func (svc *service) EmailTasksReport(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering, format string, to []mail.Address) error {
	var (
		content []byte
		ct      string
		err     error
	)
	switch format {
	case FormatCSV:
		ct = "text/csv"
		content, err = svc.TasksCSV(ctx, filter, ordering)
	case FormatPDF:
		ct = "application/pdf"
		content, err = svc.TasksPDF(ctx, filter, ordering)
	default:
		return core.NewValidationError(ErrUnknownFormat, core.FieldError{Field: "format", Error: ErrUnknownFormat.Error()})
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	msg := &core.EmailMessage{
		To:           to,
		Subject:      "Task report " + now.Format("2006-01-02"),
		TemplateName: "task-report",
		TemplateData: struct{ Date string }{Date: now.Format("Monday, 02 Jan 2006")},
	}
	filename := fmt.Sprintf("tasks-%s.%s", now.Format("20060102"), format)
	if err := msg.Attach(bytes.NewReader(content), filename, ct); err != nil {
		return err
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

// rows queries tasks and resolves assignee IDs to display names.
func (svc *service) rows(ctx context.Context, filter *task.QueryFilter, ordering []core.DBOrdering) ([]row, error) {
	tasks, err := svc.taskSvc.Query(ctx, filter, ordering)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	rows := make([]row, 0, len(tasks))
	for _, tsk := range tasks {
		name := ""
		if tsk.AssigneeID != "" {
			var ok bool
			if name, ok = names[tsk.AssigneeID]; !ok {
				if usr, err := svc.usrSvc.GetByID(ctx, tsk.AssigneeID); err == nil {
					name = usr.Name
				}
				names[tsk.AssigneeID] = name
			}
		}
		rows = append(rows, row{task: tsk, assignee: name})
	}
	return rows, nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}
