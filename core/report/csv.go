package report

import (
	"bytes"
	"encoding/csv"

	"github.com/pkg/errors"
)

var csvHeader = []string{
	"id", "title", "client", "status", "priority", "assignee",
	"due_at", "status_changed_at", "created_at",
}

func renderCSV(rows []row) ([]byte, error) {
	var buff bytes.Buffer
	w := csv.NewWriter(&buff)

	if err := w.Write(csvHeader); err != nil {
		return nil, errors.Wrap(err, "writing csv header")
	}
	for _, r := range rows {
		record := []string{
			r.task.ID,
			r.task.Title,
			r.task.Client,
			r.task.Status,
			r.task.Priority,
			r.assignee,
			fmtTime(r.task.DueAt),
			fmtTime(r.task.StatusChangedAt),
			fmtTime(r.task.CreatedAt),
		}
		if err := w.Write(record); err != nil {
			return nil, errors.Wrap(err, "writing csv record")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "flushing csv")
	}
	return buff.Bytes(), nil
}
