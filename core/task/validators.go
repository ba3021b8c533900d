package task

import (
	"github.com/go-playground/validator/v10"

	"github.com/kazihub/kazi/core"
)

var (
	taskStatusTag  = "taskstatus"
	taskStatusText = "invalid task status"

	taskPriorityTag  = "taskpriority"
	taskPriorityText = "invalid task priority"
)

func init() {
	_ = core.Validate.RegisterValidation(taskStatusTag, taskStatusValidation)
	core.RegisterCustomTranslation(taskStatusTag, taskStatusText)

	_ = core.Validate.RegisterValidation(taskPriorityTag, taskPriorityValidation)
	core.RegisterCustomTranslation(taskPriorityTag, taskPriorityText)
}

// taskStatusValidation checks that the provided status is a known one.
func taskStatusValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, s := range AllStatuses {
		if s == val {
			return true
		}
	}
	return false
}

// taskPriorityValidation checks that the provided priority is a known one.
func taskPriorityValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, p := range AllPriorities {
		if p == val {
			return true
		}
	}
	return false
}
