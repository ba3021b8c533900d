package automation

import (
	"github.com/go-playground/validator/v10"

	"github.com/kazihub/kazi/core"
)

var (
	actionTag  = "automationaction"
	actionText = "invalid automation action"
)

func init() {
	_ = core.Validate.RegisterValidation(actionTag, actionValidation)
	core.RegisterCustomTranslation(actionTag, actionText)
}

func actionValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, a := range AllActions {
		if a == val {
			return true
		}
	}
	return false
}
