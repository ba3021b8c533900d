package presence

import (
	"github.com/go-playground/validator/v10"

	"github.com/kazihub/kazi/core"
)

var (
	presenceStatusTag  = "presencestatus"
	presenceStatusText = "invalid presence status"
)

func init() {
	_ = core.Validate.RegisterValidation(presenceStatusTag, presenceStatusValidation)
	core.RegisterCustomTranslation(presenceStatusTag, presenceStatusText)
}

func presenceStatusValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, s := range AllStatuses {
		if s == val {
			return true
		}
	}
	return false
}
