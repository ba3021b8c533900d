package syncq

import (
	"github.com/go-playground/validator/v10"

	"github.com/kazihub/kazi/core"
)

func init() {
	_ = core.Validate.RegisterValidation("syncaction", syncActionValidation)
	core.RegisterCustomTranslation("syncaction", "{0} is not a valid sync action")
}

func syncActionValidation(fl validator.FieldLevel) bool {
	action := fl.Field().String()
	for _, a := range AllActions {
		if action == a {
			return true
		}
	}
	return false
}
