package engine

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"stageline/internal/apperr"
	"stageline/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names for validation errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("card_status", func(fl validator.FieldLevel) bool {
		return domain.CardStatus(fl.Field().String()).Valid()
	})
}

// validateInput checks struct tags and returns an apperr validation error
// listing every failing field.
func validateInput(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid input", err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return apperr.Validation("validation failed", strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters long", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters long", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, param)
	case "hexcolor":
		return fmt.Sprintf("%s must be a hex color", field)
	case "card_status":
		return fmt.Sprintf("%s must be one of ACTIVE, COMPLETED, LOST, ABANDONED", field)
	default:
		return fmt.Sprintf("%s failed validation for '%s'", field, fe.Tag())
	}
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperr.Validation(kind + " id is required")
	}
	return nil
}
