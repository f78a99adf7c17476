package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/safar/order-engine/internal/models"
)

type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// registerValidators adds the custom tags to gin's binding engine.
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		_, err := models.ParseOrderStatus(fl.Field().String())
		return err == nil
	})
}

func validationErrors(errs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		out = append(out, FieldError{
			Field:   strings.ToLower(e.Field()),
			Tag:     e.Tag(),
			Message: validationMessage(e),
		})
	}
	return out
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", e.Field(), e.Param())
	case "order_status":
		statuses := make([]string, 0, len(models.OrderStatuses()))
		for _, s := range models.OrderStatuses() {
			statuses = append(statuses, string(s))
		}
		return "status must be one of " + strings.Join(statuses, ", ")
	default:
		return e.Field() + " is invalid"
	}
}
