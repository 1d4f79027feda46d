package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"geo-bknd/internal/apperr"

	"github.com/go-playground/validator/v10"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return strings.ToLower(f.Name)
		}
		return name
	})
	return v
}

// validationError turns the first validator failure into a BadRequest with a
// client-facing message.
func validationError(err error) error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return fmt.Errorf("validate input: %w", err)
	}

	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return apperr.BadRequest("%s is required.", fe.Field())
	case "min":
		return apperr.BadRequest("%s must be at least %s characters.", fe.Field(), fe.Param())
	case "max":
		return apperr.BadRequest("%s must not exceed %s characters.", fe.Field(), fe.Param())
	default:
		return apperr.BadRequest("%s failed on the '%s' rule.", fe.Field(), fe.Tag())
	}
}
