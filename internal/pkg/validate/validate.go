// Package validate runs go-playground struct validation and converts the
// result into a VALIDATION_ERROR carrying one message per field.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperr "inmoveo/internal/pkg/errors"
)

var v = newValidator()

// Fields are reported by their env tag, then json tag, then Go name.
func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"env", "json"} {
			name := strings.Split(f.Tag.Get(tag), ",")[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return val
}

var messages = map[string]string{
	"required":      "%s is required",
	"required_if":   "%s is required with this configuration",
	"oneof":         "%s must be one of [%s]",
	"gte":           "%s must be greater than or equal to %s",
	"lte":           "%s must be less than or equal to %s",
	"min":           "%s must be at least %s",
	"max":           "%s must be at most %s",
	"url":           "%s must be a valid URL",
	"numeric":       "%s must be numeric",
	"hostname_port": "%s must be host:port",
}

// Struct validates s. On failure the error lists every offending field in
// its "fields" detail.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(err, "validate.struct", "validation failed")
	}

	fields := make(map[string]string, len(verrs))
	var first string
	for _, fe := range verrs {
		msg := message(fe)
		fields[fe.Field()] = msg
		if first == "" {
			first = msg
		}
	}
	return apperr.Validation(first).WithField("fields", fields)
}

func message(fe validator.FieldError) string {
	tmpl, ok := messages[fe.Tag()]
	if !ok {
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
	if strings.Count(tmpl, "%s") == 2 {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf(tmpl, fe.Field())
}
