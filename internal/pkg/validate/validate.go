// Package validate wraps a shared validator with the bookstore's custom
// tags. Field names in errors are the JSON names clients send.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// role and order_status accept exactly the domain enumerations.
	_ = val.RegisterValidation("role", func(fl validator.FieldLevel) bool {
		return domain.ValidRole(fl.Field().String())
	})
	_ = val.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return domain.ValidOrderStatus(fl.Field().String())
	})
	return val
}

// Struct validates s using its validate tags. Validation failures come back
// as one error listing every offending field.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fieldPath(fe), fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

// fieldPath drops the Go type name from the namespace, leaving the JSON
// path, e.g. "items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}
