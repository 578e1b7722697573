package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"merchhub/internal/dto"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that reports fields by their json name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	// tags on a nullable field apply to its value; null and absent skip them
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		n, ok := field.Interface().(dto.NullableString)
		if !ok || n.Value == nil {
			return nil
		}
		return *n.Value
	}, dto.NullableString{})
	return v
}

// validateStruct runs the struct tags of payload and converts failures into a
// ValidationError. Errors other than validation failures are returned as is.
func validateStruct(v *validator.Validate, payload any) *ValidationError {
	report := NewValidationError()
	if v == nil {
		return report
	}
	err := v.Struct(payload)
	if err == nil {
		return report
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		report.Add("_", err.Error())
		return report
	}
	for _, fe := range fieldErrs {
		report.Add(fe.Field(), describe(fe))
	}
	return report
}

func describe(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", field, fe.Param())
	case "max":
		return fmt.Sprintf("The %s may not be greater than %s characters.", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("The %s confirmation does not match.", field)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "gt":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "datetime":
		return fmt.Sprintf("The %s does not match the format %s.", field, fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", field)
	}
}
