package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// newValidator mirrors the storefront form rules: ZIP or ZIP+4, two-letter states.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("zip", func(fl validator.FieldLevel) bool {
		return zipPattern.MatchString(fl.Field().String())
	})
	return v
}

// validateStruct converts validator failures into an ErrValidation message
// naming the first offending field.
func validateStruct(v *validator.Validate, s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationError("%v", err)
	}
	fe := verrs[0]
	if fe.Tag() == "required" {
		return validationError("%s is required", fe.Field())
	}
	return validationError("%s is invalid", fe.Field())
}
