package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their env variable name so errors point at what to set.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("env"), ",", 2)[0]
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the `validate` struct tags on target and reports the first
// violation by env variable name.
func Validate(target any) error {
	err := structValidator().Struct(target)
	if err == nil {
		return nil
	}
	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return fmt.Errorf("validate config: %w", err)
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		switch first.Tag() {
		case "required":
			return fmt.Errorf("validate config: %s is required", first.Field())
		case "oneof":
			return fmt.Errorf("validate config: %s must be one of [%s], got %q", first.Field(), first.Param(), fmt.Sprint(first.Value()))
		default:
			return fmt.Errorf("validate config: %s failed %q check", first.Field(), first.Tag())
		}
	}
	return fmt.Errorf("validate config: %w", err)
}
