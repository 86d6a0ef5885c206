package client

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/keboola/go-httpchain/pkg/request"
)

var (
	validate     *validator.Validate //nolint:gochecknoglobals
	validateOnce sync.Once           //nolint:gochecknoglobals
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Use config field names, e.g. "url", "responseType", in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			return configFieldName(fld.Name)
		})

		validate.RegisterStructValidation(func(sl validator.StructLevel) {
			cfg := sl.Current().Interface().(request.Config)
			if !request.SupportedParams(cfg.Params) {
				sl.ReportError(cfg.Params, request.FieldParams, "Params", "params_type", fmt.Sprintf("%T", cfg.Params))
			}
		}, request.Config{})
	})
	return validate
}

// validateConfig checks the config before it is passed to the transport.
func validateConfig(cfg request.Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	messages := make([]string, 0, len(validationErrs))
	for _, e := range validationErrs {
		messages = append(messages, fmt.Sprintf(`"%s" %s`, e.Field(), formatValidationError(e)))
	}
	return errors.New(strings.Join(messages, "; "))
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf(`must be one of [%s], found "%v"`, strings.ReplaceAll(e.Param(), " ", ", "), e.Value())
	case "gte":
		return fmt.Sprintf(`must not be negative, found "%v"`, e.Value())
	case "params_type":
		return fmt.Sprintf(`has unsupported type "%s"`, e.Param())
	default:
		return "is invalid"
	}
}

// configFieldName converts the Go field name to the config field name, e.g. "ResponseType" -> "responseType".
func configFieldName(name string) string {
	switch name {
	case "URL":
		return request.FieldURL
	case "BaseURL":
		return request.FieldBaseURL
	default:
		return strings.ToLower(name[:1]) + name[1:]
	}
}
