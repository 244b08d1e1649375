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
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their YAML names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks cfg and returns a ConfigurationErrorCollection describing
// every invalid field, or nil.
func Validate(cfg OperatorConfig, filePath string) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	collection := &ConfigurationErrorCollection{}
	for _, fe := range fieldErrs {
		collection.Add(ConfigurationError{
			FilePath:    filePath,
			Field:       fieldPath(fe.Namespace()),
			ErrorType:   ErrorTypeValidation,
			Message:     describe(fe),
			Suggestions: suggest(fe),
		})
	}
	return collection
}

// fieldPath strips the root struct name: OperatorConfig.workload.service -> workload.service
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	case "startswith":
		return fmt.Sprintf("must start with %q", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "ip":
		return fmt.Sprintf("must be an IP address, got %q", fe.Value())
	case "hostname_port":
		return fmt.Sprintf("must be host:port, got %q", fe.Value())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

func suggest(fe validator.FieldError) []string {
	switch fe.Tag() {
	case "required_if":
		return []string{fmt.Sprintf("set %s for the selected supervisor type", fieldPath(fe.Namespace()))}
	case "startswith":
		return []string{"use an absolute path inside the workload container"}
	case "hostname_port":
		return []string{"for example :9090 or 127.0.0.1:9090"}
	}
	return nil
}
