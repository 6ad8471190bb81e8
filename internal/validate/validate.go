// Package validate wraps go-playground/validator with JSON field names and
// the inventory-specific rules used by request DTOs.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/tagdesk/tagdesk/internal/model"
)

var (
	once     sync.Once
	validate *validator.Validate
)

var serialPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{3,63}$`)

// FieldError is a single field validation failure.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

// Errors collects field validation failures.
type Errors []FieldError

func (v Errors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	parts := make([]string, len(v))
	for i, err := range v {
		if err.Param != "" {
			parts[i] = err.Field + " failed on " + err.Tag + "=" + err.Param
		} else {
			parts[i] = err.Field + " failed on " + err.Tag
		}
	}
	return strings.Join(parts, "; ")
}

// Struct validates s against its `validate` tags. Failures are returned as
// Errors.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		failures := make(Errors, 0, len(ve))
		for _, fe := range ve {
			failures = append(failures, FieldError{
				Field: fe.Field(),
				Tag:   fe.Tag(),
				Param: fe.Param(),
			})
		}
		return failures
	}

	return err
}

// Var validates a single value against a tag expression.
func Var(field any, tag string) error {
	return get().Var(field, tag)
}

// Serial reports whether s looks like a FasTag serial number.
func Serial(s string) bool {
	return serialPattern.MatchString(s)
}

func get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("json")
			if name == "" {
				return fld.Name
			}

			if comma := strings.Index(name, ","); comma != -1 {
				name = name[:comma]
			}

			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		must(validate.RegisterValidation("serial", func(fl validator.FieldLevel) bool {
			return Serial(fl.Field().String())
		}))
		must(validate.RegisterValidation("allocstatus", func(fl validator.FieldLevel) bool {
			return model.AllocationStatus(fl.Field().String()).IsValid()
		}))
		must(validate.RegisterValidation("role", func(fl validator.FieldLevel) bool {
			return model.IsValidRole(fl.Field().String())
		}))
		must(validate.RegisterValidation("scope", func(fl validator.FieldLevel) bool {
			return model.IsValidScope(fl.Field().String())
		}))
	})
	return validate
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
