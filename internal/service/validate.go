package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/evidenca/internal/model"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// Validate checks struct tags on v. Failures wrap model.ErrValidation and
// name every offending field.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("%w: %w", model.ErrValidation, err)
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fe.Field()+" "+validationMessage(fe))
	}
	sort.Strings(msgs)
	return fmt.Errorf("%w: %s", model.ErrValidation, strings.Join(msgs, "; "))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_without":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	}
	return "is invalid"
}
