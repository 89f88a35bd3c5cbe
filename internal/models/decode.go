package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// DecodeError reports a backend payload that does not match the expected
// shape for an operation.
type DecodeError struct {
	Op    string
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("decode %s: field %s: %v", e.Op, e.Field, e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

var (
	udiPattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://document/[A-Za-z0-9-]+$`)
	validate   = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return validTimeHHmm(fl.Field().String())
	})
	_ = v.RegisterValidation("dateiso", func(fl validator.FieldLevel) bool {
		_, err := time.Parse("2006-01-02", fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("udi", func(fl validator.FieldLevel) bool {
		return udiPattern.MatchString(fl.Field().String())
	})
	return v
}

// validTimeHHmm mirrors calendar.ValidTimeHHmm; models sits below calendar
// in the import graph.
func validTimeHHmm(s string) bool {
	t, err := time.Parse("15:04", s)
	return err == nil && t.Format("15:04") == s
}

// Decode unmarshals data into T and validates it against T's schema tags.
func Decode[T any](op string, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, &DecodeError{Op: op, Err: err}
	}
	if n, ok := any(&v).(normalizer); ok {
		n.normalize()
	}
	if err := validateValue(op, "", v); err != nil {
		return v, err
	}
	return v, nil
}

// DecodeList unmarshals a JSON array of T, validating every element.
// A JSON null decodes to an empty list.
func DecodeList[T any](op string, data []byte) ([]T, error) {
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	for i := range list {
		if n, ok := any(&list[i]).(normalizer); ok {
			n.normalize()
		}
		if err := validateValue(op, fmt.Sprintf("[%d].", i), list[i]); err != nil {
			return nil, err
		}
	}
	if list == nil {
		list = []T{}
	}
	return list, nil
}

// Validate checks v against its schema tags.
func Validate(op string, v any) error {
	return validateValue(op, "", v)
}

// normalizer is implemented by payloads that clean up backend quirks
// (empty strings standing in for null, etc.) before validation.
type normalizer interface {
	normalize()
}

func validateValue(op, prefix string, v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return &DecodeError{Op: op, Err: errors.New("empty payload")}
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		return &DecodeError{
			Op:    op,
			Field: prefix + field,
			Err:   fmt.Errorf("failed %q check (value %v)", fe.Tag(), fe.Value()),
		}
	}
	return &DecodeError{Op: op, Err: err}
}
