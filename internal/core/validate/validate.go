// Package validate runs struct-tag validation and maps failures onto
// apperror validation errors.
package validate

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"estateledger/internal/core/apperror"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// get returns the shared validator, configured once.
func get() *validator.Validate {
	once.Do(func() {
		v := validator.New()

		// Report json field names instead of Go field names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		// Decimals compare as float64 so gt/gte/lte tags work on money and
		// percentages; the bounds used are small integers, exact in float64.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				f, _ := d.Float64()
				return f
			}
			return nil
		}, decimal.Decimal{})

		// Zero UUIDs count as missing for `required`.
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			if u, ok := field.Interface().(uuid.UUID); ok {
				if u == uuid.Nil {
					return ""
				}
				return u.String()
			}
			return nil
		}, uuid.UUID{})

		instance = v
	})
	return instance
}

// Struct validates s and returns the first failure as an AppError.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperror.NewValidation(err.Error())
	}

	first := verrs[0]
	return apperror.NewValidation(message(first)).
		WithDetail("field", first.Field()).
		WithDetail("rule", first.Tag())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "gte", "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "lte", "max":
		return fe.Field() + " must be at most " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "nefield":
		return fe.Field() + " must differ from " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
