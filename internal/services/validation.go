package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/obrafin-api/internal/apperrors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Compare decimals with the numeric tags (gt, gte, lte).
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// Report json names rather than Go field names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// validateInput runs the struct tags and converts failures to a Validation error.
func validateInput(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.ErrValidation.Wrap(err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
		}
	}
	return apperrors.Validation("%s", strings.Join(msgs, "; "))
}

// requireOperator rejects anonymous mutations.
func requireOperator(operatorID string) error {
	if strings.TrimSpace(operatorID) == "" {
		return apperrors.Validation("operator id is required")
	}
	return nil
}

// requireCents rejects amounts with more than two decimal places.
func requireCents(field string, d decimal.Decimal) error {
	if !d.Equal(d.Round(2)) {
		return apperrors.Validation("%s must have at most two decimal places", field)
	}
	return nil
}
