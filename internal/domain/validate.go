package domain

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var draftValidator = newDraftValidator()

func newDraftValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the listing field rules every write path shares. The
// result is nil or a *ValidationError.
func (d ListingDraft) Validate() error {
	ve := &ValidationError{}
	if math.IsNaN(d.PricePerNight) || math.IsInf(d.PricePerNight, 0) {
		ve.Add("pricePerNight", "must be a number")
	}
	if err := draftValidator.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			field, _, _ := strings.Cut(fe.Field(), "[")
			if !ve.Has(field) {
				ve.Add(field, fieldMessage(fe))
			}
		}
	}
	return ve.Err()
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.String && strings.Contains(fe.Field(), "[") {
			return "must not contain empty values"
		}
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " value"
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	}
	return "is invalid"
}
