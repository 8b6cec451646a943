package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/clinic-workflow/internal/service/schedule"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var messages = map[string]string{
	"required": "field is required",
	"email":    "invalid email format",
	"min":      "value is too short",
	"max":      "value is too long",
	"hhmm":     "must be a time of day as HH:MM",
	"weekday":  "must be a weekday between 0 (Sunday) and 6",
	"datetime": "must be a date as YYYY-MM-DD",
	"oneof":    "value is not one of the allowed options",
}

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator and
// reports fields by their json names. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}

		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		if err = v.RegisterValidation("hhmm", validateClock); err != nil {
			return
		}
		err = v.RegisterValidation("weekday", validateWeekday)
	})
	return err
}

func validateClock(fl validator.FieldLevel) bool {
	return schedule.ValidClock(fl.Field().String())
}

func validateWeekday(fl validator.FieldLevel) bool {
	day := fl.Field().Int()
	return day >= 0 && day <= 6
}

// ValidationErrors flattens a binding error into per-field messages.
// A body that failed to decode yields a single entry.
func ValidationErrors(err error) []ValidationError {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return []ValidationError{{Field: "body", Message: err.Error()}}
	}

	out := make([]ValidationError, 0, len(errs))
	for _, e := range errs {
		msg := messages[e.Tag()]
		if msg == "" {
			msg = fmt.Sprintf("failed on %s", e.Tag())
		}
		out = append(out, ValidationError{Field: e.Field(), Message: msg})
	}
	return out
}
