package services

import (
	"errors"
	"reflect"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct turns validator output into a single ValidationError naming
// the first offending field by its JSON path.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return validationf("invalid request: %v", err)
	}
	fe := verrs[0]
	field := jsonPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return validationf("%s is required", field)
	case "gt":
		return validationf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return validationf("%s must be at least %s", field, fe.Param())
	case "min":
		return validationf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return validationf("%s must be at most %s characters", field, fe.Param())
	default:
		return validationf("%s is invalid", field)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parsePaymentTime parses the formats gateways and admin clients send. An
// empty string yields def.
func parsePaymentTime(s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.New("invalid payment_time format")
}

// jsonPath drops the root type name and embedded Go struct names from a
// validator namespace, leaving only JSON field names.
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" && unicode.IsUpper(rune(p[0])) {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}
