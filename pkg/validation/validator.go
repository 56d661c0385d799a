package validation

import (
	"fmt"
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"github.com/Aidin1998/crowdfund/pkg/errors"
	"github.com/Aidin1998/crowdfund/pkg/models"
)

var (
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

	// numeric(12,2)
	maxMoney = decimal.RequireFromString("9999999999.99")
)

// Validator wraps go-playground/validator with the project's custom tags and
// the HTML sanitizing policies applied to user-supplied text.
type Validator struct {
	validator *validator.Validate
	strict    *bluemonday.Policy
	ugc       *bluemonday.Policy
}

// NewValidator creates a validator with the custom tags registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report JSON names so problem documents match the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	out := &Validator{
		validator: v,
		strict:    bluemonday.StrictPolicy(),
		ugc:       bluemonday.UGCPolicy(),
	}
	out.registerCustomValidators()
	return out
}

func (v *Validator) registerCustomValidators() {
	// lower-case words joined by single hyphens
	v.validator.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsSlug(fl.Field().String())
	})

	v.validator.RegisterValidation("project_status", func(fl validator.FieldLevel) bool {
		return models.ProjectStatus(fl.Field().String()).Valid()
	})

	// positive amount that fits numeric(12,2)
	v.validator.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		d, ok := parseMoney(fl.Field().String())
		return ok && d.IsPositive()
	})

	v.validator.RegisterValidation("money_nonneg", func(fl validator.FieldLevel) bool {
		d, ok := parseMoney(fl.Field().String())
		return ok && !d.IsNegative()
	})
}

func parseMoney(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if d.Exponent() < -2 && !d.Equal(d.Round(2)) {
		return decimal.Decimal{}, false
	}
	return d, d.LessThanOrEqual(maxMoney)
}

// IsSlug reports whether s is a well-formed project slug.
func IsSlug(s string) bool {
	return len(s) <= 255 && slugRegex.MatchString(s)
}

// ValidateStruct validates a struct using its validate tags and returns an
// errors.Invalid carrying one field error per failed rule.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validator.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate %T: %w", s, err)
	}

	fields := make([]errors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, errors.NewFieldError(fe.Tag(), fe.Field(), getErrorMessage(fe)))
	}
	return errors.Invalid.Explain("request validation failed").WithFields(fields)
}

// SanitizeText strips all markup and returns plain text. The strict policy
// escapes what it keeps, so entities are decoded again.
func (v *Validator) SanitizeText(s string) string {
	return strings.TrimSpace(html.UnescapeString(v.strict.Sanitize(s)))
}

// SanitizeHTML keeps safe user-generated markup. Used for long descriptions.
func (v *Validator) SanitizeHTML(s string) string {
	return strings.TrimSpace(v.ugc.Sanitize(s))
}

func getErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters long", fe.Field(), fe.Param())
	case "numeric":
		return fmt.Sprintf("%s must contain digits only", fe.Field())
	case "http_url":
		return fmt.Sprintf("%s must be an http(s) URL", fe.Field())
	case "slug":
		return fmt.Sprintf("%s must contain lower-case letters, digits and single hyphens", fe.Field())
	case "project_status":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), statusList())
	case "money":
		return fmt.Sprintf("%s must be a positive amount with at most 2 decimals", fe.Field())
	case "money_nonneg":
		return fmt.Sprintf("%s must be a non-negative amount with at most 2 decimals", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

func statusList() string {
	names := make([]string, len(models.ProjectStatuses))
	for i, s := range models.ProjectStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
