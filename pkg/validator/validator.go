// Package validator provides struct validation utilities with custom validators.
package validator

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/openctemio/toolstudio/pkg/domain/execution"
	"github.com/openctemio/toolstudio/pkg/domain/shared"
	"github.com/openctemio/toolstudio/pkg/domain/tag"
	"github.com/openctemio/toolstudio/pkg/domain/tool"
	"github.com/openctemio/toolstudio/pkg/domain/toolversion"
)

// Validator wraps the go-playground validator with custom validations.
type Validator struct {
	validate   *validator.Validate
	categories tool.Categories
}

// ValidationError represents a single field validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, e := range v {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return sb.String()
}

// Option configures a Validator.
type Option func(*Validator)

// WithCategories sets the accepted tool categories.
func WithCategories(c tool.Categories) Option {
	return func(v *Validator) {
		v.categories = c
	}
}

// New creates a new Validator with custom validators registered.
func New(opts ...Option) *Validator {
	out := &Validator{categories: tool.NewCategories(nil)}
	for _, opt := range opts {
		opt(out)
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so details line up with the request body.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("slug", validateSlug)
	_ = v.RegisterValidation("semver", validateSemver)
	_ = v.RegisterValidation("hexcolor6", validateHexColor)
	_ = v.RegisterValidation("category", out.validateCategory)
	_ = v.RegisterValidation("handler_language", validateHandlerLanguage)
	_ = v.RegisterValidation("execution_status", validateExecutionStatus)

	out.validate = v
	return out
}

// Categories returns the configured tool categories.
func (v *Validator) Categories() tool.Categories {
	return v.categories
}

// Validate validates a struct and returns ValidationErrors if validation fails.
func (v *Validator) Validate(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return err
	}

	result := make(ValidationErrors, 0, len(validationErrors))
	for _, e := range validationErrors {
		result = append(result, ValidationError{
			Field:   toSnakeCase(e.Field()),
			Message: v.formatErrorMessage(e),
		})
	}
	return result
}

func validateSlug(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true // Let 'required' handle empty values
	}
	return shared.SlugPattern.MatchString(value)
}

func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return toolversion.VersionPattern.MatchString(value)
}

func validateHexColor(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return tag.ColorPattern.MatchString(value)
}

func (v *Validator) validateCategory(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return v.categories.Contains(value)
}

func validateHandlerLanguage(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return toolversion.HandlerLanguage(value).IsValid()
}

func validateExecutionStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return execution.Status(value).IsValid()
}

// formatErrorMessage converts validation errors to human-readable messages.
func (v *Validator) formatErrorMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		if e.Kind() == reflect.Slice || e.Kind() == reflect.Map {
			return fmt.Sprintf("must contain at least %s items", e.Param())
		}
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", e.Param())
		}
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		if e.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", e.Param())
		}
		return fmt.Sprintf("must be at most %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "slug":
		return "must contain only lowercase letters, numbers and hyphens"
	case "semver":
		return "must be a semantic version (e.g., 1.0.0)"
	case "hexcolor6":
		return "must be a hex color (e.g., #3b82f6)"
	case "category":
		return fmt.Sprintf("must be one of: %s", strings.Join(v.categories.List(), ", "))
	case "handler_language":
		return fmt.Sprintf("must be one of: %s", formatLanguages())
	case "execution_status":
		return fmt.Sprintf("must be one of: %s", formatStatuses())
	case "uuid":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed on '%s' validation", e.Tag())
	}
}

// toSnakeCase converts PascalCase/camelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result.WriteByte('_')
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func formatLanguages() string {
	strs := make([]string, len(toolversion.Languages))
	for i, l := range toolversion.Languages {
		strs[i] = string(l)
	}
	return strings.Join(strs, ", ")
}

func formatStatuses() string {
	strs := make([]string, len(execution.AllStatuses))
	for i, s := range execution.AllStatuses {
		strs[i] = string(s)
	}
	return strings.Join(strs, ", ")
}
