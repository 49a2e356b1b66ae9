package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/turtacn/sharedcookie/pkg/constants"
	"github.com/turtacn/sharedcookie/pkg/errors"
)

var defaultValidator *validator.Validate

func init() {
	defaultValidator = validator.New()
	_ = defaultValidator.RegisterValidation("keyid", validateKeyID)
}

// Validator returns the shared validator instance.
func Validator() *validator.Validate {
	return defaultValidator
}

// ValidateStruct validates a struct using the default validator.
// Field failures are reported as invalid_config metadata keyed by snake_case field name.
func ValidateStruct(s interface{}) error {
	err := defaultValidator.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.ErrInvalidConfig("struct", err.Error())
	}
	first := validationErrors[0]
	authErr := errors.ErrInvalidConfig(toSnakeCase(first.Field()), formatValidationError(first))
	for _, fe := range validationErrors[1:] {
		authErr.WithMetadata(toSnakeCase(fe.Field()), formatValidationError(fe))
	}
	return authErr
}

// validateKeyID accepts canonical UUID key identifiers.
func validateKeyID(fl validator.FieldLevel) bool {
	_, err := uuid.Parse(fl.Field().String())
	return err == nil
}

// formatValidationError creates a user-friendly error message for a validation error.
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "keyid":
		return "must be a valid key id"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "min", "gte", "gt":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte", "lt":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed on the '%s' tag", fe.Tag())
	}
}

var (
	matchFirstCap = regexp.MustCompile("(.)([A-Z][a-z]+)")
	matchAllCap   = regexp.MustCompile("([a-z0-9])([A-Z])")
)

// toSnakeCase converts a string from CamelCase to snake_case.
func toSnakeCase(str string) string {
	snake := matchFirstCap.ReplaceAllString(str, "${1}_${2}")
	snake = matchAllCap.ReplaceAllString(snake, "${1}_${2}")
	return strings.ToLower(snake)
}

// ValidateNotEmpty checks if a string is not empty.
func ValidateNotEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// ValidateEmail checks if a string is a valid email address.
func ValidateEmail(email string) bool {
	if email == "" || len(email) > constants.MaxEmailLength {
		return false
	}
	return defaultValidator.Var(email, "required,email") == nil
}
