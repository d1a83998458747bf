package model

import (
	"regexp"
	"strings"
)

// namePattern restricts environment and config names to ASCII letters,
// digits and dashes.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (ve *ValidationError) checkName(field, name string) {
	switch {
	case name == "":
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: "is required"})
	case !namePattern.MatchString(name):
		ve.Errors = append(ve.Errors, FieldError{Field: field, Message: "may only contain letters, digits and dashes"})
	}
}

// ValidateCreateEnvironment checks a CreateEnvironment request.
// It returns a *ValidationError if any rules fail, or nil if the request is valid.
func ValidateCreateEnvironment(in *CreateEnvironment) error {
	var ve ValidationError
	ve.checkName("name", in.Name)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateCreateConfig checks a CreateConfig request.
func ValidateCreateConfig(in *CreateConfig) error {
	var ve ValidationError
	ve.checkName("name", in.Name)
	if in.Config == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "config", Message: "is required"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
