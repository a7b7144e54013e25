package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/asaskevich/govalidator"
	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema is a compiled JSON schema that can validate many documents.
type Schema struct {
	schema *gojsonschema.Schema
}

// CompileSchema parses a JSON schema document once.
func CompileSchema(schemaJSON string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Schema{schema: s}, nil
}

// MustCompileSchema is CompileSchema for package-level schema literals.
func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a decoded document (map, struct or slice) against the schema.
func (s *Schema) Validate(doc interface{}) (*ValidationResult, error) {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// GetErrorMessages flattens the errors into "field: message" strings.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

var (
	legalIDPattern = regexp.MustCompile(`^\d{13}$`)
	phonePattern   = regexp.MustCompile(`^\+?[0-9]{7,15}$`)
)

// ValidateLegalID reports whether id is a 13-digit national identity number.
func ValidateLegalID(id string) bool {
	return legalIDPattern.MatchString(id)
}

func ValidateEmail(email string) bool {
	return govalidator.IsEmail(email)
}

// ValidatePhone accepts E.164-like numbers, optionally behind a "whatsapp:" prefix.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(strings.TrimPrefix(phone, "whatsapp:"))
}

func ValidateURL(url string) bool {
	return govalidator.IsURL(url)
}
