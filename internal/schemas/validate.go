// Package schemas provides JSON Schema validation for structured data coming
// back from the automation driver. Driver extract output is never trusted
// until it validates against the expected raw-post shape.
package schemas

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// RawPostListSchema is the JSON Schema the driver's extract output must
// satisfy before it is decoded into raw posts.
const RawPostListSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["text", "author_handle"],
    "properties": {
      "text": {"type": "string"},
      "author_handle": {"type": "string"},
      "display_name": {"type": "string"},
      "likes": {"type": "integer", "minimum": 0},
      "replies": {"type": "integer", "minimum": 0},
      "reposts": {"type": "integer", "minimum": 0},
      "views": {"type": "integer", "minimum": 0},
      "thread_url": {"type": "string"}
    },
    "additionalProperties": true
  }
}`

// FieldError represents a single validation error at a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError represents a schema validation failure with field paths.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("validation failed:\n")
	for i, err := range ve.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	return sb.String()
}

// ValidateAgainst validates a JSON document against a JSON Schema, both given
// as strings. Returns a *ValidationError when the document does not conform.
func ValidateAgainst(schema, document string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)
	documentLoader := gojsonschema.NewStringLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation could not run: %w", err)
	}

	if result.Valid() {
		return nil
	}

	ve := &ValidationError{}
	for _, desc := range result.Errors() {
		ve.Errors = append(ve.Errors, FieldError{
			Field:   desc.Field(),
			Message: desc.Description(),
		})
	}
	return ve
}

// ValidateRawPosts validates driver extract output against the raw-post list
// schema.
func ValidateRawPosts(document string) error {
	return ValidateAgainst(RawPostListSchema, document)
}
