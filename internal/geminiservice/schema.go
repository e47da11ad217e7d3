package geminiservice

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	This is the core structure that tells Gemini how to format its JSON response,
	and that we re-check locally once the response comes back.
=================================================================================*/

// Schema declares the shape of a value exchanged with the model.
// It maps to the "Controlled Generation" (Structured Output) schema of the
// Gemini REST API, and doubles as our local validator: every response is
// checked against the same declaration that was sent with the request.
type Schema struct {
	// Type defines the data type (e.g., "OBJECT", "ARRAY", "STRING", "INTEGER").
	Type string `json:"type"`

	// Format specifies data format, primarily used for "enum" validation.
	Format string `json:"format,omitempty"`

	// Description explains the field's purpose to the AI, helping it generate better content.
	Description string `json:"description,omitempty"`

	// Properties maps field names to their child schemas (used when Type is "OBJECT").
	Properties map[string]*Schema `json:"properties,omitempty"`

	// Items defines the schema for elements within an array (used when Type is "ARRAY").
	Items *Schema `json:"items,omitempty"`

	// Required lists the field names that the AI MUST include in the response.
	Required []string `json:"required,omitempty"`

	// Enum lists valid specific string values for fields with restricted options.
	Enum []string `json:"enum,omitempty"`

	// Minimum and Maximum bound numeric values (used for input validation,
	// e.g. a patient age between 1 and 120).
	Minimum *float64 `json:"minimum,omitempty"`
	Maximum *float64 `json:"maximum,omitempty"`

	// MinLength rejects strings shorter than this many characters.
	MinLength int `json:"minLength,omitempty"`

	// Default is applied locally when the model omits an optional field.
	// It is repair metadata for this side of the wire and is never
	// serialized into the request payload.
	Default any `json:"-"`
}

// Schema type constants, matching the Gemini structured-output vocabulary.
const (
	TypeObject  = "OBJECT"
	TypeArray   = "ARRAY"
	TypeString  = "STRING"
	TypeNumber  = "NUMBER"
	TypeInteger = "INTEGER"
	TypeBoolean = "BOOLEAN"
)

// Conform validates a decoded JSON value against the schema and returns the
// (possibly repaired) value:
//   - required fields must be present, non-null and of the declared shape;
//   - optional fields that are absent but declare a Default are filled in;
//   - optional fields without a Default stay absent — values are never invented;
//   - array elements that fail the item schema are dropped rather than
//     failing the whole response, so a list entry missing a mandatory
//     sub-field is excluded instead of guessed at.
func (s *Schema) Conform(v any) (any, error) {
	return s.conform(v, "$")
}

func (s *Schema) conform(v any, path string) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("%s: value is null", path)
	}

	switch s.Type {
	case TypeObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected object, got %T", path, v)
		}
		for name, prop := range s.Properties {
			fieldPath := path + "." + name
			val, present := obj[name]
			if !present || val == nil {
				if s.isRequired(name) {
					return nil, fmt.Errorf("%s: required field missing", fieldPath)
				}
				if prop.Default != nil {
					obj[name] = prop.Default
					log.Debug().Str("field", fieldPath).Msg("Applied declared default for omitted field")
				} else {
					delete(obj, name) // normalize explicit nulls away
				}
				continue
			}
			fixed, err := prop.conform(val, fieldPath)
			if err != nil {
				if s.isRequired(name) {
					return nil, err
				}
				// Optional field of the wrong shape: fall back to the
				// declared default, or drop it entirely.
				if prop.Default != nil {
					obj[name] = prop.Default
					continue
				}
				delete(obj, name)
				continue
			}
			obj[name] = fixed
		}
		return obj, nil

	case TypeArray:
		arr, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%s: expected array, got %T", path, v)
		}
		kept := make([]any, 0, len(arr))
		for i, item := range arr {
			fixed, err := s.Items.conform(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("Dropping array element failing item schema")
				continue
			}
			kept = append(kept, fixed)
		}
		return kept, nil

	case TypeString:
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%s: expected string, got %T", path, v)
		}
		if len(s.Enum) > 0 && !containsString(s.Enum, str) {
			return nil, fmt.Errorf("%s: value %q not in enum", path, str)
		}
		if s.MinLength > 0 && len(str) < s.MinLength {
			return nil, fmt.Errorf("%s: string shorter than %d characters", path, s.MinLength)
		}
		return str, nil

	case TypeNumber, TypeInteger:
		num, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%s: expected number, got %T", path, v)
		}
		if s.Minimum != nil && num < *s.Minimum {
			return nil, fmt.Errorf("%s: %v below minimum %v", path, num, *s.Minimum)
		}
		if s.Maximum != nil && num > *s.Maximum {
			return nil, fmt.Errorf("%s: %v above maximum %v", path, num, *s.Maximum)
		}
		return v, nil

	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return nil, fmt.Errorf("%s: expected boolean, got %T", path, v)
		}
		return v, nil

	default:
		return nil, fmt.Errorf("%s: unknown schema type %q", path, s.Type)
	}
}

func (s *Schema) isRequired(name string) bool {
	return containsString(s.Required, name)
}

func containsString(list []string, item string) bool {
	for _, s := range list {
		if s == item {
			return true
		}
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
