package llm

import "sort"

// Message represents a chat message in the OpenAI-compatible API format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Schema describes the expected JSON output structure for structured chat
// responses. It is a small subset of JSON Schema: enough to express the
// object/array/scalar shapes the service constrains replies to.
type Schema struct {
	Type                 string             `json:"type"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	Required             []string           `json:"required,omitempty"`
	AdditionalProperties *bool              `json:"additionalProperties,omitempty"`
	MinItems             *int               `json:"minItems,omitempty"`
	MaxItems             *int               `json:"maxItems,omitempty"`
	Minimum              *int               `json:"minimum,omitempty"`
	Maximum              *int               `json:"maximum,omitempty"`
}

// Object returns an object schema with the given properties, all required and
// no extra fields allowed. Structured-output strict mode needs both.
func Object(properties map[string]*Schema) *Schema {
	closed := false
	required := make([]string, 0, len(properties))
	for name := range properties {
		required = append(required, name)
	}
	// Deterministic ordering keeps serialized schemas stable across runs.
	sort.Strings(required)
	return &Schema{
		Type:                 "object",
		Properties:           properties,
		Required:             required,
		AdditionalProperties: &closed,
	}
}

// Array returns an array schema with exactly count items of the given shape.
func Array(items *Schema, count int) *Schema {
	n := count
	return &Schema{
		Type:     "array",
		Items:    items,
		MinItems: &n,
		MaxItems: &n,
	}
}

// String returns a string schema with a description.
func String(description string) *Schema {
	return &Schema{Type: "string", Description: description}
}

// IntRange returns an integer schema constrained to [min, max].
func IntRange(description string, min, max int) *Schema {
	lo, hi := min, max
	return &Schema{Type: "integer", Description: description, Minimum: &lo, Maximum: &hi}
}
