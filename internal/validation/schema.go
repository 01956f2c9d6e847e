package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names
const (
	SchemaUser         = "user"
	SchemaProject      = "project"
	SchemaCapabilities = "capabilities"
	SchemaPreferences  = "preferences"
)

var stringList = map[string]interface{}{
	"type":  "array",
	"items": map[string]interface{}{"type": "string"},
}

// capabilities and preferences are open documents: unknown keys are kept,
// known keys must have the right shape
var capabilitiesSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"skills":         stringList,
		"industries":     stringList,
		"requiredSkills": stringList,
		"domain":         map[string]interface{}{"type": "string"},
		"focus":          stringList,
	},
	"additionalProperties": true,
}

var preferencesSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"teamSize":  map[string]interface{}{"type": "string"},
		"workStyle": map[string]interface{}{"type": "string"},
	},
	"additionalProperties": true,
}

var schemas = map[string]map[string]interface{}{
	SchemaCapabilities: capabilitiesSchema,
	SchemaPreferences:  preferencesSchema,
	SchemaUser: {
		"type":     "object",
		"required": []interface{}{"name", "email"},
		"properties": map[string]interface{}{
			"name":        map[string]interface{}{"type": "string"},
			"email":       map[string]interface{}{"type": "string"},
			"role":        map[string]interface{}{"type": "string"},
			"skills":      stringList,
			"industries":  stringList,
			"preferences": preferencesSchema,
		},
	},
	SchemaProject: {
		"type":     "object",
		"required": []interface{}{"name"},
		"properties": map[string]interface{}{
			"name":            map[string]interface{}{"type": "string"},
			"description":     map[string]interface{}{"type": "string"},
			"requirementsDoc": map[string]interface{}{"type": "string"},
			"agentName":       map[string]interface{}{"type": "string"},
			"capabilities":    capabilitiesSchema,
		},
	},
}

// Error lists every schema violation found in a document
type Error struct {
	Schema string
	Issues []string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s document is invalid: %s", e.Schema, strings.Join(e.Issues, "; "))
}

// ValidateJSON checks a raw JSON document against a named schema.
// It returns *Error when the document does not conform.
func ValidateJSON(schema string, doc []byte) error {
	s, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema: %s", schema)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(s), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return &Error{Schema: schema, Issues: []string{err.Error()}}
	}
	return collect(schema, result)
}

// ValidateDocument checks a decoded document against a named schema
func ValidateDocument(schema string, doc interface{}) error {
	s, ok := schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema: %s", schema)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(s), gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return collect(schema, result)
}

func collect(schema string, result *gojsonschema.Result) error {
	if result.Valid() {
		return nil
	}
	issues := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		issues[i] = desc.String()
	}
	return &Error{Schema: schema, Issues: issues}
}
