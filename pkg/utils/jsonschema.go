package utils

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// reflector derives tool input schemas from argument structs. Fields are
// optional unless tagged jsonschema:"required", and unknown arguments are
// not allowed.
var reflector = &jsonschema.Reflector{
	RequiredFromJSONSchemaTags: true,
	AllowAdditionalProperties:  false,
	DoNotReference:             true,
	Anonymous:                  true,
}

// InputSchema returns the input schema of a tool taking args, a struct or
// pointer to struct. Descriptions come from jsonschema_description tags.
func InputSchema(args interface{}) json.RawMessage {
	schema := reflector.Reflect(args)
	schema.Version = ""
	// A reflected schema holds only strings, bools and nested schemas
	data, _ := json.Marshal(schema)
	return data
}

// BindArguments decodes tool call arguments into the struct out points to
func BindArguments(args map[string]interface{}, out interface{}) error {
	if len(args) == 0 {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// RequiredProperties returns the required argument names of an object
// schema, or nil when it has none or cannot be decoded
func RequiredProperties(schema json.RawMessage) []string {
	var s struct {
		Required []string `json:"required"`
	}
	if len(schema) == 0 || json.Unmarshal(schema, &s) != nil {
		return nil
	}
	return s.Required
}
