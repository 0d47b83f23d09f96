package content

import (
	"encoding/json"
	"fmt"

	"github.com/ndtools/mcp-client/pkg/errors"
)

// LoadJSON reads rel and decodes it as a JSON object
func LoadJSON(r Reader, rel string) (map[string]interface{}, error) {
	var doc map[string]interface{}
	if err := LoadJSONInto(r, rel, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, malformed(rel, fmt.Errorf("document is null"))
	}
	return doc, nil
}

// LoadJSONInto reads rel and decodes it into v
func LoadJSONInto(r Reader, rel string, v interface{}) error {
	data, err := r.Bytes(rel)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return malformed(rel, err)
	}
	return nil
}

func malformed(rel string, cause error) errors.MCPError {
	return errors.WrapError(cause, errors.CodeParseError,
		fmt.Sprintf("Malformed JSON in %s: %s", rel, cause.Error()),
		errors.CategoryProtocol, errors.SeverityError)
}
