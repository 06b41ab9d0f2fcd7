package couchkit

import (
	"context"
	"strings"

	"github.com/qri-io/jsonschema"
)

// designDocSchema is what a design document must look like before it is
// published: a views object whose members each carry a non-empty map body.
var designDocSchema = jsonschema.Must(`{
	"type": "object",
	"required": ["views"],
	"properties": {
		"views": {
			"type": "object",
			"additionalProperties": {
				"type": "object",
				"required": ["map"],
				"properties": {
					"map": {"type": "string", "minLength": 1},
					"reduce": {"type": "string"}
				}
			}
		}
	}
}`)

// validateDesignDoc checks a computed design document against the schema.
// It returns the violation messages, empty when the document is valid.
func validateDesignDoc(data []byte) []string {
	keyErrors, err := designDocSchema.ValidateBytes(context.Background(), data)
	if err != nil {
		return []string{err.Error()}
	}
	if len(keyErrors) == 0 {
		return nil
	}
	msgs := make([]string, len(keyErrors))
	for i, ke := range keyErrors {
		msgs[i] = strings.TrimSpace(ke.Message)
	}
	return msgs
}
