package config

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateDocument validates raw provider output against DocumentSchema
func ValidateDocument(raw []byte) error {
	return validate(DocumentSchema, gojsonschema.NewBytesLoader(raw), "provider document")
}

// ValidateSettings validates decoded settings against SettingsSchema
func ValidateSettings(settings *Settings) error {
	return validate(SettingsSchema, gojsonschema.NewGoLoader(settings), "settings")
}

func validate(schema string, document gojsonschema.JSONLoader, what string) error {
	schemaLoader := gojsonschema.NewStringLoader(schema)

	result, err := gojsonschema.Validate(schemaLoader, document)
	if err != nil {
		return fmt.Errorf("failed to validate %s: %w", what, err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return fmt.Errorf("%s is not valid: %s", what, strings.Join(details, "; "))
	}

	return nil
}
