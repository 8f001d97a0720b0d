// Package validation checks API request bodies against JSON schemas before
// they are decoded into domain models.
package validation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var triggerSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"user_id":           map[string]interface{}{"type": "string"},
		"emergency_type":    map[string]interface{}{"type": "string", "enum": []string{"MEDICAL", "FIRE", "SAFETY", "FALL", "OTHER"}},
		"location":          locationSchema,
		"initial_message":   map[string]interface{}{"type": "string"},
		"countdown_seconds": map[string]interface{}{"type": "integer", "minimum": 1},
	},
	"required": []string{"user_id", "emergency_type", "location"},
}

var autoTriggerSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"user_id":        map[string]interface{}{"type": "string"},
		"emergency_type": map[string]interface{}{"type": "string", "enum": []string{"MEDICAL", "FIRE", "SAFETY", "FALL", "OTHER"}},
		"location":       locationSchema,
		"confidence":     map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
	},
	"required": []string{"user_id", "emergency_type", "location"},
}

var acknowledgeSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"contact_id":   map[string]interface{}{"type": "string"},
		"contact_name": map[string]interface{}{"type": "string", "minLength": 1},
		"location":     locationSchema,
		"message":      map[string]interface{}{"type": "string"},
	},
	"required": []string{"contact_id", "contact_name"},
}

var resolveSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"user_id":          map[string]interface{}{"type": "string"},
		"resolution_notes": map[string]interface{}{"type": "string"},
	},
	"required": []string{"user_id"},
}

var cancelSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"user_id": map[string]interface{}{"type": "string"},
		"reason":  map[string]interface{}{"type": "string"},
	},
	"required": []string{"user_id"},
}

// Location is accepted as opaque structured data; only well-formedness is
// checked here.
var locationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"latitude":  map[string]interface{}{"type": "number", "minimum": -90, "maximum": 90},
		"longitude": map[string]interface{}{"type": "number", "minimum": -180, "maximum": 180},
		"accuracy":  map[string]interface{}{"type": "number", "minimum": 0},
	},
	"required": []string{"latitude", "longitude"},
}

var schemas = map[string]map[string]interface{}{
	"trigger":      triggerSchema,
	"auto-trigger": autoTriggerSchema,
	"acknowledge":  acknowledgeSchema,
	"resolve":      resolveSchema,
	"cancel":       cancelSchema,
}

// ValidateRequest validates a raw JSON request body against the named
// operation schema.
func ValidateRequest(operation string, body []byte) error {
	schemaMap, ok := schemas[operation]
	if !ok {
		return fmt.Errorf("unknown operation schema: %s", operation)
	}

	schemaLoader := gojsonschema.NewGoLoader(schemaMap)
	documentLoader := gojsonschema.NewBytesLoader(body)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return fmt.Errorf("request validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
