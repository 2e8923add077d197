// Package process owns process definitions: parsing, validation and the
// single active definition that new instances are created from.
package process

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"opsportal/internal/domain"
)

// Document is the JSON form of a definition as imported and stored.
type Document struct {
	Key     string        `json:"key"`
	Name    string        `json:"name,omitempty"`
	Version int           `json:"version,omitempty"`
	Lanes   []string      `json:"lanes,omitempty"`
	Steps   []domain.Step `json:"steps"`
}

// InvalidDefinitionError reports a definition that cannot be accepted.
type InvalidDefinitionError struct {
	Field   string
	Message string
}

func (e InvalidDefinitionError) Error() string {
	if e.Field == "" {
		return "invalid process definition: " + e.Message
	}
	return fmt.Sprintf("invalid process definition: %s: %s", e.Field, e.Message)
}

var documentSchema = gojsonschema.NewStringLoader(documentSchemaJSON)

// Parse validates raw against the definition schema and the step rules and
// returns the decoded document.
func Parse(raw []byte) (Document, error) {
	result, err := gojsonschema.Validate(documentSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return Document{}, InvalidDefinitionError{Message: err.Error()}
	}
	if !result.Valid() {
		desc := result.Errors()[0]
		field := desc.Field()
		if field == "" {
			field = "(root)"
		}
		return Document{}, InvalidDefinitionError{Field: field, Message: desc.Description()}
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, InvalidDefinitionError{Message: err.Error()}
	}
	if err := doc.Check(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Check enforces the invariants the schema cannot express.
func (d Document) Check() error {
	lanes := map[string]bool{}
	for _, l := range d.Lanes {
		lanes[l] = true
	}
	seen := map[string]bool{}
	for i, s := range d.Steps {
		key := strings.TrimSpace(s.Key)
		if key == "" {
			return InvalidDefinitionError{Field: fmt.Sprintf("steps.%d.key", i), Message: "key is required"}
		}
		if seen[key] {
			return InvalidDefinitionError{Field: fmt.Sprintf("steps.%d.key", i), Message: fmt.Sprintf("duplicate step key %s", key)}
		}
		seen[key] = true
		if len(lanes) > 0 && s.Lane != "" && !lanes[s.Lane] {
			return InvalidDefinitionError{Field: fmt.Sprintf("steps.%d.lane", i), Message: fmt.Sprintf("lane %s is not declared", s.Lane)}
		}
	}
	return nil
}

// fromRecord decodes a stored definition.
func fromRecord(id, key string, version int, name string, active bool, raw, createdAt string) (domain.ProcessDefinition, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return domain.ProcessDefinition{}, fmt.Errorf("decode process definition %s: %w", id, err)
	}
	if err := doc.Check(); err != nil {
		return domain.ProcessDefinition{}, fmt.Errorf("process definition %s: %w", id, err)
	}
	if name == "" {
		name = doc.Name
	}
	steps := doc.Steps
	if steps == nil {
		steps = []domain.Step{}
	}
	lanes := doc.Lanes
	if lanes == nil {
		lanes = []string{}
	}
	return domain.ProcessDefinition{
		ID:        id,
		Key:       key,
		Version:   version,
		Name:      name,
		IsActive:  active,
		Lanes:     lanes,
		Steps:     steps,
		CreatedAt: createdAt,
	}, nil
}

const documentSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["key", "steps"],
  "additionalProperties": false,
  "properties": {
    "key": {"type": "string", "pattern": "^[a-z0-9_.-]+$"},
    "name": {"type": "string"},
    "version": {"type": "integer", "minimum": 1},
    "lanes": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "steps": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["key", "title"],
        "additionalProperties": false,
        "properties": {
          "key": {"type": "string", "minLength": 1},
          "title": {"type": "string", "minLength": 1},
          "lane": {"type": "string"},
          "isManual": {"type": "boolean"},
          "recommendedRole": {"type": "string", "enum": ["admin", "pm", "dev", "qa", "viewer"]}
        }
      }
    }
  }
}`
