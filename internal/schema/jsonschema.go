package schema

import "encoding/json"

// Bound returns a pointer to f, for use as a Minimum or Maximum.
func Bound(f float64) *float64 { return &f }

// MarshalJSON renders the object as a JSON Schema document, which is the
// wire shape MCP clients expect in tools/list.
func (o Object) MarshalJSON() ([]byte, error) {
	props := make(map[string]any, len(o.Properties))
	for name, p := range o.Properties {
		props[name] = p.jsonSchema()
	}

	doc := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(o.Required) > 0 {
		doc["required"] = o.Required
	}
	if len(o.AtLeastOne) > 0 {
		anyOf := make([]any, len(o.AtLeastOne))
		for i, name := range o.AtLeastOne {
			anyOf[i] = map[string]any{"required": []string{name}}
		}
		doc["anyOf"] = anyOf
	}
	return json.Marshal(doc)
}

func (p Property) jsonSchema() map[string]any {
	doc := map[string]any{"type": string(p.Type)}
	if p.Description != "" {
		doc["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		doc["enum"] = p.Enum
	}
	if p.Minimum != nil {
		doc["minimum"] = *p.Minimum
	}
	if p.Maximum != nil {
		doc["maximum"] = *p.Maximum
	}
	return doc
}
