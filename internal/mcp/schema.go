package mcp

import "encoding/json"

// Tool describes an MCP tool and its JSON-schema input
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema InputSchema `json:"inputSchema"`
}

// InputSchema represents JSON schema for tool parameters
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property represents a property in JSON schema
type Property struct {
	Type        string      `json:"type"`
	Description string      `json:"description,omitempty"`
	Items       *Items      `json:"items,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Minimum     *float64    `json:"minimum,omitempty"`
	Maximum     *float64    `json:"maximum,omitempty"`
}

// Items represents array items schema
type Items struct {
	Type string `json:"type"`
}

// Bounds returns a copy of p limited to [min, max]
func (p Property) Bounds(min, max float64) Property {
	p.Minimum = &min
	p.Maximum = &max
	return p
}

// ObjectSchema builds an object schema from properties and required names
func ObjectSchema(props map[string]Property, required ...string) InputSchema {
	if props == nil {
		props = map[string]Property{}
	}
	return InputSchema{Type: "object", Properties: props, Required: required}
}

func (s InputSchema) raw() (json.RawMessage, error) {
	if s.Type == "" {
		s.Type = "object"
	}
	if s.Properties == nil {
		s.Properties = map[string]Property{}
	}
	return json.Marshal(s)
}
