package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the JSON type of a tool argument.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
)

// SchemaField describes one tool argument. Enum restricts string values.
type SchemaField struct {
	Name        string
	Type        FieldType
	Description string
	Enum        []string
	Required    bool
	Fields      []SchemaField
}

// ToolSchema is the provider-neutral description of a structured call.
type ToolSchema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// JSONSchema renders the schema as a JSON Schema object for provider SDKs.
func (s ToolSchema) JSONSchema() map[string]any {
	return objectSchema(s.Fields)
}

func objectSchema(fields []SchemaField) map[string]any {
	props := make(map[string]any, len(fields))
	required := []string{}
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

func fieldSchema(f SchemaField) map[string]any {
	if f.Type == FieldObject {
		out := objectSchema(f.Fields)
		if f.Description != "" {
			out["description"] = f.Description
		}
		return out
	}
	out := map[string]any{"type": string(f.Type)}
	if f.Description != "" {
		out["description"] = f.Description
	}
	if len(f.Enum) > 0 {
		out["enum"] = f.Enum
	}
	return out
}

// decodeToolCall validates the structured answer against schema and unmarshals
// it into out. Providers without native tool calls may answer with a JSON
// object in the text, which is accepted as the arguments.
func decodeToolCall(resp LLMResponse, schema ToolSchema, out any) error {
	var raw json.RawMessage
	switch {
	case resp.ToolCall != nil:
		if resp.ToolCall.Name != "" && resp.ToolCall.Name != schema.Name {
			return fmt.Errorf("%w: expected tool %q, got %q", ErrDecode, schema.Name, resp.ToolCall.Name)
		}
		raw = resp.ToolCall.Arguments
	default:
		obj, ok := extractJSONObject(resp.Text)
		if !ok {
			return fmt.Errorf("%w: no %s call in response", ErrDecode, schema.Name)
		}
		raw = json.RawMessage(obj)
	}

	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := validateArgs(schema.Fields, args, ""); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func validateArgs(fields []SchemaField, args map[string]any, prefix string) error {
	for _, f := range fields {
		path := prefix + f.Name
		value, present := args[f.Name]
		if !present || value == nil {
			if f.Required {
				return fmt.Errorf("%w: missing required field %q", ErrDecode, path)
			}
			continue
		}
		switch f.Type {
		case FieldString:
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: field %q must be a string", ErrDecode, path)
			}
			if len(f.Enum) > 0 && !containsString(f.Enum, s) {
				return fmt.Errorf("%w: field %q has unexpected value %q", ErrDecode, path, s)
			}
		case FieldBoolean:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("%w: field %q must be a boolean", ErrDecode, path)
			}
		case FieldObject:
			nested, ok := value.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: field %q must be an object", ErrDecode, path)
			}
			if err := validateArgs(f.Fields, nested, path+"."); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractJSONObject pulls the outermost {...} out of free text.
func extractJSONObject(text string) (string, bool) {
	content := strings.TrimSpace(text)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return content[start : end+1], true
}

func containsString(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
