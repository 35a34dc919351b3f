package engine

import (
	"encoding/json"
	"fmt"
)

// SettingDef is one entry of a schema's settings array. Only the fields the
// renderer needs are decoded; everything else (labels for the editor UI,
// info text) stays in the raw JSON.
type SettingDef struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Label   string      `json:"label"`
	Default interface{} `json:"default"`
}

// BlockDef describes one block type a section accepts.
type BlockDef struct {
	Type     string       `json:"type"`
	Name     string       `json:"name"`
	Limit    int          `json:"limit"`
	Settings []SettingDef `json:"settings"`
}

// SectionSchema is the decoded {% schema %} body of a section file.
type SectionSchema struct {
	Name      string                   `json:"name"`
	Tag       string                   `json:"tag"`
	Class     string                   `json:"class"`
	MaxBlocks int                      `json:"max_blocks"`
	Settings  []SettingDef             `json:"settings"`
	Blocks    []BlockDef               `json:"blocks"`
	Presets   []map[string]interface{} `json:"presets"`
}

// extractSchema finds the schema tag among a section's top-level nodes and
// decodes it. Sections without a schema tag get an empty schema, which is
// valid: they simply have no settings.
func extractSchema(nodes []Node) (*SectionSchema, error) {
	var body string
	found := false
	for _, node := range nodes {
		if s, ok := node.(*SchemaNode); ok {
			body = s.JSON
			found = true
			break
		}
	}
	if !found {
		return &SectionSchema{}, nil
	}
	var schema SectionSchema
	if err := json.Unmarshal([]byte(body), &schema); err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	return &schema, nil
}

// settingDefaults builds the base settings map from the schema's declared
// defaults. Settings with no default are present with a nil value so lookups
// resolve instead of falling through to outer scopes.
func settingDefaults(defs []SettingDef) map[string]interface{} {
	out := make(map[string]interface{}, len(defs))
	for _, def := range defs {
		out[def.ID] = def.Default
	}
	return out
}

func (s *SectionSchema) blockDefaults(blockType string) map[string]interface{} {
	for _, def := range s.Blocks {
		if def.Type == blockType {
			return settingDefaults(def.Settings)
		}
	}
	return map[string]interface{}{}
}

// mergeSettings layers instance overrides on top of schema defaults. The
// defaults map is never mutated.
func mergeSettings(defaults, overrides map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(defaults)+len(overrides))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}
