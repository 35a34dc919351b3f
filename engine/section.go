package engine

import (
	"bytes"
	"fmt"
	"html"
	"log"
)

// SectionInstance is one configured occurrence of a section, as stored in a
// template JSON document or passed in by a caller.
type SectionInstance struct {
	ID         string                    `json:"-"`
	Type       string                    `json:"type"`
	Settings   map[string]interface{}    `json:"settings"`
	Blocks     map[string]*BlockInstance `json:"blocks"`
	BlockOrder []string                  `json:"block_order"`
	Disabled   bool                      `json:"disabled"`
}

// BlockInstance is one configured block inside a section instance.
type BlockInstance struct {
	Type     string                 `json:"type"`
	Settings map[string]interface{} `json:"settings"`
	Disabled bool                   `json:"disabled"`
}

// RenderSection renders a single section in isolation, outside any page
// document. A nil instance renders the section with schema defaults only.
func (e *Engine) RenderSection(sectionType string, inst *SectionInstance) (string, error) {
	if inst == nil {
		inst = &SectionInstance{}
	}
	if inst.Type == "" {
		inst.Type = sectionType
	}
	if inst.Disabled {
		return "", nil
	}
	id := inst.ID
	if id == "" {
		id = sectionType
	}
	rc := e.newRenderContext(nil)
	body, _ := e.renderSectionBody(id, inst, rc)
	e.countRender("section")
	return body, nil
}

// renderSectionWrapped renders one section instance into rc.buf inside its
// stable container element and records the emitted id. Disabled instances
// produce nothing at all, not even the container.
func (e *Engine) renderSectionWrapped(id string, inst *SectionInstance, rc *renderContext) {
	if inst == nil || inst.Disabled {
		return
	}
	body, schema := e.renderSectionBody(id, inst, rc)
	tag := "div"
	class := "shopify-section"
	if schema != nil {
		if schema.Tag != "" {
			tag = schema.Tag
		}
		if schema.Class != "" {
			class += " " + schema.Class
		}
	}
	fmt.Fprintf(rc.buf, "<%s id=\"shopify-section-%s\" class=\"%s\">%s</%s>",
		tag, html.EscapeString(id), html.EscapeString(class), body, tag)
	rc.emitted = append(rc.emitted, id)
}

// renderSectionBody produces the inner HTML of a section. Every failure mode
// short of a missing theme degrades to an HTML comment or empty settings so
// one broken section never takes out its siblings.
func (e *Engine) renderSectionBody(id string, inst *SectionInstance, rc *renderContext) (out string, schema *SectionSchema) {
	typeName := sanitizeName(inst.Type)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("liquid: section '%s' panicked: %v", id, r)
			out = fmt.Sprintf("<!-- Liquid error (section '%s'): %v -->", typeName, r)
		}
	}()

	tmpl, err := e.parseTemplate("sections/" + typeName + e.ext)
	if err != nil {
		log.Printf("liquid: section type %q not found: %v", typeName, err)
		return fmt.Sprintf("<!-- section '%s' not found -->", typeName), nil
	}
	schema, err = e.schemaFor(tmpl)
	if err != nil {
		log.Printf("liquid: section %q: %v", typeName, err)
		schema = &SectionSchema{}
	}

	settings := mergeSettings(settingDefaults(schema.Settings), inst.Settings)
	blocks := make([]interface{}, 0, len(inst.BlockOrder))
	for _, blockID := range inst.BlockOrder {
		blk, ok := inst.Blocks[blockID]
		if !ok || blk == nil {
			// phantom id in block_order
			log.Printf("liquid: section '%s': block_order id %q has no block, skipping", id, blockID)
			continue
		}
		if blk.Disabled {
			continue
		}
		blocks = append(blocks, map[string]interface{}{
			"id":       blockID,
			"type":     blk.Type,
			"settings": mergeSettings(schema.blockDefaults(blk.Type), blk.Settings),
		})
	}

	sectionObj := map[string]interface{}{
		"id":          id,
		"type":        inst.Type,
		"settings":    settings,
		"blocks":      blocks,
		"block_order": inst.BlockOrder,
	}

	sub := &renderContext{
		engine:  e,
		scope:   rc.scope.Isolated(map[string]interface{}{"section": sectionObj}),
		buf:     &bytes.Buffer{},
		depth:   rc.depth,
		section: id,
		locale:  rc.locale,
	}
	_ = renderNodes(tmpl.Nodes, sub)
	return sub.buf.String(), schema
}

// renderSectionTag handles {% section 'name' %}: a statically placed section
// whose persisted settings, if any, live in config/settings_data.json.
func (e *Engine) renderSectionTag(name string, rc *renderContext) {
	name = sanitizeName(name)
	inst := e.staticSectionInstance(name)
	e.renderSectionWrapped(name, inst, rc)
}

// staticSectionInstance resolves the stored configuration of a statically
// rendered section, falling back to schema defaults when none exists.
func (e *Engine) staticSectionInstance(name string) *SectionInstance {
	current := e.settingsData()
	if stored, ok := current["sections"].(map[string]interface{}); ok {
		if raw, ok := stored[name].(map[string]interface{}); ok {
			inst := decodeSectionInstance(raw)
			inst.ID = name
			if inst.Type == "" {
				inst.Type = name
			}
			return inst
		}
	}
	return &SectionInstance{ID: name, Type: name}
}

// decodeSectionInstance converts an already-unmarshalled JSON map into a
// SectionInstance. Unknown keys are ignored.
func decodeSectionInstance(raw map[string]interface{}) *SectionInstance {
	inst := &SectionInstance{}
	if t, ok := raw["type"].(string); ok {
		inst.Type = t
	}
	if s, ok := raw["settings"].(map[string]interface{}); ok {
		inst.Settings = s
	}
	if d, ok := raw["disabled"].(bool); ok {
		inst.Disabled = d
	}
	if order, ok := raw["block_order"].([]interface{}); ok {
		for _, v := range order {
			if id, ok := v.(string); ok {
				inst.BlockOrder = append(inst.BlockOrder, id)
			}
		}
	}
	if blocks, ok := raw["blocks"].(map[string]interface{}); ok {
		inst.Blocks = make(map[string]*BlockInstance, len(blocks))
		for id, v := range blocks {
			if m, ok := v.(map[string]interface{}); ok {
				blk := &BlockInstance{}
				if t, ok := m["type"].(string); ok {
					blk.Type = t
				}
				if s, ok := m["settings"].(map[string]interface{}); ok {
					blk.Settings = s
				}
				if d, ok := m["disabled"].(bool); ok {
					blk.Disabled = d
				}
				inst.Blocks[id] = blk
			}
		}
	}
	return inst
}
