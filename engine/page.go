package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

// RenderedDocument is the result of a full page pass.
type RenderedDocument struct {
	HTML       string
	SectionIDs []string
}

// sectionDocument is the shape shared by templates/*.json and section group
// files under sections/*.json.
type sectionDocument struct {
	Layout   interface{}                 `json:"layout"`
	Sections map[string]*SectionInstance `json:"sections"`
	Order    []string                    `json:"order"`
}

func parseSectionDocument(data []byte) (*sectionDocument, error) {
	var doc sectionDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	for id, inst := range doc.Sections {
		if inst != nil {
			inst.ID = id
		}
	}
	return &doc, nil
}

// RenderPage assembles a full page for a template name: the template's
// sections in order, then the layout around them.
func (e *Engine) RenderPage(name string) (*RenderedDocument, error) {
	return e.RenderPageWithContext(name, nil)
}

// RenderPageWithContext is RenderPage with caller-supplied globals merged
// into the bottom scope frame (request data, the current customer, and so
// on). Caller globals win over the built-in ones.
func (e *Engine) RenderPageWithContext(name string, globals map[string]interface{}) (*RenderedDocument, error) {
	rc := e.newRenderContext(globals)
	name = sanitizeName(name)
	rc.scope.SetBottom("template", name)

	docPath := "templates/" + name + ".json"
	barePath := "templates/" + name + e.ext

	layoutName := "theme"
	switch {
	case e.source.Exists(docPath):
		data, err := e.source.ReadFile(docPath)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		doc, err := parseSectionDocument(data)
		if err != nil {
			// a malformed template document is a theme bug, not a render-time
			// condition to paper over
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		if override, ok := layoutFromDocument(doc.Layout); ok {
			layoutName = override
		}
		e.renderDocumentSections(doc, rc)
	case e.source.Exists(barePath):
		// classic non-sectioned template: the file body is the page content
		tmpl, err := e.parseTemplate(barePath)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", name, err)
		}
		_ = renderNodes(tmpl.Nodes, rc)
	default:
		fmt.Fprintf(rc.buf, "<!-- template '%s' not found -->", name)
	}

	body := rc.buf.String()
	htmlOut, err := e.applyLayout(layoutName, body, rc)
	if err != nil {
		return nil, err
	}
	e.countRender("page")
	return &RenderedDocument{HTML: htmlOut, SectionIDs: rc.emitted}, nil
}

// layoutFromDocument interprets the optional "layout" key of a template
// document: a string names an alternate layout, false disables layouts.
func layoutFromDocument(v interface{}) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		if !val {
			return "none", true
		}
	}
	return "", false
}

func (e *Engine) renderDocumentSections(doc *sectionDocument, rc *renderContext) {
	for _, id := range doc.Order {
		inst, ok := doc.Sections[id]
		if !ok || inst == nil {
			log.Printf("liquid: page order references unknown section id %q, skipping", id)
			continue
		}
		e.renderSectionWrapped(id, inst, rc)
	}
}

// applyLayout wraps the rendered body in the layout file. The layout runs in
// a pushed frame of the same pass, so capture output and counters from the
// body remain visible to it.
func (e *Engine) applyLayout(layoutName string, body string, rc *renderContext) (string, error) {
	// a {% layout %} tag in any rendered section overrides the document
	if override, ok := rc.scope.Lookup(layoutOverride); ok {
		if s, ok := override.(string); ok && s != "" {
			layoutName = s
		}
	}
	if layoutName == "none" {
		return body, nil
	}

	layoutPath := "layout/" + sanitizeName(layoutName) + e.ext
	tmpl, err := e.parseTemplate(layoutPath)
	if err != nil {
		if layoutName != "theme" {
			return "", fmt.Errorf("layout %q: %w", layoutName, err)
		}
		// no layout/theme file at all: ship the bare body
		return body, nil
	}

	frame := rc.scope.Push()
	frame["content_for_layout"] = body
	frame["content_for_header"] = e.contentForHeader()
	defer rc.scope.Pop()

	saved := rc.buf
	rc.buf = &bytes.Buffer{}
	_ = renderNodes(tmpl.Nodes, rc)
	out := rc.buf.String()
	rc.buf = saved
	return out, nil
}

func (e *Engine) contentForHeader() string {
	var b strings.Builder
	b.WriteString(`<meta name="generator" content="liquid-engine">`)
	if e.development {
		b.WriteString(`<meta name="liquid-engine-mode" content="development">`)
	}
	return b.String()
}

// RenderSectionGroup renders a section group document (sections/<name>.json)
// standalone, returning its HTML and the emitted section ids.
func (e *Engine) RenderSectionGroup(name string) (*RenderedDocument, error) {
	rc := e.newRenderContext(nil)
	if err := e.renderGroupInto(name, rc); err != nil {
		return nil, err
	}
	return &RenderedDocument{HTML: rc.buf.String(), SectionIDs: rc.emitted}, nil
}

// renderSectionGroupTag handles {% sections 'group-name' %} inside layouts.
func (e *Engine) renderSectionGroupTag(name string, rc *renderContext) {
	if err := e.renderGroupInto(name, rc); err != nil {
		rc.diag("sections", err)
	}
}

func (e *Engine) renderGroupInto(name string, rc *renderContext) error {
	path := "sections/" + sanitizeName(name) + ".json"
	data, err := e.source.ReadFile(path)
	if err != nil {
		return fmt.Errorf("section group %q: %w", name, err)
	}
	doc, err := parseSectionDocument(data)
	if err != nil {
		return fmt.Errorf("section group %q: %w", name, err)
	}
	e.renderDocumentSections(doc, rc)
	return nil
}
