package engine

import (
	"strings"
	"testing"
)

func pageTheme() MapSource {
	return MapSource{
		"layout/theme.liquid": `<html><body>{{ content_for_layout }}</body></html>`,
		"templates/index.json": `{
			"sections": {
				"hero":   { "type": "hero", "settings": { "heading": "Hi" } },
				"footer": { "type": "footer" }
			},
			"order": ["hero", "footer"]
		}`,
		"sections/hero.liquid":   `<h1>{{ section.settings.heading }}</h1>{% schema %}{"name":"Hero","settings":[{"id":"heading","type":"text","default":"Welcome"}]}{% endschema %}`,
		"sections/footer.liquid": `<small>footer</small>`,
	}
}

func TestRenderPageAssemblesSectionsAndLayout(t *testing.T) {
	e := NewEngineWithConfig(Config{Source: pageTheme(), CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(doc.HTML, "<html><body>") || !strings.HasSuffix(doc.HTML, "</body></html>") {
		t.Fatalf("layout not applied: %q", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "<h1>Hi</h1>") {
		t.Fatalf("section override missing: %q", doc.HTML)
	}
	heroIdx := strings.Index(doc.HTML, "shopify-section-hero")
	footerIdx := strings.Index(doc.HTML, "shopify-section-footer")
	if heroIdx == -1 || footerIdx == -1 || heroIdx > footerIdx {
		t.Fatalf("sections out of order or missing wrappers: %q", doc.HTML)
	}
	if len(doc.SectionIDs) != 2 || doc.SectionIDs[0] != "hero" || doc.SectionIDs[1] != "footer" {
		t.Fatalf("unexpected section ids: %v", doc.SectionIDs)
	}
}

func TestRenderPageSkipsDisabledSections(t *testing.T) {
	theme := pageTheme()
	theme["templates/index.json"] = `{
		"sections": {
			"hero":   { "type": "hero", "disabled": true },
			"footer": { "type": "footer" }
		},
		"order": ["hero", "footer"]
	}`
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(doc.HTML, "shopify-section-hero") {
		t.Fatalf("disabled section must not be emitted: %q", doc.HTML)
	}
	if len(doc.SectionIDs) != 1 || doc.SectionIDs[0] != "footer" {
		t.Fatalf("unexpected section ids: %v", doc.SectionIDs)
	}
}

func TestRenderPageMissingSectionTypeIsolated(t *testing.T) {
	theme := pageTheme()
	theme["templates/index.json"] = `{
		"sections": {
			"broken": { "type": "no-such-section" },
			"footer": { "type": "footer" }
		},
		"order": ["broken", "footer"]
	}`
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc.HTML, "<!-- section 'no-such-section' not found -->") {
		t.Fatalf("expected placeholder for missing type: %q", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "<small>footer</small>") {
		t.Fatalf("sibling section must still render: %q", doc.HTML)
	}
}

func TestRenderPageMalformedTemplateJSONFails(t *testing.T) {
	theme := pageTheme()
	theme["templates/index.json"] = `{ "sections": `
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	if _, err := e.RenderPage("index"); err == nil {
		t.Fatal("malformed template document must be a hard error")
	}
}

func TestRenderPageBareTemplateFallback(t *testing.T) {
	theme := MapSource{
		"layout/theme.liquid":    `<html>{{ content_for_layout }}</html>`,
		"templates/about.liquid": `<p>about us</p>`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("about")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.HTML != "<html><p>about us</p></html>" {
		t.Fatalf("unexpected output: %q", doc.HTML)
	}
}

func TestRenderPageUnknownTemplatePlaceholder(t *testing.T) {
	e := NewEngineWithConfig(Config{Source: MapSource{}, CacheEnabled: false})
	doc, err := e.RenderPage("nope")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc.HTML, "<!-- template 'nope' not found -->") {
		t.Fatalf("expected placeholder, got %q", doc.HTML)
	}
}

func TestRenderPageWithoutLayoutFile(t *testing.T) {
	theme := MapSource{
		"templates/plain.liquid": `just content`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("plain")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.HTML != "just content" {
		t.Fatalf("missing layout/theme should ship the bare body: %q", doc.HTML)
	}
}

func TestLayoutTagNoneDisablesLayout(t *testing.T) {
	theme := MapSource{
		"layout/theme.liquid":  `WRAP{{ content_for_layout }}WRAP`,
		"templates/raw.liquid": `{% layout none %}bare`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("raw")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.HTML != "bare" {
		t.Fatalf("layout none must skip the layout: %q", doc.HTML)
	}
}

func TestTemplateDocumentLayoutFalse(t *testing.T) {
	theme := pageTheme()
	theme["templates/index.json"] = `{
		"layout": false,
		"sections": { "footer": { "type": "footer" } },
		"order": ["footer"]
	}`
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(doc.HTML, "<html>") {
		t.Fatalf("layout false must skip the layout: %q", doc.HTML)
	}
}

func TestAlternateLayoutFromDocument(t *testing.T) {
	theme := pageTheme()
	theme["layout/minimal.liquid"] = `MIN{{ content_for_layout }}MIN`
	theme["templates/index.json"] = `{
		"layout": "minimal",
		"sections": { "footer": { "type": "footer" } },
		"order": ["footer"]
	}`
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.HasPrefix(doc.HTML, "MIN") || !strings.HasSuffix(doc.HTML, "MIN") {
		t.Fatalf("alternate layout not applied: %q", doc.HTML)
	}
}

func TestSectionGroupTag(t *testing.T) {
	theme := MapSource{
		"layout/theme.liquid":    `{% sections 'header-group' %}{{ content_for_layout }}`,
		"templates/index.liquid": `body`,
		"sections/header-group.json": `{
			"sections": { "nav": { "type": "nav" } },
			"order": ["nav"]
		}`,
		"sections/nav.liquid": `<nav>menu</nav>`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc.HTML, `id="shopify-section-nav"`) || !strings.Contains(doc.HTML, "<nav>menu</nav>") {
		t.Fatalf("section group not rendered: %q", doc.HTML)
	}
	if !strings.Contains(doc.HTML, "body") {
		t.Fatalf("page body missing: %q", doc.HTML)
	}
}

func TestRenderSectionGroupStandalone(t *testing.T) {
	theme := MapSource{
		"sections/footer-group.json": `{
			"sections": {
				"a": { "type": "note" },
				"b": { "type": "note", "disabled": true }
			},
			"order": ["a", "b"]
		}`,
		"sections/note.liquid": `n`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderSectionGroup("footer-group")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(doc.SectionIDs) != 1 || doc.SectionIDs[0] != "a" {
		t.Fatalf("unexpected ids: %v", doc.SectionIDs)
	}
}

func TestCaptureInSectionVisibleToLayout(t *testing.T) {
	theme := MapSource{
		"layout/theme.liquid":  `<title>{{ page_title }}</title>{{ content_for_layout }}`,
		"templates/index.json": `{"sections":{"main":{"type":"main"}},"order":["main"]}`,
		"sections/main.liquid": `{% capture page_title %}Captured{% endcapture %}body`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(doc.HTML, "<title>Captured</title>") {
		t.Fatalf("capture must survive into the layout: %q", doc.HTML)
	}
}

func TestPageGlobalsAvailable(t *testing.T) {
	theme := MapSource{
		"templates/index.liquid":    `{{ shop.name }}|{{ settings.color_accent }}|{{ who }}`,
		"config/settings_data.json": `{"current": {"color_accent": "#fff"}}`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: false})
	doc, err := e.RenderPageWithContext("index", map[string]interface{}{"who": "me"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.HTML != "Shop|#fff|me" {
		t.Fatalf("unexpected output: %q", doc.HTML)
	}
}
