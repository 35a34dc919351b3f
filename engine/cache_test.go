package engine

import (
	"strings"
	"sync"
	"testing"
)

func TestCacheManagerSetGetRemove(t *testing.T) {
	cm := NewCacheManager(1, 60, 5)
	defer cm.Stop()

	tmpl := &Template{Path: "templates/index.liquid", Size: 10}
	if err := cm.Set("templates/index.liquid", tmpl, tmpl.Size); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, found := cm.Get("templates/index.liquid")
	if !found || got != tmpl {
		t.Fatalf("expected cache hit, found=%v", found)
	}

	cm.Remove("templates/index.liquid")
	if _, found := cm.Get("templates/index.liquid"); found {
		t.Fatal("expected miss after remove")
	}
}

func TestCacheManagerConcurrentGet(t *testing.T) {
	cm := NewCacheManager(1, 60, 5)
	defer cm.Stop()

	tmpl := &Template{Path: "templates/index.liquid", Size: 10}
	if err := cm.Set("a", tmpl, tmpl.Size); err != nil {
		t.Fatalf("set: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if _, found := cm.Get("a"); !found {
					t.Error("expected cache hit")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestCacheManagerRejectsOversizedItem(t *testing.T) {
	cm := NewCacheManager(1, 60, 5)
	defer cm.Stop()

	if err := cm.Set("huge", &Template{}, 2*1024*1024); err == nil {
		t.Fatal("expected error for item larger than the cache")
	}
}

func TestCacheManagerStats(t *testing.T) {
	cm := NewCacheManager(10, 60, 5)
	defer cm.Stop()

	_ = cm.Set("a", &Template{}, 100)
	_ = cm.Set("b", &Template{}, 200)
	stats := cm.Stats()
	if stats["total_items"] != 2 {
		t.Fatalf("unexpected stats: %v", stats)
	}
	if len(cm.GetKeys()) != 2 {
		t.Fatalf("unexpected keys: %v", cm.GetKeys())
	}
}

func TestEngineCachesParsedTemplates(t *testing.T) {
	theme := MapSource{"templates/index.liquid": `v1`}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: true})
	defer e.Close()

	doc, err := e.RenderPage("index")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if doc.HTML != "v1" {
		t.Fatalf("unexpected output: %q", doc.HTML)
	}

	// the source changes but the cached parse is served
	theme["templates/index.liquid"] = `v2`
	doc, _ = e.RenderPage("index")
	if doc.HTML != "v1" {
		t.Fatalf("expected cached parse, got %q", doc.HTML)
	}

	e.ClearCacheFor("templates/index.liquid")
	doc, _ = e.RenderPage("index")
	if doc.HTML != "v2" {
		t.Fatalf("expected fresh parse after invalidation, got %q", doc.HTML)
	}
}

func TestDevelopmentModeBypassesCache(t *testing.T) {
	theme := MapSource{"templates/index.liquid": `v1`}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: true, Development: true})
	defer e.Close()

	doc, _ := e.RenderPage("index")
	if doc.HTML != "v1" {
		t.Fatalf("unexpected output: %q", doc.HTML)
	}
	theme["templates/index.liquid"] = `v2`
	doc, _ = e.RenderPage("index")
	if doc.HTML != "v2" {
		t.Fatalf("development mode must re-read sources, got %q", doc.HTML)
	}
}

func TestClearCacheReloadsLocalesAndSettings(t *testing.T) {
	theme := MapSource{
		"templates/index.liquid":    `{{ 'k' | t }}|{{ settings.v }}`,
		"locales/en.default.json":   `{"k": "one"}`,
		"config/settings_data.json": `{"current": {"v": "s1"}}`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: true})
	defer e.Close()

	doc, _ := e.RenderPage("index")
	if doc.HTML != "one|s1" {
		t.Fatalf("unexpected output: %q", doc.HTML)
	}

	theme["locales/en.default.json"] = `{"k": "two"}`
	theme["config/settings_data.json"] = `{"current": {"v": "s2"}}`
	e.ClearCache()
	doc, _ = e.RenderPage("index")
	if doc.HTML != "two|s2" {
		t.Fatalf("expected reloaded locale and settings, got %q", doc.HTML)
	}
}

func TestSchemaCacheInvalidation(t *testing.T) {
	theme := MapSource{
		"sections/hero.liquid": `{{ section.settings.h }}{% schema %}{"name":"H","settings":[{"id":"h","type":"text","default":"old"}]}{% endschema %}`,
	}
	e := NewEngineWithConfig(Config{Source: theme, CacheEnabled: true})
	defer e.Close()

	out, _ := e.RenderSection("hero", nil)
	if !strings.Contains(out, "old") {
		t.Fatalf("unexpected output: %q", out)
	}
	theme["sections/hero.liquid"] = `{{ section.settings.h }}{% schema %}{"name":"H","settings":[{"id":"h","type":"text","default":"new"}]}{% endschema %}`
	e.ClearCacheFor("sections/hero.liquid")
	out, _ = e.RenderSection("hero", nil)
	if !strings.Contains(out, "new") {
		t.Fatalf("schema cache not invalidated: %q", out)
	}
}
