package engine

import (
	"strings"
	"testing"
)

func TestScopeLookupOrder(t *testing.T) {
	s := NewScope(map[string]interface{}{"x": "bottom"})
	frame := s.Push()
	frame["x"] = "top"
	if v, _ := s.Lookup("x"); v != "top" {
		t.Fatalf("expected top frame to win, got %v", v)
	}
	s.Pop()
	if v, _ := s.Lookup("x"); v != "bottom" {
		t.Fatalf("expected bottom fallback, got %v", v)
	}
}

func TestScopeSetRebindsWhereBound(t *testing.T) {
	s := NewScope(nil)
	s.Set("x", 1)
	s.Push()
	s.Set("x", 2)
	s.Pop()
	if v, _ := s.Lookup("x"); v != 2 {
		t.Fatalf("expected rebind in outer frame, got %v", v)
	}
}

func TestIsolatedSharesBottom(t *testing.T) {
	s := NewScope(nil)
	s.Set("local", "caller only")
	iso := s.Isolated(map[string]interface{}{"passed": 1})
	if _, ok := iso.Lookup("local"); ok {
		t.Fatal("isolated scope must not see caller locals")
	}
	if v, _ := iso.Lookup("passed"); v != 1 {
		t.Fatalf("isolated scope must see passed vars, got %v", v)
	}
	iso.SetBottom("captured", "yes")
	if v, _ := s.Lookup("captured"); v != "yes" {
		t.Fatalf("bottom writes must be shared, got %v", v)
	}
}

// partialEngine builds an engine over an in-memory snippets directory.
func partialEngine(files MapSource) *Engine {
	return NewEngineWithConfig(Config{Source: files, CacheEnabled: false})
}

func renderWith(t *testing.T, e *Engine, src string, globals map[string]interface{}) string {
	t.Helper()
	rc := e.newRenderContext(globals)
	_ = renderNodes(parseTemplateSource(src), rc)
	return rc.buf.String()
}

func TestRenderTagIsolation(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/card.liquid": `x={{ x }} y={{ y }}`,
	})
	out := renderWith(t, e, `{% assign y = 2 %}{% render 'card', x: 1 %}`, nil)
	if out != "x=1 y=" {
		t.Fatalf("render must isolate caller locals: %q", out)
	}
}

func TestRenderTagDoesNotLeakAssigns(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/leak.liquid": `{% assign z = 9 %}`,
	})
	out := renderWith(t, e, `{% render 'leak' %}[{{ z }}]`, nil)
	if out != "[]" {
		t.Fatalf("snippet assigns must not leak: %q", out)
	}
}

func TestIncludeTagInheritsAndLeaks(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/inc.liquid": `y={{ y }}{% assign z = 9 %}`,
	})
	out := renderWith(t, e, `{% assign y = 2 %}{% include 'inc' %}[{{ z }}]`, nil)
	if out != "y=2[9]" {
		t.Fatalf("include must run in caller scope: %q", out)
	}
}

func TestCaptureInsideRenderVisibleAfter(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/cap.liquid": `{% capture note %}from snippet{% endcapture %}`,
	})
	out := renderWith(t, e, `{% render 'cap' %}{{ note }}`, nil)
	if out != "from snippet" {
		t.Fatalf("capture writes to the pass bottom frame: %q", out)
	}
}

func TestCountersSharedAcrossRender(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/count.liquid": `{% increment n %}`,
	})
	out := renderWith(t, e, `{% increment n %}{% render 'count' %}{% increment n %}`, nil)
	if out != "012" {
		t.Fatalf("counters are per pass, not per scope: %q", out)
	}
}

func TestCycleStateSharedAcrossRender(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/cy.liquid": `{% cycle 'a', 'b' %}`,
	})
	out := renderWith(t, e, `{% cycle 'a', 'b' %}{% render 'cy' %}{% cycle 'a', 'b' %}`, nil)
	if out != "aba" {
		t.Fatalf("cycle state is per pass: %q", out)
	}
}

func TestRenderWithAndForForms(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/item.liquid": `[{{ thing }}]`,
	})
	out := renderWith(t, e, `{% render 'item' with v as thing %}`, map[string]interface{}{"v": "one"})
	if out != "[one]" {
		t.Fatalf("with form: %q", out)
	}
	out = renderWith(t, e, `{% render 'item' for vs as thing %}`, map[string]interface{}{
		"vs": []interface{}{"a", "b"},
	})
	if out != "[a][b]" {
		t.Fatalf("for form: %q", out)
	}
}

func TestMissingSnippetEmitsDiagnostic(t *testing.T) {
	e := partialEngine(MapSource{})
	out := renderWith(t, e, `{% render 'nope' %}`, nil)
	if !strings.Contains(out, "Liquid error") {
		t.Fatalf("expected inline diagnostic, got %q", out)
	}
}

func TestPartialRecursionBounded(t *testing.T) {
	e := partialEngine(MapSource{
		"snippets/self.liquid": `x{% render 'self' %}`,
	})
	out := renderWith(t, e, `{% render 'self' %}`, nil)
	if !strings.Contains(out, "Liquid error") {
		t.Fatalf("expected recursion diagnostic, got %q", out)
	}
}
