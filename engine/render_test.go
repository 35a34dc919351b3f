package engine

import (
	"strings"
	"testing"
)

// renderSource parses and renders a template string against a throwaway
// engine with the given globals.
func renderSource(t *testing.T, src string, globals map[string]interface{}) string {
	t.Helper()
	e := NewEngineWithConfig(Config{Source: MapSource{}, CacheEnabled: false})
	rc := e.newRenderContext(globals)
	_ = renderNodes(parseTemplateSource(src), rc)
	return rc.buf.String()
}

func TestOutputAndFilters(t *testing.T) {
	out := renderSource(t, `Hello {{ name | upcase }}!`, map[string]interface{}{"name": "alice"})
	if out != "Hello ALICE!" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestDottedAndIndexedAccess(t *testing.T) {
	globals := map[string]interface{}{
		"product": map[string]interface{}{
			"title": "Shirt",
			"tags":  []interface{}{"sale", "summer"},
		},
	}
	out := renderSource(t, `{{ product.title }} {{ product.tags[1] }} {{ product.tags.size }}`, globals)
	if out != "Shirt summer 2" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestIfElsifElse(t *testing.T) {
	src := `{% if n > 10 %}big{% elsif n > 5 %}medium{% else %}small{% endif %}`
	cases := map[int]string{12: "big", 7: "medium", 3: "small"}
	for n, want := range cases {
		out := renderSource(t, src, map[string]interface{}{"n": n})
		if out != want {
			t.Fatalf("n=%d: got %q, want %q", n, out, want)
		}
	}
}

func TestUnless(t *testing.T) {
	out := renderSource(t, `{% unless sold_out %}buy{% endunless %}`, map[string]interface{}{"sold_out": false})
	if out != "buy" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCaseWhen(t *testing.T) {
	src := `{% case x %}{% when 1 %}one{% when 2 or 3 %}few{% else %}many{% endcase %}`
	cases := map[int]string{1: "one", 2: "few", 3: "few", 9: "many"}
	for x, want := range cases {
		out := renderSource(t, src, map[string]interface{}{"x": x})
		if out != want {
			t.Fatalf("x=%d: got %q, want %q", x, out, want)
		}
	}
}

func TestForLoop(t *testing.T) {
	out := renderSource(t, `{% for i in (1..4) %}{{ i }}{% endfor %}`, nil)
	if out != "1234" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestForLoopModifiers(t *testing.T) {
	out := renderSource(t, `{% for i in (1..5) limit: 2 %}{{ i }}{% endfor %}`, nil)
	if out != "12" {
		t.Fatalf("limit: got %q", out)
	}
	out = renderSource(t, `{% for i in (1..5) offset: 3 %}{{ i }}{% endfor %}`, nil)
	if out != "45" {
		t.Fatalf("offset: got %q", out)
	}
	out = renderSource(t, `{% for i in (1..3) reversed %}{{ i }}{% endfor %}`, nil)
	if out != "321" {
		t.Fatalf("reversed: got %q", out)
	}
}

func TestForLoopElse(t *testing.T) {
	out := renderSource(t, `{% for x in items %}{{ x }}{% else %}none{% endfor %}`, map[string]interface{}{"items": []interface{}{}})
	if out != "none" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestForloopObject(t *testing.T) {
	src := `{% for i in (1..3) %}{{ forloop.index }}:{{ forloop.first }}:{{ forloop.last }} {% endfor %}`
	out := renderSource(t, src, nil)
	if out != "1:true:false 2:false:false 3:false:true " {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBreakAndContinue(t *testing.T) {
	out := renderSource(t, `{% for i in (1..5) %}{% if i == 3 %}{% break %}{% endif %}{{ i }}{% endfor %}`, nil)
	if out != "12" {
		t.Fatalf("break: got %q", out)
	}
	out = renderSource(t, `{% for i in (1..5) %}{% if i == 3 %}{% continue %}{% endif %}{{ i }}{% endfor %}`, nil)
	if out != "1245" {
		t.Fatalf("continue: got %q", out)
	}
}

func TestNestedLoopsParentloop(t *testing.T) {
	src := `{% for i in (1..2) %}{% for j in (1..2) %}{{ forloop.parentloop.index }}{{ forloop.index }} {% endfor %}{% endfor %}`
	out := renderSource(t, src, nil)
	if out != "11 12 21 22 " {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestTablerow(t *testing.T) {
	out := renderSource(t, `{% tablerow i in (1..4) cols: 2 %}{{ i }}{% endtablerow %}`, nil)
	want := `<tr class="row1"><td class="col1">1</td><td class="col2">2</td></tr>` +
		`<tr class="row2"><td class="col1">3</td><td class="col2">4</td></tr>`
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestAssignAndCapture(t *testing.T) {
	out := renderSource(t, `{% assign x = 2 %}{% capture msg %}x is {{ x }}{% endcapture %}[{{ msg }}]`, nil)
	if out != "[x is 2]" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestIncrementDecrement(t *testing.T) {
	out := renderSource(t, `{% increment c %} {% increment c %} {% increment c %}`, nil)
	if out != "0 1 2" {
		t.Fatalf("increment: got %q", out)
	}
	out = renderSource(t, `{% decrement d %} {% decrement d %}`, nil)
	if out != "-1 -2" {
		t.Fatalf("decrement: got %q", out)
	}
}

func TestCounterNamespaceSeparateFromAssign(t *testing.T) {
	out := renderSource(t, `{% assign c = "hi" %}{% increment c %}{{ c }}`, nil)
	if out != "0hi" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestCycle(t *testing.T) {
	out := renderSource(t, `{% for i in (1..4) %}{% cycle 'a', 'b', 'c' %}{% endfor %}`, nil)
	if out != "abca" {
		t.Fatalf("cycle: got %q", out)
	}
}

func TestCycleGroups(t *testing.T) {
	// distinct groups with identical values advance independently
	src := `{% cycle 'g1': 'a', 'b' %}{% cycle 'g2': 'a', 'b' %}{% cycle 'g1': 'a', 'b' %}`
	out := renderSource(t, src, nil)
	if out != "aab" {
		t.Fatalf("cycle groups: got %q", out)
	}
}

func TestRawAndComment(t *testing.T) {
	out := renderSource(t, `{% raw %}{{ not parsed }}{% endraw %}{% comment %}gone{% endcomment %}`, nil)
	if out != "{{ not parsed }}" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestWhitespaceControl(t *testing.T) {
	out := renderSource(t, "a\n  {{- 'b' -}}\n  c", nil)
	if out != "abc" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestUnknownTagRendersEmpty(t *testing.T) {
	out := renderSource(t, `before{% fancy_widget x %}after`, nil)
	if out != "beforeafter" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestEchoTag(t *testing.T) {
	out := renderSource(t, `{% echo 'hi' | upcase %}`, nil)
	if out != "HI" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLiquidTag(t *testing.T) {
	src := `{% liquid
assign x = 3
if x > 2
echo 'big'
endif
%}`
	out := renderSource(t, src, nil)
	if out != "big" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMissingVariableRendersEmpty(t *testing.T) {
	out := renderSource(t, `[{{ nothing.here }}]`, nil)
	if out != "[]" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBlankAndEmptyComparisons(t *testing.T) {
	out := renderSource(t, `{% if items == empty %}empty{% endif %}`, map[string]interface{}{"items": []interface{}{}})
	if out != "empty" {
		t.Fatalf("unexpected output: %q", out)
	}
	out = renderSource(t, `{% if name != blank %}has name{% endif %}`, map[string]interface{}{"name": "x"})
	if out != "has name" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestContainsOperator(t *testing.T) {
	out := renderSource(t, `{% if tags contains 'sale' %}on sale{% endif %}`, map[string]interface{}{
		"tags": []interface{}{"new", "sale"},
	})
	if out != "on sale" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestMalformedTagEmitsDiagnosticComment(t *testing.T) {
	out := renderSource(t, `before{% if %}x{% endif %}after`, nil)
	if !strings.Contains(out, "<!-- Liquid error") {
		t.Fatalf("expected diagnostic comment, got %q", out)
	}
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Fatalf("surrounding content should survive, got %q", out)
	}
}

func TestFormTag(t *testing.T) {
	out := renderSource(t, `{% form 'contact' %}<input name="q">{% endform %}`, nil)
	if !strings.Contains(out, `<form method="post" action="/contact"`) {
		t.Fatalf("missing form element: %q", out)
	}
	if !strings.Contains(out, `name="form_type" value="contact"`) {
		t.Fatalf("missing form_type input: %q", out)
	}
	if !strings.Contains(out, "</form>") {
		t.Fatalf("form not closed: %q", out)
	}
}

func TestPaginateSinglePage(t *testing.T) {
	src := `{% paginate items by 2 %}{{ paginate.pages }}:{{ paginate.items }}{% endpaginate %}`
	out := renderSource(t, src, map[string]interface{}{"items": []interface{}{1, 2, 3}})
	if out != "1:3" {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestStyleTag(t *testing.T) {
	out := renderSource(t, `{% style %}.x { color: {{ c }}; }{% endstyle %}`, map[string]interface{}{"c": "red"})
	if out != "<style>.x { color: red; }</style>" {
		t.Fatalf("unexpected output: %q", out)
	}
}
