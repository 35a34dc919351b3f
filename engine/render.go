package engine

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"

	"liquid_engine/engine/expr"
)

// maxPartialDepth bounds render/include recursion so a self-including
// snippet degrades to a diagnostic instead of exhausting the stack.
const maxPartialDepth = 24

// Loop interrupts travel as sentinel errors from break/continue up to the
// enclosing loop tag, which absorbs them. They never escape a loop.
var (
	errBreak    = errors.New("loop break")
	errContinue = errors.New("loop continue")
)

// renderContext carries the per-pass state threaded through every node.
type renderContext struct {
	engine  *Engine
	scope   *Scope
	buf     *bytes.Buffer
	depth   int
	section string   // current section id, for diagnostics
	emitted []string // ordered section ids the page assembler emitted
	locale  string
}

func (rc *renderContext) diag(tag string, err error) {
	where := tag
	if rc.section != "" {
		where = fmt.Sprintf("%s, section '%s'", tag, rc.section)
	}
	log.Printf("liquid: %s: %v", where, err)
	fmt.Fprintf(rc.buf, "<!-- Liquid error (%s): %s -->", where, html.EscapeString(err.Error()))
}

// renderNodes evaluates a node list into rc.buf. The only errors it returns
// are loop interrupts; everything else is recovered at the node boundary.
func renderNodes(nodes []Node, rc *renderContext) error {
	for _, n := range nodes {
		if err := renderNode(n, rc); err != nil {
			return err
		}
	}
	return nil
}

// renderNode evaluates one node. A panic inside a tag body is caught here
// and downgraded to an inline diagnostic so the surrounding page still
// renders.
func renderNode(n Node, rc *renderContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			rc.diag(nodeName(n), fmt.Errorf("panic: %v", r))
			err = nil
		}
	}()
	switch v := n.(type) {
	case *TextNode:
		rc.buf.WriteString(v.Text)
	case *OutputNode:
		rc.buf.WriteString(stringify(evalExpr(v.Expr, rc)))
	case *BadNode:
		rc.diag(v.Tag, v.Err)
	case *UnknownTagNode:
		// fails closed: empty output, warning already logged at parse time
	case *IfNode:
		return renderIf(v, rc)
	case *CaseNode:
		return renderCase(v, rc)
	case *ForNode:
		renderFor(v, rc)
	case *TablerowNode:
		renderTablerow(v, rc)
	case *BreakNode:
		return errBreak
	case *ContinueNode:
		return errContinue
	case *AssignNode:
		rc.scope.Set(v.Name, evalExpr(v.Value, rc))
	case *CaptureNode:
		renderCapture(v, rc)
	case *CounterNode:
		renderCounter(v, rc)
	case *CycleNode:
		renderCycle(v, rc)
	case *PartialNode:
		renderPartial(v, rc)
	case *SectionNode:
		rc.engine.renderSectionTag(v.Name, rc)
	case *SectionGroupNode:
		rc.engine.renderSectionGroupTag(v.Name, rc)
	case *FormNode:
		return renderForm(v, rc)
	case *PaginateNode:
		return renderPaginate(v, rc)
	case *RawNode:
		rc.buf.WriteString(v.Text)
	case *SchemaNode:
		// schema carries side data only, never output
	case *StyleNode:
		renderStyle(v, rc)
	case *AssetNode:
		if v.Script {
			rc.buf.WriteString("<script>" + v.Text + "</script>")
		} else {
			rc.buf.WriteString("<style>" + v.Text + "</style>")
		}
	case *LayoutNode:
		rc.scope.SetBottom(layoutOverride, v.Name)
	}
	return nil
}

func nodeName(n Node) string {
	switch n.(type) {
	case *OutputNode:
		return "output"
	case *IfNode:
		return "if"
	case *CaseNode:
		return "case"
	case *ForNode:
		return "for"
	case *TablerowNode:
		return "tablerow"
	case *CaptureNode:
		return "capture"
	case *PartialNode:
		return "render"
	case *SectionNode:
		return "section"
	case *SectionGroupNode:
		return "sections"
	case *FormNode:
		return "form"
	case *PaginateNode:
		return "paginate"
	case *StyleNode:
		return "style"
	default:
		return "tag"
	}
}

func renderIf(v *IfNode, rc *renderContext) error {
	for _, br := range v.Branches {
		ok := truthy(evalExpr(br.Cond, rc))
		if br.Negate {
			ok = !ok
		}
		if ok {
			return renderNodes(br.Body, rc)
		}
	}
	return renderNodes(v.Else, rc)
}

func renderCase(v *CaseNode, rc *renderContext) error {
	subject := evalExpr(v.Subject, rc)
	for _, when := range v.Whens {
		for _, val := range when.Values {
			if valuesEqual(subject, evalExpr(val, rc)) {
				return renderNodes(when.Body, rc)
			}
		}
	}
	return renderNodes(v.Else, rc)
}

// sliceForLoop applies offset/limit/reversed to the evaluated collection.
func sliceForLoop(coll interface{}, limit, offset expr.Expr, reversed bool, rc *renderContext) []interface{} {
	items := toSlice(coll)
	if off, ok := evalInt(offset, rc); ok {
		if off > len(items) {
			off = len(items)
		}
		if off > 0 {
			items = items[off:]
		}
	}
	if lim, ok := evalInt(limit, rc); ok && lim >= 0 && lim < len(items) {
		items = items[:lim]
	}
	if reversed {
		rev := make([]interface{}, len(items))
		for i, item := range items {
			rev[len(items)-1-i] = item
		}
		items = rev
	}
	return items
}

func evalInt(e expr.Expr, rc *renderContext) (int, bool) {
	if e == nil {
		return 0, false
	}
	return toInt(evalExpr(e, rc))
}

// loopContext builds the forloop object for one iteration. It is created
// fresh per iteration and never persisted outside the loop.
func loopContext(i, length int, parent interface{}) map[string]interface{} {
	return map[string]interface{}{
		"index":      i + 1,
		"index0":     i,
		"rindex":     length - i,
		"rindex0":    length - i - 1,
		"first":      i == 0,
		"last":       i == length-1,
		"length":     length,
		"parentloop": parent,
	}
}

func renderFor(v *ForNode, rc *renderContext) {
	items := sliceForLoop(evalExpr(v.Coll, rc), v.Limit, v.Offset, v.Reversed, rc)
	if len(items) == 0 {
		_ = renderNodes(v.Else, rc)
		return
	}
	parent, _ := rc.scope.Lookup("forloop")
	frame := rc.scope.Push()
	defer rc.scope.Pop()
	for i, item := range items {
		frame[v.Var] = item
		frame["forloop"] = loopContext(i, len(items), parent)
		err := renderNodes(v.Body, rc)
		if errors.Is(err, errBreak) {
			break
		}
		// errContinue just moves to the next iteration
	}
}

func renderTablerow(v *TablerowNode, rc *renderContext) {
	items := sliceForLoop(evalExpr(v.Coll, rc), v.Limit, v.Offset, false, rc)
	cols, ok := evalInt(v.Cols, rc)
	if !ok || cols <= 0 {
		cols = len(items)
		if cols == 0 {
			cols = 1
		}
	}
	frame := rc.scope.Push()
	defer rc.scope.Pop()
	row := 0
	for i, item := range items {
		col := i%cols + 1
		if col == 1 {
			row++
			fmt.Fprintf(rc.buf, "<tr class=\"row%d\">", row)
		}
		loop := loopContext(i, len(items), nil)
		loop["col"] = col
		loop["col0"] = col - 1
		loop["col_first"] = col == 1
		loop["col_last"] = col == cols
		loop["row"] = row
		frame[v.Var] = item
		frame["tablerowloop"] = loop
		fmt.Fprintf(rc.buf, "<td class=\"col%d\">", col)
		err := renderNodes(v.Body, rc)
		rc.buf.WriteString("</td>")
		// row closes at the column boundary or on the last item
		if col == cols || i == len(items)-1 {
			rc.buf.WriteString("</tr>")
		}
		if errors.Is(err, errBreak) {
			break
		}
	}
}

func renderCapture(v *CaptureNode, rc *renderContext) {
	sub := &bytes.Buffer{}
	saved := rc.buf
	rc.buf = sub
	_ = renderNodes(v.Body, rc)
	rc.buf = saved
	rc.scope.SetBottom(v.Name, sub.String())
}

func renderCounter(v *CounterNode, rc *renderContext) {
	counters := rc.scope.counters()
	cur := counters[v.Name]
	if v.Decrement {
		// decrement emits the post-decrement value
		cur--
		counters[v.Name] = cur
		rc.buf.WriteString(stringify(cur))
		return
	}
	// increment emits the pre-increment value
	counters[v.Name] = cur + 1
	rc.buf.WriteString(stringify(cur))
}

func renderCycle(v *CycleNode, rc *renderContext) {
	key := v.Group
	if key == "" {
		parts := make([]string, len(v.Values))
		for i, val := range v.Values {
			parts[i] = expr.String(val)
		}
		key = strings.Join(parts, ",")
	}
	state := rc.scope.cycleState()
	idx := state[key] % len(v.Values)
	state[key]++
	rc.buf.WriteString(stringify(evalExpr(v.Values[idx], rc)))
}

func renderPartial(v *PartialNode, rc *renderContext) {
	if rc.depth >= maxPartialDepth {
		rc.diag("render", fmt.Errorf("partial nesting too deep at '%s'", v.Name))
		return
	}
	tmpl, err := rc.engine.lookupPartial(v.Name)
	if err != nil {
		rc.diag("render", fmt.Errorf("snippet '%s': %w", v.Name, err))
		return
	}
	alias := v.Alias
	if alias == "" {
		alias = v.Name
	}

	runBody := func(scope *Scope) {
		savedScope, savedDepth := rc.scope, rc.depth
		rc.scope, rc.depth = scope, rc.depth+1
		_ = renderNodes(tmpl.Nodes, rc)
		rc.scope, rc.depth = savedScope, savedDepth
	}

	if !v.Isolated {
		// include: full inheritance, the caller's own frames
		for _, arg := range v.Args {
			rc.scope.Set(arg.Name, evalExpr(arg.Value, rc))
		}
		runBody(rc.scope)
		return
	}

	vars := make(map[string]interface{}, len(v.Args)+1)
	for _, arg := range v.Args {
		vars[arg.Name] = evalExpr(arg.Value, rc)
	}
	if v.With != nil {
		vars[alias] = evalExpr(v.With, rc)
	}
	if v.For != nil {
		items := toSlice(evalExpr(v.For, rc))
		for i, item := range items {
			iterVars := make(map[string]interface{}, len(vars)+2)
			for k, val := range vars {
				iterVars[k] = val
			}
			iterVars[alias] = item
			iterVars["forloop"] = loopContext(i, len(items), nil)
			runBody(rc.scope.Isolated(iterVars))
		}
		return
	}
	runBody(rc.scope.Isolated(vars))
}

func renderForm(v *FormNode, rc *renderContext) error {
	action := "/" + strings.ReplaceAll(v.Type, "_", "-")
	fmt.Fprintf(rc.buf, "<form method=\"post\" action=\"%s\" accept-charset=\"UTF-8\">", action)
	fmt.Fprintf(rc.buf, "<input type=\"hidden\" name=\"form_type\" value=\"%s\"><input type=\"hidden\" name=\"utf8\" value=\"✓\">", html.EscapeString(v.Type))
	frame := rc.scope.Push()
	frame["form"] = map[string]interface{}{
		"errors":              nil,
		"posted_successfully": false,
	}
	err := renderNodes(v.Body, rc)
	rc.scope.Pop()
	rc.buf.WriteString("</form>")
	return err
}

// renderPaginate injects a synthetic single-page paginate object. Real
// multi-page behavior is a known simplification, not a bug.
func renderPaginate(v *PaginateNode, rc *renderContext) error {
	pageSize := 20
	if n, ok := evalInt(v.By, rc); ok && n > 0 {
		pageSize = n
	}
	items := valueLength(evalExpr(v.Subject, rc))
	frame := rc.scope.Push()
	frame["paginate"] = map[string]interface{}{
		"current_page":   1,
		"current_offset": 0,
		"items":          items,
		"parts":          []interface{}{},
		"pages":          1,
		"page_size":      pageSize,
		"previous":       nil,
		"next":           nil,
	}
	err := renderNodes(v.Body, rc)
	rc.scope.Pop()
	return err
}

func renderStyle(v *StyleNode, rc *renderContext) {
	rc.buf.WriteString("<style>")
	_ = renderNodes(v.Body, rc)
	rc.buf.WriteString("</style>")
}

// evalExpr resolves an expression against the current scope. Missing
// variables and fields resolve to nil, never an error.
func evalExpr(e expr.Expr, rc *renderContext) interface{} {
	switch v := e.(type) {
	case nil:
		return nil
	case *expr.Literal:
		return v.Val
	case *expr.EmptyLit:
		return emptyMarker{}
	case *expr.Path:
		return evalPath(v, rc)
	case *expr.RangeLit:
		return evalRange(v, rc)
	case *expr.BinaryExpr:
		return evalBinary(v, rc)
	case *expr.FilterExpr:
		return evalFilter(v, rc)
	default:
		return nil
	}
}

type emptyMarker struct{}

func evalPath(p *expr.Path, rc *renderContext) interface{} {
	cur, ok := rc.scope.Lookup(p.Name)
	if !ok {
		return nil
	}
	for _, seg := range p.Segments {
		if seg.Index != nil {
			cur = indexValue(cur, evalExpr(seg.Index, rc))
		} else {
			cur = fieldValue(cur, seg.Field)
		}
		if cur == nil {
			return nil
		}
	}
	return cur
}

// fieldValue resolves one dotted segment, including the synthetic size,
// first and last properties on collections and strings.
func fieldValue(v interface{}, field string) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if item, ok := val[field]; ok {
			return item
		}
		if field == "size" {
			return len(val)
		}
		return nil
	case []interface{}:
		switch field {
		case "size":
			return len(val)
		case "first":
			if len(val) > 0 {
				return val[0]
			}
		case "last":
			if len(val) > 0 {
				return val[len(val)-1]
			}
		}
		return nil
	case string:
		if field == "size" {
			return len(val)
		}
		return nil
	default:
		return nil
	}
}

func indexValue(v interface{}, key interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return val[stringify(key)]
	case []interface{}:
		if i, ok := toInt(key); ok {
			if i < 0 {
				i += len(val)
			}
			if i >= 0 && i < len(val) {
				return val[i]
			}
		}
		return nil
	default:
		return nil
	}
}

func evalRange(r *expr.RangeLit, rc *renderContext) interface{} {
	from, _ := toInt(evalExpr(r.From, rc))
	to, _ := toInt(evalExpr(r.To, rc))
	if to < from {
		return []interface{}{}
	}
	out := make([]interface{}, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func evalBinary(b *expr.BinaryExpr, rc *renderContext) interface{} {
	switch b.Op {
	case "and":
		return truthy(evalExpr(b.Left, rc)) && truthy(evalExpr(b.Right, rc))
	case "or":
		return truthy(evalExpr(b.Left, rc)) || truthy(evalExpr(b.Right, rc))
	}
	left := evalExpr(b.Left, rc)
	right := evalExpr(b.Right, rc)
	if _, ok := left.(emptyMarker); ok {
		return applyEmptyComparison(b.Op, right)
	}
	if _, ok := right.(emptyMarker); ok {
		return applyEmptyComparison(b.Op, left)
	}
	return compareValues(b.Op, left, right)
}

func applyEmptyComparison(op string, other interface{}) bool {
	empty := isEmptyValue(other)
	if op == "!=" {
		return !empty
	}
	return empty
}

// evalFilter applies one filter. A missing filter or a filter error passes
// the input through unchanged with a logged warning; filters never abort a
// render.
func evalFilter(f *expr.FilterExpr, rc *renderContext) interface{} {
	input := evalExpr(f.Input, rc)
	fn, ok := rc.engine.filters[f.Name]
	if !ok {
		log.Printf("liquid: unknown filter %q, passing value through", f.Name)
		return input
	}
	var args []interface{}
	var kwargs map[string]interface{}
	for _, a := range f.Args {
		val := evalExpr(a.Val, rc)
		if a.Name != "" {
			if kwargs == nil {
				kwargs = make(map[string]interface{})
			}
			kwargs[a.Name] = val
		} else {
			args = append(args, val)
		}
	}
	fctx := &FilterContext{Engine: rc.engine, Locale: rc.locale}
	out, err := fn(fctx, input, args, kwargs)
	if err != nil {
		log.Printf("liquid: filter %q: %v", f.Name, err)
		return input
	}
	return out
}
