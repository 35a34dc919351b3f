package engine

import (
	"fmt"
	"log"
	"strings"

	"liquid_engine/engine/expr"
)

// parser walks the span stream and produces the node AST. Block bodies are
// captured by recursion, so a nested block of the same tag name consumes its
// own end tag and can never terminate the outer block early.
type parser struct {
	spans []span
	pos   int
}

// parseTemplateSource parses raw template text. Parsing never fails as a
// whole: malformed constructs degrade to BadNode diagnostics.
func parseTemplateSource(source string) []Node {
	p := &parser{spans: tokenize(source)}
	nodes, _, _ := p.parseNodes(nil)
	return nodes
}

// parseNodes consumes spans until EOF or until one of the stop tags is seen.
// The stop tag's name and argument text are returned to the caller, which
// owns the branch structure.
func (p *parser) parseNodes(stop map[string]bool) (nodes []Node, endName, endArgs string) {
	for p.pos < len(p.spans) {
		sp := p.spans[p.pos]
		switch sp.typ {
		case spanText:
			p.pos++
			if sp.content != "" {
				nodes = append(nodes, &TextNode{Text: sp.content})
			}
		case spanOutput:
			p.pos++
			nodes = append(nodes, parseOutput(sp.content))
		case spanTag:
			name := tagWord(sp.content)
			if stop != nil && stop[name] {
				p.pos++
				return nodes, name, tagArgs(sp.content)
			}
			p.pos++
			parsed := p.parseTag(name, tagArgs(sp.content), sp)
			nodes = append(nodes, parsed...)
		}
	}
	return nodes, "", ""
}

func parseOutput(content string) Node {
	if strings.TrimSpace(content) == "" {
		return &TextNode{}
	}
	e, err := expr.NewParser(content).ParseAll()
	if err != nil {
		return &BadNode{Tag: "output", Err: err}
	}
	return &OutputNode{Expr: e}
}

func parseExpr(s string) (expr.Expr, error) {
	return expr.NewParser(s).ParseAll()
}

// parseTag builds the node(s) for one tag span. The tag set is closed here:
// dispatch happens once at parse time, never again by name at render time.
func (p *parser) parseTag(name, args string, sp span) []Node {
	switch name {
	case "if", "unless":
		return one(p.parseIf(args, name == "unless"))
	case "case":
		return one(p.parseCase(args))
	case "for":
		return one(p.parseFor(args))
	case "tablerow":
		return one(p.parseTablerow(args))
	case "break":
		return one(&BreakNode{})
	case "continue":
		return one(&ContinueNode{})
	case "assign":
		return one(parseAssign(args))
	case "capture":
		body, _, _ := p.parseNodes(stopSet("endcapture"))
		return one(&CaptureNode{Name: strings.TrimSpace(args), Body: body})
	case "increment", "decrement":
		return one(&CounterNode{Name: strings.TrimSpace(args), Decrement: name == "decrement"})
	case "cycle":
		return one(parseCycle(args))
	case "echo":
		return one(parseOutput(args))
	case "render", "include":
		return one(parsePartial(args, name == "render"))
	case "section":
		nm, err := quotedName(args)
		if err != nil {
			return one(&BadNode{Tag: name, Err: err})
		}
		return one(&SectionNode{Name: nm})
	case "sections":
		nm, err := quotedName(args)
		if err != nil {
			return one(&BadNode{Tag: name, Err: err})
		}
		return one(&SectionGroupNode{Name: nm})
	case "form":
		return one(p.parseForm(args))
	case "paginate":
		return one(p.parsePaginate(args))
	case "style":
		body, _, _ := p.parseNodes(stopSet("endstyle"))
		return one(&StyleNode{Body: body})
	case "raw":
		return one(&RawNode{Text: sp.rawBody})
	case "comment":
		return nil
	case "schema":
		return one(&SchemaNode{JSON: sp.rawBody})
	case "stylesheet":
		return one(&AssetNode{Text: sp.rawBody})
	case "javascript":
		return one(&AssetNode{Script: true, Text: sp.rawBody})
	case "liquid":
		return parseLiquidBatch(args)
	case "layout":
		nm := strings.TrimSpace(args)
		if nm != "none" {
			if q, err := quotedName(nm); err == nil {
				nm = q
			}
		}
		return one(&LayoutNode{Name: nm})
	default:
		log.Printf("template parser: unknown tag %q, rendering as empty", name)
		return one(&UnknownTagNode{Name: name})
	}
}

func one(n Node) []Node {
	if n == nil {
		return nil
	}
	return []Node{n}
}

func stopSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func (p *parser) parseIf(args string, negate bool) Node {
	node := &IfNode{}
	endTag := "endif"
	if negate {
		endTag = "endunless"
	}
	cond, err := parseExpr(args)
	if err != nil {
		// consume the block body so the rest of the template still parses
		p.parseNodes(stopSet(endTag))
		return &BadNode{Tag: "if", Err: err}
	}
	for {
		body, end, endArgs := p.parseNodes(stopSet("elsif", "else", endTag))
		node.Branches = append(node.Branches, CondBranch{Cond: cond, Negate: negate, Body: body})
		switch end {
		case "elsif":
			cond, err = parseExpr(endArgs)
			if err != nil {
				p.parseNodes(stopSet("else", endTag))
				return &BadNode{Tag: "elsif", Err: err}
			}
			negate = false
		case "else":
			node.Else, _, _ = p.parseNodes(stopSet(endTag))
			return node
		default:
			return node
		}
	}
}

func (p *parser) parseCase(args string) Node {
	subject, err := parseExpr(args)
	if err != nil {
		p.parseNodes(stopSet("endcase"))
		return &BadNode{Tag: "case", Err: err}
	}
	node := &CaseNode{Subject: subject}
	// text between case and the first when is discarded
	_, end, endArgs := p.parseNodes(stopSet("when", "else", "endcase"))
	for end == "when" {
		values, err := parseWhenValues(endArgs)
		if err != nil {
			p.parseNodes(stopSet("endcase"))
			return &BadNode{Tag: "when", Err: err}
		}
		var body []Node
		body, end, endArgs = p.parseNodes(stopSet("when", "else", "endcase"))
		node.Whens = append(node.Whens, WhenBranch{Values: values, Body: body})
	}
	if end == "else" {
		node.Else, _, _ = p.parseNodes(stopSet("endcase"))
	}
	return node
}

func parseWhenValues(args string) ([]expr.Expr, error) {
	pr := expr.NewParser(args)
	var values []expr.Expr
	for {
		v, err := pr.ParseOperand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		tok := pr.Peek()
		if tok.Typ == expr.TokComma || (tok.Typ == expr.TokIdent && tok.Val == "or") {
			pr.Next()
			continue
		}
		break
	}
	if !pr.AtEOF() {
		return nil, fmt.Errorf("unexpected token in when values: %q", pr.Peek().Val)
	}
	return values, nil
}

func (p *parser) parseFor(args string) Node {
	node := &ForNode{}
	if err := parseLoopHead(args, &node.Var, &node.Coll, func(key string, val expr.Expr) error {
		switch key {
		case "limit":
			node.Limit = val
		case "offset":
			node.Offset = val
		case "reversed":
			node.Reversed = true
		default:
			return fmt.Errorf("unknown for modifier %q", key)
		}
		return nil
	}); err != nil {
		p.parseNodes(stopSet("endfor"))
		return &BadNode{Tag: "for", Err: err}
	}
	body, end, _ := p.parseNodes(stopSet("else", "endfor"))
	node.Body = body
	if end == "else" {
		node.Else, _, _ = p.parseNodes(stopSet("endfor"))
	}
	return node
}

func (p *parser) parseTablerow(args string) Node {
	node := &TablerowNode{}
	if err := parseLoopHead(args, &node.Var, &node.Coll, func(key string, val expr.Expr) error {
		switch key {
		case "cols":
			node.Cols = val
		case "limit":
			node.Limit = val
		case "offset":
			node.Offset = val
		default:
			return fmt.Errorf("unknown tablerow modifier %q", key)
		}
		return nil
	}); err != nil {
		p.parseNodes(stopSet("endtablerow"))
		return &BadNode{Tag: "tablerow", Err: err}
	}
	node.Body, _, _ = p.parseNodes(stopSet("endtablerow"))
	return node
}

// parseLoopHead reads `item in collection` plus trailing `key: value` and
// bare-keyword modifiers shared by for and tablerow.
func parseLoopHead(args string, varName *string, coll *expr.Expr, modifier func(string, expr.Expr) error) error {
	pr := expr.NewParser(args)
	tok := pr.Next()
	if tok.Typ != expr.TokIdent {
		return fmt.Errorf("expected loop variable, got %q", tok.Val)
	}
	*varName = tok.Val
	if in := pr.Next(); in.Typ != expr.TokIdent || in.Val != "in" {
		return fmt.Errorf("expected 'in' after loop variable")
	}
	c, err := pr.ParseOperand()
	if err != nil {
		return err
	}
	*coll = c
	for !pr.AtEOF() {
		key := pr.Next()
		if key.Typ != expr.TokIdent {
			return fmt.Errorf("unexpected token %q in loop arguments", key.Val)
		}
		if key.Val == "reversed" {
			if err := modifier("reversed", nil); err != nil {
				return err
			}
			continue
		}
		if colon := pr.Next(); colon.Typ != expr.TokColon {
			return fmt.Errorf("expected ':' after %q", key.Val)
		}
		val, err := pr.ParseOperand()
		if err != nil {
			return err
		}
		if err := modifier(key.Val, val); err != nil {
			return err
		}
	}
	return nil
}

func parseAssign(args string) Node {
	idx := strings.Index(args, "=")
	if idx == -1 {
		return &BadNode{Tag: "assign", Err: fmt.Errorf("missing '=' in assign")}
	}
	name := strings.TrimSpace(args[:idx])
	value, err := parseExpr(args[idx+1:])
	if err != nil {
		return &BadNode{Tag: "assign", Err: err}
	}
	return &AssignNode{Name: name, Value: value}
}

func parseCycle(args string) Node {
	node := &CycleNode{}
	pr := expr.NewParser(args)
	first, err := pr.ParseOperand()
	if err != nil {
		return &BadNode{Tag: "cycle", Err: err}
	}
	if pr.Peek().Typ == expr.TokColon {
		pr.Next()
		node.Group = cycleGroupName(first)
		first, err = pr.ParseOperand()
		if err != nil {
			return &BadNode{Tag: "cycle", Err: err}
		}
	}
	node.Values = append(node.Values, first)
	for pr.Peek().Typ == expr.TokComma {
		pr.Next()
		v, err := pr.ParseOperand()
		if err != nil {
			return &BadNode{Tag: "cycle", Err: err}
		}
		node.Values = append(node.Values, v)
	}
	return node
}

func cycleGroupName(e expr.Expr) string {
	if lit, ok := e.(*expr.Literal); ok {
		if s, ok := lit.Val.(string); ok {
			return s
		}
	}
	return expr.String(e)
}

func parsePartial(args string, isolated bool) Node {
	pr := expr.NewParser(args)
	nameTok := pr.Next()
	if nameTok.Typ != expr.TokString {
		return &BadNode{Tag: "render", Err: fmt.Errorf("partial name must be a quoted string")}
	}
	node := &PartialNode{Name: nameTok.Val, Isolated: isolated}
	if tok := pr.Peek(); tok.Typ == expr.TokIdent && (tok.Val == "with" || tok.Val == "for") {
		kw := pr.Next().Val
		e, err := pr.ParseOperand()
		if err != nil {
			return &BadNode{Tag: "render", Err: err}
		}
		if kw == "with" {
			node.With = e
		} else {
			node.For = e
		}
		if as := pr.Peek(); as.Typ == expr.TokIdent && as.Val == "as" {
			pr.Next()
			alias := pr.Next()
			if alias.Typ != expr.TokIdent {
				return &BadNode{Tag: "render", Err: fmt.Errorf("expected alias after 'as'")}
			}
			node.Alias = alias.Val
		}
	}
	for !pr.AtEOF() {
		if pr.Peek().Typ == expr.TokComma {
			pr.Next()
			continue
		}
		key := pr.Next()
		if key.Typ != expr.TokIdent {
			return &BadNode{Tag: "render", Err: fmt.Errorf("expected argument name, got %q", key.Val)}
		}
		if colon := pr.Next(); colon.Typ != expr.TokColon {
			return &BadNode{Tag: "render", Err: fmt.Errorf("expected ':' after argument %q", key.Val)}
		}
		val, err := pr.ParseOperand()
		if err != nil {
			return &BadNode{Tag: "render", Err: err}
		}
		node.Args = append(node.Args, PartialArg{Name: key.Val, Value: val})
	}
	return node
}

func (p *parser) parseForm(args string) Node {
	pr := expr.NewParser(args)
	nameTok := pr.Next()
	node := &FormNode{}
	if nameTok.Typ == expr.TokString {
		node.Type = nameTok.Val
	}
	for !pr.AtEOF() {
		if pr.Peek().Typ == expr.TokComma {
			pr.Next()
			continue
		}
		key := pr.Next()
		if key.Typ == expr.TokIdent && pr.Peek().Typ == expr.TokColon {
			pr.Next()
			val, err := pr.ParseOperand()
			if err != nil {
				break
			}
			node.Args = append(node.Args, PartialArg{Name: key.Val, Value: val})
			continue
		}
		// positional argument (e.g. the product handle); carried unnamed
		node.Args = append(node.Args, PartialArg{Value: &expr.Literal{Val: key.Val}})
	}
	node.Body, _, _ = p.parseNodes(stopSet("endform"))
	return node
}

func (p *parser) parsePaginate(args string) Node {
	pr := expr.NewParser(args)
	subject, err := pr.ParseOperand()
	if err != nil {
		p.parseNodes(stopSet("endpaginate"))
		return &BadNode{Tag: "paginate", Err: err}
	}
	node := &PaginateNode{Subject: subject}
	if by := pr.Peek(); by.Typ == expr.TokIdent && by.Val == "by" {
		pr.Next()
		node.By, err = pr.ParseOperand()
		if err != nil {
			p.parseNodes(stopSet("endpaginate"))
			return &BadNode{Tag: "paginate", Err: err}
		}
	}
	node.Body, _, _ = p.parseNodes(stopSet("endpaginate"))
	return node
}

// parseLiquidBatch expands the multi-statement liquid tag: each non-blank
// line is an implicit {% line %} tag, parsed as one batch so state such as
// capture persists across lines.
func parseLiquidBatch(body string) []Node {
	var synth []span
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		synth = append(synth, span{typ: spanTag, content: line})
	}
	sub := &parser{spans: synth}
	nodes, _, _ := sub.parseNodes(nil)
	return nodes
}

func quotedName(args string) (string, error) {
	pr := expr.NewParser(args)
	tok := pr.Next()
	if tok.Typ != expr.TokString {
		return "", fmt.Errorf("expected quoted name, got %q", args)
	}
	return tok.Val, nil
}
