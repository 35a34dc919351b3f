package engine

import (
	"liquid_engine/engine/expr"
)

// Node is one element of a parsed template. The node set is closed: every
// known tag resolves to its own node type at parse time, and anything else
// becomes an UnknownTagNode that renders empty.
type Node interface{}

// TextNode is literal template text.
type TextNode struct {
	Text string
}

// OutputNode is a {{ expr }} interpolation (and the echo tag).
type OutputNode struct {
	Expr expr.Expr
}

// BadNode replaces anything that failed to parse; it renders a diagnostic
// comment and nothing else.
type BadNode struct {
	Tag string
	Err error
}

// UnknownTagNode renders as empty output with a logged warning.
type UnknownTagNode struct {
	Name string
}

// CondBranch is one arm of an if/elsif chain.
type CondBranch struct {
	Cond   expr.Expr
	Negate bool // unless
	Body   []Node
}

type IfNode struct {
	Branches []CondBranch
	Else     []Node
}

type WhenBranch struct {
	Values []expr.Expr
	Body   []Node
}

type CaseNode struct {
	Subject expr.Expr
	Whens   []WhenBranch
	Else    []Node
}

type ForNode struct {
	Var      string
	Coll     expr.Expr
	Limit    expr.Expr
	Offset   expr.Expr
	Reversed bool
	Body     []Node
	Else     []Node
}

type TablerowNode struct {
	Var    string
	Coll   expr.Expr
	Cols   expr.Expr
	Limit  expr.Expr
	Offset expr.Expr
	Body   []Node
}

type BreakNode struct{}
type ContinueNode struct{}

type AssignNode struct {
	Name  string
	Value expr.Expr
}

type CaptureNode struct {
	Name string
	Body []Node
}

// CounterNode covers both increment and decrement.
type CounterNode struct {
	Name      string
	Decrement bool
}

type CycleNode struct {
	Group  string // optional explicit group name
	Values []expr.Expr
}

// PartialNode covers render and include; Isolated distinguishes them.
type PartialNode struct {
	Name     string
	Isolated bool
	Args     []PartialArg
	With     expr.Expr // render 'x' with expr [as alias]
	For      expr.Expr // render 'x' for arr [as alias]
	Alias    string
}

type PartialArg struct {
	Name  string
	Value expr.Expr
}

// SectionNode renders a statically named section ({% section 'hero' %}).
type SectionNode struct {
	Name string
}

// SectionGroupNode renders a section-group document ({% sections 'header-group' %}).
type SectionGroupNode struct {
	Name string
}

type FormNode struct {
	Type string
	Args []PartialArg
	Body []Node
}

type PaginateNode struct {
	Subject expr.Expr
	By      expr.Expr
	Body    []Node
}

// RawNode emits its captured body verbatim (the raw tag).
type RawNode struct {
	Text string
}

// SchemaNode carries the section schema JSON; it never emits output.
type SchemaNode struct {
	JSON string
}

// StyleNode renders its body as CSS wrapped in a <style> element.
type StyleNode struct {
	Body []Node
}

// AssetNode wraps a stylesheet or javascript tag body in the matching HTML
// element.
type AssetNode struct {
	Script bool
	Text   string
}

// LayoutNode overrides the layout used by the page assembler for this pass.
type LayoutNode struct {
	Name string // "none" disables the layout
}
