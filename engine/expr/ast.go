package expr

import (
	"strconv"
	"strings"
)

// AST node types for the expression language used inside {{ ... }} outputs
// and {% ... %} tag arguments.
type Expr interface{}

// Literal holds a constant: string, int, float64, bool or nil.
type Literal struct{ Val interface{} }

// EmptyLit is the special `empty`/`blank` comparison target.
type EmptyLit struct{}

// Path is a dotted/indexed variable lookup such as section.settings.heading
// or product.images[0].
type Path struct {
	Name     string
	Segments []Segment
}

// Segment is one step of a Path: either a literal field name or a computed
// index expression.
type Segment struct {
	Field string
	Index Expr // non-nil for [expr] access
}

// RangeLit is a (from..to) range literal.
type RangeLit struct {
	From Expr
	To   Expr
}

// BinaryExpr covers comparisons, `contains`, `and` and `or`.
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

// FilterArg is one filter argument, optionally named (`truncate: 20` vs
// `t: count: 3`).
type FilterArg struct {
	Name string
	Val  Expr
}

// FilterExpr applies a named filter to its input value.
type FilterExpr struct {
	Input Expr
	Name  string
	Args  []FilterArg
}

// String renders an Expr back to source-ish form; used in diagnostics only.
func String(e Expr) string {
	switch v := e.(type) {
	case *Literal:
		switch lv := v.Val.(type) {
		case string:
			return "'" + lv + "'"
		case nil:
			return "nil"
		default:
			return toLiteralString(lv)
		}
	case *EmptyLit:
		return "empty"
	case *Path:
		var sb strings.Builder
		sb.WriteString(v.Name)
		for _, seg := range v.Segments {
			if seg.Index != nil {
				sb.WriteString("[" + String(seg.Index) + "]")
			} else {
				sb.WriteString("." + seg.Field)
			}
		}
		return sb.String()
	case *RangeLit:
		return "(" + String(v.From) + ".." + String(v.To) + ")"
	case *BinaryExpr:
		return String(v.Left) + " " + v.Op + " " + String(v.Right)
	case *FilterExpr:
		s := String(v.Input) + " | " + v.Name
		for i, a := range v.Args {
			if i == 0 {
				s += ": "
			} else {
				s += ", "
			}
			if a.Name != "" {
				s += a.Name + ": "
			}
			s += String(a.Val)
		}
		return s
	default:
		return "?"
	}
}

func toLiteralString(v interface{}) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(n)
	default:
		return ""
	}
}
