package bits

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
)

// ErrInvalidExpression is returned when a path expression is empty or is not
// valid XPath 1.0.
var ErrInvalidExpression = errors.New("invalid path expression")

// Path is a compiled XPath expression. Compile once, evaluate many times.
// A Path is safe for concurrent use.
type Path struct {
	source string

	mu   sync.Mutex
	expr *xpath.Expr
}

// CompilePath compiles expr. Prefixes used in expr are resolved through
// namespaces (prefix -> URI); namespaces may be nil.
func CompilePath(expr string, namespaces map[string]string) (*Path, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	var (
		compiled *xpath.Expr
		err      error
	)
	if len(namespaces) > 0 {
		compiled, err = xpath.CompileWithNS(expr, namespaces)
	} else {
		compiled, err = xpath.Compile(expr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidExpression, expr, err)
	}
	return &Path{source: expr, expr: compiled}, nil
}

// MustCompilePath is like CompilePath but panics on error. Intended for
// expressions that are constants in code.
func MustCompilePath(expr string) *Path {
	p, err := CompilePath(expr, nil)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source expression.
func (p *Path) String() string {
	if p == nil {
		return ""
	}
	return p.source
}

// valueKind tags the result kinds a query can produce.
type valueKind int

const (
	kindElement valueKind = iota
	kindAttribute
	kindText
	kindScalar
	kindOther
)

// value is one query result before coercion.
type value struct {
	kind valueKind
	text string
}

// asString coerces a result to a string. Elements are trimmed; attributes and
// text nodes are returned raw; scalars were stringified when captured. Other
// kinds are not coercible.
func (v value) asString() (string, bool) {
	switch v.kind {
	case kindElement:
		return strings.TrimSpace(v.text), true
	case kindAttribute, kindText, kindScalar:
		return v.text, true
	default:
		return "", false
	}
}

// Strings evaluates the path against ctx and returns every coercible result
// as a string, in document order. Non-coercible results are dropped.
func (p *Path) Strings(ctx *xmlquery.Node) []string {
	if p == nil || ctx == nil {
		return nil
	}
	var out []string
	for _, v := range p.evaluate(ctx) {
		if s, ok := v.asString(); ok {
			out = append(out, s)
		}
	}
	return out
}

// FirstOrEmpty returns the first coerced value, or "" when there is none.
func (p *Path) FirstOrEmpty(ctx *xmlquery.Node) string {
	values := p.Strings(ctx)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// Nodes evaluates the path against ctx and returns the selected element
// nodes in document order. Scalar results select nothing.
func (p *Path) Nodes(ctx *xmlquery.Node) []*xmlquery.Node {
	if p == nil || ctx == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	var nodes []*xmlquery.Node
	for _, n := range xmlquery.QuerySelectorAll(ctx, p.expr) {
		if n.Type == xmlquery.ElementNode || n.Type == xmlquery.DocumentNode {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (p *Path) evaluate(ctx *xmlquery.Node) []value {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := p.expr.Evaluate(xmlquery.CreateXPathNavigator(ctx))
	switch r := result.(type) {
	case *xpath.NodeIterator:
		var values []value
		for r.MoveNext() {
			values = append(values, navigatorValue(r.Current()))
		}
		return values
	case string:
		return []value{{kind: kindScalar, text: r}}
	case float64:
		return []value{{kind: kindScalar, text: formatNumber(r)}}
	case bool:
		return []value{{kind: kindScalar, text: strconv.FormatBool(r)}}
	case nil:
		return nil
	default:
		return []value{{kind: kindScalar, text: fmt.Sprint(r)}}
	}
}

func navigatorValue(nav xpath.NodeNavigator) value {
	switch nav.NodeType() {
	case xpath.ElementNode, xpath.RootNode:
		return value{kind: kindElement, text: innerText(nav)}
	case xpath.AttributeNode:
		return value{kind: kindAttribute, text: nav.Value()}
	case xpath.TextNode:
		if n, ok := nav.(*xmlquery.NodeNavigator); ok {
			return value{kind: kindText, text: n.Current().Data}
		}
		return value{kind: kindText, text: nav.Value()}
	default:
		return value{kind: kindOther}
	}
}

func innerText(nav xpath.NodeNavigator) string {
	if n, ok := nav.(*xmlquery.NodeNavigator); ok {
		return n.Current().InnerText()
	}
	return nav.Value()
}

// formatNumber renders integral values without a fractional part, so that
// count() and number() results can feed integer fields directly.
func formatNumber(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
