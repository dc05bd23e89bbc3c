package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// contentNode is one element of a decoded page content stream.
type contentNode interface {
	accept(v contentVisitor)
}

type contentVisitor interface {
	visitOperator(n operatorNode)
	visitSequence(n sequenceNode)
	visitString(n stringLeaf)
}

// operatorNode is a content-stream operator with its operands in stream order.
type operatorNode struct {
	name     string
	operands []contentNode
}

// sequenceNode is an array operand, e.g. the argument of TJ.
type sequenceNode struct {
	items []contentNode
}

type stringLeaf struct {
	text string
}

func (n operatorNode) accept(v contentVisitor) { v.visitOperator(n) }
func (n sequenceNode) accept(v contentVisitor) { v.visitSequence(n) }
func (n stringLeaf) accept(v contentVisitor)   { v.visitString(n) }

// textCollector concatenates every string leaf in traversal order.
type textCollector struct {
	b strings.Builder
}

func (c *textCollector) visitOperator(n operatorNode) {
	for _, op := range n.operands {
		op.accept(c)
	}
}

func (c *textCollector) visitSequence(n sequenceNode) {
	for _, item := range n.items {
		item.accept(c)
	}
}

func (c *textCollector) visitString(n stringLeaf) {
	c.b.WriteString(n.text)
}

// toNode converts a pdf operand. Operands that cannot carry text yield nil.
func toNode(v pdf.Value) contentNode {
	switch v.Kind() {
	case pdf.String:
		return stringLeaf{text: v.Text()}
	case pdf.Array:
		seq := sequenceNode{}
		for i := 0; i < v.Len(); i++ {
			if n := toNode(v.Index(i)); n != nil {
				seq.items = append(seq.items, n)
			}
		}
		return seq
	default:
		return nil
	}
}

// pageOperators decodes the content streams of a page into operator nodes.
func pageOperators(page pdf.Page) []contentNode {
	contents := page.V.Key("Contents")
	var streams []pdf.Value
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			streams = append(streams, contents.Index(i))
		}
	} else if !contents.IsNull() {
		streams = append(streams, contents)
	}

	var ops []contentNode
	for _, strm := range streams {
		pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
			n := stk.Len()
			args := make([]pdf.Value, n)
			for i := n - 1; i >= 0; i-- {
				args[i] = stk.Pop()
			}
			node := operatorNode{name: op}
			for _, a := range args {
				if c := toNode(a); c != nil {
					node.operands = append(node.operands, c)
				}
			}
			ops = append(ops, node)
		})
	}
	return ops
}

// extractPDF walks every page's content stream and concatenates string operands
// in page order, with no separator between pages.
func extractPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	collector := &textCollector{}
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		for _, op := range pageOperators(page) {
			op.accept(collector)
		}
	}
	return collector.b.String(), nil
}
