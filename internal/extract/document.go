package extract

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Node is a read-only view of a parsed markup element.
type Node interface {
	// All returns every descendant matching selector, in document order.
	All(selector string) []Node
	// First returns the first descendant matching selector, or nil.
	First(selector string) Node
	Attr(name string) (string, bool)
	Text() string
}

// Parse builds a Node tree from raw HTML. Malformed markup is repaired by
// the HTML5 parser rather than rejected.
func Parse(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return selection{doc.Selection}, nil
}

type selection struct {
	s *goquery.Selection
}

func (n selection) All(selector string) []Node {
	found := n.s.Find(selector)
	out := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		out = append(out, selection{s})
	})
	return out
}

func (n selection) First(selector string) Node {
	found := n.s.Find(selector).First()
	if found.Length() == 0 {
		return nil
	}
	return selection{found}
}

func (n selection) Attr(name string) (string, bool) {
	return n.s.Attr(name)
}

func (n selection) Text() string {
	return n.s.Text()
}
