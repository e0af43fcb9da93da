package xmlcompare

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

type nodeKind int

const (
	elementNode nodeKind = iota
	textNode
)

type node struct {
	kind     nodeKind
	name     xml.Name
	attrs    []xml.Attr
	children []*node
	text     string
}

// parse reads a document into a tree of elements and normalized text. Comments, processing
// instructions, directives, namespace declarations, whitespace-only text and every node
// excluded by the filter are dropped. The returned root is nil if the filter excluded the
// root element itself.
func parse(r io.Reader, exclude func(xml.Name) bool) (*node, error) {
	d := xml.NewDecoder(r)
	d.Strict = true
	d.CharsetReader = charset.NewReaderLabel

	var (
		root    *node
		sawRoot bool
		stack   []*node
		pending strings.Builder
	)
	flush := func() {
		if len(stack) == 0 {
			pending.Reset()
			return
		}
		text := normalizeSpace(pending.String())
		pending.Reset()
		if text == "" {
			return
		}
		parent := stack[len(stack)-1]
		parent.children = append(parent.children, &node{kind: textNode, text: text})
	}

	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			flush()
			if len(stack) == 0 {
				if sawRoot {
					return nil, errors.New("document has more than one root element")
				}
				sawRoot = true
			}
			if exclude(t.Name) {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			n := &node{kind: elementNode, name: t.Name}
			for _, a := range t.Attr {
				if isNamespaceDeclaration(a.Name) || exclude(a.Name) {
					continue
				}
				n.attrs = append(n.attrs, a)
			}
			if len(stack) == 0 {
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			flush()
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				pending.Write(t)
			}
		}
	}
	if !sawRoot {
		return nil, errors.New("document has no root element")
	}
	return root, nil
}

func isNamespaceDeclaration(name xml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// describe renders an element the way it appears in the document, without its content.
func (n *node) describe() string {
	if n.kind == textNode {
		return fmt.Sprintf("text '%s'", n.text)
	}
	var b strings.Builder
	b.WriteString("<" + n.name.Local)
	for _, a := range n.attrs {
		fmt.Fprintf(&b, " %s=%q", a.Name.Local, a.Value)
	}
	b.WriteString(">")
	return b.String()
}

func (n *node) attr(name xml.Name) (string, bool) {
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
