// Package xmlcompare decides whether two XML documents are semantically equivalent.
//
// Before comparing, both documents are reduced to their elements, attributes and text:
// comments are dropped, whitespace-only text is dropped, runs of whitespace inside text are
// collapsed to a single space, and every element or attribute whose local name is in the
// IgnoreSet is removed together with its content, including the root element. The reduced
// trees must then be identical: same element names and namespaces, same attributes (in any
// order), same text, and the same children in the same order.
//
// Comparison stops at the first difference in document order.
package xmlcompare

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
)

// Kind classifies a Difference.
type Kind int

const (
	NodeType Kind = iota
	NamespaceURI
	ElementName
	AttributeCount
	AttributeLookup
	AttributeValue
	ChildCount
	TextValue
)

func (k Kind) String() string {
	switch k {
	case NodeType:
		return "node type"
	case NamespaceURI:
		return "namespace URI"
	case ElementName:
		return "element name"
	case AttributeCount:
		return "number of attributes"
	case AttributeLookup:
		return "attribute"
	case AttributeValue:
		return "attribute value"
	case ChildCount:
		return "number of child nodes"
	case TextValue:
		return "text value"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Difference is one place where the documents disagree. Expected and Actual describe the
// compared detail on each side; the paths locate it in the respective document.
type Difference struct {
	Kind         Kind
	Expected     string
	Actual       string
	ExpectedPath string
	ActualPath   string
}

// ExpectedDescription is the human-readable description of the expected side.
func (d Difference) ExpectedDescription() string {
	return d.Expected + " at " + d.ExpectedPath
}

// ActualDescription is the human-readable description of the actual side.
func (d Difference) ActualDescription() string {
	return d.Actual + " at " + d.ActualPath
}

func (d Difference) String() string {
	return fmt.Sprintf("Expected %s %s but was %s - comparing %s to %s",
		d.Kind, d.Expected, d.Actual, d.ExpectedPath, d.ActualPath)
}

// Result is the outcome of a comparison. FirstDifference is nil if and only if
// HasDifferences is false.
type Result struct {
	HasDifferences  bool
	FirstDifference *Difference
}

// DocumentError is returned when one of the documents cannot be parsed.
type DocumentError struct {
	// Side is "expected" or "actual".
	Side string
	Err  error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s document is not well-formed XML: %s", e.Side, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Comparator compares documents under a fixed IgnoreSet. It has no mutable state and may be
// shared between goroutines.
type Comparator struct {
	ignore IgnoreSet
}

func New(ignore IgnoreSet) *Comparator {
	return &Comparator{ignore: ignore}
}

func (c *Comparator) IgnoreSet() IgnoreSet {
	return c.ignore
}

// Compare parses both documents and compares them.
func (c *Comparator) Compare(expected, actual io.Reader) (Result, error) {
	exp, err := parse(expected, c.ignore.Excludes)
	if err != nil {
		return Result{}, &DocumentError{Side: "expected", Err: err}
	}
	act, err := parse(actual, c.ignore.Excludes)
	if err != nil {
		return Result{}, &DocumentError{Side: "actual", Err: err}
	}
	if exp == nil || act == nil {
		if exp == act {
			return Result{}, nil
		}
		d := &Difference{Kind: ChildCount, Expected: rootCount(exp), Actual: rootCount(act),
			ExpectedPath: "/", ActualPath: "/"}
		return Result{HasDifferences: true, FirstDifference: d}, nil
	}
	if d := compareElements(exp, act, "/"+step(exp, 1), "/"+step(act, 1)); d != nil {
		return Result{HasDifferences: true, FirstDifference: d}, nil
	}
	return Result{}, nil
}

func (c *Comparator) CompareBytes(expected, actual []byte) (Result, error) {
	return c.Compare(bytes.NewReader(expected), bytes.NewReader(actual))
}

// CompareFiles compares two documents on disk.
func (c *Comparator) CompareFiles(expectedPath, actualPath string) (Result, error) {
	expected, err := os.Open(expectedPath)
	if err != nil {
		return Result{}, err
	}
	defer expected.Close()
	actual, err := os.Open(actualPath)
	if err != nil {
		return Result{}, err
	}
	defer actual.Close()
	return c.Compare(expected, actual)
}

func compareElements(exp, act *node, expPath, actPath string) *Difference {
	if exp.name.Space != act.name.Space {
		return &Difference{Kind: NamespaceURI, Expected: quote(exp.name.Space), Actual: quote(act.name.Space),
			ExpectedPath: expPath, ActualPath: actPath}
	}
	if exp.name.Local != act.name.Local {
		return &Difference{Kind: ElementName, Expected: exp.describe(), Actual: act.describe(),
			ExpectedPath: expPath, ActualPath: actPath}
	}
	if len(exp.attrs) != len(act.attrs) {
		return &Difference{Kind: AttributeCount,
			Expected: strconv.Itoa(len(exp.attrs)), Actual: strconv.Itoa(len(act.attrs)),
			ExpectedPath: expPath, ActualPath: actPath}
	}
	for _, a := range exp.attrs {
		attrPath := "/@" + a.Name.Local
		v, found := act.attr(a.Name)
		if !found {
			return &Difference{Kind: AttributeLookup, Expected: quote(a.Name.Local), Actual: "none",
				ExpectedPath: expPath + attrPath, ActualPath: actPath}
		}
		if v != a.Value {
			return &Difference{Kind: AttributeValue, Expected: quote(a.Value), Actual: quote(v),
				ExpectedPath: expPath + attrPath, ActualPath: actPath + attrPath}
		}
	}
	if len(exp.children) != len(act.children) {
		return &Difference{Kind: ChildCount,
			Expected: strconv.Itoa(len(exp.children)), Actual: strconv.Itoa(len(act.children)),
			ExpectedPath: expPath, ActualPath: actPath}
	}

	expSteps := childSteps(exp)
	actSteps := childSteps(act)
	for i := range exp.children {
		e, a := exp.children[i], act.children[i]
		ep, ap := expPath+"/"+expSteps[i], actPath+"/"+actSteps[i]
		if e.kind != a.kind {
			return &Difference{Kind: NodeType, Expected: e.describe(), Actual: a.describe(),
				ExpectedPath: ep, ActualPath: ap}
		}
		if e.kind == textNode {
			if e.text != a.text {
				return &Difference{Kind: TextValue, Expected: quote(e.text), Actual: quote(a.text),
					ExpectedPath: ep, ActualPath: ap}
			}
			continue
		}
		if d := compareElements(e, a, ep, ap); d != nil {
			return d
		}
	}
	return nil
}

// childSteps returns the XPath location step of each child, such as "item[2]" or
// "text()[1]".
func childSteps(parent *node) []string {
	counts := make(map[string]int)
	steps := make([]string, len(parent.children))
	for i, c := range parent.children {
		key := "text()"
		if c.kind == elementNode {
			key = c.name.Local
		}
		counts[key]++
		steps[i] = key + "[" + strconv.Itoa(counts[key]) + "]"
	}
	return steps
}

func step(n *node, position int) string {
	return n.name.Local + "[" + strconv.Itoa(position) + "]"
}

func rootCount(root *node) string {
	if root == nil {
		return "0"
	}
	return "1"
}

func quote(s string) string {
	return "'" + s + "'"
}
