// Package importer parses Daypo quiz exports into import items.
//
// A Daypo export looks like:
//
//	<test>
//	  <p><t>Quiz title</t></p>
//	  <c>                      questions container, direct child of the root
//	    <e>                    one question
//	      <p>15. Prompt</p>
//	      <r><o>A</o><o>B</o></r>
//	      <c>21</c>            correctness code, '2' marks a correct option
//	    </e>
//	  </c>
//	</test>
package importer

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"daypo-quiz-service/internal/domain"
	"golang.org/x/net/html/charset"
)

// DefaultTitle is used when the export carries no title.
const DefaultTitle = "Cuestionario"

const (
	tagContainer = "c"
	tagCode      = "c"
	tagPrompt    = "p"
	tagOptions   = "r"
	tagTitle     = "t"
)

// node is a minimal element tree; text holds the element's full text content.
type node struct {
	name     string
	children []*node
	text     strings.Builder
}

func (n *node) child(name string) *node {
	for _, c := range n.children {
		if strings.EqualFold(c.name, name) {
			return c
		}
	}
	return nil
}

func (n *node) content() string {
	return strings.TrimSpace(n.text.String())
}

// Parse reads a Daypo export. Malformed XML and a missing questions container
// are reported as *domain.ParseError; questions with an empty prompt or fewer
// than two options are skipped.
func Parse(r io.Reader) (domain.ParsedQuiz, error) {
	root, err := buildTree(r)
	if err != nil {
		return domain.ParsedQuiz{}, err
	}

	title := DefaultTitle
	if t := findTitle(root); t != nil {
		if s := t.content(); s != "" {
			title = s
		}
	}

	// The container must be a direct child of the root; a nested <c> is a
	// correctness code, not a container.
	container := root.child(tagContainer)
	if container == nil {
		return domain.ParsedQuiz{}, &domain.ParseError{Msg: "questions container <c> not found under document root"}
	}

	items := make([]domain.ImportItem, 0, len(container.children))
	for _, qn := range container.children {
		if item, ok := parseItem(qn); ok {
			items = append(items, item)
		}
	}
	return domain.ParsedQuiz{Title: title, Items: items}, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (domain.ParsedQuiz, error) {
	return Parse(bytes.NewReader(data))
}

func parseItem(qn *node) (domain.ImportItem, bool) {
	promptText := ""
	if p := qn.child(tagPrompt); p != nil {
		promptText = p.content()
	}
	origNo, clean := ImportNumbering(promptText)

	var options []string
	if r := qn.child(tagOptions); r != nil {
		for _, o := range r.children {
			if s := o.content(); s != "" {
				options = append(options, s)
			}
		}
	}

	code := ""
	if c := qn.child(tagCode); c != nil {
		code = c.content()
	}

	if clean == "" || len(options) < 2 {
		return domain.ImportItem{}, false
	}
	return domain.ImportItem{
		OrigNo:  origNo,
		Prompt:  clean,
		Options: options,
		Correct: DecodeCorrect(code, len(options)),
	}, true
}

// findTitle returns the first <t> whose parent is a <p>, in document order.
func findTitle(n *node) *node {
	for _, c := range n.children {
		if strings.EqualFold(c.name, tagTitle) && strings.EqualFold(n.name, tagPrompt) {
			return c
		}
		if found := findTitle(c); found != nil {
			return found
		}
	}
	return nil
}

func buildTree(r io.Reader) (*node, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var (
		root  *node
		stack []*node
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &domain.ParseError{Msg: "malformed xml", Err: err}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) == 0 {
				if root != nil {
					return nil, &domain.ParseError{Msg: "multiple root elements"}
				}
				root = n
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, &domain.ParseError{Msg: "text outside root element"}
				}
				continue
			}
			for _, open := range stack {
				open.text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, &domain.ParseError{Msg: "document has no root element"}
	}
	if len(stack) != 0 {
		return nil, &domain.ParseError{Msg: "unexpected end of document"}
	}
	return root, nil
}
