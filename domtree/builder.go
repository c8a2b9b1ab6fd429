package domtree

import (
	"errors"

	"github.com/orvant/xmlcore/saxapi"
)

var errDeepXML = errors.New("domtree: document too deeply nested")

// Builder implements saxapi.ContentHandler (and, loosely, the lexical
// events it cares about through its own methods) to build a tree of
// Element values. It is the concrete DOM-collecting handler referenced by
// spec §4.2 for catalog parsing and reused by grammar/relaxng for its
// tree-rewriting passes.
type Builder struct {
	Root    *Element
	stack   []*Element
	scopes  []Scope
	depth   int
	comment []string
	err     error
}

// NewBuilder returns a Builder ready to be driven by a parser.
func NewBuilder() *Builder {
	base := Scope{ns: []Name{
		{Space: "http://www.w3.org/XML/1998/namespace", Local: "xml"},
		{Space: "http://www.w3.org/2000/xmlns/", Local: "xmlns"},
	}}
	return &Builder{scopes: []Scope{base}}
}

func (b *Builder) SetDocumentLocator(saxapi.DocumentLocator) {}

func (b *Builder) StartDocument() error { return nil }

func (b *Builder) XMLDeclaration(version, encoding string, standalone *bool) error { return nil }

func (b *Builder) EndDocument() error { return b.err }

// bindingsFromAttrs extracts xmlns/xmlns:* declarations from a start tag's
// attributes, in the order they appear.
func bindingsFromAttrs(attrs []saxapi.Attribute) []Name {
	var ns []Name
	for _, a := range attrs {
		switch {
		case a.Prefix == "xmlns":
			ns = append(ns, Name{Space: a.Value, Local: a.LocalName})
		case a.Prefix == "" && a.LocalName == "xmlns":
			ns = append(ns, Name{Space: a.Value, Local: ""})
		}
	}
	return ns
}

func (b *Builder) StartElement(elem saxapi.ParsedElement) error {
	if b.err != nil {
		return b.err
	}
	b.depth++
	if b.depth > recursionLimit {
		b.err = errDeepXML
		return b.err
	}
	parentScope := b.scopes[len(b.scopes)-1]
	scope := parentScope.push(bindingsFromAttrs(elem.Attributes()))
	b.scopes = append(b.scopes, scope)

	name := Name{Space: elem.URI(), Local: elem.LocalName()}
	if name.Space == "" && elem.URI() == "" {
		// Fall back to resolving the lexical prefix ourselves when the
		// caller hands us an unresolved ParsedElement (e.g. a bare
		// start-tag struct that hasn't been through namespace scoping).
		name = scope.Resolve(elem.Name())
	}
	el := &Element{QName: name, Attr: append([]saxapi.Attribute(nil), elem.Attributes()...), Scope: scope}

	if len(b.stack) == 0 {
		b.Root = el
	} else {
		parent := b.stack[len(b.stack)-1]
		parent.Children = append(parent.Children, *el)
		el = &parent.Children[len(parent.Children)-1]
	}
	b.stack = append(b.stack, el)
	return nil
}

func (b *Builder) EndElement(elem saxapi.ParsedElement) error {
	if b.err != nil {
		return b.err
	}
	b.depth--
	b.stack = b.stack[:len(b.stack)-1]
	b.scopes = b.scopes[:len(b.scopes)-1]
	return nil
}

func (b *Builder) Characters(text string) error {
	if b.err != nil || len(b.stack) == 0 {
		return b.err
	}
	top := b.stack[len(b.stack)-1]
	top.Content += text
	return nil
}

func (b *Builder) IgnorableWhitespace(text string) error {
	return b.Characters(text)
}

func (b *Builder) ProcessingInstruction(target, data string) error { return nil }

func (b *Builder) SkippedEntity(name string) error { return nil }

// Comment records the text of every comment, at any depth, in document
// order; comments are not attached to the built tree (they carry no
// structure relevant to catalogs or RelaxNG).
func (b *Builder) Comment(text string) error {
	b.comment = append(b.comment, text)
	return nil
}

func (b *Builder) StartCDATA() error { return nil }
func (b *Builder) EndCDATA() error   { return nil }

func (b *Builder) StartDTD(name, publicID, systemID string) error { return nil }
func (b *Builder) InternalSubset(text string) error               { return nil }
func (b *Builder) EndDTD() error                                  { return nil }
