// Package domtree is the DOM event consumer: it implements saxapi.Handler
// to build a tree of Element values from a stream of parser events. It is
// the concrete form of the "event consumers (out of core)" contract named
// in spec §1/§6 for the one consumer this module actually needs: catalog
// parsing (§4.2 requires catalogs to be parsed "via the core parser with a
// DOM-collecting handler") and the RelaxNG tree-rewriting steps in §4.7.
//
// The Element/Scope shape and its namespace-resolution and search methods
// are adapted from the teacher's xmltree package, with one structural
// change: xmltree.Parse builds its tree directly from an encoding/xml
// decoder, while domtree.Builder is a passive saxapi.ContentHandler that
// any parser.Parser (or other event source) can drive.
package domtree

import (
	"fmt"
	"strings"

	"github.com/orvant/xmlcore/saxapi"
)

const recursionLimit = 3000

// Name is a namespace-qualified XML name.
type Name struct {
	Space, Local string
}

func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Scope is the xml namespace scope in effect at a point in the document.
// Like xmltree.Scope, it is an immutable-by-convention slice: pushing a
// new binding always reslices to force a new backing array on the next
// append, so sibling subtrees never clobber each other's scope.
type Scope struct {
	ns []Name
}

// Resolve translates a lexical (possibly prefixed) name into a Name using
// the in-scope bindings. An unresolvable prefix is returned verbatim in
// Space, matching xmltree.Scope.Resolve.
func (s *Scope) Resolve(qname string) Name {
	n, _ := s.ResolveNS(qname)
	return n
}

// ResolveNS is like Resolve but reports whether the prefix was found.
func (s *Scope) ResolveNS(qname string) (Name, bool) {
	prefix, local := "", qname
	if i := strings.IndexByte(qname, ':'); i >= 0 {
		prefix, local = qname[:i], qname[i+1:]
	}
	for i := len(s.ns) - 1; i >= 0; i-- {
		if s.ns[i].Local == prefix {
			return Name{Space: s.ns[i].Space, Local: local}, true
		}
	}
	return Name{Space: prefix, Local: local}, false
}

// ResolveDefault is like Resolve, but unprefixed names resolve to
// defaultns instead of the in-scope default namespace.
func (s *Scope) ResolveDefault(qname, defaultns string) Name {
	if defaultns == "" || strings.Contains(qname, ":") {
		return s.Resolve(qname)
	}
	return Name{defaultns, qname}
}

// Prefix is the inverse of Resolve: it finds the closest bound prefix for
// name's namespace and returns a lexical qname.
func (s *Scope) Prefix(name Name) string {
	if name.Space == "" {
		return name.Local
	}
	for i := len(s.ns) - 1; i >= 0; i-- {
		if s.ns[i].Space == name.Space {
			if s.ns[i].Local == "" {
				return name.Local
			}
			return s.ns[i].Local + ":" + name.Local
		}
	}
	return name.Local
}

func (s Scope) push(bindings []Name) Scope {
	if len(bindings) == 0 {
		return s
	}
	out := append(append([]Name(nil), s.ns...), bindings...)
	return Scope{ns: out}
}

// Element is a single node in the built tree, together with the namespace
// Scope at its position in the document.
type Element struct {
	QName Name
	Attr  []saxapi.Attribute
	Scope
	// Content is the direct character-data content of this element (not
	// including descendant elements' text), concatenated in document
	// order, with CDATA and character runs merged.
	Content  string
	Children []Element
}

// AttrValue returns the value of the first attribute matching (space,
// local), or "". If space is empty, only the local name is considered.
func (el *Element) AttrValue(space, local string) string {
	for _, a := range el.Attr {
		if a.LocalName != local {
			continue
		}
		if space == "" || space == a.Namespace {
			return a.Value
		}
	}
	return ""
}

// HasAttr reports whether an attribute matching (space, local) is present.
func (el *Element) HasAttr(space, local string) bool {
	for _, a := range el.Attr {
		if a.LocalName == local && (space == "" || space == a.Namespace) {
			return true
		}
	}
	return false
}

// SetAttr sets (or adds) the value of an attribute matching (space, local).
func (el *Element) SetAttr(space, local, value string) {
	for i, a := range el.Attr {
		if a.LocalName == local && a.Namespace == space {
			el.Attr[i].Value = value
			return
		}
	}
	el.Attr = append(el.Attr, saxapi.Attribute{LocalName: local, Namespace: space, Value: value, Specified: true})
}

// Search returns every descendant (not including el) whose name matches
// (space, local), in document order.
func (el *Element) Search(space, local string) []*Element {
	return el.SearchFunc(func(e *Element) bool {
		return e.QName.Local == local && (space == "" || e.QName.Space == space)
	})
}

// SearchFunc returns every descendant matching pred, in document order.
func (el *Element) SearchFunc(pred func(*Element) bool) []*Element {
	var out []*Element
	var walk func(*Element)
	walk = func(e *Element) {
		for i := range e.Children {
			c := &e.Children[i]
			if pred(c) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(el)
	return out
}

// Flatten returns el and every descendant, in document order.
func (el *Element) Flatten() []*Element {
	out := []*Element{el}
	for i := range el.Children {
		out = append(out, el.Children[i].Flatten()...)
	}
	return out
}

// Child returns the first direct child matching (space, local), or nil.
func (el *Element) Child(space, local string) *Element {
	for i := range el.Children {
		c := &el.Children[i]
		if c.QName.Local == local && (space == "" || c.QName.Space == space) {
			return c
		}
	}
	return nil
}

func (el *Element) String() string {
	return fmt.Sprintf("<%s>", el.Scope.Prefix(el.QName))
}

// The following methods let *Element satisfy saxapi.ParsedElement, so a
// built subtree can be re-emitted to another ContentHandler without an
// intermediate conversion step.

func (el *Element) Prefix() string                 { return el.Scope.Prefix(el.QName) }
func (el *Element) URI() string                     { return el.QName.Space }
func (el *Element) LocalName() string               { return el.QName.Local }
func (el *Element) Name() string                    { return el.Prefix() }
func (el *Element) Attributes() []saxapi.Attribute  { return el.Attr }
