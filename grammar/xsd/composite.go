package xsd

import (
	"fmt"
	"strings"

	"github.com/orvant/xmlcore/internal/ordered"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/saxapi"
)

// Composite is the validation-time view over every Schema loaded for a
// document (spec §4.6 "SchemaComposite"), keyed by target namespace, plus
// the bookkeeping grammar/xsd needs that the parser.Grammar interface
// itself has no room for: ValidateAttributes/ValidateElement only ever see
// a lexical (possibly prefixed) element name, never a resolved namespace
// URI or a depth token. Composite closes that gap itself:
//
//   - prefixes is merged (see SetPrefixes) with the in-scope prefix table
//     on every ProcessNamespaces call of the sibling grammar.Dispatcher, so
//     a lexical "foo:bar" can be split and resolved without reimplementing
//     namespace scoping here.
//   - xsiTypeStack exploits the fact that ValidateAttributes and
//     ValidateElement for one element are always called in strict
//     nesting, exactly mirroring the parser's own element stack: an
//     xsi:type captured in ValidateAttributes is pushed, consumed by the
//     matching ValidateElement, and popped there, so concurrent elements
//     never see each other's override.
type Composite struct {
	schemas  map[string]*Schema
	prefixes map[string]string

	xsiTypeStack []Type
}

// NewComposite returns an empty Composite; schemas are added with Add as
// xsi:schemaLocation/noNamespaceSchemaLocation hints are discovered.
func NewComposite() *Composite {
	return &Composite{schemas: make(map[string]*Schema), prefixes: map[string]string{"xml": "http://www.w3.org/XML/1998/namespace"}}
}

// Add registers a loaded Schema under its target namespace (the empty
// string for no-namespace schemas).
func (c *Composite) Add(s *Schema) { c.schemas[s.TargetNS] = s }

// ElementNames returns the names of every globally-declared element across
// every loaded schema, in sorted order. Used by cmd/xmlcorelint's
// -dump-elements diagnostic.
func (c *Composite) ElementNames() []string {
	seen := make(map[string]bool)
	for _, s := range c.schemas {
		for name := range s.Elements {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	ordered.RangeStrings(seen, func(k string) { names = append(names, k) })
	return names
}

// SetPrefixes merges p into the prefix->namespace table used to resolve
// lexical names. grammar.Dispatcher.ProcessNamespaces calls this with the
// parser's cumulative, ancestor-inherited scope on every start tag, so
// this merges rather than replaces: a schema loaded on a descendant
// element must still see namespace prefixes bound only at the root.
func (c *Composite) SetPrefixes(p map[string]string) {
	for k, v := range p {
		c.prefixes[k] = v
	}
	c.prefixes["xml"] = "http://www.w3.org/XML/1998/namespace"
}

func (c *Composite) resolve(lexical string) QName {
	if i := strings.IndexByte(lexical, ':'); i >= 0 {
		prefix, local := lexical[:i], lexical[i+1:]
		return QName{Space: c.prefixes[prefix], Local: local}
	}
	return QName{Space: c.prefixes[""], Local: lexical}
}

// isSubstitutable reports whether actual may stand in for head in a
// content model -- either because they're the same element, or because
// actual's declared substitutionGroup chain reaches head (spec §4.6: "a
// child is substitutable if its declared substitutionGroup equals the
// expected head"), walking through intermediate heads the way a
// substitution group of substitution groups chains in XML Schema.
func (c *Composite) isSubstitutable(actual, head QName) bool {
	if actual == head {
		return true
	}
	seen := make(map[QName]bool)
	q := actual
	for {
		if seen[q] {
			return false
		}
		seen[q] = true
		e, ok := c.findElement(q)
		if !ok || e.SubstitutionGroup == (QName{}) {
			return false
		}
		if e.SubstitutionGroup == head {
			return true
		}
		q = e.SubstitutionGroup
	}
}

func (c *Composite) findElement(q QName) (*Element, bool) {
	if s, ok := c.schemas[q.Space]; ok {
		if e, ok := s.Elements[q.Local]; ok {
			return e, true
		}
	}
	for _, s := range c.schemas {
		if e, ok := s.Elements[q.Local]; ok && q.Space == "" {
			return e, true
		}
	}
	return nil, false
}

func (c *Composite) findType(q QName) (Type, bool) {
	if b, ok := ParseBuiltin(q); ok {
		return b, true
	}
	if s, ok := c.schemas[q.Space]; ok {
		if t, ok := s.Types[q.Local]; ok {
			return t, true
		}
	}
	return nil, false
}

// GetDefaultAttributes implements parser.Grammar.
func (c *Composite) GetDefaultAttributes(element string) map[string]string {
	out := make(map[string]string)
	for name, au := range c.attributeUsesFor(element) {
		if au.Default != "" {
			out[name] = au.Default
		} else if au.Fixed != "" {
			out[name] = au.Fixed
		}
	}
	return out
}

// ResolveEntity implements parser.Grammar. XML Schema declares no
// entities; this is only ever reached when no DTD grammar is active.
func (c *Composite) ResolveEntity(name string) (string, bool) { return "", false }

// AttributeType implements parser.Grammar. XSD has no CDATA/NMTOKEN
// distinction for normalization purposes; xmlcore always normalizes XSD
// attribute values as CDATA and relies on facet validation instead.
func (c *Composite) AttributeType(element, attribute string) string { return "CDATA" }

// attributeUsesFor returns the AttributeUse declarations in scope for
// element's complex type, keyed by local attribute name.
func (c *Composite) attributeUsesFor(element string) map[string]AttributeUse {
	out := make(map[string]AttributeUse)
	e, ok := c.findElement(c.resolve(element))
	if !ok {
		return out
	}
	t := e.Type
	for t != nil {
		ct, ok := t.(*ComplexType)
		if !ok {
			break
		}
		for _, au := range ct.Attributes {
			if _, taken := out[au.Name.Local]; !taken {
				out[au.Name.Local] = au
			}
		}
		t = Base(ct)
	}
	return out
}

// ValidateAttributes implements parser.Grammar. xsi:type, when present,
// is resolved and pushed onto xsiTypeStack for the paired ValidateElement
// call to pick up.
func (c *Composite) ValidateAttributes(element string, attrs []saxapi.Attribute) error {
	var override Type
	var msgs []string
	uses := c.attributeUsesFor(element)
	present := make(map[string]saxapi.Attribute, len(attrs))
	declared, _ := c.findElement(c.resolve(element))
	for _, a := range attrs {
		present[a.Name()] = a
		if a.Namespace == xsiNS && a.LocalName == "type" {
			t := resolveXsiType(c, a.Value)
			if declared != nil && !isDerivedFrom(t, declared.Type) {
				msgs = append(msgs, fmt.Sprintf("xsi:type %q is not derived from the element's declared type", a.Value))
			} else {
				override = t
			}
		}
	}
	for name, au := range uses {
		a, ok := present[name]
		if !ok {
			if au.Required {
				msgs = append(msgs, fmt.Sprintf("required attribute %q is missing", name))
			}
			continue
		}
		if au.Prohibited {
			msgs = append(msgs, fmt.Sprintf("attribute %q is prohibited", name))
			continue
		}
		if au.Fixed != "" && a.Value != au.Fixed {
			msgs = append(msgs, fmt.Sprintf("attribute %q must have the fixed value %q", name, au.Fixed))
		}
		if msg := validateAgainstType(au.Type, a.Value); msg != "" {
			msgs = append(msgs, fmt.Sprintf("attribute %q: %s", name, msg))
		}
	}
	c.xsiTypeStack = append(c.xsiTypeStack, override)
	if len(msgs) == 0 {
		return nil
	}
	return &xmlerr.ValidationError{Element: element, Messages: msgs}
}

func resolveXsiType(c *Composite, lexical string) Type {
	q := c.resolve(lexical)
	if t, ok := c.findType(q); ok {
		return t
	}
	return nil
}

// isDerivedFrom reports whether override is derivation-compatible with
// base -- equal to it, or reachable from it by walking Base(t) upward
// (spec §4.6: an xsi:type override must be derivable from the element's
// originally-declared type, not an arbitrary substitution). A nil base
// (the element's declared type itself unresolved) is treated as
// permissive, matching the non-fatal fallback validateAgainstType uses
// elsewhere for unresolved forward references.
func isDerivedFrom(override, base Type) bool {
	if base == nil {
		return true
	}
	seen := make(map[Type]bool)
	for t := override; t != nil; t = Base(t) {
		if seen[t] {
			return false
		}
		seen[t] = true
		if t == base {
			return true
		}
	}
	return false
}

// ValidateElement implements parser.Grammar, consuming the xsi:type
// override (if any) pushed by the paired ValidateAttributes call.
func (c *Composite) ValidateElement(element string, childNames []string, text string, mixedText bool) error {
	var override Type
	if n := len(c.xsiTypeStack); n > 0 {
		override = c.xsiTypeStack[n-1]
		c.xsiTypeStack = c.xsiTypeStack[:n-1]
	}

	e, ok := c.findElement(c.resolve(element))
	if !ok {
		return nil
	}
	t := e.Type
	if override != nil {
		t = override
	}

	switch t := t.(type) {
	case Builtin:
		if mixedText && !t.validateLexical(strings.TrimSpace(text)) {
			return &xmlerr.ValidationError{Element: element, Messages: []string{fmt.Sprintf("value %q is not a valid %s", text, t.Name().Local)}}
		}
		if len(childNames) > 0 {
			return &xmlerr.ValidationError{Element: element, Messages: []string{"simple-typed element must not have element children"}}
		}
		return nil
	case *SimpleType:
		if msg := validateAgainstType(t, text); msg != "" {
			return &xmlerr.ValidationError{Element: element, Messages: []string{msg}}
		}
		if len(childNames) > 0 {
			return &xmlerr.ValidationError{Element: element, Messages: []string{"simple-typed element must not have element children"}}
		}
		return nil
	case *ComplexType:
		return c.validateComplexContent(element, t, childNames, text, mixedText)
	}
	return nil
}

func (c *Composite) validateComplexContent(element string, ct *ComplexType, childNames []string, text string, mixedText bool) error {
	if ct.SimpleContent {
		if msg := validateAgainstType(ct.Base, text); msg != "" {
			return &xmlerr.ValidationError{Element: element, Messages: []string{msg}}
		}
		return nil
	}
	if ct.Empty {
		if len(childNames) > 0 || mixedText {
			return &xmlerr.ValidationError{Element: element, Messages: []string{"element's type declares empty content"}}
		}
		return nil
	}
	if ct.Mixed {
		if ct.Particle == nil {
			return nil
		}
		if ok, n := matchParticle(*ct.Particle, c, childNames); !ok || n != len(childNames) {
			return &xmlerr.ValidationError{Element: element, Messages: []string{"children do not conform to the complex type's content model"}}
		}
		return nil
	}
	if mixedText {
		return &xmlerr.ValidationError{Element: element, Messages: []string{"element-only content must not contain character data"}}
	}
	if ct.Particle == nil {
		if len(childNames) > 0 {
			return &xmlerr.ValidationError{Element: element, Messages: []string{"element's type declares empty content"}}
		}
		return nil
	}
	if ok, n := matchParticle(*ct.Particle, c, childNames); !ok || n != len(childNames) {
		return &xmlerr.ValidationError{Element: element, Messages: []string{"children do not conform to the complex type's content model"}}
	}
	return nil
}
