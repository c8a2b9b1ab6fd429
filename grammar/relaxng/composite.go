package relaxng

import (
	"strings"

	"github.com/orvant/xmlcore/internal/ordered"
	"github.com/orvant/xmlcore/saxapi"
)

// Composite is the validation-time view over a loaded Grammar (spec §4.7
// "RelaxNGComposite"). Full RelaxNG content validation is a Non-goal; per
// spec, a RelaxNGComposite need "at minimum supply attribute defaults" --
// ValidateAttributes/ValidateElement are permissive, existing only so
// Composite satisfies parser.Grammar and can sit in the same
// GrammarDispatcher slot DTD and XSD occupy.
//
// Like xsd.Composite, Composite resolves a lexical element name to (local,
// namespace) using a prefix table merged from the document's in-scope xmlns
// declarations (see SetPrefixes), since ValidateAttributes/ValidateElement never receive a
// resolved namespace URI directly.
type Composite struct {
	grammar  *Grammar
	prefixes map[string]string
}

// NewComposite wraps a loaded Grammar for use as a parser.Grammar.
func NewComposite(g *Grammar) *Composite {
	return &Composite{grammar: g, prefixes: map[string]string{"xml": "http://www.w3.org/XML/1998/namespace"}}
}

// SetPrefixes merges p into the prefix->namespace table used to resolve
// lexical element names. grammar.Dispatcher.ProcessNamespaces calls this
// with the parser's cumulative, ancestor-inherited scope on every start
// tag, so this merges rather than replaces: a grammar active on a
// descendant element must still see namespace prefixes bound only at the
// root.
func (c *Composite) SetPrefixes(p map[string]string) {
	for k, v := range p {
		c.prefixes[k] = v
	}
	c.prefixes["xml"] = "http://www.w3.org/XML/1998/namespace"
}

func (c *Composite) resolve(lexical string) (local, ns string) {
	if i := strings.IndexByte(lexical, ':'); i >= 0 {
		return lexical[i+1:], c.prefixes[lexical[:i]]
	}
	return lexical, c.prefixes[""]
}

func (c *Composite) attrsFor(element string) map[string]Default {
	local, ns := c.resolve(element)
	for _, key := range elementKeys(local, ns) {
		if attrs, ok := c.grammar.Elements[key]; ok {
			return attrs
		}
	}
	return nil
}

// GetDefaultAttributes implements parser.Grammar.
func (c *Composite) GetDefaultAttributes(element string) map[string]string {
	out := make(map[string]string)
	for _, def := range c.attrsFor(element) {
		out[def.LocalName] = def.Value
	}
	return out
}

// ElementNames returns every key of the grammar's element table -- the
// local name and, when namespaced, the "{ns}local" form of every named
// element pattern, whether or not it declares attribute defaults -- in
// sorted order. Used by
// cmd/xmlcorelint's -dump-elements diagnostic.
func (c *Composite) ElementNames() []string {
	names := make([]string, 0, len(c.grammar.Elements))
	ordered.RangeStrings(c.grammar.Elements, func(k string) { names = append(names, k) })
	return names
}

// AttributeType implements parser.Grammar. RelaxNG carries no
// CDATA/NMTOKEN-style attribute-value-normalization distinction.
func (c *Composite) AttributeType(element, attribute string) string { return "CDATA" }

// ValidateAttributes implements parser.Grammar. Content/attribute
// validation against the RelaxNG pattern tree is a Non-goal; this always
// succeeds.
func (c *Composite) ValidateAttributes(element string, attrs []saxapi.Attribute) error { return nil }

// ValidateElement implements parser.Grammar. Content validation against
// the RelaxNG pattern tree is a Non-goal; this always succeeds.
func (c *Composite) ValidateElement(element string, childNames []string, text string, mixedText bool) error {
	return nil
}

// ResolveEntity implements parser.Grammar. RelaxNG declares no entities.
func (c *Composite) ResolveEntity(name string) (string, bool) { return "", false }
