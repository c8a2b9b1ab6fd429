package dtd

import (
	"fmt"
	"strings"

	"github.com/orvant/xmlcore/internal/ordered"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/saxapi"
)

// Composite is the merged view over one internal grammar and any number
// of external grammars (spec §4.5 "DTDComposite"): internal declarations
// override external ones, and externals are merged first-wins in the
// order they were added. Composite satisfies parser.Grammar structurally.
//
// It also carries the one piece of state spec §4.5's ID/IDREF(S) checks
// need that no single element's attributes can supply on their own: ids
// accumulates every ID value declared so far, and idRefs queues up
// IDREF/IDREFS values for resolution once the whole document has been
// seen. depth mirrors the parser's own element-nesting depth (ValidateAttributes
// and ValidateElement are always called in matching start/end-tag pairs),
// so the queue drains the moment the root element closes.
type Composite struct {
	internal  *Grammar
	externals []*Grammar

	depth  int
	ids    map[string]bool
	idRefs []idRefCheck
}

type idRefCheck struct {
	element   string
	attribute string
	value     string
}

// NewComposite returns an empty Composite.
func NewComposite() *Composite { return &Composite{} }

// SetInternal installs the grammar parsed from the DOCTYPE's internal
// subset. It is always consulted before any external grammar.
func (c *Composite) SetInternal(g *Grammar) { c.internal = g }

// AddExternal appends an externally-parsed grammar (external subset or a
// PE-included file). First-added externals win over later ones.
func (c *Composite) AddExternal(g *Grammar) { c.externals = append(c.externals, g) }

// InternalParamEntities extracts the internal subset's parameter entities,
// for seeding an external parse (spec §4.5 "Parameter-entity inheritance").
func (c *Composite) InternalParamEntities() map[string]string {
	if c.internal == nil {
		return nil
	}
	return c.internal.ParamEntities
}

func (c *Composite) grammars() []*Grammar {
	all := make([]*Grammar, 0, len(c.externals)+1)
	if c.internal != nil {
		all = append(all, c.internal)
	}
	all = append(all, c.externals...)
	return all
}

// ElementNames returns the names of every element declared across the
// internal subset and all external subsets, in sorted order. Used by
// cmd/xmlcorelint's -dump-elements diagnostic.
func (c *Composite) ElementNames() []string {
	seen := make(map[string]bool)
	for _, g := range c.grammars() {
		for name := range g.Elements {
			seen[name] = true
		}
	}
	names := make([]string, 0, len(seen))
	ordered.RangeStrings(seen, func(k string) { names = append(names, k) })
	return names
}

// ResolveEntity implements parser.Grammar.ResolveEntity: internal first,
// then externals in insertion order.
func (c *Composite) ResolveEntity(name string) (string, bool) {
	for _, g := range c.grammars() {
		if e, ok := g.Entities[name]; ok && !e.External {
			return e.Value, true
		}
	}
	return "", false
}

// GetElementAttributes returns the merged attribute declaration map for
// element, internal declarations taking precedence over external ones.
func (c *Composite) GetElementAttributes(element string) map[string]AttrDecl {
	out := make(map[string]AttrDecl)
	for i := len(c.grammars()) - 1; i >= 0; i-- {
		for name, ad := range c.grammars()[i].Attrs[element] {
			out[name] = ad
		}
	}
	return out
}

// GetDefaultAttributes implements parser.Grammar.GetDefaultAttributes.
func (c *Composite) GetDefaultAttributes(element string) map[string]string {
	out := make(map[string]string)
	for name, ad := range c.GetElementAttributes(element) {
		if ad.Default != "" {
			out[name] = ad.Default
		}
	}
	return out
}

// AttributeType implements parser.Grammar.AttributeType, reporting "CDATA"
// for anything not declared (the parser's normalization default).
func (c *Composite) AttributeType(element, attribute string) string {
	ad, ok := c.GetElementAttributes(element)[attribute]
	if !ok || ad.Type == CDATAType {
		return "CDATA"
	}
	return "NMTOKEN" // any non-CDATA type gets whitespace-collapsing normalization
}

func (c *Composite) lookupElement(name string) (ElementDecl, bool) {
	for _, g := range c.grammars() {
		if ed, ok := g.Elements[name]; ok {
			return ed, true
		}
	}
	return ElementDecl{}, false
}

// ValidateAttributes implements spec §4.5 "validateAttributes".
func (c *Composite) ValidateAttributes(element string, attrs []saxapi.Attribute) error {
	c.depth++
	decls := c.GetElementAttributes(element)
	var msgs []string

	present := make(map[string]saxapi.Attribute)
	for _, a := range attrs {
		present[a.Name()] = a
	}

	for name, ad := range decls {
		a, ok := present[name]
		if !ok {
			if ad.Required {
				msgs = append(msgs, fmt.Sprintf("required attribute %q is missing", name))
			}
			continue
		}
		if ad.Fixed && a.Value != ad.Default {
			msgs = append(msgs, fmt.Sprintf("attribute %q must have the fixed value %q", name, ad.Default))
		}
		if err := validateAttrValue(ad, a.Value); err != "" {
			msgs = append(msgs, err)
		}
		if err := c.validateIDAttr(element, ad, a.Value); err != "" {
			msgs = append(msgs, err)
		}
	}
	for name := range present {
		if name == "xml:space" || name == "xml:lang" || name == "xml:base" || name == "xml:id" {
			continue
		}
		if strings.HasPrefix(name, "xmlns") {
			continue
		}
		if _, ok := decls[name]; !ok {
			msgs = append(msgs, fmt.Sprintf("attribute %q is not declared on element %q", name, element))
		}
	}

	if len(msgs) == 0 {
		return nil
	}
	return &xmlerr.ValidationError{Element: element, Messages: msgs}
}

func validateAttrValue(ad AttrDecl, value string) string {
	switch ad.Type {
	case EnumType:
		for _, v := range ad.Enum {
			if v == value {
				return ""
			}
		}
		return fmt.Sprintf("value %q is not one of the enumerated values for attribute %q", value, ad.Name)
	case NotationType:
		for _, v := range ad.Enum {
			if v == value {
				return ""
			}
		}
		return fmt.Sprintf("value %q does not name a declared notation for attribute %q", value, ad.Name)
	case NMTokenType:
		if !isNMTokens(value) {
			return fmt.Sprintf("value %q is not a valid NMTOKEN for attribute %q", value, ad.Name)
		}
	case NMTokensType:
		for _, tok := range strings.Fields(value) {
			if !isNMTokens(tok) {
				return fmt.Sprintf("value %q contains an invalid NMTOKEN for attribute %q", value, ad.Name)
			}
		}
	}
	return ""
}

// validateIDAttr handles the datatype checks validateAttrValue can't: ID
// uniqueness and the cross-element IDREF(S)/ENTITY/ENTITIES resolution
// spec §4.5 requires. IDREF(S) resolution is queued rather than checked
// immediately, since a DTD permits an ID to be declared anywhere in the
// document, including after the element that references it.
func (c *Composite) validateIDAttr(element string, ad AttrDecl, value string) string {
	switch ad.Type {
	case IDType:
		if c.ids == nil {
			c.ids = make(map[string]bool)
		}
		if c.ids[value] {
			return fmt.Sprintf("ID value %q is not unique", value)
		}
		c.ids[value] = true
	case IDREFType:
		c.idRefs = append(c.idRefs, idRefCheck{element, ad.Name, value})
	case IDREFSType:
		for _, tok := range strings.Fields(value) {
			c.idRefs = append(c.idRefs, idRefCheck{element, ad.Name, tok})
		}
	case EntityType:
		if msg := c.validateUnparsedEntity(ad.Name, value); msg != "" {
			return msg
		}
	case EntitiesType:
		for _, tok := range strings.Fields(value) {
			if msg := c.validateUnparsedEntity(ad.Name, tok); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// validateUnparsedEntity reports an error unless name names a declared
// NDATA (unparsed) general entity. Entity declarations are fully parsed
// before any element content is validated, so unlike IDREF(S) this check
// never needs to be deferred.
func (c *Composite) validateUnparsedEntity(attrName, name string) string {
	for _, g := range c.grammars() {
		if e, ok := g.Entities[name]; ok && !e.Parameter && e.Notation != "" {
			return ""
		}
	}
	return fmt.Sprintf("value %q for attribute %q does not name a declared unparsed entity", name, attrName)
}

// checkDanglingIDRefs resolves every queued IDREF/IDREFS value against the
// IDs seen across the whole document, called once the root element closes.
func (c *Composite) checkDanglingIDRefs() []string {
	var msgs []string
	for _, ref := range c.idRefs {
		if !c.ids[ref.value] {
			msgs = append(msgs, fmt.Sprintf("attribute %q on element %q references undeclared ID %q", ref.attribute, ref.element, ref.value))
		}
	}
	c.idRefs = nil
	return msgs
}

func isNMTokens(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '-' || r == '.' || r == '_' || r == ':' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')) {
			return false
		}
	}
	return true
}

// ValidateElement implements spec §4.5 "validateElement": EMPTY rejects
// any children or text, ANY accepts anything, MIXED accepts any
// interleaving of declared children and PCDATA, CHILDREN requires no
// non-whitespace text and conformance to the declared sequence/choice tree.
func (c *Composite) ValidateElement(element string, childNames []string, text string, mixedText bool) error {
	if c.depth > 0 {
		c.depth--
	}
	var msgs []string

	if ed, ok := c.lookupElement(element); ok {
		switch ed.Kind {
		case AnyContent:
		case EmptyContent:
			if len(childNames) > 0 || mixedText {
				msgs = append(msgs, "element declared EMPTY must have no children or text")
			}
		case MixedContent:
			if len(ed.Mixed) > 0 {
				allowed := make(map[string]bool, len(ed.Mixed))
				for _, n := range ed.Mixed {
					allowed[n] = true
				}
				for _, child := range childNames {
					if !allowed[child] {
						msgs = append(msgs, "child <"+child+"> is not allowed by the mixed content model")
					}
				}
			}
		case ChildrenContent:
			if mixedText {
				msgs = append(msgs, "element declared with a CHILDREN content model must not contain character data")
			} else if ok, consumed := matchContentModel(ed.Model, childNames); !ok || consumed != len(childNames) {
				msgs = append(msgs, "children do not conform to the declared content model")
			}
		}
	}
	// undeclared elements are not checked against a content model

	if c.depth == 0 {
		msgs = append(msgs, c.checkDanglingIDRefs()...)
	}

	if len(msgs) == 0 {
		return nil
	}
	return &xmlerr.ValidationError{Element: element, Messages: msgs}
}

// matchContentModel is a small greedy matcher for the content-model tree
// built by parseContentModel: it reports whether a prefix of names matches
// node, and how many names that prefix consumed. It does not backtrack
// into a sub-pattern once that sub-pattern has matched.
func matchContentModel(node ContentNode, names []string) (bool, int) {
	switch node.Kind {
	case NameNode:
		return matchWithOccurs(node.Occurs, names, func(rest []string) (bool, int) {
			if len(rest) > 0 && rest[0] == node.Name {
				return true, 1
			}
			return false, 0
		})
	case SeqNode:
		return matchWithOccurs(node.Occurs, names, func(rest []string) (bool, int) {
			total := 0
			for _, child := range node.Children {
				ok, n := matchContentModel(child, rest[total:])
				if !ok {
					return false, 0
				}
				total += n
			}
			return true, total
		})
	case ChoiceNode:
		return matchWithOccurs(node.Occurs, names, func(rest []string) (bool, int) {
			for _, child := range node.Children {
				if ok, n := matchContentModel(child, rest); ok && n > 0 {
					return true, n
				}
			}
			return false, 0
		})
	}
	return true, 0
}

func matchWithOccurs(occ Occurs, names []string, once func([]string) (bool, int)) (bool, int) {
	switch occ {
	case Once:
		return once(names)
	case ZeroOrOne:
		if ok, n := once(names); ok {
			return true, n
		}
		return true, 0
	case ZeroOrMore, OneOrMore:
		total := 0
		count := 0
		for {
			ok, n := once(names[total:])
			if !ok || n == 0 {
				break
			}
			total += n
			count++
		}
		if occ == OneOrMore && count == 0 {
			return false, 0
		}
		return true, total
	}
	return true, 0
}
