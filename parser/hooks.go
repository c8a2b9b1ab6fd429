package parser

import "github.com/orvant/xmlcore/saxapi"

// Grammar is the query surface the parser needs from whatever grammar is
// currently active (DTD, XSD, or RelaxNG composite) to drive attribute
// normalization/defaulting and validation, per spec §4.3 steps 6 and 9 and
// the end-tag validation step in §4.3. It is declared locally so that
// this package never imports package grammar: grammar.Dispatcher and its
// composite Grammar implementations satisfy this interface structurally.
type Grammar interface {
	// GetDefaultAttributes returns the grammar-declared default values
	// for element (not-specified attributes to add), keyed by lexical
	// attribute name.
	GetDefaultAttributes(element string) map[string]string
	// AttributeType reports the DTD-style attribute type
	// used for whitespace normalization ("CDATA" vs anything else, which
	// collapses internal whitespace per spec §4.3 step 6). Grammars that
	// don't track this (e.g. RelaxNG) return "CDATA".
	AttributeType(element, attribute string) string
	// ValidateAttributes validates a start tag's attributes in
	// attributeOnly context (spec §4.3 step 9).
	ValidateAttributes(element string, attrs []saxapi.Attribute) error
	// ValidateElement validates accumulated child names/text against the
	// element's content model (spec "end tag" validation step).
	ValidateElement(element string, childNames []string, text string, mixedText bool) error
	// ResolveEntity looks up a general entity's replacement text (spec
	// §4.3 "Entity references in content", the "other" branch).
	ResolveEntity(name string) (value string, ok bool)
}

// GrammarDispatcher is the hook into spec §4.4's GrammarDispatcher that
// the parser calls at the points named in §4.3: after collecting a start
// tag's raw attribute list (namespace/schemaLocation processing, which may
// load grammars) and upon encountering a DOCTYPE declaration.
type GrammarDispatcher interface {
	// ProcessNamespaces is called with a start tag's raw attributes and
	// scope, the full prefix->URI table in effect at this element
	// (ancestor declarations included, not just this tag's own xmlns
	// attributes), so a grammar loaded deeper in the tree still resolves
	// qualified names the way an ancestor-declared prefix intends.
	ProcessNamespaces(attrs []saxapi.Attribute, scope map[string]string) error
	ProcessDoctype(rootName, publicID, systemID, internalSubset string) error
	// ProcessPI is offered every processing instruction the parser sees,
	// so a dispatcher can recognize grammar hints such as an xml-model PI
	// naming a RelaxNG (XML syntax) grammar by href.
	ProcessPI(target, data string) error
	GetGrammar() (Grammar, bool)
	SetValidating(bool)
}

// noopDispatcher is used when the parser is constructed without a
// GrammarDispatcher (e.g. ignoreGrammars, or a self-contained parse of a
// grammar document by grammar/xsd, grammar/dtd, grammar/relaxng).
type noopDispatcher struct{}

func (noopDispatcher) ProcessNamespaces(attrs []saxapi.Attribute, scope map[string]string) error {
	return nil
}
func (noopDispatcher) ProcessDoctype(rootName, publicID, systemID, internalSubset string) error {
	return nil
}
func (noopDispatcher) ProcessPI(target, data string) error { return nil }
func (noopDispatcher) GetGrammar() (Grammar, bool) { return nil, false }
func (noopDispatcher) SetValidating(bool)          {}
