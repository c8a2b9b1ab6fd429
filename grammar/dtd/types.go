// Package dtd implements spec §4.5: a DTD parser and the DTDComposite view
// the parser's GrammarDispatcher consults for attribute normalization,
// defaulting, and content-model validation. Unlike grammar/xsd and
// grammar/relaxng, a DTD subset is not itself well-formed XML, so this
// package carries its own small scanner instead of reusing package parser.
//
// The declaration record shapes (ElementDecl/AttrDecl/Entity, content-model
// kind and occurrence tags) mirror the moznion-helium reimplementation of
// libxml2's DTD model -- the closest pack source for this exact data shape.
package dtd

// ContentKind classifies an ELEMENT declaration's content spec.
type ContentKind int

const (
	EmptyContent ContentKind = iota
	AnyContent
	MixedContent  // (#PCDATA | a | b)*
	ChildrenContent
)

// NodeKind classifies a node in a CHILDREN content model tree.
type NodeKind int

const (
	NameNode NodeKind = iota
	SeqNode
	ChoiceNode
)

// Occurs is the occurrence suffix on a content-model node: none, '?', '*', '+'.
type Occurs int

const (
	Once Occurs = iota
	ZeroOrOne
	ZeroOrMore
	OneOrMore
)

// ContentNode is one node of an ELEMENT declaration's content-model tree.
type ContentNode struct {
	Kind     NodeKind
	Name     string // valid only when Kind == NameNode
	Occurs   Occurs
	Children []ContentNode
}

// ElementDecl is a parsed <!ELEMENT> declaration.
type ElementDecl struct {
	Name    string
	Kind    ContentKind
	Mixed   []string // declared child names for MixedContent
	Model   ContentNode
}

// AttrType enumerates the DTD attribute types relevant to validation.
type AttrType int

const (
	CDATAType AttrType = iota
	IDType
	IDREFType
	IDREFSType
	EntityType
	EntitiesType
	NMTokenType
	NMTokensType
	NotationType
	EnumType
)

// AttrDecl is one attribute definition from an <!ATTLIST> declaration.
type AttrDecl struct {
	Element  string
	Name     string
	Type     AttrType
	Enum     []string // values for NotationType/EnumType
	Default  string
	Required bool
	Implied  bool
	Fixed    bool
}

// Entity is a parsed <!ENTITY> declaration, general or parameter.
type Entity struct {
	Name      string
	Value     string
	Parameter bool
	External  bool
	PublicID  string
	SystemID  string
	Notation  string // set for unparsed (NDATA) entities
}

// Grammar is everything a single internal or external DTD subset declared.
type Grammar struct {
	Entities      map[string]Entity
	ParamEntities map[string]string
	Elements      map[string]ElementDecl
	Attrs         map[string]map[string]AttrDecl
	Notations     map[string]string
}

func newGrammar() *Grammar {
	return &Grammar{
		Entities:      make(map[string]Entity),
		ParamEntities: make(map[string]string),
		Elements:      make(map[string]ElementDecl),
		Attrs:         make(map[string]map[string]AttrDecl),
		Notations:     make(map[string]string),
	}
}
