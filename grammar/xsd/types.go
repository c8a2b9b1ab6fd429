// Package xsd implements spec §4.6: the W3C XML Schema subsystem --
// XMLSchemaLoader, redefine/include/import resolution, and the
// SchemaComposite the parser's GrammarDispatcher validates against.
//
// The Type/Element/Attribute/ComplexType/SimpleType/Restriction/Builtin
// shapes are adapted from the teacher's xsd/xsd.go and xsd/builtin.go:
// kept field shapes, but repurposed from "how do I generate a Go type for
// this" to "does this instance document conform to this declaration",
// since this module validates documents rather than generating client
// code from them.
package xsd

import "regexp"

// QName is a namespace-qualified name.
type QName struct{ Space, Local string }

func (n QName) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Type is the sum type of everything a schema can declare a value's shape
// to be: *SimpleType, *ComplexType, or a Builtin.
type Type interface {
	isType()
}

// Restriction narrows the value space of a SimpleType. Only the facets
// useful for validation (as opposed to code generation) are recorded.
type Restriction struct {
	Enum                             []string
	Pattern                          []*regexp.Regexp
	MinInclusive, MaxInclusive       *float64
	MinExclusive, MaxExclusive       *float64
	MinLength, MaxLength, Length     *int
	Doc                              string
}

// SimpleType describes a value-only type: an atomic restriction of
// another SimpleType/Builtin, a whitespace-delimited list, or a union.
type SimpleType struct {
	Name      QName
	Anonymous bool
	Base      Type
	Restr     Restriction
	List      bool
	ListOf    Type
	Union     []Type
	Doc       string
}

func (*SimpleType) isType() {}

// AttributeUse is one attribute a ComplexType permits in its opening tag.
type AttributeUse struct {
	Name       QName
	Type       Type
	Default    string
	Fixed      string
	Required   bool
	Prohibited bool
	Doc        string
}

// ParticleKind classifies a node in a complex type's content-model tree.
type ParticleKind int

const (
	ElementParticle ParticleKind = iota
	SequenceParticle
	ChoiceParticle
	AllParticle
	AnyParticle
)

// Unbounded is the sentinel Max value for maxOccurs="unbounded".
const Unbounded = -1

// Particle is one node of a complex type's content-model tree (spec §4.6
// "Content model → particle"): Element/Sequence/Choice/All/Any with
// (minOccurs, maxOccurs). There is no separate group kind: a group
// reference is stored as a Sequence particle whose body is filled in by
// resolveParticleGroups.
type Particle struct {
	Kind     ParticleKind
	Ref      QName // element name, for ElementParticle
	Min, Max int
	Children []Particle
}

// ComplexType describes an element's attributes and allowed children.
type ComplexType struct {
	Name      QName
	Anonymous bool
	Base      Type
	Extends   bool
	Mixed     bool
	Empty     bool
	// SimpleContent is set when the type restricts/extends a simple type
	// instead of declaring element content; Base names the simple ancestor.
	SimpleContent bool
	Particle      *Particle
	Attributes    []AttributeUse
	Doc           string
}

func (*ComplexType) isType() {}

// Element is a top-level or locally-declared element declaration.
type Element struct {
	Name              QName
	Type              Type
	Abstract          bool
	Nillable          bool
	SubstitutionGroup QName
	Default           string
	Doc               string
}

// linkedType is a forward-reference placeholder used while a schema's
// declarations are still being parsed, resolved to a concrete Type in a
// second pass (spec §4.6 step 5, "resolve type hierarchy").
type linkedType QName

func (linkedType) isType() {}

// Schema is one parsed <xs:schema> document's declarations.
type Schema struct {
	TargetNS           string
	ElementFormDefault bool
	Elements           map[string]*Element
	Types              map[string]Type
	Groups             map[string]*Particle
	AttributeGroups    map[string][]AttributeUse
	// Redefines records, for a redefined type's local name, the original
	// (pre-redefine) definition it extends (spec §4.6 "Redefine merging").
	Redefines map[string]Type
}

func newSchema() *Schema {
	return &Schema{
		Elements:        make(map[string]*Element),
		Types:           make(map[string]Type),
		Groups:          make(map[string]*Particle),
		AttributeGroups: make(map[string][]AttributeUse),
		Redefines:       make(map[string]Type),
	}
}

// XMLName returns the canonical name of a Type.
func XMLName(t Type) QName {
	switch t := t.(type) {
	case *SimpleType:
		return t.Name
	case *ComplexType:
		return t.Name
	case Builtin:
		return t.Name()
	case linkedType:
		return QName(t)
	}
	return QName{}
}

// Base returns the type t derives from, or nil for a Builtin.
func Base(t Type) Type {
	switch t := t.(type) {
	case *SimpleType:
		return t.Base
	case *ComplexType:
		return t.Base
	default:
		return nil
	}
}
