package xsd

import (
	"regexp"
	"strconv"
	"strings"
)

// Builtin is one of the W3C XML Schema built-in simple types (spec §4.6,
// adapted from xsd/builtin.go). Only the subset this module actually
// validates against is enumerated; unrecognized QNames fall back to
// String, which accepts anything (spec's "fallback to string... non-fatal").
type Builtin int

func (Builtin) isType() {}

const (
	AnyType Builtin = iota
	String
	Boolean
	Decimal
	Integer
	NonNegativeInteger
	PositiveInteger
	NegativeInteger
	NonPositiveInteger
	Int
	Long
	Short
	Byte
	Float
	Double
	Date
	DateTime
	Time
	Duration
	AnyURI
	QNameBuiltin
	Base64Binary
	HexBinary
	NormalizedString
	Token
	Language
	Name
	NCName
	NMToken
	NMTokens
	ID
	IDRef
	IDRefs
	Entity
	Entities
)

var builtinNames = map[Builtin]string{
	AnyType: "anyType", String: "string", Boolean: "boolean", Decimal: "decimal",
	Integer: "integer", NonNegativeInteger: "nonNegativeInteger", PositiveInteger: "positiveInteger",
	NegativeInteger: "negativeInteger", NonPositiveInteger: "nonPositiveInteger", Int: "int",
	Long: "long", Short: "short", Byte: "byte", Float: "float", Double: "double",
	Date: "date", DateTime: "dateTime", Time: "time", Duration: "duration",
	AnyURI: "anyURI", QNameBuiltin: "QName", Base64Binary: "base64Binary", HexBinary: "hexBinary",
	NormalizedString: "normalizedString", Token: "token", Language: "language",
	Name: "Name", NCName: "NCName", NMToken: "NMTOKEN", NMTokens: "NMTOKENS",
	ID: "ID", IDRef: "IDREF", IDRefs: "IDREFS", Entity: "ENTITY", Entities: "ENTITIES",
}

const schemaNS = "http://www.w3.org/2001/XMLSchema"

func (b Builtin) Name() QName { return QName{Space: schemaNS, Local: builtinNames[b]} }

var builtinByLocal = func() map[string]Builtin {
	m := make(map[string]Builtin, len(builtinNames))
	for b, name := range builtinNames {
		m[name] = b
	}
	return m
}()

// ParseBuiltin looks up a Builtin by canonical name. ok is false if qname
// is not in the schema namespace or does not name a built-in this
// package recognizes.
func ParseBuiltin(qname QName) (Builtin, bool) {
	if qname.Space != schemaNS {
		return 0, false
	}
	b, ok := builtinByLocal[qname.Local]
	return b, ok
}

var integerPattern = regexp.MustCompile(`^[+-]?[0-9]+$`)
var decimalPattern = regexp.MustCompile(`^[+-]?[0-9]*\.?[0-9]+$`)
var nmtokenPattern = regexp.MustCompile(`^[A-Za-z0-9_:.-]+$`)
var ncnamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// validateLexical reports whether value is a lexically valid instance of
// b, independent of any Restriction facets layered on top of it.
func (b Builtin) validateLexical(value string) bool {
	switch b {
	case Boolean:
		switch value {
		case "true", "false", "1", "0":
			return true
		}
		return false
	case Integer:
		return integerPattern.MatchString(strings.TrimSpace(value))
	case Long, Int, Short, Byte:
		bits := map[Builtin]int{Long: 64, Int: 32, Short: 16, Byte: 8}[b]
		_, err := strconv.ParseInt(strings.TrimSpace(value), 10, bits)
		return err == nil && integerPattern.MatchString(strings.TrimSpace(value))
	case NonNegativeInteger, PositiveInteger, NonPositiveInteger, NegativeInteger:
		if !integerPattern.MatchString(strings.TrimSpace(value)) {
			return false
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		switch b {
		case PositiveInteger:
			return err == nil && n > 0
		case NonPositiveInteger:
			return err == nil && n <= 0
		case NegativeInteger:
			return err == nil && n < 0
		}
		return err == nil && n >= 0
	case Decimal, Float, Double:
		return decimalPattern.MatchString(strings.TrimSpace(value))
	case NMToken, NMTokens:
		for _, tok := range strings.Fields(value) {
			if !nmtokenPattern.MatchString(tok) {
				return false
			}
		}
		return value != ""
	case Name, NCName, ID, IDRef, Entity:
		return ncnamePattern.MatchString(value)
	case IDRefs, Entities:
		for _, tok := range strings.Fields(value) {
			if !ncnamePattern.MatchString(tok) {
				return false
			}
		}
		return value != ""
	case AnyURI, QNameBuiltin, Base64Binary, HexBinary, Date, DateTime, Time, Duration,
		String, NormalizedString, Token, Language, AnyType:
		return true
	}
	return true
}
