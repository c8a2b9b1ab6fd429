// Package saxapi defines the content-handler event contract that the
// parser emits to. It is the sole boundary consumed by DOM construction,
// event collectors, and writers; this package defines the interfaces only,
// split by concern the way a SAX2 implementation splits ContentHandler,
// DTDHandler, LexicalHandler, DeclHandler and EntityResolver, so a
// consumer only needs to implement the handlers it cares about.
package saxapi

// Attribute is a single attribute occurrence on a start tag.
type Attribute struct {
	Prefix    string
	LocalName string
	Namespace string
	Value     string
	// Specified is false when the attribute value was supplied by a
	// grammar default rather than present in the source document.
	Specified bool
}

// Name returns the attribute's lexical (possibly prefixed) name.
func (a Attribute) Name() string {
	if a.Prefix == "" {
		return a.LocalName
	}
	return a.Prefix + ":" + a.LocalName
}

// ParsedElement describes a start or end tag as delivered to a handler.
type ParsedElement interface {
	Prefix() string
	URI() string
	LocalName() string
	Name() string
	Attributes() []Attribute
}

// DocumentLocator exposes the parser's current position, for handlers
// that want to report errors with line/column context.
type DocumentLocator interface {
	Line() int
	Column() int
	SystemID() string
}

// ContentHandler is the core SAX2 handler. See
// http://sax.sourceforge.net/apidoc/org/xml/sax/ContentHandler.html
type ContentHandler interface {
	SetDocumentLocator(loc DocumentLocator)
	StartDocument() error
	EndDocument() error
	// XMLDeclaration reports the <?xml ...?> declaration, if present. It
	// is always the first event after StartDocument when called at all.
	// standalone is nil when the document omits the standalone attribute.
	XMLDeclaration(version, encoding string, standalone *bool) error
	StartElement(elem ParsedElement) error
	EndElement(elem ParsedElement) error
	Characters(text string) error
	IgnorableWhitespace(text string) error
	ProcessingInstruction(target, data string) error
	SkippedEntity(name string) error
}

// DTDHandler receives notification of DTD-declared notations and unparsed
// entities. See http://sax.sourceforge.net/apidoc/org/xml/sax/DTDHandler.html
type DTDHandler interface {
	NotationDecl(name, publicID, systemID string) error
	UnparsedEntityDecl(name, publicID, systemID, notation string) error
}

// LexicalHandler is the SAX2 extension for lexical events: comments, CDATA
// boundaries, and DTD boundaries.
type LexicalHandler interface {
	Comment(text string) error
	StartCDATA() error
	EndCDATA() error
	StartDTD(name, publicID, systemID string) error
	InternalSubset(text string) error
	EndDTD() error
}

// DeclHandler is the SAX2 extension for DTD declaration events. Nothing in
// this module calls it; grammar/dtd parses declarations from the subset
// text directly.
type DeclHandler interface {
	ElementDecl(name string, contentModel string) error
	AttributeDecl(elementName, attrName, attrType, mode, value string) error
	InternalEntityDecl(name, value string) error
	ExternalEntityDecl(name, publicID, systemID string) error
}

// EntityResolver maps external identifiers to input, or signals that none
// is available so the parser can fall back to permissive behavior.
type EntityResolver interface {
	ResolveEntity(name, publicID, systemID, baseURI string) (path string, ok bool)
}

// Handler is the interface the parser requires: ContentHandler. The parser
// type-asserts a Handler for LexicalHandler only, so a handler can opt into
// lexical events; DTDHandler, DeclHandler and EntityResolver are never
// called by the parser.
type Handler interface {
	ContentHandler
}
