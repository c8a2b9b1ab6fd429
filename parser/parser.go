// Package parser implements spec §4.3: a single-threaded, pull-driven
// XML 1.0/1.1 tokenizer and state machine that emits events to a
// saxapi.Handler. It performs entity expansion, attribute normalization,
// XML-namespace scoping, and well-formedness enforcement, and -- when
// given a GrammarDispatcher -- drives grammar loading and validation at
// the points spec §4.3 names.
package parser

import (
	"fmt"
	"strings"

	"github.com/orvant/xmlcore/charreader"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/saxapi"
)

// minBufferSize is the refill threshold from spec §4.3 "Buffer discipline".
const minBufferSize = 2048

// rotateThreshold bounds how long a fully consumed prefix is allowed to
// accumulate before the buffer is re-sliced back to offset 0.
const rotateThreshold = 1 << 16

// Option configures a Parser, grounded in the teacher's func(*config)
// options idiom (xsdgen.Option).
type Option func(*Parser)

// Validating enables grammar-driven validation (spec §4.3 step 9, and end
// tag validation). Validation and grammar-load failures become fatal.
func Validating(b bool) Option { return func(p *Parser) { p.validating = b } }

// Silent suppresses warnings that would otherwise be reported (spec §6).
func Silent(b bool) Option { return func(p *Parser) { p.silent = b } }

// IgnoreGrammars disables all grammar loading/dispatch, even if a
// Dispatcher was provided.
func IgnoreGrammars(b bool) Option { return func(p *Parser) { p.ignoreGrammars = b } }

// IncludeDefaultAttributes controls whether grammar-declared default
// attribute values are appended to startElement events (spec §4.3 step 6).
func IncludeDefaultAttributes(b bool) Option { return func(p *Parser) { p.includeDefaults = b } }

// WithDispatcher installs a GrammarDispatcher. Without one, the parser
// runs with no grammar awareness at all (entities besides the five
// predefined ones are always reported via SkippedEntity).
func WithDispatcher(d GrammarDispatcher) Option { return func(p *Parser) { p.dispatcher = d } }

// Warning is a non-fatal diagnostic collected during a non-validating
// parse (spec §6: "Warnings in non-validating mode go to the process's
// standard error stream unless silent=true" -- the CLI, not this
// package, owns that I/O; the parser only collects them).
type Warning struct {
	Message string
	Offset  int
}

type elementFrame struct {
	lexicalName string
	name        qname
	scope       nsScope
	xmlSpace    string
	childNames  []string
	hasText     bool
	nonWSText   bool
}

// Parser is a single-use streaming XML reader. Construct one with New and
// call exactly one of ParseString, ParseFile, or ParseStream.
type Parser struct {
	validating      bool
	silent          bool
	ignoreGrammars  bool
	includeDefaults bool
	dispatcher      GrammarDispatcher

	handler saxapi.Handler
	lexical saxapi.LexicalHandler // optional, type-asserted from handler

	reader *charreader.Reader
	buf    string
	pos    int

	xmlVersion string

	rootSeen       bool
	rootClosed     bool
	elements       []elementFrame
	inCDATA        bool
	declSeen       bool
	doctypeSeen    bool
	skippedEntities []string

	Warnings []Warning
}

// New constructs a Parser with the given options.
func New(opts ...Option) *Parser {
	p := &Parser{xmlVersion: "1.0", dispatcher: noopDispatcher{}}
	for _, o := range opts {
		o(p)
	}
	if p.dispatcher == nil || p.ignoreGrammars {
		p.dispatcher = noopDispatcher{}
	}
	p.dispatcher.SetValidating(p.validating)
	return p
}

func (p *Parser) warn(offset int, format string, args ...interface{}) {
	if p.silent {
		return
	}
	p.Warnings = append(p.Warnings, Warning{Message: fmt.Sprintf(format, args...), Offset: offset})
}

// ParseString parses an in-memory document (spec §6 parseString).
func (p *Parser) ParseString(s string, handler saxapi.Handler) error {
	p.reader = charreader.NewFromString(s)
	return p.run(handler)
}

// ParseFile parses the document at path, sniffing its encoding unless
// encoding is non-empty (spec §6 parseFile).
func (p *Parser) ParseFile(path, encoding string, handler saxapi.Handler) error {
	r, err := charreader.New(path, encoding)
	if err != nil {
		return err
	}
	p.reader = r
	return p.run(handler)
}

// ParseStream parses an already-open byte stream (spec §6 parseStream).
func (p *Parser) ParseStream(r *charreader.Reader, handler saxapi.Handler) error {
	p.reader = r
	return p.run(handler)
}

func (p *Parser) run(handler saxapi.Handler) error {
	p.handler = handler
	p.lexical, _ = handler.(saxapi.LexicalHandler)
	handler.SetDocumentLocator(docLocator{p: p})

	if err := handler.StartDocument(); err != nil {
		return err
	}
	if err := p.parseDocument(); err != nil {
		return err
	}
	return handler.EndDocument()
}

// refill tops up the buffer from the reader whenever the unconsumed tail
// is smaller than minBufferSize and more data may be available, and
// periodically rotates the buffer so a long parse doesn't retain every
// byte it has ever consumed (spec §4.3 "Buffer discipline").
func (p *Parser) refill() error {
	if p.pos > rotateThreshold {
		p.buf = p.buf[p.pos:]
		p.pos = 0
	}
	for p.reader != nil && len(p.buf)-p.pos < minBufferSize && p.reader.DataAvailable() {
		chunk, err := p.reader.Read()
		if err != nil {
			return err
		}
		if chunk == "" {
			break
		}
		p.buf += chunk
	}
	return nil
}

func (p *Parser) rest() string { return p.buf[p.pos:] }

func (p *Parser) eof() bool {
	p.refill()
	return p.pos >= len(p.buf)
}

func (p *Parser) fatal(kind xmlerr.MalformedXmlKind, format string, args ...interface{}) error {
	return &xmlerr.MalformedXml{
		Kind:    kind,
		Offset:  p.pos,
		Line:    p.lineAt(p.pos),
		Column:  p.columnAt(p.pos),
		Message: fmt.Sprintf(format, args...),
	}
}

// parseDocument is the top-level state machine: Prolog -> InRoot ->
// Epilog, dispatching on a short lookahead at the current position
// (spec §4.3 "outer loop").
func (p *Parser) parseDocument() error {
	if err := p.refill(); err != nil {
		return err
	}
	if strings.HasPrefix(p.rest(), "<?xml") && p.isXMLDeclLookahead() {
		if err := p.parseXMLDecl(); err != nil {
			return err
		}
	} else {
		if err := p.handler.XMLDeclaration("1.0", "UTF-8", nil); err != nil {
			return err
		}
	}

	for {
		if err := p.refill(); err != nil {
			return err
		}
		if p.pos >= len(p.buf) {
			break
		}
		if err := p.dispatchToken(); err != nil {
			return err
		}
	}

	if len(p.elements) > 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "unexpected end of document inside <%s>", p.elements[len(p.elements)-1].lexicalName)
	}
	if !p.rootSeen {
		return p.fatal(xmlerr.MissingRoot, "document has no root element")
	}
	return nil
}

func (p *Parser) isXMLDeclLookahead() bool {
	rest := p.rest()
	if !strings.HasPrefix(rest, "<?xml") {
		return false
	}
	if len(rest) <= len("<?xml") {
		return false
	}
	c := rest[len("<?xml")]
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// dispatchToken recognizes, in order, the markup forms named in spec
// §4.3's outer loop, using a short lookahead from the current position.
func (p *Parser) dispatchToken() error {
	rest := p.rest()
	switch {
	case strings.HasPrefix(rest, "<!DOCTYPE"):
		return p.parseDoctype()
	case strings.HasPrefix(rest, "<!--"):
		return p.parseComment()
	case strings.HasPrefix(rest, "<![CDATA["):
		return p.parseCDATASection()
	case strings.HasPrefix(rest, "<?"):
		return p.parsePI()
	case strings.HasPrefix(rest, "</"):
		return p.parseEndTag()
	case strings.HasPrefix(rest, "<"):
		return p.parseStartTag()
	case strings.HasPrefix(rest, "]]>"):
		return p.fatal(xmlerr.TextOutsideRoot, "']]>' is not allowed outside a CDATA section")
	default:
		return p.parseCharData()
	}
}
