package parser

import (
	"strings"

	"github.com/orvant/xmlcore/internal/xmlerr"
)

// parseXMLDecl parses the optional <?xml ...?> declaration. Callers only
// reach here after isXMLDeclLookahead confirmed the prefix, so the "<?xml"
// is always present; what remains to validate is the attribute list itself.
func (p *Parser) parseXMLDecl() error {
	idx, err := p.ensureThrough(func(s string) int { return strings.Index(s, "?>") })
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "XML declaration is missing '?>'")
	}
	body := strings.TrimSpace(p.rest()[len("<?xml") : idx])
	consumed := idx + 2

	attrs, err := p.parseAttrList(body)
	if err != nil {
		return err
	}
	var version, encoding string
	var standalone *bool
	for i, a := range attrs {
		switch {
		case i == 0 && a.name == "version":
			version = a.rawValue
		case a.name == "encoding":
			encoding = a.rawValue
		case a.name == "standalone":
			v := a.rawValue == "yes"
			if a.rawValue != "yes" && a.rawValue != "no" {
				return p.fatal(xmlerr.MalformedAttribute, "standalone must be 'yes' or 'no', got %q", a.rawValue)
			}
			standalone = &v
		default:
			return p.fatal(xmlerr.MalformedAttribute, "unexpected attribute %q in XML declaration", a.name)
		}
	}
	if version != "1.0" && version != "1.1" {
		return p.fatal(xmlerr.MalformedAttribute, "XML declaration must specify version \"1.0\" or \"1.1\", got %q", version)
	}
	p.xmlVersion = version
	p.declSeen = true

	if encoding == "" {
		encoding = "UTF-8"
	}
	if err := p.handler.XMLDeclaration(version, encoding, standalone); err != nil {
		return err
	}
	p.pos += consumed
	return nil
}

func readQuotedLiteral(s string) (lit, rest string, ok bool) {
	if s == "" || (s[0] != '"' && s[0] != '\'') {
		return "", s, false
	}
	q := s[0]
	end := strings.IndexByte(s[1:], q)
	if end < 0 {
		return "", s, false
	}
	return s[1 : 1+end], s[1+end+1:], true
}

func findDoctypeEnd(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		case '>':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func findMatchingBracket(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			quote = c
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseDoctype implements spec §4.3 "Document type declaration": it must
// precede the root element, may carry a PUBLIC or SYSTEM external
// identifier, and may carry a quote-aware bracket-scanned internal subset.
func (p *Parser) parseDoctype() error {
	if p.rootSeen || p.doctypeSeen || len(p.elements) > 0 {
		return p.fatal(xmlerr.MultipleRoots, "DOCTYPE declaration must appear once, before the root element")
	}
	const prefix = "<!DOCTYPE"
	idx, err := p.ensureThrough(findDoctypeEnd)
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "DOCTYPE declaration is missing '>'")
	}
	body := strings.TrimSpace(p.rest()[len(prefix):idx])
	consumed := idx + 1

	i := 0
	for i < len(body) && !isXMLSpace(body[i]) && body[i] != '[' {
		i++
	}
	rootName := body[:i]
	if !isValidName(rootName) {
		return p.fatal(xmlerr.InvalidName, "%q is not a valid root element name", rootName)
	}
	rem := strings.TrimSpace(body[i:])

	var publicID, systemID string
	switch {
	case strings.HasPrefix(rem, "SYSTEM"):
		rem = strings.TrimSpace(rem[len("SYSTEM"):])
		lit, next, ok := readQuotedLiteral(rem)
		if !ok {
			return p.fatal(xmlerr.MalformedAttribute, "DOCTYPE SYSTEM identifier must be quoted")
		}
		systemID, rem = lit, strings.TrimSpace(next)
	case strings.HasPrefix(rem, "PUBLIC"):
		rem = strings.TrimSpace(rem[len("PUBLIC"):])
		lit, next, ok := readQuotedLiteral(rem)
		if !ok {
			return p.fatal(xmlerr.MalformedAttribute, "DOCTYPE PUBLIC identifier must be quoted")
		}
		publicID, rem = lit, strings.TrimSpace(next)
		if len(rem) > 0 && (rem[0] == '"' || rem[0] == '\'') {
			lit2, next2, ok2 := readQuotedLiteral(rem)
			if !ok2 {
				return p.fatal(xmlerr.MalformedAttribute, "DOCTYPE SYSTEM identifier must be quoted")
			}
			systemID, rem = lit2, strings.TrimSpace(next2)
		}
	}

	var internalSubset string
	if strings.HasPrefix(rem, "[") {
		end := findMatchingBracket(rem)
		if end < 0 {
			return p.fatal(xmlerr.UnclosedMarkup, "DOCTYPE internal subset is missing ']'")
		}
		internalSubset = rem[1:end]
	}

	if p.lexical != nil {
		if err := p.lexical.StartDTD(rootName, publicID, systemID); err != nil {
			return err
		}
		if internalSubset != "" {
			if err := p.lexical.InternalSubset(internalSubset); err != nil {
				return err
			}
		}
		if err := p.lexical.EndDTD(); err != nil {
			return err
		}
	}

	if !p.ignoreGrammars {
		if err := p.dispatcher.ProcessDoctype(rootName, publicID, systemID, internalSubset); err != nil {
			if p.validating {
				return err
			}
			p.warn(p.pos, "grammar load from DOCTYPE: %v", err)
		}
	}

	p.doctypeSeen = true
	p.pos += consumed
	return nil
}

// parseComment implements spec §4.3 "Comment". A literal "--" inside the
// body is fatal when validating and a warning otherwise.
func (p *Parser) parseComment() error {
	idx, err := p.ensureThrough(func(s string) int { return strings.Index(s, "-->") })
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "comment is missing '-->'")
	}
	content := p.rest()[len("<!--"):idx]
	consumed := idx + len("-->")

	if strings.Contains(content, "--") {
		if p.validating {
			return p.fatal(xmlerr.CommentHasDoubleDash, "comment must not contain '--'")
		}
		p.warn(p.pos, "comment contains '--'")
	}
	for _, r := range content {
		if !p.isValidChar(r) {
			return p.fatal(xmlerr.InvalidCharacter, "invalid character in comment")
		}
	}
	if p.lexical != nil {
		if err := p.lexical.Comment(content); err != nil {
			return err
		}
	}
	p.pos += consumed
	return nil
}

// parseCDATASection implements spec §4.3 "CDATA section": its content is
// delivered as a single Characters event, with no entity expansion.
func (p *Parser) parseCDATASection() error {
	const open = "<![CDATA["
	idx, err := p.ensureThrough(func(s string) int { return strings.Index(s, "]]>") })
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "CDATA section is missing ']]>'")
	}
	content := p.rest()[len(open):idx]
	consumed := idx + len("]]>")

	for _, r := range content {
		if !p.isValidChar(r) {
			return p.fatal(xmlerr.InvalidCharacter, "invalid character in CDATA section")
		}
	}
	if p.lexical != nil {
		if err := p.lexical.StartCDATA(); err != nil {
			return err
		}
	}
	if err := p.emitText(content, true); err != nil {
		return err
	}
	if p.lexical != nil {
		if err := p.lexical.EndCDATA(); err != nil {
			return err
		}
	}
	p.pos += consumed
	return nil
}

// parsePI implements spec §4.3 "Processing instruction". The target "xml"
// (in any case) is reserved; every other target, including hints such as
// xml-model, is forwarded to the dispatcher before the handler sees it.
func (p *Parser) parsePI() error {
	idx, err := p.ensureThrough(func(s string) int { return strings.Index(s, "?>") })
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "processing instruction is missing '?>'")
	}
	body := p.rest()[len("<?"):idx]
	consumed := idx + 2

	target := body
	data := ""
	for i, r := range body {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			target = body[:i]
			data = strings.TrimLeft(body[i:], " \t\r\n")
			break
		}
	}
	if !isValidName(target) {
		return p.fatal(xmlerr.PIBadTarget, "%q is not a valid processing instruction target", target)
	}
	if strings.EqualFold(target, "xml") {
		return p.fatal(xmlerr.PIBadTarget, "processing instruction target %q is reserved", target)
	}

	if !p.ignoreGrammars {
		if err := p.dispatcher.ProcessPI(target, data); err != nil {
			if p.validating {
				return err
			}
			p.warn(p.pos, "processing instruction %q: %v", target, err)
		}
	}

	if err := p.handler.ProcessingInstruction(target, data); err != nil {
		return err
	}
	p.pos += consumed
	return nil
}
