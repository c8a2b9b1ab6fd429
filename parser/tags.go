package parser

import (
	"strings"

	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/saxapi"
)

type parsedElement struct {
	prefix, local, uri, lexical string
	attrs                       []saxapi.Attribute
}

func (e parsedElement) Prefix() string                 { return e.prefix }
func (e parsedElement) URI() string                     { return e.uri }
func (e parsedElement) LocalName() string               { return e.local }
func (e parsedElement) Name() string                    { return e.lexical }
func (e parsedElement) Attributes() []saxapi.Attribute  { return e.attrs }

// ensureThrough grows p.buf (bypassing the coarse minBufferSize refill
// threshold) until find locates its target in the unconsumed tail, or the
// reader is exhausted. It returns the index of the match relative to
// p.rest(), or -1 if the source ran out first.
func (p *Parser) ensureThrough(find func(s string) int) (int, error) {
	for {
		if idx := find(p.rest()); idx >= 0 {
			return idx, nil
		}
		if p.reader == nil || !p.reader.DataAvailable() {
			return -1, nil
		}
		chunk, err := p.reader.Read()
		if err != nil {
			return -1, err
		}
		if chunk == "" {
			return -1, nil
		}
		p.buf += chunk
	}
}

func findUnquotedGT(s string) int {
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
		case '>':
			return i
		}
	}
	return -1
}

// parseStartTag implements spec §4.3 "Start tag", steps 1-10.
func (p *Parser) parseStartTag() error {
	if p.rootSeen && len(p.elements) == 0 {
		return p.fatal(xmlerr.MultipleRoots, "a document may have only one root element")
	}

	idx, err := p.ensureThrough(findUnquotedGT)
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "start tag is missing its closing '>'")
	}
	body := p.rest()[1:idx] // drop leading '<'
	consumed := idx + 1     // including '>'

	trimmed := strings.TrimRight(body, " \t\r\n")
	selfClose := strings.HasSuffix(trimmed, "/")
	if selfClose {
		body = strings.TrimRight(trimmed[:len(trimmed)-1], " \t\r\n")
	}

	nameEnd := len(body)
	for i, r := range body {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			nameEnd = i
			break
		}
	}
	lexicalName := body[:nameEnd]
	if !isValidName(lexicalName) {
		return p.fatal(xmlerr.InvalidName, "%q is not a valid XML name", lexicalName)
	}

	rawAttrs, err := p.parseAttrList(strings.TrimSpace(body[nameEnd:]))
	if err != nil {
		return err
	}

	var parent *elementFrame
	if len(p.elements) > 0 {
		parent = &p.elements[len(p.elements)-1]
		parent.childNames = append(parent.childNames, lexicalName)
	}

	parentScope := baseScope()
	parentSpace := "default"
	if parent != nil {
		parentScope = parent.scope
		parentSpace = parent.xmlSpace
	}
	scope := parentScope.push(nsBindingsFromAttrs(rawAttrs))

	attrs := make([]saxapi.Attribute, 0, len(rawAttrs))
	for _, ra := range rawAttrs {
		q := scope.resolveName(ra.name, true)
		value, err := p.expandAttrEntities(ra.rawValue)
		if err != nil {
			return err
		}
		cdata := true
		if g, ok := p.dispatcher.GetGrammar(); ok {
			cdata = g.AttributeType(lexicalName, ra.name) == "CDATA"
		}
		value = normalizeAttrValue(value, cdata)
		attrs = append(attrs, saxapi.Attribute{
			Prefix:    q.prefix,
			LocalName: q.local,
			Namespace: q.space,
			Value:     value,
			Specified: true,
		})
	}

	if p.includeDefaults {
		if g, ok := p.dispatcher.GetGrammar(); ok {
			for name, value := range g.GetDefaultAttributes(lexicalName) {
				if hasAttrNamed(rawAttrs, name) {
					continue
				}
				q := scope.resolveName(name, true)
				attrs = append(attrs, saxapi.Attribute{
					Prefix: q.prefix, LocalName: q.local, Namespace: q.space,
					Value: value, Specified: false,
				})
			}
		}
	}

	if !p.ignoreGrammars {
		if err := p.dispatcher.ProcessNamespaces(attrs, scope.prefixMap()); err != nil {
			if p.validating {
				return err
			}
			p.warn(p.pos, "namespace/schema processing: %v", err)
		}
	}

	xmlSpace := parentSpace
	for _, a := range attrs {
		if a.Prefix == "xml" && a.LocalName == "space" {
			if a.Value == "preserve" || a.Value == "default" {
				xmlSpace = a.Value
			}
		}
	}

	if p.validating {
		if g, ok := p.dispatcher.GetGrammar(); ok {
			if err := g.ValidateAttributes(lexicalName, attrs); err != nil {
				return err
			}
		}
	}

	elemName := scope.resolveName(lexicalName, false)
	pe := parsedElement{prefix: elemName.prefix, local: elemName.local, uri: elemName.space, lexical: lexicalName, attrs: attrs}
	if err := p.handler.StartElement(pe); err != nil {
		return err
	}

	frame := elementFrame{lexicalName: lexicalName, name: elemName, scope: scope, xmlSpace: xmlSpace}
	if !selfClose {
		p.elements = append(p.elements, frame)
	} else {
		if err := p.validateElementClose(frame, nil, "", false); err != nil {
			return err
		}
		if err := p.handler.EndElement(pe); err != nil {
			return err
		}
		if len(p.elements) == 0 {
			p.rootSeen = true
			p.rootClosed = true
		}
	}
	p.pos += consumed
	if len(p.elements) > 0 || selfClose {
		p.rootSeen = true
	}
	return nil
}

type rawAttr struct {
	name, rawValue string
}

func hasAttrNamed(attrs []rawAttr, name string) bool {
	for _, a := range attrs {
		if a.name == name {
			return true
		}
	}
	return false
}

// parseAttrList splits an already-extracted attribute substring (with the
// element name and trailing '/' removed) into name/value pairs, per spec
// §4.3 step 3-4: track a single active quote character, validate name and
// quoting, and detect duplicate attribute names.
func (p *Parser) parseAttrList(s string) ([]rawAttr, error) {
	var out []rawAttr
	seen := make(map[string]bool)
	i := 0
	for i < len(s) {
		for i < len(s) && isXMLSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		for i < len(s) && s[i] != '=' && !isXMLSpace(s[i]) {
			i++
		}
		name := s[start:i]
		if !isValidName(name) {
			return nil, p.fatal(xmlerr.InvalidName, "%q is not a valid attribute name", name)
		}
		for i < len(s) && isXMLSpace(s[i]) {
			i++
		}
		if i >= len(s) || s[i] != '=' {
			return nil, p.fatal(xmlerr.MalformedAttribute, "attribute %q is missing '='", name)
		}
		i++
		for i < len(s) && isXMLSpace(s[i]) {
			i++
		}
		if i >= len(s) || (s[i] != '"' && s[i] != '\'') {
			return nil, p.fatal(xmlerr.MalformedAttribute, "attribute %q value must be quoted", name)
		}
		quote := s[i]
		i++
		valStart := i
		for i < len(s) && s[i] != quote {
			i++
		}
		if i >= len(s) {
			return nil, p.fatal(xmlerr.MalformedAttribute, "attribute %q value is missing its closing quote", name)
		}
		value := s[valStart:i]
		i++ // closing quote

		if seen[name] {
			return nil, p.fatal(xmlerr.DuplicateAttribute, "duplicate attribute %q", name)
		}
		seen[name] = true
		out = append(out, rawAttr{name: name, rawValue: value})
	}
	return out, nil
}

func isXMLSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func nsBindingsFromAttrs(attrs []rawAttr) []nsBinding {
	var out []nsBinding
	for _, a := range attrs {
		switch {
		case a.name == "xmlns":
			out = append(out, nsBinding{prefix: "", uri: a.rawValue})
		case strings.HasPrefix(a.name, "xmlns:"):
			out = append(out, nsBinding{prefix: a.name[len("xmlns:"):], uri: a.rawValue})
		}
	}
	return out
}

func normalizeAttrValue(v string, cdata bool) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	if cdata {
		return v
	}
	v = strings.ReplaceAll(v, "\t", " ")
	return strings.Join(strings.Fields(v), " ")
}

// parseEndTag implements spec §4.3 "End tag".
func (p *Parser) parseEndTag() error {
	idx, err := p.ensureThrough(findUnquotedGT)
	if err != nil {
		return err
	}
	if idx < 0 {
		return p.fatal(xmlerr.UnclosedMarkup, "end tag is missing its closing '>'")
	}
	name := strings.TrimSpace(p.rest()[2:idx])
	consumed := idx + 1

	if len(p.elements) == 0 {
		return p.fatal(xmlerr.MismatchedTags, "end tag </%s> has no matching start tag", name)
	}
	top := p.elements[len(p.elements)-1]
	if top.lexicalName != name {
		return p.fatal(xmlerr.MismatchedTags, "expected </%s>, found </%s>", top.lexicalName, name)
	}

	if err := p.validateElementClose(top, top.childNames, "", top.nonWSText); err != nil {
		return err
	}

	elemName := top.scope.resolveName(name, false)
	pe := parsedElement{prefix: elemName.prefix, local: elemName.local, uri: elemName.space, lexical: name}
	if err := p.handler.EndElement(pe); err != nil {
		return err
	}

	p.elements = p.elements[:len(p.elements)-1]
	if len(p.elements) == 0 {
		p.rootClosed = true
	}
	p.pos += consumed
	return nil
}

func (p *Parser) validateElementClose(frame elementFrame, childNames []string, text string, mixedText bool) error {
	if !p.validating {
		return nil
	}
	g, ok := p.dispatcher.GetGrammar()
	if !ok {
		return nil
	}
	return g.ValidateElement(frame.lexicalName, childNames, text, mixedText)
}
