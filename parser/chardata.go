package parser

import (
	"strings"

	"github.com/orvant/xmlcore/internal/xmlerr"
)

// normalizeLineEndings applies the XML end-of-line handling rule: every
// CRLF or lone CR in the source is delivered to handlers as a single LF.
func normalizeLineEndings(s string) string {
	if !strings.ContainsAny(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// emitText delivers a run of character data to the handler, tracking the
// enclosing element's mixed-content flags and routing whitespace-only runs
// to IgnorableWhitespace when xml:space is not "preserve" (spec §4.3
// "Character data"). CDATA content is never treated as ignorable,
// regardless of xml:space or its actual characters.
func (p *Parser) emitText(text string, fromCDATA bool) error {
	if len(p.elements) == 0 {
		if !isWhitespaceOnly(text) {
			return p.fatal(xmlerr.TextOutsideRoot, "character data is not allowed outside the root element")
		}
		return p.handler.IgnorableWhitespace(text)
	}
	top := &p.elements[len(p.elements)-1]
	ws := !fromCDATA && isWhitespaceOnly(text)
	top.hasText = true
	if !ws {
		top.nonWSText = true
	}
	if ws && top.xmlSpace != "preserve" {
		return p.handler.IgnorableWhitespace(text)
	}
	return p.handler.Characters(text)
}

// parseCharData consumes a run of character data up to the next '<',
// expanding entity and character references in the process (spec §4.3
// "Character data" and "Entity references in content").
func (p *Parser) parseCharData() error {
	idx, err := p.ensureThrough(func(s string) int { return strings.IndexByte(s, '<') })
	if err != nil {
		return err
	}
	var raw string
	if idx < 0 {
		raw = p.rest()
		idx = len(raw)
	} else {
		raw = p.rest()[:idx]
	}
	if raw == "" {
		return nil
	}
	// XML 1.0 §2.4: ']]>' must never appear in character data outside an
	// active CDATA section -- not just when it happens to fall on a token
	// boundary. Everything parseCharData consumes here is, by construction,
	// outside any CDATA section (those are recognized and consumed
	// separately by parseCDATASection), so any occurrence anywhere in raw
	// is a well-formedness violation.
	if strings.Contains(raw, "]]>") {
		return p.fatal(xmlerr.TextOutsideRoot, "']]>' is not allowed outside a CDATA section")
	}
	raw = normalizeLineEndings(raw)

	pieces, err := p.expandContentEntities(raw)
	if err != nil {
		return err
	}
	for _, piece := range pieces {
		if piece.skipped != "" {
			if len(p.elements) > 0 {
				top := &p.elements[len(p.elements)-1]
				top.hasText = true
				top.nonWSText = true
			}
			if err := p.handler.SkippedEntity(piece.skipped); err != nil {
				return err
			}
			continue
		}
		if piece.text == "" {
			continue
		}
		for _, r := range piece.text {
			if !p.isValidChar(r) {
				return p.fatal(xmlerr.InvalidCharacter, "invalid character in content")
			}
		}
		if err := p.emitText(piece.text, false); err != nil {
			return err
		}
	}
	p.pos += idx
	return nil
}
