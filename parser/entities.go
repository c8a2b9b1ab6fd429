package parser

import (
	"strconv"
	"strings"

	"github.com/orvant/xmlcore/internal/xmlerr"
)

var predefinedEntities = map[string]string{
	"lt":   "<",
	"gt":   ">",
	"amp":  "&",
	"apos": "'",
	"quot": "\"",
}

// expandEntityName resolves a bare entity name (without surrounding &;)
// using the "other" branch of the fixed dispatch order from spec §4.3: a
// lookup via the current grammar, with cycle detection through visited.
func (p *Parser) expandEntityName(name string, visited map[string]bool) (string, bool, error) {
	if visited[name] {
		return "", false, &xmlerr.MalformedXml{Kind: xmlerr.RecursiveEntity, Offset: p.pos, Message: "entity &" + name + "; is self-referential"}
	}
	g, ok := p.dispatcher.GetGrammar()
	if !ok {
		return "", false, nil
	}
	value, ok := g.ResolveEntity(name)
	if !ok {
		return "", false, nil
	}
	visited = cloneVisited(visited)
	visited[name] = true
	expanded, err := p.expandEntityText(value, visited)
	if err != nil {
		return "", false, err
	}
	return expanded, true, nil
}

func cloneVisited(v map[string]bool) map[string]bool {
	out := make(map[string]bool, len(v)+1)
	for k := range v {
		out[k] = true
	}
	return out
}

// parseNumericRef parses the body of a &#...; or &#x...; reference
// (without the leading "&#" or trailing ";") and returns the decoded
// rune as a string.
func (p *Parser) parseNumericRef(body string) (string, error) {
	var (
		n   int64
		err error
	)
	if strings.HasPrefix(body, "x") || strings.HasPrefix(body, "X") {
		n, err = strconv.ParseInt(body[1:], 16, 32)
	} else {
		n, err = strconv.ParseInt(body, 10, 32)
	}
	if err != nil || body == "" {
		return "", &xmlerr.MalformedXml{Kind: xmlerr.InvalidEntityReference, Offset: p.pos, Message: "malformed numeric character reference &#" + body + ";"}
	}
	r := rune(n)
	if !p.isValidChar(r) {
		return "", &xmlerr.MalformedXml{Kind: xmlerr.InvalidCharacter, Offset: p.pos, Message: "character reference &#" + body + "; is not a valid XML character"}
	}
	return string(r), nil
}

// expandEntityText expands entity and character references appearing
// inside an entity's own replacement text (used only for the recursive
// case -- content never reaches here directly, see expandContentEntities).
// An unresolvable nested entity is treated as empty, matching the
// permissive "skippedEntity" behavior content-level expansion uses.
func (p *Parser) expandEntityText(s string, visited map[string]bool) (string, error) {
	pieces, err := p.splitEntityReferences(s, visited)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, piece := range pieces {
		b.WriteString(piece.text)
	}
	return b.String(), nil
}

// contentPiece is either a run of literal (already entity-expanded) text,
// or a marker for an entity the grammar could not resolve -- which the
// content-level caller reports via saxapi's SkippedEntity event rather
// than folding into the text.
type contentPiece struct {
	text    string
	skipped string
}

// expandContentEntities expands entity and character references in a
// character-data run. Unlike attribute values, unresolved general
// entities are not fatal in content (spec §4.3): they produce a
// skippedEntity piece instead.
func (p *Parser) expandContentEntities(raw string) ([]contentPiece, error) {
	return p.splitEntityReferences(raw, map[string]bool{})
}

func (p *Parser) splitEntityReferences(raw string, visited map[string]bool) ([]contentPiece, error) {
	var (
		pieces []contentPiece
		buf    strings.Builder
	)
	i := 0
	for i < len(raw) {
		c := raw[i]
		if c != '&' {
			buf.WriteByte(c)
			i++
			continue
		}
		end := strings.IndexByte(raw[i:], ';')
		if end < 0 {
			return nil, &xmlerr.MalformedXml{Kind: xmlerr.UnescapedAmpersand, Offset: p.pos, Message: "'&' not part of a well-formed entity or character reference"}
		}
		end += i
		ref := raw[i+1 : end]
		if ref == "" {
			return nil, &xmlerr.MalformedXml{Kind: xmlerr.InvalidEntityReference, Offset: p.pos, Message: "empty entity reference"}
		}
		switch {
		case strings.HasPrefix(ref, "#"):
			decoded, err := p.parseNumericRef(ref[1:])
			if err != nil {
				return nil, err
			}
			buf.WriteString(decoded)
		case predefinedEntities[ref] != "":
			buf.WriteString(predefinedEntities[ref])
		default:
			expanded, ok, err := p.expandEntityName(ref, visited)
			if err != nil {
				return nil, err
			}
			if ok {
				buf.WriteString(expanded)
			} else {
				if buf.Len() > 0 {
					pieces = append(pieces, contentPiece{text: buf.String()})
					buf.Reset()
				}
				pieces = append(pieces, contentPiece{skipped: ref})
			}
		}
		i = end + 1
	}
	if buf.Len() > 0 || len(pieces) == 0 {
		pieces = append(pieces, contentPiece{text: buf.String()})
	}
	return pieces, nil
}

// expandAttrEntities expands entity and character references inside an
// already quote-stripped attribute value (spec §4.3 "Entity references in
// attributes"). An unescaped '&' that doesn't start a valid reference, or
// an undeclared entity, is a well-formedness error here -- attribute
// values have no permissive skippedEntity fallback.
func (p *Parser) expandAttrEntities(raw string) (string, error) {
	pieces, err := p.splitEntityReferences(raw, map[string]bool{})
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, piece := range pieces {
		if piece.skipped != "" {
			return "", &xmlerr.MalformedXml{Kind: xmlerr.InvalidEntityReference, Offset: p.pos, Message: "undeclared entity &" + piece.skipped + "; in attribute value"}
		}
		b.WriteString(piece.text)
	}
	return b.String(), nil
}
