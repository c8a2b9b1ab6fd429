package parser

import "strings"

// docLocator is handed to the handler via SetDocumentLocator so it can ask
// the parser's current position while an event callback is running.
type docLocator struct{ p *Parser }

func (l docLocator) Line() int      { return l.p.lineAt(l.p.pos) }
func (l docLocator) Column() int    { return l.p.columnAt(l.p.pos) }
func (l docLocator) SystemID() string {
	if l.p.reader == nil {
		return ""
	}
	return l.p.reader.Path()
}

// lineAt and columnAt are 1-based, computed from the consumed prefix of
// the buffer. They are only ever called for diagnostics (fatal/warn), so
// re-scanning the consumed prefix on each call is cheap enough.
func (p *Parser) lineAt(offset int) int {
	if offset > len(p.buf) {
		offset = len(p.buf)
	}
	return 1 + strings.Count(p.buf[:offset], "\n")
}

func (p *Parser) columnAt(offset int) int {
	if offset > len(p.buf) {
		offset = len(p.buf)
	}
	if i := strings.LastIndexByte(p.buf[:offset], '\n'); i >= 0 {
		return offset - i
	}
	return offset + 1
}
