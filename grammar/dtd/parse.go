package dtd

import (
	"strings"

	"github.com/orvant/xmlcore/internal/xmlerr"
)

// Parse scans a DTD subset (internal or external) into a Grammar. seed
// carries parameter entities inherited from the internal subset (spec
// §4.5 "Parameter-entity inheritance"): before parsing an external
// grammar, the caller extracts the internal subset's parameter entities
// and seeds the new grammar with them, so `%name;` references that cross
// the internal/external boundary still resolve.
func Parse(subset string, seed map[string]string) (*Grammar, error) {
	g := newGrammar()
	for name, val := range seed {
		g.ParamEntities[name] = val
	}

	for _, raw := range splitDecls(stripComments(subset)) {
		decl := strings.TrimSpace(raw)
		if decl == "" {
			continue
		}
		expanded := g.expandParamEntities(decl)
		if err := g.parseDecl(expanded); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// stripComments removes <!-- ... --> runs so they can't be mistaken for
// declarations or interfere with bracket scanning.
func stripComments(s string) string {
	var b strings.Builder
	for {
		i := strings.Index(s, "<!--")
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		j := strings.Index(s[i+4:], "-->")
		if j < 0 {
			break
		}
		s = s[i+4+j+3:]
	}
	return b.String()
}

// splitDecls extracts the bodies of top-level "<!...>" markup declarations
// (without the surrounding "<!" and ">"), tracking quotes so a literal '>'
// inside a quoted default value doesn't terminate the declaration early.
func splitDecls(s string) []string {
	var out []string
	i := 0
	for i < len(s) {
		start := strings.Index(s[i:], "<!")
		if start < 0 {
			break
		}
		start += i
		var quote byte
		j := start + 2
		for j < len(s) {
			c := s[j]
			if quote != 0 {
				if c == quote {
					quote = 0
				}
				j++
				continue
			}
			if c == '"' || c == '\'' {
				quote = c
				j++
				continue
			}
			if c == '>' {
				break
			}
			j++
		}
		if j >= len(s) {
			break
		}
		out = append(out, s[start+2:j])
		i = j + 1
	}
	return out
}

// expandParamEntities substitutes %name; references using parameter
// entities declared so far in this grammar (including the seed). Unknown
// parameter entities are left verbatim -- an external subset's parameter
// entities are not always fully known up front, and spec scope does not
// require fully general recursive PE expansion across declaration
// boundaries.
func (g *Grammar) expandParamEntities(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '%' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := strings.IndexByte(s[i+1:], ';')
		if end < 0 {
			b.WriteByte(s[i])
			i++
			continue
		}
		name := s[i+1 : i+1+end]
		if val, ok := g.ParamEntities[name]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(s[i : i+1+end+1])
		}
		i = i + 1 + end + 1
	}
	return b.String()
}

func (g *Grammar) parseDecl(decl string) error {
	fields := strings.Fields(decl)
	if len(fields) == 0 {
		return nil
	}
	switch fields[0] {
	case "ELEMENT":
		return g.parseElementDecl(decl)
	case "ATTLIST":
		return g.parseAttlistDecl(decl)
	case "ENTITY":
		return g.parseEntityDecl(decl)
	case "NOTATION":
		return g.parseNotationDecl(decl)
	default:
		return nil // unrecognized markup (e.g. a conditional section marker); ignore
	}
}

func fieldsAfterKeyword(decl, keyword string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(decl), keyword))
}

func (g *Grammar) parseElementDecl(decl string) error {
	rest := fieldsAfterKeyword(decl, "ELEMENT")
	name, rest := nextToken(rest)
	if name == "" {
		return &xmlerr.DtdParseError{Message: "ELEMENT declaration is missing a name"}
	}
	rest = strings.TrimSpace(rest)
	ed := ElementDecl{Name: name}
	switch {
	case rest == "EMPTY":
		ed.Kind = EmptyContent
	case rest == "ANY":
		ed.Kind = AnyContent
	case strings.HasPrefix(rest, "(") && strings.Contains(rest, "#PCDATA"):
		ed.Kind = MixedContent
		ed.Mixed = parseMixedContent(rest)
	case strings.HasPrefix(rest, "("):
		ed.Kind = ChildrenContent
		node, _ := parseContentModel(rest)
		ed.Model = node
	default:
		return &xmlerr.DtdParseError{Message: "unrecognized content spec for element " + name}
	}
	g.Elements[name] = ed
	return nil
}

func parseMixedContent(spec string) []string {
	inner := strings.Trim(strings.TrimRight(strings.TrimSpace(spec), "*"), "()")
	var names []string
	for _, part := range strings.Split(inner, "|") {
		part = strings.TrimSpace(part)
		if part != "" && part != "#PCDATA" {
			names = append(names, part)
		}
	}
	return names
}

// parseContentModel parses a CHILDREN content-model expression such as
// "(a,b?,(c|d)+)*" into a ContentNode tree, returning the unconsumed tail.
func parseContentModel(s string) (ContentNode, string) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return parseNameNode(s)
	}
	depth := 0
	end := -1
	for i, c := range s {
		switch c {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return ContentNode{}, ""
	}
	inner := s[1:end]
	tail := s[end+1:]
	occurs, tail := parseOccurs(tail)

	sep, parts := splitTopLevel(inner)
	var children []ContentNode
	for _, p := range parts {
		child, _ := parseContentModel(p)
		children = append(children, child)
	}
	kind := SeqNode
	if sep == '|' {
		kind = ChoiceNode
	}
	return ContentNode{Kind: kind, Children: children, Occurs: occurs}, tail
}

func parseNameNode(s string) (ContentNode, string) {
	i := 0
	for i < len(s) && s[i] != ',' && s[i] != '|' && s[i] != ')' && s[i] != '?' && s[i] != '*' && s[i] != '+' {
		i++
	}
	name := s[:i]
	occurs, tail := parseOccurs(s[i:])
	return ContentNode{Kind: NameNode, Name: name, Occurs: occurs}, tail
}

func parseOccurs(s string) (Occurs, string) {
	if s == "" {
		return Once, s
	}
	switch s[0] {
	case '?':
		return ZeroOrOne, s[1:]
	case '*':
		return ZeroOrMore, s[1:]
	case '+':
		return OneOrMore, s[1:]
	default:
		return Once, s
	}
}

// splitTopLevel splits inner on the top-level separator (',' or '|'),
// respecting nested parens.
func splitTopLevel(inner string) (byte, []string) {
	depth := 0
	var sep byte
	var parts []string
	start := 0
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '(':
			depth++
		case ')':
			depth--
		case ',', '|':
			if depth == 0 {
				if sep == 0 {
					sep = inner[i]
				}
				parts = append(parts, inner[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, inner[start:])
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return sep, parts
}

func nextToken(s string) (tok, rest string) {
	s = strings.TrimLeft(s, " \t\r\n")
	i := 0
	for i < len(s) && !isSpaceByte(s[i]) {
		i++
	}
	return s[:i], s[i:]
}

func isSpaceByte(c byte) bool { return c == ' ' || c == '\t' || c == '\r' || c == '\n' }

func (g *Grammar) parseAttlistDecl(decl string) error {
	rest := fieldsAfterKeyword(decl, "ATTLIST")
	elem, rest := nextToken(rest)
	if elem == "" {
		return &xmlerr.DtdParseError{Message: "ATTLIST declaration is missing an element name"}
	}
	if g.Attrs[elem] == nil {
		g.Attrs[elem] = make(map[string]AttrDecl)
	}
	rest = strings.TrimSpace(rest)
	for rest != "" {
		var name string
		name, rest = nextToken(rest)
		if name == "" {
			break
		}
		rest = strings.TrimSpace(rest)

		var typ AttrType
		var enum []string
		switch {
		case strings.HasPrefix(rest, "("):
			end := strings.IndexByte(rest, ')')
			if end < 0 {
				return &xmlerr.DtdParseError{Message: "unterminated enumeration in ATTLIST for " + elem}
			}
			typ = EnumType
			for _, v := range strings.Split(rest[1:end], "|") {
				enum = append(enum, strings.TrimSpace(v))
			}
			rest = strings.TrimSpace(rest[end+1:])
		case strings.HasPrefix(rest, "NOTATION"):
			rest = strings.TrimSpace(rest[len("NOTATION"):])
			end := strings.IndexByte(rest, ')')
			if !strings.HasPrefix(rest, "(") || end < 0 {
				return &xmlerr.DtdParseError{Message: "malformed NOTATION attribute type for " + elem}
			}
			typ = NotationType
			for _, v := range strings.Split(rest[1:end], "|") {
				enum = append(enum, strings.TrimSpace(v))
			}
			rest = strings.TrimSpace(rest[end+1:])
		default:
			var kw string
			kw, rest = nextToken(rest)
			rest = strings.TrimSpace(rest)
			typ = parseAttrTypeKeyword(kw)
		}

		ad := AttrDecl{Element: elem, Name: name, Type: typ, Enum: enum}
		switch {
		case strings.HasPrefix(rest, "#REQUIRED"):
			ad.Required = true
			rest = strings.TrimSpace(rest[len("#REQUIRED"):])
		case strings.HasPrefix(rest, "#IMPLIED"):
			ad.Implied = true
			rest = strings.TrimSpace(rest[len("#IMPLIED"):])
		case strings.HasPrefix(rest, "#FIXED"):
			ad.Fixed = true
			rest = strings.TrimSpace(rest[len("#FIXED"):])
			lit, next, ok := readQuoted(rest)
			if !ok {
				return &xmlerr.DtdParseError{Message: "#FIXED value must be quoted for " + elem + "/" + name}
			}
			ad.Default = lit
			rest = strings.TrimSpace(next)
		default:
			lit, next, ok := readQuoted(rest)
			if ok {
				ad.Default = lit
				rest = strings.TrimSpace(next)
			}
		}
		g.Attrs[elem][name] = ad
	}
	return nil
}

func parseAttrTypeKeyword(kw string) AttrType {
	switch kw {
	case "ID":
		return IDType
	case "IDREF":
		return IDREFType
	case "IDREFS":
		return IDREFSType
	case "ENTITY":
		return EntityType
	case "ENTITIES":
		return EntitiesType
	case "NMTOKEN":
		return NMTokenType
	case "NMTOKENS":
		return NMTokensType
	default:
		return CDATAType
	}
}

func readQuoted(s string) (lit, rest string, ok bool) {
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

func (g *Grammar) parseEntityDecl(decl string) error {
	rest := fieldsAfterKeyword(decl, "ENTITY")
	parameter := false
	if strings.HasPrefix(rest, "%") {
		parameter = true
		rest = strings.TrimSpace(rest[1:])
	}
	name, rest := nextToken(rest)
	if name == "" {
		return &xmlerr.DtdParseError{Message: "ENTITY declaration is missing a name"}
	}
	rest = strings.TrimSpace(rest)

	e := Entity{Name: name, Parameter: parameter}
	switch {
	case strings.HasPrefix(rest, "SYSTEM"):
		e.External = true
		rest = strings.TrimSpace(rest[len("SYSTEM"):])
		lit, next, ok := readQuoted(rest)
		if !ok {
			return &xmlerr.DtdParseError{Message: "SYSTEM identifier must be quoted for entity " + name}
		}
		e.SystemID, rest = lit, strings.TrimSpace(next)
	case strings.HasPrefix(rest, "PUBLIC"):
		e.External = true
		rest = strings.TrimSpace(rest[len("PUBLIC"):])
		lit1, next1, ok1 := readQuoted(rest)
		if !ok1 {
			return &xmlerr.DtdParseError{Message: "PUBLIC identifier must be quoted for entity " + name}
		}
		e.PublicID, rest = lit1, strings.TrimSpace(next1)
		lit2, next2, ok2 := readQuoted(rest)
		if ok2 {
			e.SystemID, rest = lit2, strings.TrimSpace(next2)
		}
	default:
		lit, next, ok := readQuoted(rest)
		if !ok {
			return &xmlerr.DtdParseError{Message: "internal entity value must be quoted for entity " + name}
		}
		e.Value, rest = lit, strings.TrimSpace(next)
	}
	if strings.HasPrefix(rest, "NDATA") {
		rest = strings.TrimSpace(rest[len("NDATA"):])
		e.Notation, _ = nextToken(rest)
	}

	if parameter {
		if _, exists := g.ParamEntities[name]; !exists {
			g.ParamEntities[name] = e.Value
		}
	} else if _, exists := g.Entities[name]; !exists {
		g.Entities[name] = e
	}
	return nil
}

func (g *Grammar) parseNotationDecl(decl string) error {
	rest := fieldsAfterKeyword(decl, "NOTATION")
	name, rest := nextToken(rest)
	if name == "" {
		return &xmlerr.DtdParseError{Message: "NOTATION declaration is missing a name"}
	}
	rest = strings.TrimSpace(rest)
	var id string
	switch {
	case strings.HasPrefix(rest, "SYSTEM"):
		lit, _, ok := readQuoted(strings.TrimSpace(rest[len("SYSTEM"):]))
		if ok {
			id = lit
		}
	case strings.HasPrefix(rest, "PUBLIC"):
		lit, _, ok := readQuoted(strings.TrimSpace(rest[len("PUBLIC"):]))
		if ok {
			id = lit
		}
	}
	if _, exists := g.Notations[name]; !exists {
		g.Notations[name] = id
	}
	return nil
}
