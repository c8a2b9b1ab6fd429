// Package catalog implements spec §4.2: an OASIS XML Catalog, used by
// grammar.Dispatcher to resolve public/system identifiers, schema
// locations and RelaxNG hrefs to local content without a network round trip.
//
// A catalog document is itself parsed through this module's own
// parser.Parser feeding a domtree.Builder -- the one place spec.md names
// the core parser explicitly as the implementation vehicle for another
// subsystem, and the first proof that parser+domtree+saxapi compose
// end to end.
package catalog

import (
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/orvant/xmlcore/domtree"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/parser"
)

const catalogNS = "urn:oasis:names:tc:entity:xmlns:xml:catalog"
const xmlNS = "http://www.w3.org/XML/1998/namespace"

// entry is one <public>/<system>/<uri>/<rewriteSystem>/<rewriteURI> line,
// normalized to (match, replacement, base) regardless of kind.
type entry struct {
	kind        string
	match       string // publicId, systemId, uriName, or a start-string prefix
	replacement string
	base        string
}

// Catalog is a read-only, parsed OASIS catalog (spec §4.2). It is safe for
// concurrent reads once constructed.
type Catalog struct {
	publicEntries []entry
	systemEntries []entry
	uriEntries    []entry
	rewriteSystem []entry
	rewriteURI    []entry
	nextCatalogs  []*Catalog

	// dtdCatalog indexes every public/system/uri entry whose target looks
	// like a DTD-ish file (spec §4.2's basename fallback), keyed by that
	// target's basename, so a systemId/uri that doesn't exactly match a
	// registered entry can still resolve against one differing only in
	// directory -- e.g. a <public> entry registered under a mirror path
	// resolving a plain "docbook.dtd" systemId elsewhere in the tree.
	dtdCatalog map[string]string
}

// Parse builds a Catalog from content, an OASIS XML Catalog document whose
// own location (used to resolve relative hrefs and xml:base) is baseDir.
func Parse(content, baseDir string) (*Catalog, error) {
	b := domtree.NewBuilder()
	p := parser.New(parser.IgnoreGrammars(true))
	if err := p.ParseString(content, b); err != nil {
		return nil, &xmlerr.InvalidCatalog{Message: err.Error()}
	}
	if b.Root == nil || b.Root.QName.Local != "catalog" {
		return nil, &xmlerr.InvalidCatalog{Message: "root element is not <catalog>"}
	}

	c := &Catalog{}
	c.walk(b.Root, baseDir)
	return c, nil
}

// walk collects entries from el and its descendants, threading xml:base
// down the tree (spec §4.2 "xml:base tracking"): each element's own
// xml:base, if present, overrides the inherited base for itself and its
// subtree.
func (c *Catalog) walk(el *domtree.Element, base string) {
	if b := el.AttrValue(xmlNS, "base"); b != "" {
		base = resolveBase(base, b)
	}
	switch el.QName.Local {
	case "public":
		e := entry{
			kind: "public", match: unwrapPublicID(el.AttrValue("", "publicId")),
			replacement: el.AttrValue("", "uri"), base: base,
		}
		c.publicEntries = append(c.publicEntries, e)
		c.indexDTDCatalog(e)
	case "system":
		e := entry{
			kind: "system", match: el.AttrValue("", "systemId"),
			replacement: el.AttrValue("", "uri"), base: base,
		}
		c.systemEntries = append(c.systemEntries, e)
		c.indexDTDCatalog(e)
	case "uri":
		e := entry{
			kind: "uri", match: el.AttrValue("", "name"),
			replacement: el.AttrValue("", "uri"), base: base,
		}
		c.uriEntries = append(c.uriEntries, e)
		c.indexDTDCatalog(e)
	case "rewriteSystem":
		c.rewriteSystem = append(c.rewriteSystem, entry{
			kind: "rewriteSystem", match: el.AttrValue("", "systemIdStartString"),
			replacement: el.AttrValue("", "rewritePrefix"), base: base,
		})
	case "rewriteURI":
		c.rewriteURI = append(c.rewriteURI, entry{
			kind: "rewriteURI", match: el.AttrValue("", "uriStartString"),
			replacement: el.AttrValue("", "rewritePrefix"), base: base,
		})
	case "nextCatalog":
		if next := c.loadNextCatalog(el, base); next != nil {
			c.nextCatalogs = append(c.nextCatalogs, next)
		}
	}
	for i := range el.Children {
		c.walk(&el.Children[i], base)
	}
}

func (c *Catalog) loadNextCatalog(el *domtree.Element, base string) *Catalog {
	href := el.AttrValue("", "catalog")
	if href == "" {
		return nil
	}
	resolved := resolveBase(base, href)
	content, err := readFile(resolved)
	if err != nil {
		return nil
	}
	next, err := Parse(content, path.Dir(resolved))
	if err != nil {
		return nil
	}
	return next
}

// readFile is a package variable so tests can stub filesystem access for
// nextCatalog without touching disk.
var readFile = defaultReadFile

func defaultReadFile(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func resolveBase(base, ref string) string {
	if base == "" {
		return ref
	}
	if u, err := url.Parse(ref); err == nil && u.IsAbs() {
		return ref
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(base, ref)
}

// publicIDPrefix is the OASIS "urn:publicid:" URN scheme's prefix.
const publicIDPrefix = "urn:publicid:"

// unwrapPublicID decodes a urn:publicid: form back to a bare public
// identifier (spec §4.2 "urn:publicid: unwrap table"), leaving already-bare
// identifiers untouched.
func unwrapPublicID(id string) string {
	if !strings.HasPrefix(id, publicIDPrefix) {
		return id
	}
	s := id[len(publicIDPrefix):]
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch {
		case strings.HasPrefix(s[i:], "%2B"), strings.HasPrefix(s[i:], "%2b"):
			b.WriteByte('+')
			i += 2
		case strings.HasPrefix(s[i:], "%3A"), strings.HasPrefix(s[i:], "%3a"):
			b.WriteByte(':')
			i += 2
		case strings.HasPrefix(s[i:], "%2F"), strings.HasPrefix(s[i:], "%2f"):
			b.WriteByte('/')
			i += 2
		case strings.HasPrefix(s[i:], "%3B"), strings.HasPrefix(s[i:], "%3b"):
			b.WriteByte(';')
			i += 2
		case strings.HasPrefix(s[i:], "%27"):
			b.WriteByte('\'')
			i += 2
		case strings.HasPrefix(s[i:], "%3F"), strings.HasPrefix(s[i:], "%3f"):
			b.WriteByte('?')
			i += 2
		case strings.HasPrefix(s[i:], "%23"):
			b.WriteByte('#')
			i += 2
		case strings.HasPrefix(s[i:], "%25"):
			b.WriteByte('%')
			i += 2
		case s[i] == '+':
			b.WriteByte(' ')
		case s[i] == ':':
			b.WriteString("//")
		case s[i] == ';':
			b.WriteString("::")
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// MatchPublic implements the public-identifier query (spec §4.2
// "MatchPublic"): exact match against registered <public> entries, first
// wins, falling through to any nextCatalog in document order.
func (c *Catalog) MatchPublic(publicID string) (string, bool) {
	for _, e := range c.publicEntries {
		if e.match == unwrapPublicID(publicID) {
			return resolveBase(e.base, e.replacement), true
		}
	}
	return c.fallthroughNext(func(n *Catalog) (string, bool) { return n.MatchPublic(publicID) })
}

// MatchSystem implements the system-identifier query: exact <system>
// match first, then the longest-prefix <rewriteSystem> match.
func (c *Catalog) MatchSystem(systemID string) (string, bool) {
	for _, e := range c.systemEntries {
		if e.match == systemID {
			return resolveBase(e.base, e.replacement), true
		}
	}
	if uri, ok := longestPrefixRewrite(c.rewriteSystem, systemID); ok {
		return uri, true
	}
	if dtdExtensions[strings.ToLower(filepath.Ext(systemID))] {
		if uri, ok := c.dtdCatalog[filepath.Base(systemID)]; ok {
			return uri, true
		}
	}
	return c.fallthroughNext(func(n *Catalog) (string, bool) { return n.MatchSystem(systemID) })
}

// MatchURI implements the uri-reference query: exact <uri> match first,
// then the longest-prefix <rewriteURI> match.
func (c *Catalog) MatchURI(uri string) (string, bool) {
	for _, e := range c.uriEntries {
		if e.match == uri {
			return resolveBase(e.base, e.replacement), true
		}
	}
	if rewritten, ok := longestPrefixRewrite(c.rewriteURI, uri); ok {
		return rewritten, true
	}
	if dtdExtensions[strings.ToLower(filepath.Ext(uri))] {
		if resolved, ok := c.dtdCatalog[filepath.Base(uri)]; ok {
			return resolved, true
		}
	}
	return c.fallthroughNext(func(n *Catalog) (string, bool) { return n.MatchURI(uri) })
}

func longestPrefixRewrite(entries []entry, target string) (string, bool) {
	best := -1
	var bestURI string
	for _, e := range entries {
		if strings.HasPrefix(target, e.match) && len(e.match) > best {
			best = len(e.match)
			bestURI = resolveBase(e.base, e.replacement) + target[len(e.match):]
		}
	}
	return bestURI, best >= 0
}

func (c *Catalog) fallthroughNext(query func(*Catalog) (string, bool)) (string, bool) {
	for _, next := range c.nextCatalogs {
		if uri, ok := query(next); ok {
			return uri, true
		}
	}
	return "", false
}

// dtdExtensions maps the well-known DTD-ish file extensions to the
// basename fallback spec §4.2 requires for entities a catalog doesn't
// otherwise resolve: look for a sibling file of the same basename.
var dtdExtensions = map[string]bool{".dtd": true, ".ent": true, ".mod": true}

// indexDTDCatalog adds e to dtdCatalog if its target (the uri it resolves
// to) looks like a DTD-ish file, keyed by that target's basename (spec
// §4.2's dtdCatalog basename fallback table).
func (c *Catalog) indexDTDCatalog(e entry) {
	if e.replacement == "" || !dtdExtensions[strings.ToLower(filepath.Ext(e.replacement))] {
		return
	}
	if c.dtdCatalog == nil {
		c.dtdCatalog = make(map[string]string)
	}
	base := filepath.Base(e.replacement)
	if _, taken := c.dtdCatalog[base]; !taken {
		c.dtdCatalog[base] = resolveBase(e.base, e.replacement)
	}
}

// ResolveEntity implements the combined public/system entity query (spec
// §4.2 "ResolveEntity"): public identifier first, then system identifier
// (which itself now falls through to the dtdCatalog basename lookup via
// MatchSystem).
func (c *Catalog) ResolveEntity(publicID, systemID string) (string, bool) {
	if publicID != "" {
		if uri, ok := c.MatchPublic(publicID); ok {
			return uri, true
		}
	}
	if systemID != "" {
		if uri, ok := c.MatchSystem(systemID); ok {
			return uri, true
		}
	}
	return "", false
}
