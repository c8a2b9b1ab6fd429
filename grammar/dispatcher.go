// Package grammar implements spec §4.4: the GrammarDispatcher that sits
// between parser.Parser and the three validation backends (grammar/dtd,
// grammar/xsd, grammar/relaxng), loading grammars through a catalog.Catalog
// as the document's namespaces, DOCTYPE, and xml-model PI are discovered.
//
// Dispatcher satisfies parser.GrammarDispatcher structurally, the same way
// dtd.Composite/xsd.Composite/relaxng.Composite satisfy parser.Grammar --
// this package is the only one that imports all three backends plus
// catalog, so it is the natural (and only) place those four meet.
package grammar

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/orvant/xmlcore/catalog"
	"github.com/orvant/xmlcore/grammar/dtd"
	"github.com/orvant/xmlcore/grammar/relaxng"
	"github.com/orvant/xmlcore/grammar/xsd"
	"github.com/orvant/xmlcore/internal/commandline"
	"github.com/orvant/xmlcore/internal/dependency"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/parser"
	"github.com/orvant/xmlcore/saxapi"
)

const (
	xsiNS         = "http://www.w3.org/2001/XMLSchema-instance"
	relaxngStruct = "http://relaxng.org/ns/structure/1.0"
)

// Dispatcher is spec §4.4's GrammarDispatcher: it always holds a Schema
// composite, creates a DTD composite on DOCTYPE, and a RelaxNG composite on
// an xml-model PI naming a RelaxNG grammar. GetGrammar returns the first
// non-nil of RelaxNG, DTD, Schema, matching the precedence spec §4.4 and
// §3.5 both name.
type Dispatcher struct {
	catalog *catalog.Catalog
	baseDir string

	validating bool

	schemaLoader     *xsd.Loader
	schemaComposite  *xsd.Composite
	loadedNamespaces map[string]bool

	dtdComposite *dtd.Composite

	relaxngComposite *relaxng.Composite

	// systemRewrites holds ad hoc systemId/href rewrite rules supplied on
	// the command line (cmd/xmlcorelint's -rewrite-system), applied before
	// any catalog lookup -- the same rewriting a catalog's own
	// <rewriteSystem> entries do (spec §4.2), for callers resolving
	// against a local mirror without writing a full catalog document.
	systemRewrites commandline.ReplaceRuleList
}

// SetSystemRewrites installs ad hoc systemId/href rewrite rules, applied
// first-match-wins in the order given, before external DTD, schema, and
// RelaxNG references are resolved.
func (d *Dispatcher) SetSystemRewrites(rules commandline.ReplaceRuleList) {
	d.systemRewrites = rules
}

func (d *Dispatcher) rewriteSystemID(id string) string {
	for _, r := range d.systemRewrites {
		if r.From.MatchString(id) {
			return r.From.ReplaceAllString(id, r.To)
		}
	}
	return id
}

// NewDispatcher returns a Dispatcher resolving relative references against
// baseDir, and using cat (which may be nil) for public/system/URI
// resolution. A fresh xsd.Loader is created per Dispatcher -- the loader's
// cache is scoped to one document's load session, matching the "explicit
// reset entry point" resource policy spec §5 requires rather than sharing
// a single process-wide singleton across unrelated documents.
func NewDispatcher(cat *catalog.Catalog, baseDir string) *Dispatcher {
	return &Dispatcher{
		catalog:          cat,
		baseDir:          baseDir,
		schemaLoader:     xsd.NewLoader(),
		schemaComposite:  xsd.NewComposite(),
		loadedNamespaces: make(map[string]bool),
	}
}

// SetValidating implements parser.GrammarDispatcher.
func (d *Dispatcher) SetValidating(b bool) { d.validating = b }

// SchemaDependencies returns the schema-location dependency graph
// accumulated across every schema import/include/redefine this
// Dispatcher's Loader has resolved this session, for cmd/xmlcorelint's
// -dump-deps diagnostic.
func (d *Dispatcher) SchemaDependencies() *dependency.Graph {
	return d.schemaLoader.Dependencies()
}

// GetGrammar implements parser.GrammarDispatcher: RelaxNG, then DTD, then
// Schema (always present), matching spec §4.4's getGrammar precedence.
func (d *Dispatcher) GetGrammar() (parser.Grammar, bool) {
	if d.relaxngComposite != nil {
		return d.relaxngComposite, true
	}
	if d.dtdComposite != nil {
		return d.dtdComposite, true
	}
	return d.schemaComposite, true
}

// readFile is a package variable so tests can stub filesystem access
// without touching disk, mirroring catalog.readFile.
var readFile = func(name string) (string, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fileResolver resolves location relative to baseDir and reads it from
// disk. It is the Resolver both xsd.Loader.ParseSchema and relaxng.Parse
// are handed when a catalog lookup does not already produce a local path.
func fileResolver(location, baseDir string) (content, newBaseDir string, err error) {
	resolved := location
	if !filepath.IsAbs(location) && baseDir != "" {
		resolved = filepath.Join(baseDir, location)
	}
	content, err = readFile(resolved)
	if err != nil {
		return "", "", &xmlerr.CatalogResolutionError{Path: resolved, Err: err}
	}
	return content, path.Dir(resolved), nil
}

// ProcessDoctype implements parser.GrammarDispatcher (spec §4.4
// processDoctype): parses the internal subset (if any) into a DTDGrammar,
// then resolves and parses the external subset (if any), sharing the
// internal subset's parameter entities as seed.
func (d *Dispatcher) ProcessDoctype(rootName, publicID, systemID, internalSubset string) error {
	if d.dtdComposite == nil {
		d.dtdComposite = dtd.NewComposite()
	}

	if strings.TrimSpace(internalSubset) != "" {
		g, err := dtd.Parse(internalSubset, nil)
		if err != nil {
			if d.validating {
				return err
			}
		} else {
			d.dtdComposite.SetInternal(g)
		}
	}

	if publicID == "" && systemID == "" {
		return nil
	}

	content, _, err := d.resolveExternalDTD(publicID, systemID)
	if err != nil {
		if d.validating {
			return err
		}
		return nil
	}
	g, err := dtd.Parse(content, d.dtdComposite.InternalParamEntities())
	if err != nil {
		if d.validating {
			return err
		}
		return nil
	}
	d.dtdComposite.AddExternal(g)
	return nil
}

// resolveExternalDTD resolves an external DTD subset's location: the
// Catalog's public entry first, then its system entry, then the systemID
// taken as a path relative to the current document directory (spec §4.4:
// "resolve via Catalog (public first, then system, then relative to
// current document dir)").
func (d *Dispatcher) resolveExternalDTD(publicID, systemID string) (content, newBaseDir string, err error) {
	systemID = d.rewriteSystemID(systemID)
	if d.catalog != nil {
		if uri, ok := d.catalog.ResolveEntity(publicID, systemID); ok {
			return fileResolver(uri, "")
		}
	}
	if systemID == "" {
		return "", "", &xmlerr.CatalogResolutionError{Path: publicID, Err: os.ErrNotExist}
	}
	return fileResolver(systemID, d.baseDir)
}

// ProcessNamespaces implements parser.GrammarDispatcher (spec §4.4
// processNamespaces): scans a start tag's xsi:schemaLocation/noNamespaceSchemaLocation
// hints, loading (at most once per namespace) the schema each newly
// observed namespace names, and installs scope -- the parser's own
// cumulative, ancestor-inherited prefix table, not just this tag's own
// xmlns attributes -- on every active composite, so a schema or grammar
// loaded several levels into the tree still resolves qualified names
// against prefixes declared higher up.
func (d *Dispatcher) ProcessNamespaces(attrs []saxapi.Attribute, scope map[string]string) error {
	var schemaLocation, noNamespaceLocation string

	for _, a := range attrs {
		switch {
		case a.Namespace == xsiNS && a.LocalName == "schemaLocation":
			schemaLocation = a.Value
		case a.Namespace == xsiNS && a.LocalName == "noNamespaceSchemaLocation":
			noNamespaceLocation = a.Value
		}
	}

	locations := make(map[string]string)
	fields := strings.Fields(schemaLocation)
	for i := 0; i+1 < len(fields); i += 2 {
		locations[fields[i]] = fields[i+1]
	}
	if noNamespaceLocation != "" {
		locations[""] = noNamespaceLocation
	}

	var loadErr error
	for _, targetNS := range scope {
		if targetNS == "http://www.w3.org/XML/1998/namespace" || targetNS == "http://www.w3.org/2000/xmlns/" {
			continue
		}
		if err := d.loadSchemaFor(targetNS, locations); err != nil && d.validating {
			loadErr = err
		}
	}
	if noNamespaceLocation != "" {
		if err := d.loadSchemaFor("", locations); err != nil && d.validating {
			loadErr = err
		}
	}

	d.schemaComposite.SetPrefixes(scope)
	if d.relaxngComposite != nil {
		d.relaxngComposite.SetPrefixes(scope)
	}
	return loadErr
}

// loadSchemaFor loads the schema for namespace ns, if it names one in
// locations or the catalog and has not already been loaded this session.
func (d *Dispatcher) loadSchemaFor(ns string, locations map[string]string) error {
	if d.loadedNamespaces[ns] {
		return nil
	}
	location, ok := locations[ns]
	if !ok {
		if d.catalog == nil {
			return nil
		}
		if uri, ok := d.catalog.MatchURI(ns); ok {
			location = uri
		} else if uri, ok := d.catalog.MatchSystem(ns); ok {
			location = uri
		} else {
			return nil
		}
	}
	location = d.rewriteSystemID(location)
	content, newBase, err := fileResolver(location, d.baseDir)
	if err != nil {
		return err
	}
	schema, err := d.schemaLoader.ParseSchema(content, newBase, ns, d.schemaResolver())
	if err != nil {
		return err
	}
	d.loadedNamespaces[ns] = true
	d.schemaComposite.Add(schema)
	return nil
}

func (d *Dispatcher) schemaResolver() xsd.Resolver {
	return func(location, baseDir string) (string, string, error) {
		if d.catalog != nil {
			if uri, ok := d.catalog.MatchSystem(location); ok {
				return fileResolver(uri, "")
			}
		}
		return fileResolver(location, baseDir)
	}
}

// ProcessPI implements parser.GrammarDispatcher (spec §4.4
// handleRelaxNGDetection): only an xml-model PI naming the RelaxNG
// structure namespace as its schematypens is recognized.
func (d *Dispatcher) ProcessPI(target, data string) error {
	if target != "xml-model" {
		return nil
	}
	href, schemaTypeNS := parsePseudoAttrs(data)
	if schemaTypeNS != relaxngStruct {
		return nil
	}
	if href == "" {
		return nil
	}

	content, newBase, err := d.resolveRelaxNG(href)
	if err != nil {
		if d.validating {
			return err
		}
		return nil
	}
	g, err := relaxng.Parse(content, newBase, d.relaxngResolver())
	if err != nil {
		if d.validating {
			return err
		}
		return nil
	}
	d.relaxngComposite = relaxng.NewComposite(g)
	return nil
}

// resolveRelaxNG resolves an xml-model href relative to the current
// document's directory first, falling back to the Catalog (spec §4.4:
// "resolve href as a path relative to the current file, else via
// Catalog").
func (d *Dispatcher) resolveRelaxNG(href string) (content, newBaseDir string, err error) {
	href = d.rewriteSystemID(href)
	if content, newBase, err := fileResolver(href, d.baseDir); err == nil {
		return content, newBase, nil
	}
	if d.catalog != nil {
		if uri, ok := d.catalog.MatchSystem(href); ok {
			return fileResolver(uri, "")
		}
		if uri, ok := d.catalog.MatchURI(href); ok {
			return fileResolver(uri, "")
		}
	}
	return "", "", &xmlerr.CatalogResolutionError{Path: href, Err: os.ErrNotExist}
}

func (d *Dispatcher) relaxngResolver() relaxng.Resolver {
	return func(href, baseDir string) (string, string, error) {
		if d.catalog != nil {
			if uri, ok := d.catalog.MatchSystem(href); ok {
				return fileResolver(uri, "")
			}
		}
		return fileResolver(href, baseDir)
	}
}

// parsePseudoAttrs extracts href="..." and schematypens="..." from an
// xml-model PI's pseudo-attribute data, the same space-separated
// name="value" shorthand XML uses for the xml-stylesheet/xml-model PIs.
func parsePseudoAttrs(data string) (href, schemaTypeNS string) {
	for _, key := range []string{"href", "schematypens"} {
		if v, ok := extractPseudoAttr(data, key); ok {
			if key == "href" {
				href = v
			} else {
				schemaTypeNS = v
			}
		}
	}
	return href, schemaTypeNS
}

func extractPseudoAttr(data, key string) (string, bool) {
	idx := strings.Index(data, key+"=")
	if idx < 0 {
		return "", false
	}
	rest := data[idx+len(key)+1:]
	if len(rest) == 0 || (rest[0] != '"' && rest[0] != '\'') {
		return "", false
	}
	quote := rest[0]
	end := strings.IndexByte(rest[1:], quote)
	if end < 0 {
		return "", false
	}
	return rest[1 : end+1], true
}
