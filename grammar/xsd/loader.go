package xsd

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/orvant/xmlcore/domtree"
	"github.com/orvant/xmlcore/internal/dependency"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/parser"
)

const xsiNS = "http://www.w3.org/2001/XMLSchema-instance"

// Resolver fetches the content at location, relative to baseDir, and
// reports the directory to resolve any further relative references
// against. Catalog-backed resolution and plain relative-path resolution
// both implement this signature.
type Resolver func(location, baseDir string) (content, newBaseDir string, err error)

// Loader is the XMLSchemaLoader singleton from spec §4.6: it caches
// grammars by namespace (falling back to an opaque path key for
// no-namespace schemas) and tracks in-progress parses to break import
// cycles.
type Loader struct {
	byNamespace map[string]*Schema
	inProgress  map[string]bool

	// deps records a target-namespace -> schemaLocation edge for every
	// include/import/redefine processed, the way spec §0's package map
	// grounds "topological ordering for schema include/import/redefine"
	// in internal/dependency. The loader itself doesn't need topological
	// order (redefine/include/import are each already processed in the
	// spec-mandated order within one schema), but Dependencies lets a
	// caller -- e.g. cmd/xmlcorelint's -dump-deps diagnostic -- see
	// the whole include graph a document pulled in, flattened
	// leaves-first and with cycles silently broken exactly as
	// dependency.Graph.Flatten documents.
	deps dependency.Graph
}

// NewLoader returns an empty Loader.
func NewLoader() *Loader {
	return &Loader{byNamespace: make(map[string]*Schema), inProgress: make(map[string]bool)}
}

// Reset clears the loader's cache, as spec §4.6 requires between
// independent documents sharing one process.
func (l *Loader) Reset() {
	l.byNamespace = make(map[string]*Schema)
	l.inProgress = make(map[string]bool)
	l.deps = dependency.Graph{}
}

// Dependencies returns the schema-location dependency graph accumulated
// across every ParseSchema call this Loader has made, for diagnostics.
func (l *Loader) Dependencies() *dependency.Graph { return &l.deps }

// ParseSchema parses content (an <xs:schema> document) rooted at baseDir,
// following import/include/redefine through resolve. namespaceHint, when
// non-empty, is used as the cache key for schemas that declare no
// targetNamespace of their own (chameleon includes).
func (l *Loader) ParseSchema(content, baseDir, namespaceHint string, resolve Resolver) (*Schema, error) {
	root, err := parseSchemaDOM(content)
	if err != nil {
		return nil, err
	}
	targetNS := root.AttrValue("", "targetNamespace")
	// Only schemas that declare their own targetNamespace are cached and
	// cycle-tracked by it. A chameleon schema (no targetNamespace of its
	// own, adopting whatever namespace includes it) is reparsed on every
	// reference instead: caching it under its includer's namespace would
	// collide with the includer's own in-progress cache entry.
	cacheable := targetNS != ""
	if cacheable {
		if s, ok := l.byNamespace[targetNS]; ok {
			return s, nil
		}
		if l.inProgress[targetNS] {
			return l.byNamespace[targetNS], nil // cycle: whatever is cached so far (possibly nil)
		}
		l.inProgress[targetNS] = true
		defer delete(l.inProgress, targetNS)
	}

	// A chameleon schema (no targetNamespace of its own) adopts whatever
	// namespace its includer passes as a hint, for the QNames its own
	// declarations are given below.
	effectiveNS := targetNS
	if effectiveNS == "" {
		effectiveNS = namespaceHint
	}

	schema := newSchema()
	schema.TargetNS = effectiveNS
	schema.ElementFormDefault = root.AttrValue("", "elementFormDefault") == "qualified"
	if cacheable {
		l.byNamespace[targetNS] = schema
	}

	var redefineEls, includeEls, importEls, declEls []*domtree.Element
	for i := range root.Children {
		c := &root.Children[i]
		if c.QName.Space != schemaNS {
			continue
		}
		switch c.QName.Local {
		case "redefine":
			redefineEls = append(redefineEls, c)
		case "include":
			includeEls = append(includeEls, c)
		case "import":
			importEls = append(importEls, c)
		default:
			declEls = append(declEls, c)
		}
	}

	// spec §4.6 step 2: redefines first, then includes, then imports.
	for _, el := range redefineEls {
		if err := l.processRedefine(el, schema, baseDir, resolve); err != nil {
			return nil, err
		}
	}
	for _, el := range includeEls {
		if err := l.processInclude(el, schema, baseDir, resolve); err != nil {
			return nil, err
		}
	}
	for _, el := range importEls {
		if err := l.processImport(el, schema, baseDir, resolve); err != nil {
			return nil, err
		}
	}

	for _, el := range declEls {
		parseTopLevelDecl(el, schema)
	}

	l.resolveReferences(schema)
	return schema, nil
}

func parseSchemaDOM(content string) (*domtree.Element, error) {
	b := domtree.NewBuilder()
	p := parser.New(parser.IgnoreGrammars(true))
	if err := p.ParseString(content, b); err != nil {
		return nil, &xmlerr.SchemaParseError{Message: err.Error()}
	}
	if b.Root == nil || b.Root.QName.Local != "schema" || b.Root.QName.Space != schemaNS {
		return nil, &xmlerr.SchemaParseError{Message: "root element is not xs:schema"}
	}
	return b.Root, nil
}

func (l *Loader) processInclude(el *domtree.Element, schema *Schema, baseDir string, resolve Resolver) error {
	href := el.AttrValue("", "schemaLocation")
	if href == "" {
		return nil
	}
	l.deps.Add(schemaKey(schema.TargetNS), href)
	content, newBase, err := resolve(href, baseDir)
	if err != nil {
		return &xmlerr.SchemaParseError{Message: "include " + href + ": " + err.Error()}
	}
	included, err := l.ParseSchema(content, newBase, schema.TargetNS, resolve)
	if err != nil {
		return err
	}
	mergeSchema(schema, included)
	return nil
}

func (l *Loader) processImport(el *domtree.Element, schema *Schema, baseDir string, resolve Resolver) error {
	href := el.AttrValue("", "schemaLocation")
	ns := el.AttrValue("", "namespace")
	if href == "" {
		return nil
	}
	l.deps.Add(schemaKey(schema.TargetNS), href)
	content, newBase, err := resolve(href, baseDir)
	if err != nil {
		return &xmlerr.SchemaParseError{Message: "import " + href + ": " + err.Error()}
	}
	_, err = l.ParseSchema(content, newBase, ns, resolve)
	return err
}

// processRedefine loads the redefined schema, merges its declarations,
// then re-parses the <xs:redefine> element's own type declarations,
// linking same-named types to the pre-redefine original (spec §4.6
// "Redefine merging").
func (l *Loader) processRedefine(el *domtree.Element, schema *Schema, baseDir string, resolve Resolver) error {
	href := el.AttrValue("", "schemaLocation")
	if href == "" {
		return nil
	}
	l.deps.Add(schemaKey(schema.TargetNS), href)
	content, newBase, err := resolve(href, baseDir)
	if err != nil {
		return &xmlerr.SchemaParseError{Message: "redefine " + href + ": " + err.Error()}
	}
	base, err := l.ParseSchema(content, newBase, schema.TargetNS, resolve)
	if err != nil {
		return err
	}
	mergeSchema(schema, base)

	for i := range el.Children {
		c := &el.Children[i]
		if c.QName.Space != schemaNS {
			continue
		}
		name := c.AttrValue("", "name")
		original, hadOriginal := schema.Types[name]
		parseTopLevelDecl(c, schema)
		if hadOriginal {
			schema.Redefines[name] = original
			if ct, ok := schema.Types[name].(*ComplexType); ok {
				if ref, ok := ct.Base.(linkedType); ok && QName(ref).Local == name {
					ct.Base = original
					ct.Extends = true
				}
			}
		}
	}
	return nil
}

// schemaKey renders a target namespace as a dependency.Graph node name;
// the no-namespace schema gets a distinct placeholder so it doesn't
// collide with an empty-string edge target.
func schemaKey(targetNS string) string {
	if targetNS == "" {
		return "(no namespace)"
	}
	return targetNS
}

func mergeSchema(dst, src *Schema) {
	for k, v := range src.Elements {
		if _, ok := dst.Elements[k]; !ok {
			dst.Elements[k] = v
		}
	}
	for k, v := range src.Types {
		if _, ok := dst.Types[k]; !ok {
			dst.Types[k] = v
		}
	}
	for k, v := range src.Groups {
		if _, ok := dst.Groups[k]; !ok {
			dst.Groups[k] = v
		}
	}
	for k, v := range src.AttributeGroups {
		if _, ok := dst.AttributeGroups[k]; !ok {
			dst.AttributeGroups[k] = v
		}
	}
}

func parseTopLevelDecl(el *domtree.Element, schema *Schema) {
	switch el.QName.Local {
	case "element":
		e := parseElementDecl(el, schema.TargetNS)
		schema.Elements[e.Name.Local] = e
	case "complexType":
		t := parseComplexType(el, schema.TargetNS)
		schema.Types[t.Name.Local] = t
	case "simpleType":
		t := parseSimpleType(el, schema.TargetNS)
		schema.Types[t.Name.Local] = t
	case "group":
		name := el.AttrValue("", "name")
		if name != "" {
			p := parseParticleContainer(el, schema.TargetNS)
			schema.Groups[name] = p
		}
	case "attributeGroup":
		name := el.AttrValue("", "name")
		if name != "" {
			schema.AttributeGroups[name] = parseAttributeUses(el, schema.TargetNS)
		}
	case "attribute":
		// top-level attribute declarations are only referenced by ref=,
		// which this simplified model resolves directly against the DOM
		// at use site rather than through a separate top-level map.
	}
}

func typeRef(el *domtree.Element, attr, targetNS string) Type {
	v := el.AttrValue("", attr)
	if v == "" {
		return nil
	}
	q := el.Scope.ResolveDefault(v, "")
	if b, ok := ParseBuiltin(QName{Space: q.Space, Local: q.Local}); ok {
		return b
	}
	return linkedType(QName{Space: q.Space, Local: q.Local})
}

func parseElementDecl(el *domtree.Element, targetNS string) *Element {
	name := el.AttrValue("", "name")
	e := &Element{
		Name:     QName{Space: targetNS, Local: name},
		Abstract: el.AttrValue("", "abstract") == "true",
		Nillable: el.AttrValue("", "nillable") == "true",
		Default:  el.AttrValue("", "default"),
	}
	if sg := el.AttrValue("", "substitutionGroup"); sg != "" {
		q := el.Scope.ResolveDefault(sg, "")
		e.SubstitutionGroup = QName{Space: q.Space, Local: q.Local}
	}
	if t := typeRef(el, "type", targetNS); t != nil {
		e.Type = t
	} else if ct := el.Child(schemaNS, "complexType"); ct != nil {
		e.Type = parseComplexType(ct, targetNS)
	} else if st := el.Child(schemaNS, "simpleType"); st != nil {
		e.Type = parseSimpleType(st, targetNS)
	} else {
		e.Type = String
	}
	return e
}

func parseSimpleType(el *domtree.Element, targetNS string) *SimpleType {
	name := el.AttrValue("", "name")
	st := &SimpleType{Name: QName{Space: targetNS, Local: name}, Anonymous: name == ""}
	if r := el.Child(schemaNS, "restriction"); r != nil {
		st.Base = typeRef(r, "base", targetNS)
		st.Restr = parseRestriction(r)
		if st.Base == nil {
			if bt := r.Child(schemaNS, "simpleType"); bt != nil {
				st.Base = parseSimpleType(bt, targetNS)
			} else {
				st.Base = String
			}
		}
	} else if l := el.Child(schemaNS, "list"); l != nil {
		st.List = true
		if t := typeRef(l, "itemType", targetNS); t != nil {
			st.ListOf = t
		} else if it := l.Child(schemaNS, "simpleType"); it != nil {
			st.ListOf = parseSimpleType(it, targetNS)
		} else {
			st.ListOf = String
		}
		st.Base = st.ListOf
	} else if u := el.Child(schemaNS, "union"); u != nil {
		for _, m := range strings.Fields(u.AttrValue("", "memberTypes")) {
			q := u.Scope.ResolveDefault(m, "")
			if b, ok := ParseBuiltin(QName{Space: q.Space, Local: q.Local}); ok {
				st.Union = append(st.Union, b)
			} else {
				st.Union = append(st.Union, linkedType(QName{Space: q.Space, Local: q.Local}))
			}
		}
		for i := range u.Children {
			if u.Children[i].QName.Local == "simpleType" {
				st.Union = append(st.Union, parseSimpleType(&u.Children[i], targetNS))
			}
		}
		st.Base = String
	} else {
		st.Base = String
	}
	return st
}

func parseRestriction(r *domtree.Element) Restriction {
	var out Restriction
	for i := range r.Children {
		c := &r.Children[i]
		if c.QName.Space != schemaNS {
			continue
		}
		val := c.AttrValue("", "value")
		switch c.QName.Local {
		case "enumeration":
			out.Enum = append(out.Enum, val)
		case "pattern":
			if re, err := regexp.Compile(anchorPattern(val)); err == nil {
				out.Pattern = append(out.Pattern, re)
			}
		case "minInclusive":
			out.MinInclusive = parseFloatPtr(val)
		case "maxInclusive":
			out.MaxInclusive = parseFloatPtr(val)
		case "minExclusive":
			out.MinExclusive = parseFloatPtr(val)
		case "maxExclusive":
			out.MaxExclusive = parseFloatPtr(val)
		case "minLength":
			out.MinLength = parseIntPtr(val)
		case "maxLength":
			out.MaxLength = parseIntPtr(val)
		case "length":
			out.Length = parseIntPtr(val)
		}
	}
	return out
}

func parseFloatPtr(s string) *float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func parseIntPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func parseComplexType(el *domtree.Element, targetNS string) *ComplexType {
	name := el.AttrValue("", "name")
	ct := &ComplexType{
		Name:      QName{Space: targetNS, Local: name},
		Anonymous: name == "",
		Mixed:     el.AttrValue("", "mixed") == "true",
	}

	content := el
	if sc := el.Child(schemaNS, "simpleContent"); sc != nil {
		ct.SimpleContent = true
		if ext := sc.Child(schemaNS, "extension"); ext != nil {
			ct.Base, ct.Extends = typeRef(ext, "base", targetNS), true
			ct.Attributes = parseAttributeUses(ext, targetNS)
		} else if res := sc.Child(schemaNS, "restriction"); res != nil {
			ct.Base = typeRef(res, "base", targetNS)
			ct.Attributes = parseAttributeUses(res, targetNS)
		}
		return ct
	}
	if cc := el.Child(schemaNS, "complexContent"); cc != nil {
		ct.Mixed = ct.Mixed || cc.AttrValue("", "mixed") == "true"
		if ext := cc.Child(schemaNS, "extension"); ext != nil {
			ct.Base, ct.Extends = typeRef(ext, "base", targetNS), true
			content = ext
		} else if res := cc.Child(schemaNS, "restriction"); res != nil {
			ct.Base = typeRef(res, "base", targetNS)
			content = res
		}
	}

	ct.Particle = parseParticleContainer(content, targetNS)
	ct.Empty = ct.Particle == nil && !ct.Mixed
	ct.Attributes = append(ct.Attributes, parseAttributeUses(content, targetNS)...)
	return ct
}

// parseParticleContainer finds the first sequence/choice/all/group child
// of el and builds its Particle tree, or nil if el declares no content
// model (an empty complex type).
func parseParticleContainer(el *domtree.Element, targetNS string) *Particle {
	for i := range el.Children {
		c := &el.Children[i]
		if c.QName.Space != schemaNS {
			continue
		}
		switch c.QName.Local {
		case "sequence", "choice", "all":
			p := parseParticle(c, targetNS)
			return &p
		case "group":
			p := parseParticle(c, targetNS)
			return &p
		}
	}
	return nil
}

func parseOccursAttrs(el *domtree.Element) (min, max int) {
	min, max = 1, 1
	if v := el.AttrValue("", "minOccurs"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			min = n
		}
	}
	if v := el.AttrValue("", "maxOccurs"); v != "" {
		if v == "unbounded" {
			max = Unbounded
		} else if n, err := strconv.Atoi(v); err == nil {
			max = n
		}
	}
	return
}

func parseParticle(el *domtree.Element, targetNS string) Particle {
	min, max := parseOccursAttrs(el)
	switch el.QName.Local {
	case "element":
		name := el.AttrValue("", "ref")
		if name != "" {
			q := el.Scope.ResolveDefault(name, targetNS)
			return Particle{Kind: ElementParticle, Ref: QName{Space: q.Space, Local: q.Local}, Min: min, Max: max}
		}
		return Particle{Kind: ElementParticle, Ref: QName{Space: targetNS, Local: el.AttrValue("", "name")}, Min: min, Max: max}
	case "any":
		return Particle{Kind: AnyParticle, Min: min, Max: max}
	case "choice":
		return Particle{Kind: ChoiceParticle, Min: min, Max: max, Children: parseParticleChildren(el, targetNS)}
	case "all":
		return Particle{Kind: AllParticle, Min: min, Max: max, Children: parseParticleChildren(el, targetNS)}
	case "group":
		// group ref is resolved lazily against the schema's Groups map at
		// validation time (see resolveParticleGroups); store the name as
		// a single-child marker particle in the meantime.
		ref := el.AttrValue("", "ref")
		q := el.Scope.ResolveDefault(ref, targetNS)
		return Particle{Kind: SequenceParticle, Min: min, Max: max, Children: []Particle{{Kind: ElementParticle, Ref: QName{Space: "#group", Local: q.Local}}}}
	default: // sequence
		return Particle{Kind: SequenceParticle, Min: min, Max: max, Children: parseParticleChildren(el, targetNS)}
	}
}

func parseParticleChildren(el *domtree.Element, targetNS string) []Particle {
	var out []Particle
	for i := range el.Children {
		c := &el.Children[i]
		if c.QName.Space != schemaNS {
			continue
		}
		switch c.QName.Local {
		case "element", "any", "choice", "all", "sequence", "group":
			out = append(out, parseParticle(c, targetNS))
		}
	}
	return out
}

func parseAttributeUses(el *domtree.Element, targetNS string) []AttributeUse {
	var out []AttributeUse
	for i := range el.Children {
		c := &el.Children[i]
		if c.QName.Space != schemaNS {
			continue
		}
		if c.QName.Local != "attribute" {
			continue
		}
		name := c.AttrValue("", "name")
		au := AttributeUse{
			Name:    QName{Local: name},
			Default: c.AttrValue("", "default"),
			Fixed:   c.AttrValue("", "fixed"),
		}
		switch c.AttrValue("", "use") {
		case "required":
			au.Required = true
		case "prohibited":
			au.Prohibited = true
		}
		if t := typeRef(c, "type", targetNS); t != nil {
			au.Type = t
		} else if st := c.Child(schemaNS, "simpleType"); st != nil {
			au.Type = parseSimpleType(st, targetNS)
		} else {
			au.Type = String
		}
		out = append(out, au)
	}
	return out
}

// anchorPattern wraps an XSD pattern facet (which matches the whole
// lexical value per the spec, with no implicit anchors) for use with
// Go's RE2 engine, which anchors only with explicit ^/$.
func anchorPattern(p string) string { return "^(?:" + p + ")$" }

// resolveReferences replaces linkedType placeholders with concrete types
// from this schema, falling back to String for anything still
// unresolved (spec §4.6 step 5's final, non-fatal fallback).
func (l *Loader) resolveReferences(schema *Schema) {
	resolve := func(t Type) Type {
		lt, ok := t.(linkedType)
		if !ok {
			return t
		}
		if found, ok := schema.Types[QName(lt).Local]; ok {
			return found
		}
		for _, other := range l.byNamespace {
			if found, ok := other.Types[QName(lt).Local]; ok {
				return found
			}
		}
		return String
	}
	for _, e := range schema.Elements {
		e.Type = resolve(e.Type)
	}
	for _, t := range schema.Types {
		switch t := t.(type) {
		case *ComplexType:
			t.Base = resolveOrNil(resolve, t.Base)
			for i := range t.Attributes {
				t.Attributes[i].Type = resolve(t.Attributes[i].Type)
			}
		case *SimpleType:
			t.Base = resolveOrNil(resolve, t.Base)
		}
	}
	resolveParticleGroups(schema)
}

func resolveOrNil(resolve func(Type) Type, t Type) Type {
	if t == nil {
		return nil
	}
	return resolve(t)
}

// resolveParticleGroups splices referenced <xs:group ref="..."> bodies
// into the particle tree, in place of the marker particle parseParticle
// produced for them.
func resolveParticleGroups(schema *Schema) {
	var fix func(p *Particle)
	fix = func(p *Particle) {
		if p == nil {
			return
		}
		for i := range p.Children {
			c := &p.Children[i]
			if c.Kind == ElementParticle && c.Ref.Space == "#group" {
				if g, ok := schema.Groups[c.Ref.Local]; ok {
					*c = *g
				}
			}
			fix(c)
		}
	}
	for _, g := range schema.Groups {
		fix(g)
	}
	for _, t := range schema.Types {
		if ct, ok := t.(*ComplexType); ok {
			fix(ct.Particle)
		}
	}
}
