// Package relaxng implements spec §4.7: a RelaxNG (XML syntax) loader that
// rewrites a schema's pattern tree into the shape default-value extraction
// needs, and a RelaxNGComposite that supplies those defaults to the
// parser's attribute-defaulting step.
//
// Full RelaxNG pattern-based content validation is a Non-goal (spec §1);
// this package's job is the tree-rewriting pipeline and the per-element
// attribute-default table spec §4.7 actually requires of RelaxNGComposite.
//
// The rewrite idiom -- walking a domtree.Element tree, splicing Children,
// and using SetAttr to synthesize attributes in place -- is grounded in
// the teacher's xsd/parse.go anonymous-type-to-named-type rewrite
// (copyEltNamesToAnonTypes): RelaxNG's <name> synthesis for a named
// element/attribute pattern is structurally the same operation, just
// producing a child element instead of a sibling declaration.
package relaxng

const (
	relaxngNS  = "http://relaxng.org/ns/structure/1.0"
	annotateNS = "http://relaxng.org/ns/compatibility/annotations/1.0"
)

// Default is one attribute's default value, as extracted from either an
// a:defaultValue attribute or a descendant <defaultValue> annotation
// element (spec §4.7 "Default-value extraction").
type Default struct {
	LocalName string
	Namespace string
	Value     string
}

// Grammar is one parsed and rewritten RelaxNG schema: a per-element map of
// attribute defaults, keyed by local name and, when namespaced, also by
// "{ns}local" (see elementKeys). The lexical (prefixed) form is not a key.
type Grammar struct {
	// Elements maps an element key (either form above) to its attribute
	// defaults, themselves keyed the same two ways.
	Elements map[string]map[string]Default
}

func newGrammar() *Grammar {
	return &Grammar{Elements: make(map[string]map[string]Default)}
}

// elementKeys returns the keys Grammar.Elements/Default maps are indexed
// by for (local, ns): the bare local name, and (when namespaced) the
// "{ns}local" Clark-notation form, most-specific first. A document's
// lexical (prefixed) form is deliberately not one of these keys -- the
// instance document's prefix bindings aren't known at grammar-load time,
// only at validation time, where RelaxNGComposite resolves the instance's
// own lexical name down to (local, ns) before consulting this map, which
// gets the same "prefer more specific" result without storing a form this
// package could never populate correctly.
func elementKeys(local, ns string) []string {
	if ns == "" {
		return []string{local}
	}
	return []string{"{" + ns + "}" + local, local}
}
