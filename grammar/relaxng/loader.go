package relaxng

import (
	"strings"

	"github.com/orvant/xmlcore/domtree"
	"github.com/orvant/xmlcore/internal/xmlerr"
	"github.com/orvant/xmlcore/parser"
)

// Resolver fetches the RelaxNG document at href, resolved relative to
// baseDir, returning its content and the directory further relative
// references (nested externalRef/include) resolve against. Matches
// xsd.Resolver's shape so both backends share one catalog-backed
// implementation at the call site.
type Resolver func(href, baseDir string) (content, newBaseDir string, err error)

// Parse loads a RelaxNG (XML syntax) document and runs the spec §4.7
// rewrite pipeline over it, returning the resulting attribute-default
// Grammar.
func Parse(content, baseDir string, resolve Resolver) (*Grammar, error) {
	root, err := parseRelaxNGDOM(content)
	if err != nil {
		return nil, err
	}
	root = dropForeign(root)
	root, err = flattenExternalRefs(root, baseDir, resolve)
	if err != nil {
		return nil, err
	}
	flattenIncludesAndDivs(root)
	synthesizeNames(root)
	defines := collectDefines(root)

	g := newGrammar()
	visited := make(map[string]bool)
	walkForElements(root, defines, visited, g)
	return g, nil
}

func parseRelaxNGDOM(content string) (*domtree.Element, error) {
	b := domtree.NewBuilder()
	p := parser.New(parser.IgnoreGrammars(true))
	if err := p.ParseString(content, b); err != nil {
		return nil, &xmlerr.RelaxNGParseError{Message: err.Error()}
	}
	if b.Root == nil || b.Root.QName.Space != relaxngNS {
		return nil, &xmlerr.RelaxNGParseError{Message: "root element is not in the RelaxNG structure namespace"}
	}
	return b.Root, nil
}

// dropForeign removes descendants outside the RelaxNG namespace, except
// compatibility annotations (spec §4.7 step 1), which default-value
// extraction still needs to read.
func dropForeign(el *domtree.Element) *domtree.Element {
	kept := el.Children[:0]
	for _, c := range el.Children {
		if c.QName.Space != relaxngNS && c.QName.Space != annotateNS {
			continue
		}
		dropForeign(&c)
		kept = append(kept, c)
	}
	el.Children = kept
	return el
}

// flattenExternalRefs replaces every <externalRef href="..."> with the
// parsed, rewritten root of the referenced document (spec §4.7 step 2).
func flattenExternalRefs(el *domtree.Element, baseDir string, resolve Resolver) (*domtree.Element, error) {
	if el.QName.Local == "externalRef" {
		href := el.AttrValue("", "href")
		if href == "" || resolve == nil {
			return el, nil
		}
		content, newBase, err := resolve(href, baseDir)
		if err != nil {
			return nil, &xmlerr.RelaxNGParseError{Message: "externalRef " + href + ": " + err.Error()}
		}
		inlined, err := parseRelaxNGDOM(content)
		if err != nil {
			return nil, err
		}
		inlined = dropForeign(inlined)
		inlined, err = flattenExternalRefs(inlined, newBase, resolve)
		if err != nil {
			return nil, err
		}
		return inlined, nil
	}
	for i := range el.Children {
		rewritten, err := flattenExternalRefs(&el.Children[i], baseDir, resolve)
		if err != nil {
			return nil, err
		}
		el.Children[i] = *rewritten
	}
	return el, nil
}

// flattenIncludesAndDivs turns each <include> into a <div> holding only
// the include element's own children, then splices every <div>'s children
// into its parent in place (spec §4.7 step 4). An <include>'s href is not
// fetched, so the included schema's patterns are not part of the result;
// only the include element's own children are kept.
func flattenIncludesAndDivs(el *domtree.Element) {
	for i := range el.Children {
		flattenIncludesAndDivs(&el.Children[i])
	}
	var out []domtree.Element
	for _, c := range el.Children {
		switch c.QName.Local {
		case "include":
			c.QName.Local = "div"
			out = append(out, c)
		case "div":
			out = append(out, c.Children...)
		default:
			out = append(out, c)
		}
	}
	// A second pass collapses any <div> that direct flattening of nested
	// <include>s just produced as a direct child.
	var flattened []domtree.Element
	for _, c := range out {
		if c.QName.Local == "div" {
			flattened = append(flattened, c.Children...)
		} else {
			flattened = append(flattened, c)
		}
	}
	el.Children = flattened
}

// synthesizeNames gives every element/attribute pattern with a name
// attribute a child <name> element carrying the resolved (local, ns)
// pair (spec §4.7 step 5), so default-value extraction never has to
// special-case the name-attribute shorthand.
func synthesizeNames(el *domtree.Element) {
	if (el.QName.Local == "element" || el.QName.Local == "attribute") && el.HasAttr("", "name") {
		if el.Child(relaxngNS, "name") == nil {
			nameLocal, nameNS := resolvePatternName(el)
			synthetic := domtree.Element{
				QName:   domtree.Name{Space: relaxngNS, Local: "name"},
				Content: nameLocal,
			}
			if nameNS != "" {
				synthetic.SetAttr("", "ns", nameNS)
			}
			el.Children = append(el.Children, synthetic)
		}
	}
	for i := range el.Children {
		synthesizeNames(&el.Children[i])
	}
}

// resolvePatternName resolves an element/attribute pattern's name=
// shorthand to (local, namespace). Element patterns adopt the in-scope
// default namespace for an unprefixed name; attribute patterns never do
// (RelaxNG's "no default namespace for attributes" rule).
func resolvePatternName(el *domtree.Element) (local, ns string) {
	raw := el.AttrValue("", "name")
	prefixed := strings.IndexByte(raw, ':') >= 0

	if explicitNS := el.AttrValue("", "ns"); explicitNS != "" && !prefixed {
		return raw, explicitNS
	}
	if el.QName.Local == "attribute" && !prefixed {
		return raw, "" // unprefixed attribute name never adopts a default namespace
	}
	n := el.Scope.Resolve(raw)
	return n.Local, n.Space
}

// walkForElements finds every element pattern in the rewritten tree and
// records its attribute defaults into g (spec §4.7 step 5 / default-value
// extraction). Each element's attributes are gathered by collectAttributes,
// which follows ref patterns via defines with its own cycle guard and stops
// at a nested element pattern -- that nested element's own attributes
// belong to it, not its ancestor. The visited argument is passed down
// unchanged and not consulted.
func walkForElements(el *domtree.Element, defines map[string][]domtree.Element, visited map[string]bool, g *Grammar) {
	if el.QName.Local == "element" {
		if nameEl := el.Child(relaxngNS, "name"); nameEl != nil {
			local := nameEl.Content
			ns := nameEl.AttrValue("", "ns")
			attrs := make(map[string]Default)
			collectAttributes(el, defines, make(map[string]bool), attrs)
			for _, key := range elementKeys(local, ns) {
				g.Elements[key] = attrs
			}
		}
	}
	for i := range el.Children {
		walkForElements(&el.Children[i], defines, visited, g)
	}
}

// collectAttributes gathers attribute patterns reachable from an element
// pattern's content, following ref/define indirection, without crossing
// into a nested element pattern's own content.
func collectAttributes(el *domtree.Element, defines map[string][]domtree.Element, visited map[string]bool, attrs map[string]Default) {
	for i := range el.Children {
		c := &el.Children[i]
		switch c.QName.Local {
		case "element":
			continue // nested element owns its own attributes
		case "attribute":
			if nameEl := c.Child(relaxngNS, "name"); nameEl != nil {
				local := nameEl.Content
				ns := nameEl.AttrValue("", "ns")
				if def, ok := extractDefault(c, local, ns); ok {
					for _, key := range elementKeys(local, ns) {
						attrs[key] = def
					}
				}
			}
		case "ref":
			name := c.AttrValue("", "name")
			if visited[name] {
				continue
			}
			visited[name] = true
			body := domtree.Element{Children: defines[name]}
			collectAttributes(&body, defines, visited, attrs)
		default:
			collectAttributes(c, defines, visited, attrs)
		}
	}
}

// extractDefault reads an attribute pattern's default value from either an
// a:defaultValue annotation attribute or a descendant <defaultValue>
// annotation element (spec §4.7 "Default-value extraction").
func extractDefault(attrEl *domtree.Element, local, ns string) (Default, bool) {
	if v := attrEl.AttrValue(annotateNS, "defaultValue"); v != "" {
		return Default{LocalName: local, Namespace: ns, Value: v}, true
	}
	if dv := attrEl.Child(annotateNS, "defaultValue"); dv != nil {
		return Default{LocalName: local, Namespace: ns, Value: dv.Content}, true
	}
	return Default{}, false
}

// collectDefines gathers every <define name="..."> in the (now
// div-flattened) grammar, concatenating bodies that recur under the same
// name (spec §4.7 "combining bodies by concatenation").
func collectDefines(root *domtree.Element) map[string][]domtree.Element {
	defines := make(map[string][]domtree.Element)
	var walk func(*domtree.Element)
	walk = func(el *domtree.Element) {
		if el.QName.Local == "define" {
			name := el.AttrValue("", "name")
			defines[name] = append(defines[name], el.Children...)
		}
		for i := range el.Children {
			walk(&el.Children[i])
		}
	}
	walk(root)
	return defines
}
