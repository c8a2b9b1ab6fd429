package parser

import "strings"

// qname is a namespace-qualified name. The parser keeps its own minimal
// copy of the namespace-scope logic that domtree.Scope implements,
// because the parser must resolve prefixes as it tokenizes -- long before
// any DOM is built -- and must not depend on domtree (domtree is a
// consumer of the parser, not the other way around).
type qname struct {
	space, local, prefix string
}

type nsBinding struct {
	prefix, uri string
}

// nsScope is an immutable-by-convention namespace scope, push-only.
type nsScope struct {
	bindings []nsBinding
}

func baseScope() nsScope {
	return nsScope{bindings: []nsBinding{
		{prefix: "xml", uri: "http://www.w3.org/XML/1998/namespace"},
		{prefix: "xmlns", uri: "http://www.w3.org/2000/xmlns/"},
	}}
}

func (s nsScope) resolve(prefix string) (string, bool) {
	for i := len(s.bindings) - 1; i >= 0; i-- {
		if s.bindings[i].prefix == prefix {
			return s.bindings[i].uri, true
		}
	}
	return "", false
}

// prefixMap flattens the scope into a prefix->URI table reflecting every
// binding in effect at this point, ancestor declarations included, latest
// push winning on a repeated prefix. Handed to GrammarDispatcher.ProcessNamespaces
// so a schema loaded on a descendant element still sees prefixes declared
// higher up the tree.
func (s nsScope) prefixMap() map[string]string {
	out := make(map[string]string, len(s.bindings))
	for _, b := range s.bindings {
		out[b.prefix] = b.uri
	}
	return out
}

func (s nsScope) push(extra []nsBinding) nsScope {
	if len(extra) == 0 {
		return s
	}
	out := make([]nsBinding, 0, len(s.bindings)+len(extra))
	out = append(out, s.bindings...)
	out = append(out, extra...)
	return nsScope{bindings: out}
}

func splitPrefix(lexical string) (prefix, local string) {
	if i := strings.IndexByte(lexical, ':'); i >= 0 {
		return lexical[:i], lexical[i+1:]
	}
	return "", lexical
}

// resolveName resolves a lexical element/attribute name against a
// scope. Unprefixed attribute names never pick up the default namespace
// (per XML namespaces spec); unprefixed element names do.
func (s nsScope) resolveName(lexical string, isAttr bool) qname {
	prefix, local := splitPrefix(lexical)
	if prefix == "" {
		if isAttr {
			return qname{local: local, prefix: ""}
		}
		uri, _ := s.resolve("")
		return qname{space: uri, local: local, prefix: ""}
	}
	uri, _ := s.resolve(prefix)
	return qname{space: uri, local: local, prefix: prefix}
}
