package xsd

import "github.com/orvant/xmlcore/domtree"

// Search predicates over domtree.Element, kept in the spirit of
// xsd/search.go's and/isElem/hasAttr/hasAttrValue combinators. The
// loader's redefine/include/import handling does not use them; it
// switches on element names directly.
type predicate func(el *domtree.Element) bool

func and(fns ...predicate) predicate {
	return func(el *domtree.Element) bool {
		for _, f := range fns {
			if !f(el) {
				return false
			}
		}
		return true
	}
}

func isElem(space, local string) predicate {
	return func(el *domtree.Element) bool {
		if el.QName.Local != local {
			return false
		}
		return space == "" || el.QName.Space == space
	}
}

func hasAttr(space, local string) predicate {
	return func(el *domtree.Element) bool {
		return el.HasAttr(space, local)
	}
}

func hasAttrValue(space, local, value string) predicate {
	return func(el *domtree.Element) bool {
		return el.AttrValue(space, local) == value
	}
}

var (
	isTypeElem          = func(el *domtree.Element) bool { return isElem(schemaNS, "complexType")(el) || isElem(schemaNS, "simpleType")(el) }
	isAnonymousTypeElem = and(isTypeElem, hasAttrValue("", "name", ""))
)
