package xsd

import (
	"fmt"
	"strconv"
	"strings"
)

// validateAgainstType checks value against t's lexical space and, for
// restrictions, its facets. It returns "" when value is valid, or a
// human-readable reason otherwise. A nil t (a still-unresolved forward
// reference) is treated as valid, per spec's non-fatal fallback.
func validateAgainstType(t Type, value string) string {
	switch t := t.(type) {
	case nil:
		return ""
	case Builtin:
		if !t.validateLexical(value) {
			return fmt.Sprintf("value %q is not a valid %s", value, t.Name().Local)
		}
		return ""
	case *SimpleType:
		return validateSimpleType(t, value)
	case linkedType:
		return "" // unresolved forward reference; spec's non-fatal fallback
	}
	return ""
}

func validateSimpleType(st *SimpleType, value string) string {
	switch {
	case st.List:
		for _, tok := range strings.Fields(value) {
			if msg := validateAgainstType(st.ListOf, tok); msg != "" {
				return msg
			}
		}
		return ""
	case len(st.Union) > 0:
		for _, m := range st.Union {
			if validateAgainstType(m, value) == "" {
				return ""
			}
		}
		return fmt.Sprintf("value %q does not match any member of the union", value)
	default:
		if msg := validateAgainstType(st.Base, value); msg != "" {
			return msg
		}
		return validateRestriction(st.Restr, value)
	}
}

func validateRestriction(r Restriction, value string) string {
	if len(r.Enum) > 0 {
		ok := false
		for _, v := range r.Enum {
			if v == value {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Sprintf("value %q is not one of the enumerated values", value)
		}
	}
	if len(r.Pattern) > 0 {
		matched := false
		for _, re := range r.Pattern {
			if re.MatchString(value) {
				matched = true
				break
			}
		}
		if !matched {
			return fmt.Sprintf("value %q does not match any of the required patterns", value)
		}
	}
	if r.MinLength != nil && len(value) < *r.MinLength {
		return fmt.Sprintf("value %q is shorter than the minimum length %d", value, *r.MinLength)
	}
	if r.MaxLength != nil && len(value) > *r.MaxLength {
		return fmt.Sprintf("value %q is longer than the maximum length %d", value, *r.MaxLength)
	}
	if r.Length != nil && len(value) != *r.Length {
		return fmt.Sprintf("value %q does not have the required length %d", value, *r.Length)
	}
	if r.MinInclusive != nil || r.MaxInclusive != nil || r.MinExclusive != nil || r.MaxExclusive != nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return fmt.Sprintf("value %q is not numeric", value)
		}
		if r.MinInclusive != nil && f < *r.MinInclusive {
			return fmt.Sprintf("value %q is less than the minimum %v", value, *r.MinInclusive)
		}
		if r.MaxInclusive != nil && f > *r.MaxInclusive {
			return fmt.Sprintf("value %q is greater than the maximum %v", value, *r.MaxInclusive)
		}
		if r.MinExclusive != nil && f <= *r.MinExclusive {
			return fmt.Sprintf("value %q must be greater than %v", value, *r.MinExclusive)
		}
		if r.MaxExclusive != nil && f >= *r.MaxExclusive {
			return fmt.Sprintf("value %q must be less than %v", value, *r.MaxExclusive)
		}
	}
	return ""
}

// matchParticle reports whether a prefix of lexicalNames (resolved through
// c's current prefix table) satisfies p, and how many names that prefix
// consumed. It matches greedily, without backtracking into a particle once
// that particle has matched, the same way dtd.matchContentModel does, since
// particle trees have the same shape (sequence/choice/all with
// min/maxOccurs in place of DTD's single occurrence operator).
func matchParticle(p Particle, c *Composite, lexicalNames []string) (bool, int) {
	return matchWithOccursP(p, c, lexicalNames)
}

func matchWithOccursP(p Particle, c *Composite, names []string) (bool, int) {
	once := func(rest []string) (bool, int) { return matchOnce(p, c, rest) }
	min, max := p.Min, p.Max
	total, count := 0, 0
	for max == Unbounded || count < max {
		ok, n := once(names[total:])
		if !ok || (n == 0 && p.Kind != AllParticle) {
			break
		}
		total += n
		count++
		if n == 0 {
			break
		}
	}
	if count < min {
		return false, 0
	}
	return true, total
}

func matchOnce(p Particle, c *Composite, names []string) (bool, int) {
	switch p.Kind {
	case ElementParticle:
		if len(names) == 0 {
			return false, 0
		}
		if c.isSubstitutable(c.resolve(names[0]), p.Ref) {
			return true, 1
		}
		return false, 0
	case AnyParticle:
		if len(names) == 0 {
			return false, 0
		}
		return true, 1
	case SequenceParticle:
		total := 0
		for _, child := range p.Children {
			ok, n := matchWithOccursP(child, c, names[total:])
			if !ok {
				return false, 0
			}
			total += n
		}
		return true, total
	case ChoiceParticle:
		for _, child := range p.Children {
			if ok, n := matchWithOccursP(child, c, names); ok && n > 0 {
				return true, n
			}
		}
		return false, 0
	case AllParticle:
		remaining := append([]Particle(nil), p.Children...)
		total := 0
		for len(remaining) > 0 && total < len(names) {
			matched := false
			for i, child := range remaining {
				if ok, n := matchWithOccursP(child, c, names[total:total+1]); ok && n > 0 {
					total += n
					remaining = append(remaining[:i], remaining[i+1:]...)
					matched = true
					break
				}
			}
			if !matched {
				break
			}
		}
		for _, child := range remaining {
			if child.Min > 0 {
				return false, 0
			}
		}
		return true, total
	}
	return true, 0
}
