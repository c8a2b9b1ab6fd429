// Package testutil provides a fake, in-memory file set for the grammar
// loaders' tests (catalog, grammar, grammar/xsd), so
// include/import/nextCatalog resolution can be exercised
// without touching disk or a network -- this module never fetches schemas
// remotely (an explicit Non-goal), so the teacher's HTTP FakeClient is
// repurposed here as a fake resolvable filesystem instead.
package testutil

import "fmt"

// FakeFiles is an in-memory set of named documents keyed by the name a
// resolver would be asked to fetch (a relative schemaLocation/href, or a
// catalog-rewritten path).
type FakeFiles map[string]string

// Read returns the fake content registered under name, or an error if
// nothing is registered there.
func (f FakeFiles) Read(name string) (string, error) {
	content, ok := f[name]
	if !ok {
		return "", fmt.Errorf("testutil: no such fake file %q", name)
	}
	return content, nil
}

// Resolve adapts FakeFiles to the (location, baseDir) -> (content,
// newBaseDir, err) shape shared by xsd.Resolver, relaxng.Resolver, and
// grammar's internal file resolver: it looks location up directly in the
// fake set and reports baseDir unchanged, since the fake set has no real
// directory structure for further relative references to resolve against.
func (f FakeFiles) Resolve(location, baseDir string) (content, newBaseDir string, err error) {
	content, err = f.Read(location)
	return content, baseDir, err
}
