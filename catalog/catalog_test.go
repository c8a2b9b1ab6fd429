package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orvant/xmlcore/internal/testutil"
)

const sampleCatalog = `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <public publicId="-//ACME//DTD Widget 1.0//EN" uri="widget.dtd"/>
  <system systemId="http://example.com/widget.dtd" uri="widget.dtd"/>
  <uri name="http://example.com/schema.xsd" uri="schema.xsd"/>
  <rewriteSystem systemIdStartString="http://example.com/dtds/" rewritePrefix="local/dtds/"/>
  <rewriteURI uriStartString="http://example.com/schemas/" rewritePrefix="local/schemas/"/>
</catalog>`

func TestParseAndMatch(t *testing.T) {
	c, err := Parse(sampleCatalog, "/catalogs")
	require.NoError(t, err)

	uri, ok := c.MatchPublic("-//ACME//DTD Widget 1.0//EN")
	require.True(t, ok)
	assert.Equal(t, "/catalogs/widget.dtd", uri)

	uri, ok = c.MatchSystem("http://example.com/widget.dtd")
	require.True(t, ok)
	assert.Equal(t, "/catalogs/widget.dtd", uri)

	uri, ok = c.MatchURI("http://example.com/schema.xsd")
	require.True(t, ok)
	assert.Equal(t, "/catalogs/schema.xsd", uri)
}

func TestRewriteSystemLongestPrefix(t *testing.T) {
	c, err := Parse(sampleCatalog, "")
	require.NoError(t, err)

	uri, ok := c.MatchSystem("http://example.com/dtds/sub/widget.dtd")
	require.True(t, ok)
	assert.Equal(t, "local/dtds/sub/widget.dtd", uri)
}

func TestResolveEntityBasenameFallback(t *testing.T) {
	doc := `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <system systemId="shared/widget.dtd" uri="local/widget.dtd"/>
</catalog>`
	c, err := Parse(doc, "")
	require.NoError(t, err)

	uri, ok := c.ResolveEntity("", "other/dir/widget.dtd")
	require.True(t, ok)
	assert.Equal(t, "local/widget.dtd", uri)
}

func TestUnwrapPublicID(t *testing.T) {
	assert.Equal(t, "-//ACME//DTD Widget 1.0//EN", unwrapPublicID("-//ACME//DTD Widget 1.0//EN"))
	assert.Equal(t,
		"+//ACME//DTD Widget 1.0//EN",
		unwrapPublicID("urn:publicid:%2B%2F%2FACME%2F%2FDTD+Widget+1.0%2F%2FEN"))
}

func TestNextCatalogChaining(t *testing.T) {
	orig := readFile
	readFile = testutil.FakeFiles{
		"next.xml": `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <public publicId="-//ACME//DTD Gadget 1.0//EN" uri="gadget.dtd"/>
</catalog>`,
	}.Read
	t.Cleanup(func() { readFile = orig })

	doc := `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <public publicId="-//ACME//DTD Widget 1.0//EN" uri="widget.dtd"/>
  <nextCatalog catalog="next.xml"/>
</catalog>`
	c, err := Parse(doc, "")
	require.NoError(t, err)

	uri, ok := c.MatchPublic("-//ACME//DTD Widget 1.0//EN")
	require.True(t, ok)
	assert.Equal(t, "widget.dtd", uri)

	uri, ok = c.MatchPublic("-//ACME//DTD Gadget 1.0//EN")
	require.True(t, ok)
	assert.Equal(t, "gadget.dtd", uri)

	_, ok = c.MatchPublic("-//ACME//DTD Unknown 1.0//EN")
	assert.False(t, ok)
}

func TestNextCatalogMissingFileIgnored(t *testing.T) {
	orig := readFile
	readFile = testutil.FakeFiles{}.Read
	t.Cleanup(func() { readFile = orig })

	doc := `<?xml version="1.0"?>
<catalog xmlns="urn:oasis:names:tc:entity:xmlns:xml:catalog">
  <nextCatalog catalog="missing.xml"/>
</catalog>`
	c, err := Parse(doc, "")
	require.NoError(t, err)
	assert.Empty(t, c.nextCatalogs)
}

func TestNonCatalogRootRejected(t *testing.T) {
	_, err := Parse(`<?xml version="1.0"?><notacatalog/>`, "")
	assert.Error(t, err)
}
