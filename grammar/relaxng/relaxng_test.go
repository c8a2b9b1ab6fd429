package relaxng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Fixtures deliberately bind the RelaxNG structure/annotation namespaces to
// prefixes ("rng:"/"a:") rather than the default namespace, the way real
// RelaxNG documents do -- binding the schema language itself as the default
// namespace would make every unprefixed name= shorthand inherit it too,
// which is never what a schema author wants.

func TestParseAttributeDefaults(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rng:element name="widget" xmlns:rng="http://relaxng.org/ns/structure/1.0"
         xmlns:a="http://relaxng.org/ns/compatibility/annotations/1.0">
  <rng:attribute name="color" a:defaultValue="blue">
    <rng:text/>
  </rng:attribute>
  <rng:attribute name="size">
    <a:defaultValue>medium</a:defaultValue>
  </rng:attribute>
  <rng:element name="part">
    <rng:attribute name="id"><rng:text/></rng:attribute>
  </rng:element>
</rng:element>`
	g, err := Parse(doc, "", nil)
	require.NoError(t, err)

	widget, ok := g.Elements["widget"]
	require.True(t, ok)
	assert.Equal(t, "blue", widget["color"].Value)
	assert.Equal(t, "medium", widget["size"].Value)
	_, hasID := widget["id"]
	assert.False(t, hasID, "nested element's attribute must not leak to its ancestor")

	part, ok := g.Elements["part"]
	require.True(t, ok)
	_, hasIDOnPart := part["id"]
	assert.False(t, hasIDOnPart, "attribute pattern without a default contributes no entry")
}

func TestParseNamespacedElement(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rng:element name="w:widget" ns="urn:widgets" xmlns:rng="http://relaxng.org/ns/structure/1.0"
         xmlns:a="http://relaxng.org/ns/compatibility/annotations/1.0"
         xmlns:w="urn:widgets">
  <rng:attribute name="kind" a:defaultValue="standard"><rng:text/></rng:attribute>
</rng:element>`
	g, err := Parse(doc, "", nil)
	require.NoError(t, err)

	byClark, ok := g.Elements["{urn:widgets}widget"]
	require.True(t, ok)
	assert.Equal(t, "standard", byClark["kind"].Value)

	byLocal, ok := g.Elements["widget"]
	require.True(t, ok)
	assert.Equal(t, "standard", byLocal["kind"].Value)
}

func TestIncludeAndDivFlattening(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rng:grammar xmlns:rng="http://relaxng.org/ns/structure/1.0"
         xmlns:a="http://relaxng.org/ns/compatibility/annotations/1.0">
  <rng:div>
    <rng:start>
      <rng:element name="doc">
        <rng:ref name="body"/>
      </rng:element>
    </rng:start>
    <rng:define name="body">
      <rng:attribute name="version" a:defaultValue="1"><rng:text/></rng:attribute>
    </rng:define>
  </rng:div>
</rng:grammar>`
	g, err := Parse(doc, "", nil)
	require.NoError(t, err)

	doc1, ok := g.Elements["doc"]
	require.True(t, ok)
	assert.Equal(t, "1", doc1["version"].Value)
}

func TestForeignNamespaceDropped(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rng:element name="widget" xmlns:rng="http://relaxng.org/ns/structure/1.0"
         xmlns:a="http://relaxng.org/ns/compatibility/annotations/1.0"
         xmlns:doc="urn:docbook">
  <doc:documentation>ignored entirely</doc:documentation>
  <rng:attribute name="id" a:defaultValue="w1"><rng:text/></rng:attribute>
</rng:element>`
	g, err := Parse(doc, "", nil)
	require.NoError(t, err)
	widget, ok := g.Elements["widget"]
	require.True(t, ok)
	assert.Equal(t, "w1", widget["id"].Value)
}

func TestCompositeGetDefaultAttributes(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rng:element name="widget" ns="urn:widgets" xmlns:rng="http://relaxng.org/ns/structure/1.0"
         xmlns:a="http://relaxng.org/ns/compatibility/annotations/1.0">
  <rng:attribute name="color" a:defaultValue="blue"><rng:text/></rng:attribute>
</rng:element>`
	g, err := Parse(doc, "", nil)
	require.NoError(t, err)

	c := NewComposite(g)
	c.SetPrefixes(map[string]string{"w": "urn:widgets"})

	defaults := c.GetDefaultAttributes("w:widget")
	assert.Equal(t, "blue", defaults["color"])

	assert.NoError(t, c.ValidateElement("w:widget", []string{"anything"}, "text", true))
	assert.NoError(t, c.ValidateAttributes("w:widget", nil))
	_, ok := c.ResolveEntity("amp")
	assert.False(t, ok)
}

func TestNonRelaxNGRootRejected(t *testing.T) {
	_, err := Parse(`<?xml version="1.0"?><notrng xmlns="urn:something"/>`, "", nil)
	assert.Error(t, err)
}
