package dtd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orvant/xmlcore/saxapi"
)

func TestParseElementAndAttlist(t *testing.T) {
	subset := `
<!ELEMENT book (title, author+)>
<!ATTLIST book
  id ID #REQUIRED
  lang CDATA "en">
<!ELEMENT title (#PCDATA)>
<!ELEMENT author (#PCDATA)>
`
	g, err := Parse(subset, nil)
	require.NoError(t, err)

	ed, ok := g.Elements["book"]
	require.True(t, ok)
	assert.Equal(t, ChildrenContent, ed.Kind)

	ad, ok := g.Attrs["book"]["id"]
	require.True(t, ok)
	assert.True(t, ad.Required)
	assert.Equal(t, IDType, ad.Type)

	assert.Equal(t, "en", g.Attrs["book"]["lang"].Default)
}

func TestParamEntityExpansion(t *testing.T) {
	subset := `
<!ENTITY % contact "name, email">
<!ELEMENT person (%contact;)>
<!ELEMENT name (#PCDATA)>
<!ELEMENT email (#PCDATA)>
`
	g, err := Parse(subset, nil)
	require.NoError(t, err)
	ed, ok := g.Elements["person"]
	require.True(t, ok)
	assert.Equal(t, ChildrenContent, ed.Kind)
	assert.Equal(t, SeqNode, ed.Model.Kind)
	require.Len(t, ed.Model.Children, 2)
	assert.Equal(t, "name", ed.Model.Children[0].Name)
	assert.Equal(t, "email", ed.Model.Children[1].Name)
}

func TestCompositeValidateElement(t *testing.T) {
	g, err := Parse(`
<!ELEMENT book (title, author*)>
<!ELEMENT title (#PCDATA)>
<!ELEMENT author (#PCDATA)>
`, nil)
	require.NoError(t, err)

	c := NewComposite()
	c.SetInternal(g)

	assert.NoError(t, c.ValidateElement("book", []string{"title"}, "", false))
	assert.NoError(t, c.ValidateElement("book", []string{"title", "author", "author"}, "", false))
	assert.Error(t, c.ValidateElement("book", []string{"author", "title"}, "", false))
	assert.Error(t, c.ValidateElement("book", nil, "", false))
}

func TestCompositeValidateAttributesRequiredAndUndeclared(t *testing.T) {
	g, err := Parse(`
<!ELEMENT item EMPTY>
<!ATTLIST item sku CDATA #REQUIRED>
`, nil)
	require.NoError(t, err)

	c := NewComposite()
	c.SetInternal(g)

	err = c.ValidateAttributes("item", []saxapi.Attribute{{LocalName: "sku", Value: "abc"}})
	assert.NoError(t, err)

	err = c.ValidateAttributes("item", nil)
	assert.Error(t, err)

	err = c.ValidateAttributes("item", []saxapi.Attribute{
		{LocalName: "sku", Value: "abc"},
		{LocalName: "color", Value: "red"},
	})
	assert.Error(t, err)
}

func TestExternalEntityMergeFirstWins(t *testing.T) {
	internal, err := Parse(`<!ENTITY copyright "2026 internal">`, nil)
	require.NoError(t, err)
	external, err := Parse(`<!ENTITY copyright "2026 external"><!ENTITY disclaimer "none">`, nil)
	require.NoError(t, err)

	c := NewComposite()
	c.SetInternal(internal)
	c.AddExternal(external)

	v, ok := c.ResolveEntity("copyright")
	require.True(t, ok)
	assert.Equal(t, "2026 internal", v)

	v, ok = c.ResolveEntity("disclaimer")
	require.True(t, ok)
	assert.Equal(t, "none", v)
}
