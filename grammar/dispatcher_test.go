package grammar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orvant/xmlcore/internal/commandline"
	"github.com/orvant/xmlcore/internal/testutil"
	"github.com/orvant/xmlcore/saxapi"
)

func withFakeFiles(t *testing.T, files map[string]string) {
	t.Helper()
	orig := readFile
	readFile = testutil.FakeFiles(files).Read
	t.Cleanup(func() { readFile = orig })
}

func TestProcessDoctypeInternalSubset(t *testing.T) {
	d := NewDispatcher(nil, "")
	err := d.ProcessDoctype("book", "", "", `<!ELEMENT book (title)><!ELEMENT title (#PCDATA)>`)
	require.NoError(t, err)

	g, ok := d.GetGrammar()
	require.True(t, ok)
	assert.NoError(t, g.ValidateElement("book", []string{"title"}, "", false))
}

func TestProcessDoctypeExternalSubsetViaFile(t *testing.T) {
	withFakeFiles(t, map[string]string{
		"/docs/widget.dtd": `<!ELEMENT widget (#PCDATA)>`,
	})
	d := NewDispatcher(nil, "/docs")
	err := d.ProcessDoctype("widget", "", "widget.dtd", "")
	require.NoError(t, err)

	g, ok := d.GetGrammar()
	require.True(t, ok)
	assert.NoError(t, g.ValidateElement("widget", nil, "hello", true))
}

func TestProcessNamespacesLoadsNoNamespaceSchema(t *testing.T) {
	withFakeFiles(t, map[string]string{
		"/docs/widget.xsd": `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="widget" type="xs:string"/>
</xs:schema>`,
	})
	d := NewDispatcher(nil, "/docs")

	attrs := []saxapi.Attribute{
		{Prefix: "xsi", LocalName: "noNamespaceSchemaLocation", Namespace: xsiNS, Value: "widget.xsd"},
	}
	require.NoError(t, d.ProcessNamespaces(attrs, nil))

	g, ok := d.GetGrammar()
	require.True(t, ok)
	assert.NoError(t, g.ValidateElement("widget", nil, "hello", true))
}

func TestGetGrammarPrecedenceDTDOverSchema(t *testing.T) {
	d := NewDispatcher(nil, "")
	schemaGrammar, _ := d.GetGrammar()

	require.NoError(t, d.ProcessDoctype("book", "", "", `<!ELEMENT book (#PCDATA)>`))
	dtdGrammar, ok := d.GetGrammar()
	require.True(t, ok)
	assert.NotEqual(t, schemaGrammar, dtdGrammar)
}

func TestGetGrammarPrecedenceRelaxNGOverDTD(t *testing.T) {
	withFakeFiles(t, map[string]string{
		"/docs/grammar.rng": `<?xml version="1.0"?>
<rng:element name="book" xmlns:rng="http://relaxng.org/ns/structure/1.0">
  <rng:text/>
</rng:element>`,
	})
	d := NewDispatcher(nil, "/docs")
	require.NoError(t, d.ProcessDoctype("book", "", "", `<!ELEMENT book (#PCDATA)>`))
	dtdGrammar, _ := d.GetGrammar()

	require.NoError(t, d.ProcessPI("xml-model", `href="grammar.rng" schematypens="http://relaxng.org/ns/structure/1.0"`))
	rngGrammar, ok := d.GetGrammar()
	require.True(t, ok)
	assert.NotEqual(t, dtdGrammar, rngGrammar)
}

func TestProcessPIIgnoresNonRelaxNGSchemaType(t *testing.T) {
	d := NewDispatcher(nil, "/docs")
	err := d.ProcessPI("xml-model", `href="grammar.rnc" schematypens="http://relaxng.org/ns/compact-1.0"`)
	require.NoError(t, err)
	assert.Nil(t, d.relaxngComposite)
}

func TestSystemRewriteAppliedBeforeResolution(t *testing.T) {
	withFakeFiles(t, map[string]string{
		"/docs/local/widget.dtd": `<!ELEMENT widget (#PCDATA)>`,
	})
	d := NewDispatcher(nil, "/docs")

	var rules commandline.ReplaceRuleList
	require.NoError(t, rules.Set(`^remote/ -> local/`))
	d.SetSystemRewrites(rules)

	err := d.ProcessDoctype("widget", "", "remote/widget.dtd", "")
	require.NoError(t, err)

	g, ok := d.GetGrammar()
	require.True(t, ok)
	assert.NoError(t, g.ValidateElement("widget", nil, "hello", true))
}
