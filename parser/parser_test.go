package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orvant/xmlcore/domtree"
	"github.com/orvant/xmlcore/grammar"
	"github.com/orvant/xmlcore/grammar/dtd"
)

func parseDoc(t *testing.T, doc string, opts ...Option) *domtree.Builder {
	t.Helper()
	b := domtree.NewBuilder()
	p := New(opts...)
	require.NoError(t, p.ParseString(doc, b))
	return b
}

func TestSimpleElementTree(t *testing.T) {
	b := parseDoc(t, `<root attr="value"><child>text</child></root>`)
	require.NotNil(t, b.Root)
	assert.Equal(t, "root", b.Root.QName.Local)
	assert.Equal(t, "value", b.Root.AttrValue("", "attr"))
	require.Len(t, b.Root.Children, 1)
	assert.Equal(t, "child", b.Root.Children[0].QName.Local)
	assert.Equal(t, "text", b.Root.Children[0].Content)
}

func TestNamespaceScoping(t *testing.T) {
	b := parseDoc(t, `<r:root xmlns:r="urn:example"><r:child/></r:root>`)
	require.NotNil(t, b.Root)
	assert.Equal(t, "urn:example", b.Root.QName.Space)
	require.Len(t, b.Root.Children, 1)
	assert.Equal(t, "urn:example", b.Root.Children[0].QName.Space)
}

func TestDefaultNamespaceAppliesToElementsNotAttributes(t *testing.T) {
	b := parseDoc(t, `<root xmlns="urn:default" attr="v"/>`)
	require.NotNil(t, b.Root)
	assert.Equal(t, "urn:default", b.Root.QName.Space)
	for _, a := range b.Root.Attr {
		if a.LocalName == "attr" {
			assert.Equal(t, "", a.Namespace)
		}
	}
}

func TestCDATASectionMergesWithAdjacentText(t *testing.T) {
	b := parseDoc(t, `<root>before <![CDATA[<raw> & text]]> after</root>`)
	require.NotNil(t, b.Root)
	assert.Equal(t, "before <raw> & text after", b.Root.Content)
}

func TestPredefinedEntityExpansion(t *testing.T) {
	b := parseDoc(t, `<root>a &lt;b&gt; c &amp; d</root>`)
	require.NotNil(t, b.Root)
	assert.Equal(t, "a <b> c & d", b.Root.Content)
}

func TestCharacterReferenceExpansion(t *testing.T) {
	b := parseDoc(t, `<root>&#65;&#x42;</root>`)
	require.NotNil(t, b.Root)
	assert.Equal(t, "AB", b.Root.Content)
}

func TestUndeclaredEntityWithoutGrammarIsSkipped(t *testing.T) {
	b := domtree.NewBuilder()
	p := New()
	err := p.ParseString(`<root>&custom;</root>`, b)
	require.NoError(t, err)
	require.NotNil(t, b.Root)
	assert.Equal(t, "", b.Root.Content)
}

func TestMalformedXMLUnclosedElement(t *testing.T) {
	b := domtree.NewBuilder()
	p := New()
	err := p.ParseString(`<root><child></root>`, b)
	assert.Error(t, err)
}

func TestMalformedXMLNoRoot(t *testing.T) {
	b := domtree.NewBuilder()
	p := New()
	err := p.ParseString(`<?xml version="1.0"?>`, b)
	assert.Error(t, err)
}

func TestDoctypeDrivesDTDValidationAndDefaultAttributes(t *testing.T) {
	doc := `<!DOCTYPE book [
  <!ELEMENT book (title)>
  <!ELEMENT title (#PCDATA)>
  <!ATTLIST book lang CDATA "en">
]>
<book><title>Go</title></book>`

	dispatcher := grammar.NewDispatcher(nil, "")
	b := domtree.NewBuilder()
	p := New(WithDispatcher(dispatcher), Validating(true), IncludeDefaultAttributes(true))
	require.NoError(t, p.ParseString(doc, b))

	require.NotNil(t, b.Root)
	assert.Equal(t, "en", b.Root.AttrValue("", "lang"))
}

func TestValidatingModeRejectsUndeclaredElement(t *testing.T) {
	doc := `<!DOCTYPE book [
  <!ELEMENT book (title)>
  <!ELEMENT title (#PCDATA)>
]>
<book><subtitle>nope</subtitle></book>`

	dispatcher := grammar.NewDispatcher(nil, "")
	b := domtree.NewBuilder()
	p := New(WithDispatcher(dispatcher), Validating(true))
	err := p.ParseString(doc, b)
	assert.Error(t, err)
}

func TestNonValidatingModeTolerantOfGrammarMismatch(t *testing.T) {
	doc := `<!DOCTYPE book [
  <!ELEMENT book (title)>
  <!ELEMENT title (#PCDATA)>
]>
<book><subtitle>nope</subtitle></book>`

	dispatcher := grammar.NewDispatcher(nil, "")
	b := domtree.NewBuilder()
	p := New(WithDispatcher(dispatcher))
	require.NoError(t, p.ParseString(doc, b))
}

func TestProcessingInstructionAndCommentEvents(t *testing.T) {
	doc := `<?xml version="1.0"?>
<!-- a comment --><root><?target data?></root>`
	b := domtree.NewBuilder()
	p := New()
	require.NoError(t, p.ParseString(doc, b))
	require.NotNil(t, b.Root)
}

func TestDTDCompositeWiredDirectly(t *testing.T) {
	g, err := dtd.Parse(`<!ELEMENT root EMPTY>`, nil)
	require.NoError(t, err)
	c := dtd.NewComposite()
	c.SetInternal(g)
	assert.NoError(t, c.ValidateElement("root", nil, "", false))
	assert.Error(t, c.ValidateElement("root", []string{"child"}, "", false))
	assert.NoError(t, c.ValidateElement("undeclared", []string{"anything"}, "text", true))
}
