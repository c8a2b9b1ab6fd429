package xsd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orvant/xmlcore/internal/testutil"
	"github.com/orvant/xmlcore/saxapi"
)

func testResolver(docs map[string]string) Resolver {
	return Resolver(testutil.FakeFiles(docs).Resolve)
}

func TestParseSchemaSimpleType(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:test">
  <xs:simpleType name="zipCode">
    <xs:restriction base="xs:string">
      <xs:pattern value="[0-9]{5}"/>
    </xs:restriction>
  </xs:simpleType>
  <xs:element name="zip" type="zipCode"/>
</xs:schema>`
	l := NewLoader()
	schema, err := l.ParseSchema(doc, "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "urn:test", schema.TargetNS)

	el, ok := schema.Elements["zip"]
	require.True(t, ok)
	st, ok := el.Type.(*SimpleType)
	require.True(t, ok)
	assert.Equal(t, "", validateSimpleType(st, "90210"))
	assert.NotEqual(t, "", validateSimpleType(st, "abc"))
}

func TestParseSchemaInclude(t *testing.T) {
	base := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:test">
  <xs:include schemaLocation="shared.xsd"/>
  <xs:element name="root" type="sharedType"/>
</xs:schema>`
	shared := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:simpleType name="sharedType">
    <xs:restriction base="xs:string"/>
  </xs:simpleType>
</xs:schema>`
	resolve := testResolver(map[string]string{"shared.xsd": shared})
	l := NewLoader()
	schema, err := l.ParseSchema(base, "", "", resolve)
	require.NoError(t, err)
	_, ok := schema.Types["sharedType"]
	assert.True(t, ok)
}

func TestCompositeValidateElement(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:test">
  <xs:element name="person">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="name" type="xs:string"/>
        <xs:element name="age" type="xs:nonNegativeInteger" minOccurs="0"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`
	l := NewLoader()
	schema, err := l.ParseSchema(doc, "", "", nil)
	require.NoError(t, err)

	c := NewComposite()
	c.Add(schema)
	c.SetPrefixes(map[string]string{"": "urn:test"})

	assert.NoError(t, c.ValidateElement("person", []string{"name", "age"}, "", false))
	assert.NoError(t, c.ValidateElement("person", []string{"name"}, "", false))
	assert.Error(t, c.ValidateElement("person", []string{"age", "name"}, "", false))
}

func TestContentModelAcceptsSubstitutionGroupMember(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" xmlns="urn:test" targetNamespace="urn:test">
  <xs:element name="animal" type="xs:string"/>
  <xs:element name="dog" type="xs:string" substitutionGroup="animal"/>
  <xs:element name="zoo">
    <xs:complexType>
      <xs:sequence>
        <xs:element ref="animal" maxOccurs="unbounded"/>
      </xs:sequence>
    </xs:complexType>
  </xs:element>
</xs:schema>`
	l := NewLoader()
	schema, err := l.ParseSchema(doc, "", "", nil)
	require.NoError(t, err)

	c := NewComposite()
	c.Add(schema)
	c.SetPrefixes(map[string]string{"": "urn:test"})

	assert.NoError(t, c.ValidateElement("zoo", []string{"animal", "dog"}, "", false))
	assert.Error(t, c.ValidateElement("zoo", []string{"cat"}, "", false))
}

func TestXsiTypeOverrideMustBeDerived(t *testing.T) {
	doc := `<?xml version="1.0"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema" targetNamespace="urn:test">
  <xs:complexType name="base">
    <xs:attribute name="id" type="xs:string"/>
  </xs:complexType>
  <xs:complexType name="derived">
    <xs:complexContent>
      <xs:extension base="base">
        <xs:attribute name="extra" type="xs:string"/>
      </xs:extension>
    </xs:complexContent>
  </xs:complexType>
  <xs:complexType name="unrelated"/>
  <xs:element name="item" type="base"/>
</xs:schema>`
	l := NewLoader()
	schema, err := l.ParseSchema(doc, "", "", nil)
	require.NoError(t, err)

	c := NewComposite()
	c.Add(schema)
	c.SetPrefixes(map[string]string{"": "urn:test"})

	assert.NoError(t, c.ValidateAttributes("item", []saxapi.Attribute{
		{Namespace: xsiNS, LocalName: "type", Value: "derived"},
	}))
	assert.Error(t, c.ValidateAttributes("item", []saxapi.Attribute{
		{Namespace: xsiNS, LocalName: "type", Value: "unrelated"},
	}))
}

func TestBuiltinValidateLexical(t *testing.T) {
	assert.True(t, Boolean.validateLexical("true"))
	assert.False(t, Boolean.validateLexical("maybe"))
	assert.True(t, Integer.validateLexical("-42"))
	assert.False(t, NonNegativeInteger.validateLexical("-1"))
}
