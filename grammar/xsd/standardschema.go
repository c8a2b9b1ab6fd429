package xsd

// StandardSchema holds the well-known schema documents a validating parse
// may need without an explicit schemaLocation, keyed by target namespace,
// adapted from the teacher's xsd/standard-schema.go. Only the
// `xml:`-namespace schema is carried here: this module implements neither
// WSDL nor SOAP encoding (see this repository's Non-goals), so the
// teacher's embedded wsdl.xsd/soapenc.xsd/xlink.xsd documents have no
// component left to exercise them and are dropped rather than carried
// as dead weight. No code in this module reads StandardSchema.
var StandardSchema = map[string]string{
	"http://www.w3.org/XML/1998/namespace": xmlNamespaceSchema,
}

const xmlNamespaceSchema = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema targetNamespace="http://www.w3.org/XML/1998/namespace"
           xmlns:xs="http://www.w3.org/2001/XMLSchema"
           xmlns="http://www.w3.org/XML/1998/namespace"
           elementFormDefault="qualified">

  <xs:attribute name="lang" type="xs:language"/>
  <xs:attribute name="space">
    <xs:simpleType>
      <xs:restriction base="xs:NCName">
        <xs:enumeration value="default"/>
        <xs:enumeration value="preserve"/>
      </xs:restriction>
    </xs:simpleType>
  </xs:attribute>
  <xs:attribute name="base" type="xs:anyURI"/>
  <xs:attribute name="id" type="xs:ID"/>

</xs:schema>
`
