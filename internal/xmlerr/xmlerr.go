// Package xmlerr defines the error kinds shared across the xmlcore
// packages. Each kind is a small struct satisfying the error interface;
// callers use errors.As to recover the concrete kind when they need to
// branch on it (catalog misses, degraded grammar coverage, and so on).
package xmlerr

import "fmt"

// IoError wraps a failure to open or read a character source.
type IoError struct {
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("xmlcore: io error reading %s: %v", e.Path, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// EncodingError reports an illegal code unit for the declared encoding.
type EncodingError struct {
	Encoding string
	Offset   int
	Err      error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("xmlcore: invalid %s byte sequence at offset %d: %v", e.Encoding, e.Offset, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// InvalidCatalog reports a malformed OASIS catalog document.
type InvalidCatalog struct {
	Path    string
	Message string
}

func (e *InvalidCatalog) Error() string {
	return fmt.Sprintf("xmlcore: invalid catalog %s: %s", e.Path, e.Message)
}

// CatalogResolutionError reports a catalog lookup that could not be
// satisfied. Catalog queries never return this as an error value to their
// callers (misses are nil, nil per spec) -- grammar.Dispatcher's resolvers
// return it when a DTD, schema or RelaxNG location cannot be resolved or
// read.
type CatalogResolutionError struct {
	Path string
	Err  error
}

func (e *CatalogResolutionError) Error() string {
	return fmt.Sprintf("xmlcore: could not load catalog %s: %v", e.Path, e.Err)
}

func (e *CatalogResolutionError) Unwrap() error { return e.Err }

// MalformedXmlKind enumerates the well-formedness violations from spec §7.
type MalformedXmlKind int

const (
	InvalidName MalformedXmlKind = iota + 1
	InvalidCharacter
	UnclosedMarkup
	MismatchedTags
	DuplicateAttribute
	MalformedAttribute
	InvalidEntityReference
	RecursiveEntity
	UnescapedAmpersand
	CommentHasDoubleDash
	PIBadTarget
	TextOutsideRoot
	MultipleRoots
	MissingRoot
)

func (k MalformedXmlKind) String() string {
	switch k {
	case InvalidName:
		return "InvalidName"
	case InvalidCharacter:
		return "InvalidCharacter"
	case UnclosedMarkup:
		return "UnclosedMarkup"
	case MismatchedTags:
		return "MismatchedTags"
	case DuplicateAttribute:
		return "DuplicateAttribute"
	case MalformedAttribute:
		return "MalformedAttribute"
	case InvalidEntityReference:
		return "InvalidEntityReference"
	case RecursiveEntity:
		return "RecursiveEntity"
	case UnescapedAmpersand:
		return "UnescapedAmpersand"
	case CommentHasDoubleDash:
		return "CommentHasDoubleDash"
	case PIBadTarget:
		return "PIBadTarget"
	case TextOutsideRoot:
		return "TextOutsideRoot"
	case MultipleRoots:
		return "MultipleRoots"
	case MissingRoot:
		return "MissingRoot"
	default:
		return "Unknown"
	}
}

// MalformedXml is always fatal to a parse, per spec §7.
type MalformedXml struct {
	Kind    MalformedXmlKind
	Offset  int
	Line    int
	Column  int
	Message string
}

func (e *MalformedXml) Error() string {
	return fmt.Sprintf("xmlcore: %s at line %d, column %d: %s", e.Kind, e.Line, e.Column, e.Message)
}

// DtdParseError reports a failure parsing an internal or external DTD subset.
type DtdParseError struct {
	Message string
}

func (e *DtdParseError) Error() string { return "xmlcore: dtd parse error: " + e.Message }

// SchemaParseError reports a failure parsing an XML Schema document.
type SchemaParseError struct {
	Message string
}

func (e *SchemaParseError) Error() string { return "xmlcore: schema parse error: " + e.Message }

// RelaxNGParseError reports a failure parsing a RelaxNG (XML syntax) grammar.
type RelaxNGParseError struct {
	Message string
}

func (e *RelaxNGParseError) Error() string { return "xmlcore: relaxng parse error: " + e.Message }

// ValidationError reports a grammar-level validation failure. Validation
// errors are only fatal when the parser is running with Validating(true).
type ValidationError struct {
	Element   string
	Attribute string
	Messages  []string
}

func (e *ValidationError) Error() string {
	ctx := e.Element
	if e.Attribute != "" {
		ctx = fmt.Sprintf("%s/@%s", e.Element, e.Attribute)
	}
	if len(e.Messages) == 1 {
		return fmt.Sprintf("xmlcore: validation error at %s: %s", ctx, e.Messages[0])
	}
	return fmt.Sprintf("xmlcore: %d validation errors at %s: %v", len(e.Messages), ctx, e.Messages)
}

// Breadcrumb is a bubbling error for deep recursive tree walks, modeled on
// xsd.parseError: panic with Breadcrumb, recover and append path segments
// on unwind, translate to a package-local error kind before it crosses the
// package boundary. No package in this module calls Stop or Catch; the
// dtd/xsd/relaxng grammar loaders return errors directly.
type Breadcrumb struct {
	Message string
	Path    []string
}

func (e Breadcrumb) Error() string {
	if len(e.Path) == 0 {
		return e.Message
	}
	s := e.Path[len(e.Path)-1]
	for i := len(e.Path) - 2; i >= 0; i-- {
		s += ">" + e.Path[i]
	}
	return "at " + s + ": " + e.Message
}

// Stop panics with a Breadcrumb carrying msg. Callers at the top of a
// recursive walk recover it with Catch.
func Stop(msg string, args ...interface{}) {
	panic(Breadcrumb{Message: fmt.Sprintf(msg, args...)})
}

// Catch recovers a Breadcrumb panic into *err, appending frame to its path.
// Any other panic value is re-raised. Use as `defer xmlerr.Catch(&err, "frame")`.
func Catch(err *error, frame string) {
	if r := recover(); r != nil {
		if bc, ok := r.(Breadcrumb); ok {
			bc.Path = append(bc.Path, frame)
			*err = bc
			return
		}
		panic(r)
	}
}
