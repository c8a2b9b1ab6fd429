// Command xmlcorelint is the thin CLI wrapper named in spec §6: it parses
// (optionally validates) one or more XML documents against an optional
// OASIS catalog, reporting well-formedness and validation errors and the
// element count of each document parsed, in the style of cmd/xsdparse and
// cmd/wsdlgen (flag + log, no cobra/cli framework).
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/orvant/xmlcore/catalog"
	"github.com/orvant/xmlcore/domtree"
	"github.com/orvant/xmlcore/grammar"
	"github.com/orvant/xmlcore/grammar/dtd"
	"github.com/orvant/xmlcore/grammar/relaxng"
	"github.com/orvant/xmlcore/grammar/xsd"
	"github.com/orvant/xmlcore/internal/commandline"
	"github.com/orvant/xmlcore/parser"
)

var (
	catalogPath  = flag.String("catalog", "", "path to an OASIS XML catalog used to resolve public/system identifiers and schema locations")
	validate     = flag.Bool("validate", false, "fail (and exit non-zero) on grammar validation errors, not just well-formedness errors")
	silent       = flag.Bool("silent", false, "suppress non-fatal warnings")
	encoding     = flag.String("encoding", "", "override encoding detection (normally sniffed from the BOM/declaration)")
	dumpElements = flag.Bool("dump-elements", false, "after parsing, list every element name known to the loaded grammar (DTD/schema/RelaxNG), sorted")
	dumpDeps     = flag.Bool("dump-deps", false, "after parsing, list the schema-location dependency graph (import/include/redefine) the document pulled in, leaves first")
	rewriteRules commandline.ReplaceRuleList
)

func init() {
	flag.Var(&rewriteRules, "rewrite-system", "regex -> replacement rule rewriting system identifiers/hrefs before catalog resolution; may be repeated")
}

func main() {
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatalf("Usage: %s [-catalog file] [-validate] [-silent] file.xml ...", os.Args[0])
	}

	var cat *catalog.Catalog
	if *catalogPath != "" {
		data, err := os.ReadFile(*catalogPath)
		if err != nil {
			log.Fatalf("reading catalog: %v", err)
		}
		cat, err = catalog.Parse(string(data), filepath.Dir(*catalogPath))
		if err != nil {
			log.Fatalf("parsing catalog %s: %v", *catalogPath, err)
		}
	}

	var failures commandline.Strings
	for _, path := range flag.Args() {
		if err := lintFile(path, cat); err != nil {
			failures.Set(path)
			log.Printf("%s: %v", path, err)
		}
	}

	if len(failures) > 0 {
		os.Exit(1)
	}
}

func lintFile(path string, cat *catalog.Catalog) error {
	dispatcher := grammar.NewDispatcher(cat, filepath.Dir(path))
	if len(rewriteRules) > 0 {
		dispatcher.SetSystemRewrites(rewriteRules)
	}

	p := parser.New(
		parser.Validating(*validate),
		parser.Silent(*silent),
		parser.WithDispatcher(dispatcher),
	)

	b := domtree.NewBuilder()
	if err := p.ParseFile(path, *encoding, b); err != nil {
		return err
	}

	if !*silent {
		for _, w := range p.Warnings {
			log.Printf("%s: warning: %s", path, w.Message)
		}
	}

	count := 0
	if b.Root != nil {
		count = len(b.Root.Flatten())
	}
	log.Printf("%s: ok (%d elements)", path, count)

	if *dumpElements {
		if g, ok := dispatcher.GetGrammar(); ok {
			for _, name := range grammarElementNames(g) {
				log.Printf("%s: declares element %q", path, name)
			}
		}
	}

	if *dumpDeps {
		dispatcher.SchemaDependencies().Flatten(func(target string) {
			log.Printf("%s: schema dependency %q", path, target)
		})
	}
	return nil
}

// grammarElementNames reports the names a loaded grammar declares, for the
// -dump-elements diagnostic. parser.Grammar itself has no such method (a
// DTDComposite/SchemaComposite/RelaxNGComposite is only ever consulted
// element-by-element during parsing), so this type-switches on the three
// concrete composite types grammar.Dispatcher can hand back.
func grammarElementNames(g parser.Grammar) []string {
	switch c := g.(type) {
	case *dtd.Composite:
		return c.ElementNames()
	case *xsd.Composite:
		return c.ElementNames()
	case *relaxng.Composite:
		return c.ElementNames()
	default:
		return nil
	}
}
