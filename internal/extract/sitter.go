package extract

import (
	"fmt"
	"regexp"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"rebuild/internal/scan"
)

// identifierKinds matches node kinds that carry a symbol occurrence: plain
// identifiers, type identifiers in field declarations and method signatures
// (return types, parameters, generic arguments), and call receivers. Matching
// on kind rather than per-language node tables keeps the strategy a
// conservative superset for every grammar.
var identifierKinds = regexp.MustCompile(`(?:^|_)identifier$`)

// importKinds matches import-like declaration nodes across grammars.
var importKinds = regexp.MustCompile(`(?i)^(import_declaration|import_statement|import_from_statement|import_spec|use_declaration|import_header)$`)

// languageForSuffix maps unit suffixes to loaded grammars. Loading is cheap
// and grammars are immutable, so the table is built once per extractor.
func languageForSuffix(suffix string) (*sitter.Language, error) {
	switch suffix {
	case ".java":
		return sitter.NewLanguage(tree_sitter_java.Language()), nil
	case ".go":
		return sitter.NewLanguage(tree_sitter_go.Language()), nil
	case ".py":
		return sitter.NewLanguage(tree_sitter_python.Language()), nil
	case ".js", ".mjs":
		return sitter.NewLanguage(tree_sitter_javascript.Language()), nil
	case ".ts":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), nil
	case ".tsx":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()), nil
	case ".rs":
		return sitter.NewLanguage(tree_sitter_rust.Language()), nil
	case ".css":
		return sitter.NewLanguage(tree_sitter_css.Language()), nil
	case ".html":
		return sitter.NewLanguage(tree_sitter_html.Language()), nil
	default:
		return nil, fmt.Errorf("no grammar for unit suffix %q", suffix)
	}
}

// SitterExtractor is the structure-aware strategy: it parses each unit with
// the tree-sitter grammar for the configured suffix and collects every
// identifier-like node that resolves to a known unit name.
type SitterExtractor struct {
	language *sitter.Language
}

func NewSitterExtractor(unitSuffix string) (*SitterExtractor, error) {
	lang, err := languageForSuffix(unitSuffix)
	if err != nil {
		return nil, err
	}
	return &SitterExtractor{language: lang}, nil
}

func (e *SitterExtractor) Extract(unit scan.Unit, content []byte, known map[string]string) (Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(e.language); err != nil {
		return Result{}, fmt.Errorf("set grammar for %s: %w", unit.ID, err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return Result{}, fmt.Errorf("parse %s failed", unit.ID)
	}
	defer tree.Close()

	res := Result{Refs: make(map[string]bool)}
	seenTargets := make(map[string]bool)
	e.walk(tree.RootNode(), content, unit, known, &res, seenTargets)
	return res, nil
}

func (e *SitterExtractor) walk(node *sitter.Node, source []byte, unit scan.Unit, known map[string]string, res *Result, seenTargets map[string]bool) {
	kind := node.Kind()

	if importKinds.MatchString(kind) {
		e.collectImport(node, source, unit, known, res, seenTargets)
		return
	}

	if identifierKinds.MatchString(kind) {
		name := string(source[node.StartByte():node.EndByte()])
		if id, ok := known[name]; ok && name != unit.Name {
			res.Refs[id] = true
		}
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		e.walk(node.Child(i), source, unit, known, res, seenTargets)
	}
}

// collectImport records every identifier segment of an import declaration as
// a declared target. Package segments produce extra targets, which is safe:
// targets only matter when they collide with a unit deleted this run.
func (e *SitterExtractor) collectImport(node *sitter.Node, source []byte, unit scan.Unit, known map[string]string, res *Result, seenTargets map[string]bool) {
	if identifierKinds.MatchString(node.Kind()) {
		name := string(source[node.StartByte():node.EndByte()])
		if name != "" && name != unit.Name {
			if !seenTargets[name] {
				seenTargets[name] = true
				res.ImportTargets = append(res.ImportTargets, name)
			}
			if id, ok := known[name]; ok {
				res.Refs[id] = true
			}
		}
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		e.collectImport(node.Child(i), source, unit, known, res, seenTargets)
	}
}
