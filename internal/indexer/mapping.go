// Package indexer owns the on-disk search index: its mapping, lifecycle
// (ensure/reset), bulk loading, and the data directory lock.
package indexer

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/sha1n/seekql/internal/domain"
)

// CreateIndexMapping creates the Bleve index mapping for documents.
//
// content is indexed twice: lower-cased for boolean/term search and, as
// content.cs, with case preserved for exact-case phrases. Neither analyzer
// removes stop words, so SQL keywords such as FROM or WHERE stay searchable.
func CreateIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()

	// static analyzer definitions; failure is a programming error
	if err := indexMapping.AddCustomAnalyzer(domain.AnalyzerCaseInsensitive, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		panic(fmt.Sprintf("failed to add analyzer %s: %v", domain.AnalyzerCaseInsensitive, err))
	}
	if err := indexMapping.AddCustomAnalyzer(domain.AnalyzerCaseSensitive, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     unicode.Name,
		"token_filters": []string{},
	}); err != nil {
		panic(fmt.Sprintf("failed to add analyzer %s: %v", domain.AnalyzerCaseSensitive, err))
	}

	docMapping := bleve.NewDocumentMapping()

	// Content - case-insensitive, stored for snippets and highlighting
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = domain.AnalyzerCaseInsensitive
	contentField.Store = true
	contentField.IncludeTermVectors = true

	// content.cs - same source value, case preserved
	contentCSField := bleve.NewTextFieldMapping()
	contentCSField.Name = domain.FieldContentCS
	contentCSField.Analyzer = domain.AnalyzerCaseSensitive
	contentCSField.Store = true
	contentCSField.IncludeTermVectors = true
	contentCSField.IncludeInAll = false

	docMapping.AddFieldMappingsAt(domain.FieldContent, contentField, contentCSField)

	// Path - keyword (not analyzed), stored for retrieval
	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldPath, pathField)

	// Filename - keyword, stored
	filenameField := bleve.NewTextFieldMapping()
	filenameField.Analyzer = keyword.Name
	filenameField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldFilename, filenameField)

	// ID - stored but not indexed (we use the document ID)
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	docMapping.AddFieldMappingsAt(domain.FieldID, idField)

	indexMapping.DefaultMapping = docMapping
	indexMapping.DefaultAnalyzer = domain.AnalyzerCaseInsensitive

	return indexMapping
}

// AnalyzerNamed returns one of the analyzers defined by CreateIndexMapping
func AnalyzerNamed(name string) (analysis.Analyzer, error) {
	a := CreateIndexMapping().AnalyzerNamed(name)
	if a == nil {
		return nil, fmt.Errorf("unknown analyzer %q", name)
	}
	return a, nil
}
