// Package metadata resolves bibliographic metadata for documents from
// external registries (Crossref, OpenAlex).
package metadata

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/helixir/theme-discovery-service/internal/domain"
)

// Record is the resolved bibliographic metadata of a document.
type Record struct {
	DOI      string
	Title    string
	Authors  []string
	Venue    string
	Year     int
	Abstract string
	// Raw is the registry response kept for provenance.
	Raw map[string]interface{}
	// Source names the registry that produced the record.
	Source string
}

// Resolver looks up bibliographic metadata. Either doi or title may be
// empty; a resolver uses whichever it supports.
// Returns domain.ErrNotFound when the registry has no matching record.
type Resolver interface {
	Resolve(ctx context.Context, doi, title string) (*Record, error)
}

// Chain tries each resolver in order and returns the first record found.
// Lookup errors other than not-found are remembered but do not stop the
// chain; a later resolver can still succeed.
type Chain struct {
	resolvers []Resolver
}

// NewChain creates a resolver chain.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve implements Resolver.
func (c *Chain) Resolve(ctx context.Context, doi, title string) (*Record, error) {
	var lastErr error
	for _, r := range c.resolvers {
		record, err := r.Resolve(ctx, doi, title)
		if err == nil {
			return record, nil
		}
		lastErr = err
	}

	if lastErr == nil {
		return nil, domain.NewNotFoundError("metadata", doi+title)
	}
	return nil, fmt.Errorf("all resolvers failed: %w", lastErr)
}

// FromFilename derives minimal metadata from the source file name: the base
// name without its extension becomes the title. It is the fallback of last
// resort when every registry lookup misses, so a lookup miss leaves a
// document titled rather than failed.
func FromFilename(path string) *Record {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return &Record{Title: name, Source: "filename"}
}

// doiPattern matches DOIs as they appear in document text.
var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[-._;()/:a-zA-Z0-9]+`)

// ExtractDOI finds the first DOI-shaped identifier in text. Trailing
// punctuation picked up by the match is trimmed. Returns "" when the text
// contains no DOI.
func ExtractDOI(text string) string {
	match := doiPattern.FindString(text)
	return strings.TrimRight(match, ".;,)")
}
