// Package stats turns JSON-decoded newspaper-archive records into
// per-(source, year) statistics. Extractors map one raw record of a known
// document kind to a flat count record; pipelines group the count records
// and reduce each field with sum, distinct-count, or collect semantics.
package stats

import "fmt"

// Kind identifies the document kind of a raw record and selects the
// extraction schema and reduction plan.
type Kind string

const (
	KindCanonical Kind = "canonical"
	KindRebuilt   Kind = "rebuilt"
	KindPassim    Kind = "passim"
	KindEntities  Kind = "entities"
	KindLangident Kind = "langident"
	KindSolrText  Kind = "solr-text"
)

// ParseKind converts a user-supplied kind string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCanonical, KindRebuilt, KindPassim, KindEntities, KindLangident, KindSolrText:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown document kind %q", s)
	}
}

// Count record and statistics record field names, matching the output
// schema of each pipeline.
const (
	FieldNpID            = "np_id"
	FieldYear            = "year"
	FieldIssues          = "issues"
	FieldContentItemsOut = "content_items_out"
	FieldPages           = "pages"
	FieldImages          = "images"
	FieldFtTokens        = "ft_tokens"
	FieldNeMentions      = "ne_mentions"
	FieldNeEntities      = "ne_entities"
	FieldLangFd          = "lang_fd"
)

// SourceRegistry is the immutable set of recognized source identifiers
// (journal codes), injected at pipeline construction.
type SourceRegistry struct {
	known map[string]struct{}
}

// NewSourceRegistry builds a registry from a list of source ids.
func NewSourceRegistry(ids []string) *SourceRegistry {
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return &SourceRegistry{known: known}
}

// Known reports whether the source id is registered. An empty registry
// accepts everything.
func (r *SourceRegistry) Known(id string) bool {
	if r == nil || len(r.known) == 0 {
		return true
	}
	_, ok := r.known[id]
	return ok
}

// Len returns the number of registered source ids.
func (r *SourceRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.known)
}
