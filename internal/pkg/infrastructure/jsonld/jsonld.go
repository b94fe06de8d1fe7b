package jsonld

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
)

const (
	CoreContext  string = "https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context-v1.8.jsonld"
	CoreVocab    string = "https://uri.etsi.org/ngsi-ld/"
	DefaultVocab string = "https://uri.etsi.org/ngsi-ld/default-context/"
)

var coreTerms = map[string]string{
	"location":         CoreVocab + "location",
	"observationSpace": CoreVocab + "observationSpace",
	"operationSpace":   CoreVocab + "operationSpace",
}

// names that are never expanded or compacted
var keywords = map[string]bool{
	"id":         true,
	"type":       true,
	"scope":      true,
	"createdAt":  true,
	"modifiedAt": true,
	"@context":   true,
}

type Config struct {
	Vocab    string            `yaml:"vocab"`
	Terms    map[string]string `yaml:"terms"`
	Contexts []string          `yaml:"contexts"`
}

// Resolver translates between the short terms used in requests and responses
// and the IRIs that attribute names and entity types are stored under
type Resolver struct {
	vocab    string
	terms    map[string]string
	iris     map[string]string
	contexts []string
}

func New(cfg Config) *Resolver {
	r := &Resolver{
		vocab:    cfg.Vocab,
		terms:    maps.Clone(coreTerms),
		iris:     map[string]string{},
		contexts: slices.Clone(cfg.Contexts),
	}

	if r.vocab == "" {
		r.vocab = DefaultVocab
	}

	maps.Copy(r.terms, cfg.Terms)

	for term, iri := range r.terms {
		r.iris[iri] = term
	}

	if len(r.contexts) == 0 {
		r.contexts = []string{CoreContext}
	}

	return r
}

// Expand returns the IRI of term. Names that already are IRIs or URNs are
// returned unchanged.
func (r *Resolver) Expand(term string) string {
	if keywords[term] || strings.Contains(term, ":") {
		return term
	}

	if iri, ok := r.terms[term]; ok {
		return iri
	}

	return r.vocab + term
}

func (r *Resolver) ExpandAll(terms []string) []string {
	if len(terms) == 0 {
		return terms
	}

	expanded := make([]string, 0, len(terms))
	for _, t := range terms {
		expanded = append(expanded, r.Expand(t))
	}
	return expanded
}

// Compact returns the term for iri, or iri itself when no term or vocabulary
// covers it
func (r *Resolver) Compact(iri string) string {
	if term, ok := r.iris[iri]; ok {
		return term
	}

	if rest, ok := strings.CutPrefix(iri, r.vocab); ok && rest != "" && !strings.ContainsAny(rest, "/#:") {
		return rest
	}

	return iri
}

// Contexts are the @context references attached to every response
func (r *Resolver) Contexts() []string {
	return slices.Clone(r.contexts)
}

// ContextDocument renders the configured term map as a JSON-LD context
func (r *Resolver) ContextDocument() ([]byte, error) {
	ctx := map[string]string{"@vocab": r.vocab}
	maps.Copy(ctx, r.terms)

	return json.MarshalIndent(map[string]any{
		"@context": []any{ctx, CoreContext},
	}, "", "  ")
}
