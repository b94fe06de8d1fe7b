package jsonld

import (
	"encoding/json"
	"testing"

	"github.com/matryer/is"
)

func testResolver() *Resolver {
	return New(Config{
		Terms: map[string]string{
			"Vehicle": "https://uri.fiware.org/ns/dataModels#Vehicle",
			"speed":   "https://uri.fiware.org/ns/dataModels#speed",
		},
	})
}

func TestExpandUsesTermsAndDefaultVocab(t *testing.T) {
	is := is.New(t)
	r := testResolver()

	is.Equal(r.Expand("Vehicle"), "https://uri.fiware.org/ns/dataModels#Vehicle")
	is.Equal(r.Expand("brandName"), DefaultVocab+"brandName")
	is.Equal(r.Expand("location"), CoreVocab+"location")
}

func TestExpandLeavesIRIsAndKeywordsAlone(t *testing.T) {
	is := is.New(t)
	r := testResolver()

	is.Equal(r.Expand("https://example.org/ns#name"), "https://example.org/ns#name")
	is.Equal(r.Expand("urn:ngsi-ld:Vehicle:A1"), "urn:ngsi-ld:Vehicle:A1")
	is.Equal(r.Expand("scope"), "scope")
	is.Equal(r.ExpandAll(nil), []string(nil))
}

func TestCompactIsTheInverseOfExpand(t *testing.T) {
	is := is.New(t)
	r := testResolver()

	for _, term := range []string{"Vehicle", "speed", "brandName", "location", "scope"} {
		is.Equal(r.Compact(r.Expand(term)), term)
	}

	is.Equal(r.Compact("https://example.org/ns#name"), "https://example.org/ns#name")
	is.Equal(r.Compact(DefaultVocab+"nested/name"), DefaultVocab+"nested/name")
}

func TestCustomVocab(t *testing.T) {
	is := is.New(t)
	r := New(Config{Vocab: "https://example.org/ns#"})

	is.Equal(r.Expand("name"), "https://example.org/ns#name")
	is.Equal(r.Compact("https://example.org/ns#name"), "name")
}

func TestContextDocument(t *testing.T) {
	is := is.New(t)
	r := testResolver()

	b, err := r.ContextDocument()
	is.NoErr(err)

	doc := struct {
		Context []json.RawMessage `json:"@context"`
	}{}
	is.NoErr(json.Unmarshal(b, &doc))
	is.Equal(len(doc.Context), 2)

	terms := map[string]string{}
	is.NoErr(json.Unmarshal(doc.Context[0], &terms))
	is.Equal(terms["@vocab"], DefaultVocab)
	is.Equal(terms["speed"], "https://uri.fiware.org/ns/dataModels#speed")

	is.Equal(r.Contexts(), []string{CoreContext})
}
