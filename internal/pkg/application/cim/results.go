package cim

import (
	"net/http"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
)

type TemporalResult struct {
	response temporal.Response
	single   bool
}

// NewTemporalResult wraps the response to a query for several entities
func NewTemporalResult(response temporal.Response) *TemporalResult {
	return &TemporalResult{response: response}
}

// NewTemporalEntityResult wraps the response to a request for a single entity
func NewTemporalEntityResult(response temporal.Response) *TemporalResult {
	return &TemporalResult{response: response, single: true}
}

func (r TemporalResult) StatusCode() int {
	return r.response.StatusCode
}

func (r TemporalResult) IsPartial() bool {
	return r.response.StatusCode == http.StatusPartialContent
}

func (r TemporalResult) Headers() http.Header {
	return r.response.Header
}

func (r TemporalResult) Entities() []temporal.CompactedEntity {
	return r.response.Entities
}

// Entity returns the only entity of a single entity result
func (r TemporalResult) Entity() (temporal.CompactedEntity, bool) {
	if !r.single || len(r.response.Entities) != 1 {
		return temporal.CompactedEntity{}, false
	}
	return r.response.Entities[0], true
}

// Body is the entity, or list of entities, to serialize as the response body
func (r TemporalResult) Body() any {
	if e, ok := r.Entity(); ok {
		return e
	}
	if r.response.Entities == nil {
		return []temporal.CompactedEntity{}
	}
	return r.response.Entities
}
