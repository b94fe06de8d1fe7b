package cim

import (
	"context"
	"net/url"
)

//go:generate moq -rm -out cim_mock.go . ContextInformationManager

// TemporalEntityRetriever retrieves the temporal evolution of a single entity
type TemporalEntityRetriever interface {
	RetrieveTemporalEvolutionOfEntity(ctx context.Context, tenant, entityID string, params url.Values) (*TemporalResult, error)
}

// TemporalEntityQuerier queries the temporal evolution of every entity that
// matches the entity selectors and attrs in params
type TemporalEntityQuerier interface {
	QueryTemporalEvolutionOfEntities(ctx context.Context, tenant string, params url.Values) (*TemporalResult, error)
}

type ContextInformationManager interface {
	TemporalEntityRetriever
	TemporalEntityQuerier

	// Tenants returns the ids of every configured tenant
	Tenants() []string
}
