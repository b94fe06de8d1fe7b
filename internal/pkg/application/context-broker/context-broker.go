package contextbroker

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/cim"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/jsonld"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/metrics"
	"github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const TemporalEntitiesPath string = "/ngsi-ld/v1/temporal/entities"

const DefaultTenant string = "default"

var tracer = otel.Tracer("temporal-context-broker/app")

type contextBrokerApp struct {
	tenants  map[string]Tenant
	store    temporal.AttributeInstanceStore
	limits   temporal.Limits
	resolver *jsonld.Resolver
}

func New(ctx context.Context, cfg Config, store temporal.AttributeInstanceStore, resolver *jsonld.Resolver) (cim.ContextInformationManager, error) {
	if store == nil {
		return nil, fmt.Errorf("an attribute instance store is required")
	}

	if resolver == nil {
		resolver = jsonld.New(cfg.JSONLD)
	}

	app := &contextBrokerApp{
		tenants:  make(map[string]Tenant),
		store:    store,
		limits:   cfg.Limits(),
		resolver: resolver,
	}

	for _, tenant := range cfg.Tenants {
		app.tenants[tenant.ID] = tenant
	}

	if len(app.tenants) == 0 {
		logging.GetFromContext(ctx).Warn("no tenants configured, serving the default tenant only")
		app.tenants[DefaultTenant] = Tenant{ID: DefaultTenant}
	}

	return app, nil
}

func (app *contextBrokerApp) Tenants() []string {
	ids := make([]string, 0, len(app.tenants))
	for id := range app.tenants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (app *contextBrokerApp) QueryTemporalEvolutionOfEntities(ctx context.Context, tenant string, params url.Values) (result *cim.TemporalResult, err error) {
	ctx, span := tracer.Start(ctx, "query-temporal-evolution-of-entities",
		trace.WithAttributes(attribute.String("ngsild.tenant", tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if _, ok := app.tenants[tenant]; !ok {
		err = errors.NewUnknownTenantError(fmt.Sprintf("tenant %s does not exist", tenant))
		return nil, err
	}

	req, err := temporal.ParseQueryRequest(params, app.limits)
	if err != nil {
		return nil, err
	}

	found, total, err := app.query(ctx, tenant, *req)
	if err != nil {
		return nil, err
	}

	entities := temporal.BuildEntities(found, req.Query, req.Options, app.resolver.Contexts())
	entities, pagination := temporal.Paginate(entities, req.Query)

	for i := range entities {
		entities[i].Rename(app.resolver.Compact)
	}

	response := temporal.AssembleResponse(entities, pagination, req.Query, temporal.Listing{
		Resource:   TemporalEntitiesPath,
		Params:     params,
		Page:       req.Page,
		TotalCount: total,
	})

	app.observe(ctx, response, req, pagination)

	return cim.NewTemporalResult(response), nil
}

func (app *contextBrokerApp) RetrieveTemporalEvolutionOfEntity(ctx context.Context, tenant, entityID string, params url.Values) (result *cim.TemporalResult, err error) {
	ctx, span := tracer.Start(ctx, "retrieve-temporal-evolution-of-entity",
		trace.WithAttributes(
			attribute.String("ngsild.tenant", tenant),
			attribute.String("ngsild.entity", entityID),
		),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	if _, ok := app.tenants[tenant]; !ok {
		err = errors.NewUnknownTenantError(fmt.Sprintf("tenant %s does not exist", tenant))
		return nil, err
	}

	req, err := temporal.ParseRetrieveRequest(entityID, params, app.limits)
	if err != nil {
		return nil, err
	}

	found, _, err := app.query(ctx, tenant, *req)
	if err != nil {
		return nil, err
	}

	if len(found) == 0 {
		if len(req.Query.Attrs) > 0 {
			err = errors.NewNotFoundError(fmt.Sprintf("Entity %s does not exist or it has none of the requested attributes", entityID))
		} else {
			err = errors.NewNotFoundError(fmt.Sprintf("Entity %s does not exist", entityID))
		}
		return nil, err
	}

	entity := temporal.BuildEntity(found[0], req.Query, req.Options, app.resolver.Contexts())
	paginated, pagination := temporal.Paginate([]temporal.CompactedEntity{entity}, req.Query)

	entity = paginated[0]
	entity.Rename(app.resolver.Compact)

	response := temporal.AssembleEntityResponse(entity, pagination, req.Query)

	app.observe(ctx, response, req, pagination)

	return cim.NewTemporalEntityResult(response), nil
}

// query expands the entity types and attribute names of the request before
// it is passed on to the store
func (app *contextBrokerApp) query(ctx context.Context, tenant string, req temporal.Request) ([]temporal.EntityTemporalResult, int64, error) {
	req.Entities.Types = app.resolver.ExpandAll(req.Entities.Types)
	req.Query.Attrs = app.resolver.ExpandAll(req.Query.Attrs)

	defer metrics.ObserveQuery(req.Options.Representation.String(), time.Now())

	found, total, err := app.store.QueryTemporalEntities(ctx, tenant, req)
	if err != nil {
		logging.GetFromContext(ctx).Debug("temporal query failed", "err", err.Error())
		return nil, 0, err
	}

	return found, total, nil
}

func (app *contextBrokerApp) observe(ctx context.Context, response temporal.Response, req *temporal.Request, p temporal.Pagination) {
	metrics.ObserveResponse(response.StatusCode, req.Options.Representation.String(), p.Truncated)

	if p.Range != nil {
		logging.GetFromContext(ctx).Debug("partial temporal response",
			"range", p.Range.ContentRange(req.Query.LastN), "truncated", p.Truncated,
		)
	}
}
