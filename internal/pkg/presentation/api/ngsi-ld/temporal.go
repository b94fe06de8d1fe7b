package ngsild

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/cim"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/diwise/temporal-context-broker/internal/pkg/presentation/api/ngsi-ld/auth"
	"github.com/diwise/temporal-context-broker/internal/pkg/presentation/api/ngsi-ld/geojson"
	ngsierrors "github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func NewRetrieveTemporalEvolutionOfAnEntityHandler(
	contextInformationManager cim.TemporalEntityRetriever,
	authenticator auth.Enticator) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		tenant := GetTenantFromContext(ctx)
		entityID, _ := url.QueryUnescape(chi.URLParam(r, "entityId"))

		labeler, _ := otelhttp.LabelerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "retrieve-temporal-entity",
			trace.WithAttributes(
				attribute.String(TraceAttributeNGSILDTenant, tenant),
				attribute.String(TraceAttributeEntityID, entityID),
			),
		)
		defer func() {
			addLabelIfError(err, labeler)
			tracing.RecordAnyErrorAndEndSpan(err, span)
		}()

		log := logging.GetFromContext(ctx)

		err = authenticator.CheckAccess(ctx, r, tenant, []string{})
		if err != nil {
			log.Warn("access not granted", "err", err.Error())
			mapCIMToNGSILDError(ctx, w, err)
			return
		}

		params := r.URL.Query()

		result, err := contextInformationManager.RetrieveTemporalEvolutionOfEntity(ctx, tenant, entityID, params)
		if err != nil {
			log.Info("failed to retrieve temporal evolution of entity", "err", err.Error())
			mapCIMToNGSILDError(ctx, w, err)
			return
		}

		err = writeTemporalResult(ctx, w, r, result, params.Get("geometryProperty"))
	})
}

func NewQueryTemporalEvolutionOfEntitiesHandler(
	contextInformationManager cim.TemporalEntityQuerier,
	authenticator auth.Enticator) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		tenant := GetTenantFromContext(ctx)

		labeler, _ := otelhttp.LabelerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "query-temporal-entities",
			trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, tenant)),
		)
		defer func() {
			addLabelIfError(err, labeler)
			tracing.RecordAnyErrorAndEndSpan(err, span)
		}()

		err = queryTemporalEvolution(ctx, w, r, contextInformationManager, authenticator, tenant, r.URL.Query())
	})
}

// NewQueryTemporalEvolutionOfEntitiesViaPostHandler handles temporal queries
// that are posted as a Query document instead of as request parameters
func NewQueryTemporalEvolutionOfEntitiesViaPostHandler(
	contextInformationManager cim.TemporalEntityQuerier,
	authenticator auth.Enticator) http.HandlerFunc {

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error

		ctx := r.Context()
		tenant := GetTenantFromContext(ctx)

		labeler, _ := otelhttp.LabelerFromContext(ctx)

		ctx, span := tracer.Start(ctx, "query-temporal-entities-via-post",
			trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, tenant)),
		)
		defer func() {
			addLabelIfError(err, labeler)
			tracing.RecordAnyErrorAndEndSpan(err, span)
		}()

		body, err := io.ReadAll(r.Body)
		defer r.Body.Close()

		if err != nil {
			ngsierrors.ReportNewInvalidRequest(w, "failed to read request body", traceID(ctx))
			return
		}

		params, err := temporal.QueryParamsFromBody(body, r.URL.Query())
		if err != nil {
			mapCIMToNGSILDError(ctx, w, err)
			return
		}

		err = queryTemporalEvolution(ctx, w, r, contextInformationManager, authenticator, tenant, params)
	})
}

func queryTemporalEvolution(ctx context.Context, w http.ResponseWriter, r *http.Request, app cim.TemporalEntityQuerier, authenticator auth.Enticator, tenant string, params url.Values) error {
	log := logging.GetFromContext(ctx)

	err := authenticator.CheckAccess(ctx, r, tenant, entityTypesOf(params))
	if err != nil {
		log.Warn("access not granted", "err", err.Error())
		mapCIMToNGSILDError(ctx, w, err)
		return err
	}

	result, err := app.QueryTemporalEvolutionOfEntities(ctx, tenant, params)
	if err != nil {
		log.Info("failed to query temporal evolution of entities", "err", err.Error())
		mapCIMToNGSILDError(ctx, w, err)
		return err
	}

	return writeTemporalResult(ctx, w, r, result, params.Get("geometryProperty"))
}

func entityTypesOf(params url.Values) []string {
	types := []string{}
	for t := range strings.SplitSeq(params.Get("type"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}
	return types
}

func writeTemporalResult(ctx context.Context, w http.ResponseWriter, r *http.Request, result *cim.TemporalResult, geometryProperty string) error {
	contentType := "application/ld+json"
	var body any = result.Body()

	accept := r.Header.Get("Accept")

	if strings.Contains(accept, geojson.ContentType) {
		contentType = geojson.ContentType

		if e, ok := result.Entity(); ok {
			feature := geojson.ConvertEntity(e, geometryProperty)
			feature.Context = e.Context
			body = feature
		} else {
			var contexts []string
			if entities := result.Entities(); len(entities) > 0 {
				contexts = entities[0].Context
			}
			body = geojson.ConvertEntities(result.Entities(), geometryProperty, contexts)
		}
	} else if strings.Contains(accept, "application/json") {
		contentType = "application/json"
	}

	responseBody, err := json.Marshal(body)
	if err != nil {
		mapCIMToNGSILDError(ctx, w, err)
		return err
	}

	for name, values := range result.Headers() {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(result.StatusCode())
	w.Write(responseBody)

	return nil
}
