package ngsild

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/cim"
	"github.com/diwise/temporal-context-broker/internal/pkg/presentation/api/ngsi-ld/auth"
	ngsierrors "github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TraceAttributeNGSILDTenant string = "ngsild.tenant"
	TraceAttributeEntityID     string = "ngsild.entity"
)

var tracer = otel.Tracer("temporal-context-broker/ngsi-ld/temporal")

func RegisterHandlers(ctx context.Context, r chi.Router, policies io.Reader, app cim.ContextInformationManager, contextDocument []byte) error {

	authenticator, err := auth.NewAuthenticator(ctx, policies)
	if err != nil {
		return fmt.Errorf("failed to create api authenticator: %w", err)
	}

	r.Route("/ngsi-ld/v1", func(r chi.Router) {
		r.Use(
			Logger(logging.GetFromContext(ctx)),
			NGSIMiddleware(),
			RequiredContentTypes([]string{"application/json", "application/ld+json"}),
		)

		r.Route("/temporal", func(r chi.Router) {
			r.Get("/entities", NewQueryTemporalEvolutionOfEntitiesHandler(app, authenticator))
			r.Get("/entities/{entityId}", NewRetrieveTemporalEvolutionOfAnEntityHandler(app, authenticator))
			r.Post("/entityOperations/query", NewQueryTemporalEvolutionOfEntitiesViaPostHandler(app, authenticator))
		})

		r.Get("/jsonldContexts/{contextId}", NewServeContextHandler(contextDocument))
	})

	return nil
}

type tenantContextKey struct {
	name string
}

var tenantCtxKey = &tenantContextKey{"ngsi-tenant"}

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			_, ctx, _ = o11y.AddTraceIDToLoggerAndStoreInContext(
				trace.SpanFromContext(ctx),
				logger,
				ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequiredContentTypes(validTypes []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType := r.Header.Get("Content-Type")
			isValidContentType := true

			if len(contentType) > 0 {
				isValidContentType = false

				for _, t := range validTypes {
					if strings.HasPrefix(contentType, t) {
						isValidContentType = true
						break
					}
				}
			}

			if isValidContentType {
				next.ServeHTTP(w, r)
			} else {
				http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
			}
		})
	}
}

// NGSIMiddleware packs any tenant id into the context
func NGSIMiddleware() func(http.Handler) http.Handler {
	tenantHeaderName := http.CanonicalHeaderKey("NGSILD-Tenant")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant := "default"

			tenantHeader := r.Header[tenantHeaderName]
			if len(tenantHeader) > 0 {
				tenant = tenantHeader[0]
			}

			if labeler, found := otelhttp.LabelerFromContext(r.Context()); found {
				labeler.Add(attribute.String(TraceAttributeNGSILDTenant, tenant))
			}

			ctx := context.WithValue(r.Context(), tenantCtxKey, tenant)

			ctx = logging.NewContextWithLogger(
				ctx,
				logging.GetFromContext(r.Context()),
				"tenant",
				tenant,
			)

			if tenant != "default" {
				w.Header().Add(tenantHeaderName, tenant)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenantFromContext extracts the tenant name, if any, from the provided context
func GetTenantFromContext(ctx context.Context) string {
	tenant, ok := ctx.Value(tenantCtxKey).(string)

	if !ok {
		return ""
	}

	return tenant
}

func traceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// mapCIMToNGSILDError reports err as a problem detail. Errors that match
// no known category are logged and reported without their details.
func mapCIMToNGSILDError(ctx context.Context, w http.ResponseWriter, err error) {
	problem := ngsierrors.ProblemFromError(err, traceID(ctx))

	if problem.Type() == ngsierrors.TypeInternalError {
		logging.GetFromContext(ctx).Error("internal error", "err", err.Error())
		ngsierrors.ReportNewInternalError(w, "an internal error occurred", traceID(ctx))
		return
	}

	problem.WriteResponse(w)
}

func addLabelIfError(err error, labeler *otelhttp.Labeler) {
	if err != nil && labeler != nil {
		labeler.Add(attribute.Bool("error", true))
	}
}
