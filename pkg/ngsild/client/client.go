package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temporal-context-broker/pkg/ngsild"
	"github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type TemporalContextBrokerClient interface {
	QueryTemporalEvolutionOfEntities(ctx context.Context, headers map[string][]string, parameters ...RequestDecoratorFunc) (*ngsild.QueryTemporalEntitiesResult, error)
	QueryTemporalEvolutionOfEntitiesViaPost(ctx context.Context, query Query, headers map[string][]string, parameters ...RequestDecoratorFunc) (*ngsild.QueryTemporalEntitiesResult, error)
	RetrieveTemporalEvolutionOfEntity(ctx context.Context, entityID string, headers map[string][]string, parameters ...RequestDecoratorFunc) (*ngsild.RetrieveTemporalEntityResult, error)
}

type RequestDecoratorFunc func([]string) []string

const DefaultTenant string = "default"

func Debug(enabled string) func(*cbClient) {
	return func(c *cbClient) {
		c.debug = (enabled == "true")
	}
}

func Tenant(tenant string) func(*cbClient) {
	return func(c *cbClient) {
		c.tenant = tenant
	}
}

func NewContextBrokerClient(broker string, options ...func(*cbClient)) TemporalContextBrokerClient {
	c := &cbClient{
		baseURL: broker,
		tenant:  DefaultTenant,
		debug:   false,
	}

	for _, option := range options {
		option(c)
	}

	return c
}

const (
	TraceAttributeEntityID     string = "entity-id"
	TraceAttributeNGSILDTenant string = "ngsild-tenant"
)

var tracer = otel.Tracer("temporal-context-broker-client")

type cbClient struct {
	baseURL string
	tenant  string
	debug   bool
}

func (c cbClient) QueryTemporalEvolutionOfEntities(ctx context.Context, headers map[string][]string, parameters ...RequestDecoratorFunc) (*ngsild.QueryTemporalEntitiesResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-temporal-entities",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodGet, c.baseURL+"/ngsi-ld/v1/temporal/entities"+urlParams(parameters), nil, headers,
	)
	if err != nil {
		return nil, err
	}

	result, err := c.temporalEntitiesFrom(response, responseBody)
	return result, err
}

// QueryTemporalEvolutionOfEntitiesViaPost sends the query as a Query document.
// Parameters such as Limit, Offset and Count are still sent in the url.
func (c cbClient) QueryTemporalEvolutionOfEntitiesViaPost(ctx context.Context, query Query, headers map[string][]string, parameters ...RequestDecoratorFunc) (*ngsild.QueryTemporalEntitiesResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-temporal-entities-via-post",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	query.Type = "Query"

	b, err := json.Marshal(query)
	if err != nil {
		err = fmt.Errorf("failed to marshal query: %s (%w)", err.Error(), errors.ErrInternal)
		return nil, err
	}

	if headers == nil {
		headers = map[string][]string{}
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = []string{"application/json"}
	}

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodPost, c.baseURL+"/ngsi-ld/v1/temporal/entityOperations/query"+urlParams(parameters), bytes.NewBuffer(b), headers,
	)
	if err != nil {
		return nil, err
	}

	result, err := c.temporalEntitiesFrom(response, responseBody)
	return result, err
}

func (c cbClient) RetrieveTemporalEvolutionOfEntity(ctx context.Context, entityID string, headers map[string][]string, parameters ...RequestDecoratorFunc) (*ngsild.RetrieveTemporalEntityResult, error) {
	var err error

	ctx, span := tracer.Start(ctx, "retrieve-temporal-entity",
		trace.WithAttributes(attribute.String(TraceAttributeNGSILDTenant, c.tenant)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityID, entityID)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	response, responseBody, err := c.callContextSource(
		ctx, http.MethodGet, c.baseURL+"/ngsi-ld/v1/temporal/entities/"+url.QueryEscape(entityID)+urlParams(parameters), nil, headers,
	)
	if err != nil {
		return nil, err
	}

	if err = checkStatus(response, responseBody); err != nil {
		return nil, err
	}

	result := &ngsild.RetrieveTemporalEntityResult{}

	err = json.Unmarshal(responseBody, &result.Entity)
	if err != nil {
		if c.debug && len(responseBody) < 1000 {
			err = fmt.Errorf("unmarshaling of %s failed with err %s", string(responseBody), err.Error())
		}
		return nil, err
	}

	result.Range, err = contentRangeOf(response)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c cbClient) temporalEntitiesFrom(response *http.Response, responseBody []byte) (*ngsild.QueryTemporalEntitiesResult, error) {
	if err := checkStatus(response, responseBody); err != nil {
		return nil, err
	}

	var entities []ngsild.TemporalEntity
	err := json.Unmarshal(responseBody, &entities)
	if err != nil {
		if c.debug && len(responseBody) < 1000 {
			err = fmt.Errorf("unmarshaling of %s failed with err %s", string(responseBody), err.Error())
		}

		return nil, err
	}

	qer := ngsild.NewQueryTemporalEntitiesResult()

	if totalCount, ok := extractNGSILDResultsCount(response); ok {
		qer.TotalCount = totalCount
	}

	qer.Range, err = contentRangeOf(response)
	if err != nil {
		return nil, err
	}

	go func() {
		for idx := range entities {
			qer.Found <- entities[idx]
		}
		qer.Found <- nil
	}()

	return qer, nil
}

func checkStatus(response *http.Response, responseBody []byte) error {
	if response.StatusCode == http.StatusOK || response.StatusCode == http.StatusPartialContent {
		return nil
	}

	contentType := response.Header.Get("Content-Type")
	if response.StatusCode >= http.StatusBadRequest && response.StatusCode <= http.StatusInternalServerError {
		return errors.NewErrorFromProblemReport(response.StatusCode, contentType, responseBody)
	}

	return fmt.Errorf("unexpected response code %d (%w)", response.StatusCode, errors.ErrInternal)
}

func contentRangeOf(response *http.Response) (*ngsild.ContentRange, error) {
	if response.StatusCode != http.StatusPartialContent {
		return nil, nil
	}

	cr, err := ngsild.ParseContentRange(response.Header.Get("Content-Range"))
	if err != nil {
		return nil, fmt.Errorf("%s (%w)", err.Error(), errors.ErrBadResponse)
	}

	return cr, nil
}

func urlParams(parameters []RequestDecoratorFunc) string {
	params := make([]string, 0, 5)
	for _, rdf := range parameters {
		params = rdf(params)
	}

	if len(params) == 0 {
		return ""
	}

	return "?" + strings.Join(params, "&")
}

func (c cbClient) callContextSource(ctx context.Context, method, endpoint string, body io.Reader, headers map[string][]string) (*http.Response, []byte, error) {
	httpClient := http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %s (%w)", err.Error(), errors.ErrInternal)
	}

	if c.tenant != DefaultTenant {
		req.Header.Add("NGSILD-Tenant", c.tenant)
	}

	for header, headerValue := range headers {
		for _, val := range headerValue {
			req.Header.Add(header, val)
		}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to send request: %s (%w)", err.Error(), errors.ErrRequest)
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response body: %s (%w)", err.Error(), errors.ErrBadResponse)
	}

	if c.debug {
		if resp.StatusCode == http.StatusPartialContent || resp.StatusCode >= http.StatusBadRequest {
			if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusNotFound {
				reqbytes, _ := httputil.DumpRequest(req, false)
				respbytes, _ := httputil.DumpResponse(resp, false)

				log := logging.GetFromContext(ctx)
				if resp.StatusCode >= http.StatusBadRequest {
					log.Error("request failed", "request", string(reqbytes), "response", string(respbytes))
				} else {
					log.Warn("unexpected response", "request", string(reqbytes), "response", string(respbytes))
				}
			}
		}
	}

	return resp, respBody, nil
}

func extractNGSILDResultsCount(r *http.Response) (int64, bool) {
	val, ok := r.Header[http.CanonicalHeaderKey("NGSILD-Results-Count")]
	if !ok || len(val) == 0 {
		return -1, false
	}

	count, err := strconv.ParseInt(val[0], 10, 64)
	if err != nil {
		return -1, false
	}

	return count, true
}
