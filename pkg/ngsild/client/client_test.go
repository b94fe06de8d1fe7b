package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	testutils "github.com/diwise/service-chassis/pkg/test/http"
	"github.com/diwise/service-chassis/pkg/test/http/expects"
	"github.com/diwise/service-chassis/pkg/test/http/response"
	ngsierrors "github.com/diwise/temporal-context-broker/pkg/ngsild/errors"

	"github.com/matryer/is"
)

var Expects = testutils.Expects
var Returns = testutils.Returns
var method = expects.RequestMethod
var path = expects.RequestPath

func TestRetrieveTemporalEvolutionOfAnEntity(t *testing.T) {
	is := is.New(t)

	timeStr := "2023-01-22T11:59:43Z"

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/ngsi-ld/v1/temporal/entities/urn:ngsi-ld:Vehicle:B9211"),
			QueryParamEquals("timerel", "after"),
			QueryParamEquals("timeAt", timeStr),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte(temporalEntityResponse)),
		),
	)
	defer s.Close()

	headers := map[string][]string{"Accept": {"application/ld+json"}}
	timeAt, _ := time.Parse(time.RFC3339, timeStr)

	c := NewContextBrokerClient(s.URL())
	result, err := c.RetrieveTemporalEvolutionOfEntity(context.Background(), "urn:ngsi-ld:Vehicle:B9211", headers, After(timeAt))
	is.NoErr(err)

	is.True(!result.IsPartial())
	is.Equal(result.Entity.ID(), "urn:ngsi-ld:Vehicle:B9211")
	is.Equal(result.Entity.Types(), []string{"Vehicle"})

	speed, err := result.Entity.Instances("speed")
	is.NoErr(err)
	is.Equal(len(speed), 3)
	is.Equal(string(speed[1].Value), "80")
	is.Equal(speed[2].ObservedAt.Format(time.RFC3339), "2018-08-01T12:07:00Z")
}

func TestRetrieveTemporalEvolutionOfAnEntityWithSingleValue(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, expects.AnyInput()),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte(temporalEntityResponseWithSingleValue)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())
	result, err := c.RetrieveTemporalEvolutionOfEntity(context.Background(), "urn:ngsi-ld:Vehicle:B9211", nil)
	is.NoErr(err)

	speed, err := result.Entity.Instances("speed")
	is.NoErr(err)
	is.Equal(len(speed), 1)
	is.Equal(string(speed[0].Value), "120")
}

func TestRetrieveTemporalValuesWithPartialContent(t *testing.T) {
	is := is.New(t)

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		is.Equal(r.URL.Query().Get("options"), "temporalValues")
		is.Equal(r.URL.Query().Get("lastN"), "2")

		w.Header().Set("Content-Type", "application/ld+json")
		w.Header().Set("Content-Range", "date-time 2018-08-01T12:05:00Z-2018-08-01T12:07:00Z/2")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte(temporalValuesResponse))
	}))
	defer s.Close()

	c := NewContextBrokerClient(s.URL)
	result, err := c.RetrieveTemporalEvolutionOfEntity(context.Background(), "urn:ngsi-ld:Vehicle:B9211", nil, LastN(2), TemporalValues())
	is.NoErr(err)

	is.True(result.IsPartial())
	is.Equal(result.Range.Size, 2)
	is.Equal(result.Range.Start.Format(time.RFC3339), "2018-08-01T12:05:00Z")

	values, err := result.Entity.TemporalValues("speed")
	is.NoErr(err)
	is.Equal(len(values), 2)
	is.Equal(string(values[1].Value), "100")
	is.Equal(values[1].At.Format(time.RFC3339), "2018-08-01T12:07:00Z")
}

func TestPartialContentWithoutContentRangeFails(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, expects.AnyInput()),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusPartialContent),
			response.Body([]byte(temporalValuesResponse)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())
	_, err := c.RetrieveTemporalEvolutionOfEntity(context.Background(), "urn:ngsi-ld:Vehicle:B9211", nil)

	is.True(errors.Is(err, ngsierrors.ErrBadResponse))
}

func TestRetrieveAggregatedTemporalEvolutionOfAnEntity(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			path("/ngsi-ld/v1/temporal/entities/id"),
			QueryParamContains("aggrMethods", "max"),
			QueryParamEquals("aggrPeriodDuration", "P1D"),
			QueryParamEquals("options", "aggregatedValues"),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte(temporalEntityResponse)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())
	_, err := c.RetrieveTemporalEvolutionOfEntity(context.Background(), "id", nil,
		Aggregation(
			[]AggregationMethod{AggregatedMax, AggregatedMin},
			ByDay(),
		))

	is.NoErr(err)
}

func TestRetrieveTemporalEvolutionOfAnUnknownEntity(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(is, expects.AnyInput()),
		Returns(
			response.ContentType("application/problem+json"),
			response.Code(http.StatusNotFound),
			response.Body([]byte(`{"type":"https://uri.etsi.org/ngsi-ld/errors/ResourceNotFound","title":"Not Found","detail":"Entity id does not exist"}`)),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL())
	_, err := c.RetrieveTemporalEvolutionOfEntity(context.Background(), "id", nil)

	is.True(errors.Is(err, ngsierrors.ErrNotFound))
	is.Equal(err.Error(), "Entity id does not exist")
}

func TestQueryTemporalEvolutionOfEntities(t *testing.T) {
	is := is.New(t)

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodGet),
			path("/ngsi-ld/v1/temporal/entities"),
			QueryParamEquals("type", "Vehicle"),
			QueryParamEquals("attrs", "speed"),
			QueryParamEquals("limit", "10"),
			QueryParamEquals("count", "true"),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte("["+temporalEntityResponse+"]")),
		),
	)
	defer s.Close()

	c := NewContextBrokerClient(s.URL(), Tenant("default"))
	result, err := c.QueryTemporalEvolutionOfEntities(context.Background(), nil,
		Types([]string{"Vehicle"}), Attributes([]string{"speed"}), Limit(10), Count(),
	)
	is.NoErr(err)

	found := 0
	for e := range result.Found {
		if e == nil {
			break
		}
		found++
	}

	is.Equal(found, 1)
}

func TestQueryTemporalEvolutionOfEntitiesViaPost(t *testing.T) {
	is := is.New(t)

	lastN := 3

	s := testutils.NewMockServiceThat(
		Expects(
			is,
			method(http.MethodPost),
			path("/ngsi-ld/v1/temporal/entityOperations/query"),
			QueryParamEquals("limit", "5"),
			expects.RequestBody(`{"type":"Query","entities":[{"type":"Vehicle"}],"attrs":["speed"],"temporalQ":{"timerel":"before","timeAt":"2018-08-01T12:05:00Z","lastN":3}}`),
		),
		Returns(
			response.ContentType("application/ld+json"),
			response.Code(http.StatusOK),
			response.Body([]byte("[]")),
		),
	)
	defer s.Close()

	query := Query{
		Entities:  []EntityInfo{{Type: "Vehicle"}},
		Attrs:     []string{"speed"},
		TemporalQ: &TemporalQuery{Timerel: "before", TimeAt: "2018-08-01T12:05:00Z", LastN: &lastN},
	}

	c := NewContextBrokerClient(s.URL())
	result, err := c.QueryTemporalEvolutionOfEntitiesViaPost(context.Background(), query, nil, Limit(5))
	is.NoErr(err)
	is.Equal(<-result.Found, nil)
}

func TestIDsDoesNotModifyTheInput(t *testing.T) {
	is := is.New(t)

	ids := []string{"urn:ngsi-ld:Vehicle:B9211", "a b"}
	params := IDs(ids)([]string{})

	is.Equal(params, []string{"id=urn%3Angsi-ld%3AVehicle%3AB9211,a+b"})
	is.Equal(ids[1], "a b")
}

const temporalEntityResponse string = `{
	"id":"urn:ngsi-ld:Vehicle:B9211", "type":"Vehicle",
"speed":[
{
"type":"Property",
"value":120, "observedAt":"2018-08-01T12:03:00Z"
}, {
"type":"Property",
"value":80, "observedAt":"2018-08-01T12:05:00Z"
}, {
"type":"Property",
"value":100, "observedAt":"2018-08-01T12:07:00Z"
} ],
"@context":[
"http://example.org/ngsi-ld/latest/vehicle.jsonld", "https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context-v1.8.jsonld"
] }`

const temporalEntityResponseWithSingleValue string = `{
	"id":"urn:ngsi-ld:Vehicle:B9211", "type":"Vehicle",
	"speed":{
		"type":"Property",
		"value":120, "observedAt":"2018-08-01T12:03:00Z"
	},
	"@context":[
		"http://example.org/ngsi-ld/latest/vehicle.jsonld",
		"https://uri.etsi.org/ngsi-ld/v1/ngsi-ld-core-context-v1.8.jsonld"
	]
}`

const temporalValuesResponse string = `{
	"id":"urn:ngsi-ld:Vehicle:B9211", "type":"Vehicle",
	"speed":{"type":"Property","values":[[80,"2018-08-01T12:05:00Z"],[100,"2018-08-01T12:07:00Z"]]}
}`

func QueryParamContains(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.True(r.URL.Query().Has(name)) // query param should exist

		for _, v := range strings.Split(r.URL.Query().Get(name), ",") {
			if v == value {
				return // it is a match!
			}
		}

		is.Fail() // query params did not contain expected value
	}
}

func QueryParamEquals(name, value string) func(*is.I, *http.Request) {
	return func(is *is.I, r *http.Request) {
		is.True(r.URL.Query().Has(name))         // query param should exist
		is.Equal(r.URL.Query().Get(name), value) // query param should match
	}
}
