package temporal

import (
	"errors"
	"net/url"
	"testing"
	"time"

	ngsierrors "github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/matryer/is"
)

func TestInstanceLimitResolution(t *testing.T) {
	is := is.New(t)

	limits := Limits{InstanceLimitDefault: 100, InstanceLimitMax: 100}
	is.Equal(limits.InstanceLimit(0), 100)
	is.Equal(limits.InstanceLimit(5), 5)
	is.Equal(limits.InstanceLimit(-2), 100)

	limits = Limits{InstanceLimitDefault: 20, InstanceLimitMax: 5}
	is.Equal(limits.InstanceLimit(7), 5)
	is.Equal(limits.InstanceLimit(0), 5)

	limits = Limits{InstanceLimitMax: 50}
	is.Equal(limits.InstanceLimit(0), 50) // default falls back to the max when unset
}

func TestParseQueryRequest(t *testing.T) {
	is := is.New(t)

	req, err := ParseQueryRequest(
		params(is, "type=Vehicle,Bus&attrs=speed&timerel=between&timeAt=2018-08-01T12:00:00Z&endTimeAt=2018-08-01T13:00:00Z&lastN=3&options=audit,sysAttrs&limit=10&offset=5&count=true"),
		DefaultLimits(),
	)
	is.NoErr(err)

	is.Equal(req.Entities.Types, []string{"Vehicle", "Bus"})
	is.Equal(req.Query.Attrs, []string{"speed"})
	is.Equal(req.Query.Timerel, TimerelBetween)
	is.Equal(*req.Query.TimeAt, time.Date(2018, 8, 1, 12, 0, 0, 0, time.UTC))
	is.Equal(*req.Query.EndTimeAt, time.Date(2018, 8, 1, 13, 0, 0, 0, time.UTC))
	is.Equal(req.Query.LastN, 3)
	is.Equal(req.Query.InstanceLimit, 3)
	is.Equal(req.Query.TimeProperty, ObservedAt)
	is.Equal(req.Options.Representation, Normalized)
	is.True(req.Options.WithAudit)
	is.True(req.Options.WithSysAttrs)
	is.Equal(req.Page, Page{Limit: 10, Offset: 5, Count: true})
}

func TestParseQueryRequestAcceptsParameterAliases(t *testing.T) {
	is := is.New(t)

	req, err := ParseQueryRequest(params(is, "id=urn:ngsi-ld:Vehicle:B9211&timerel=between&time=2018-08-01T12:00:00Z&endTime=2018-08-01T13:00:00Z"), DefaultLimits())
	is.NoErr(err)
	is.True(req.Query.TimeAt != nil)
	is.True(req.Query.EndTimeAt != nil)
}

func TestParseQueryRequestDefaults(t *testing.T) {
	is := is.New(t)

	req, err := ParseQueryRequest(params(is, "type=Vehicle"), DefaultLimits())
	is.NoErr(err)

	is.Equal(req.Query.Timerel, TimerelNone)
	is.True(req.Query.TimeAt == nil)
	is.Equal(req.Query.LastN, 0)
	is.Equal(req.Query.InstanceLimit, 100)
	is.Equal(req.Query.TimeProperty, ObservedAt)
	is.Equal(req.Page.Limit, 30)
	is.Equal(req.Page.Offset, 0)
}

func TestNonPositiveOrMalformedLastNIsIgnored(t *testing.T) {
	is := is.New(t)

	for _, lastN := range []string{"-2", "0", "abc"} {
		req, err := ParseQueryRequest(params(is, "type=Vehicle&lastN="+lastN), DefaultLimits())
		is.NoErr(err)
		is.Equal(req.Query.LastN, 0)
		is.Equal(req.Query.InstanceLimit, 100)
	}
}

func TestLastNAboveConfiguredMaxIsCapped(t *testing.T) {
	is := is.New(t)

	limits := DefaultLimits()
	limits.InstanceLimitMax = 5

	req, err := ParseQueryRequest(params(is, "type=Vehicle&lastN=7"), limits)
	is.NoErr(err)
	is.Equal(req.Query.LastN, 7)
	is.Equal(req.Query.InstanceLimit, 5)
}

func TestRepresentationSelection(t *testing.T) {
	is := is.New(t)

	req, err := ParseQueryRequest(params(is, "type=Vehicle&options=temporalValues"), DefaultLimits())
	is.NoErr(err)
	is.Equal(req.Options.Representation, TemporalValues)

	req, err = ParseQueryRequest(params(is, "type=Vehicle&options=aggregatedValues&aggrMethods=sum,avg,sum&aggrPeriodDuration=PT1H"), DefaultLimits())
	is.NoErr(err)
	is.Equal(req.Options.Representation, AggregatedValues)
	is.Equal(req.Query.Aggregate, []AggregationMethod{AggregatedSum, AggregatedAverage})
	is.Equal(req.Query.BucketDuration, "PT1H")

	req, err = ParseQueryRequest(params(is, "type=Vehicle&aggrMethods=max&aggrPeriodDuration=P1D"), DefaultLimits())
	is.NoErr(err)
	is.Equal(req.Options.Representation, AggregatedValues)
}

func TestQueryValidationFailures(t *testing.T) {
	is := is.New(t)

	cases := []struct {
		query  string
		detail string
	}{
		{"type=T&timerel=after", "'timerel' and 'time' must be used in conjunction"},
		{"type=T&timeAt=2018-08-01T12:00:00Z", "'timerel' and 'time' must be used in conjunction"},
		{"type=T&timerel=between&timeAt=2018-08-01T12:00:00Z", "'endTime' request parameter is mandatory if 'timerel' is 'between'"},
		{"type=T&timerel=during&timeAt=2018-08-01T12:00:00Z", "'during' is not a valid value for 'timerel', it should be one of 'before', 'after', or 'between'"},
		{"type=T&timerel=after&timeAt=yesterday", "'timeAt' parameter is not a valid date-time: yesterday"},
		{"type=T&timerel=between&timeAt=2018-08-01T12:00:00Z&endTime=later", "'endTime' parameter is not a valid date-time: later"},
		{"type=T&aggrMethods=sum", "'aggrPeriodDuration' and 'aggrMethods' must be used in conjunction"},
		{"type=T&aggrPeriodDuration=PT1H", "'aggrPeriodDuration' and 'aggrMethods' must be used in conjunction"},
		{"type=T&aggrMethods=sum,median&aggrPeriodDuration=PT1H", "'median' is not a recognized aggregation method for 'aggrMethods' parameter"},
		{"type=T&aggrMethods=sum&aggrPeriodDuration=hourly", "'aggrPeriodDuration' is not a valid ISO 8601 duration: hourly"},
		{"type=T&options=temporalValues,aggregatedValues&aggrMethods=sum&aggrPeriodDuration=PT1H", "only one temporal representation can be present"},
		{"type=T&options=temporalValues&aggrMethods=sum&aggrPeriodDuration=PT1H", "only one temporal representation can be present"},
		{"type=T&options=aggregatedValues", "'aggrMethods' is mandatory if 'aggregatedValues' option is specified"},
		{"type=T&timeproperty=deletedAt", "'deletedAt' is not a valid temporal property, it should be one of 'observedAt', 'createdAt', or 'modifiedAt'"},
		{"type=T&limit=-1", "'limit' must be a positive integer"},
		{"type=T&offset=x", "'offset' must be a positive integer"},
		{"type=T&limit=0", "'limit' may only be zero when 'count' is requested"},
		{"timerel=after&timeAt=2018-08-01T12:00:00Z", "at least one among type, id, idPattern, or attrs must be present in a request for temporal entities"},
	}

	for _, c := range cases {
		_, err := ParseQueryRequest(params(is, c.query), DefaultLimits())
		is.True(err != nil)                             // expected a validation failure
		is.True(errors.Is(err, ngsierrors.ErrBadRequest)) // validation failures are bad request data
		is.Equal(err.Error(), c.detail)
	}
}

func TestTooManyResults(t *testing.T) {
	is := is.New(t)

	_, err := ParseQueryRequest(params(is, "type=T&limit=101"), DefaultLimits())
	is.True(errors.Is(err, ngsierrors.ErrTooManyResults))
	is.Equal(err.Error(), "You asked for 101 results, but the supported maximum limit is 100")
}

func TestParseRetrieveRequest(t *testing.T) {
	is := is.New(t)

	req, err := ParseRetrieveRequest("urn:ngsi-ld:Vehicle:B9211", params(is, "timerel=before&timeAt=2018-08-01T12:00:00Z&timeproperty=modifiedAt"), DefaultLimits())
	is.NoErr(err)
	is.Equal(req.Entities.IDs, []string{"urn:ngsi-ld:Vehicle:B9211"})
	is.Equal(req.Query.TimeProperty, ModifiedAt)
	is.Equal(req.Page.Limit, 1)
}

func params(is *is.I, query string) url.Values {
	p, err := url.ParseQuery(query)
	is.NoErr(err)
	return p
}
