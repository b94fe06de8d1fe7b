package temporal

import (
	"errors"
	"net/url"
	"testing"

	ngsierrors "github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/matryer/is"
)

func TestQueryParamsFromBody(t *testing.T) {
	is := is.New(t)

	body := []byte(`{
		"type": "Query",
		"entities": [
			{"id": "urn:ngsi-ld:Vehicle:B9211", "type": "Vehicle"},
			{"idPattern": "urn:ngsi-ld:Bus:.*", "type": "Bus"}
		],
		"attrs": ["speed", "heading"],
		"temporalQ": {
			"timerel": "between",
			"timeAt": "2018-08-01T12:00:00Z",
			"endTimeAt": "2018-08-01T13:00:00Z",
			"lastN": 5
		}
	}`)

	params, err := QueryParamsFromBody(body, url.Values{"limit": {"10"}, "options": {"temporalValues"}})
	is.NoErr(err)

	is.Equal(params.Get("id"), "urn:ngsi-ld:Vehicle:B9211")
	is.Equal(params.Get("idPattern"), "urn:ngsi-ld:Bus:.*")
	is.Equal(params.Get("type"), "Vehicle,Bus")
	is.Equal(params.Get("attrs"), "speed,heading")
	is.Equal(params.Get("timerel"), "between")
	is.Equal(params.Get("endTimeAt"), "2018-08-01T13:00:00Z")
	is.Equal(params.Get("lastN"), "5")
	is.Equal(params.Get("limit"), "10")
	is.Equal(params.Get("options"), "temporalValues")

	req, err := ParseQueryRequest(params, DefaultLimits())
	is.NoErr(err)
	is.Equal(req.Query.InstanceLimit, 5)
	is.Equal(req.Options.Representation, TemporalValues)
}

func TestQueryParamsFromBodyFailures(t *testing.T) {
	is := is.New(t)

	_, err := QueryParamsFromBody([]byte(`not json`), url.Values{})
	is.True(errors.Is(err, ngsierrors.ErrInvalidRequest))

	_, err = QueryParamsFromBody([]byte(`{"type":"Subscription"}`), url.Values{})
	is.True(errors.Is(err, ngsierrors.ErrBadRequest))
}
