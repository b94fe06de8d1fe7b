package temporal

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/matryer/is"
)

func TestAssembleResponseAddsPagingLinks(t *testing.T) {
	is := is.New(t)

	l := Listing{
		Resource:   "/ngsi-ld/v1/temporal/entities",
		Params:     url.Values{"type": {"Vehicle"}, "limit": {"10"}, "offset": {"10"}},
		Page:       Page{Limit: 10, Offset: 10, Count: true},
		TotalCount: 35,
	}

	resp := AssembleResponse(nil, Pagination{}, Query{}, l)

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get(HeaderResultsCount), "35")
	is.Equal(resp.Header.Values(HeaderLink), []string{
		`</ngsi-ld/v1/temporal/entities?limit=10&offset=0&type=Vehicle>;rel="prev";type="application/ld+json"`,
		`</ngsi-ld/v1/temporal/entities?limit=10&offset=20&type=Vehicle>;rel="next";type="application/ld+json"`,
	})
}

func TestAssembleResponseWithoutFurtherPages(t *testing.T) {
	is := is.New(t)

	l := Listing{
		Resource:   "/ngsi-ld/v1/temporal/entities",
		Params:     url.Values{"type": {"Vehicle"}},
		Page:       Page{Limit: 30},
		TotalCount: 2,
	}

	resp := AssembleResponse(nil, Pagination{}, Query{}, l)
	is.Equal(len(resp.Header.Values(HeaderLink)), 0)
	is.Equal(resp.Header.Get(HeaderResultsCount), "")
}

func TestAssemblePartialResponseKeepsPagingHeaders(t *testing.T) {
	is := is.New(t)

	r := Range{Start: tm(0), End: tm(5)}
	l := Listing{
		Resource:   "/ngsi-ld/v1/temporal/entities",
		Params:     url.Values{"type": {"Vehicle"}},
		Page:       Page{Limit: 1, Count: true},
		TotalCount: 2,
	}

	resp := AssembleResponse(nil, Pagination{Range: &r, Truncated: 1}, Query{}, l)

	is.Equal(resp.StatusCode, http.StatusPartialContent)
	is.Equal(resp.Header.Get(HeaderContentRange), "date-time 2020-01-01T00:00:00Z-2020-01-01T00:05:00Z/*")
	is.Equal(resp.Header.Get(HeaderResultsCount), "2")
	is.Equal(len(resp.Header.Values(HeaderLink)), 1)
}
