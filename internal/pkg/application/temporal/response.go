package temporal

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	HeaderContentRange string = "Content-Range"
	HeaderLink         string = "Link"
	HeaderResultsCount string = "NGSILD-Results-Count"
)

type Response struct {
	StatusCode int
	Header     http.Header
	Entities   []CompactedEntity
}

// Listing describes the page of entities a response belongs to
type Listing struct {
	Resource   string
	Params     url.Values
	Page       Page
	TotalCount int64
}

// AssembleResponse frames a list of entities. A partial response is signalled
// with 206 and a Content-Range header, while the Link and count headers only
// depend on the entity paging.
func AssembleResponse(entities []CompactedEntity, p Pagination, q Query, l Listing) Response {
	resp := newResponse(entities, p, q)

	if l.Page.Count {
		resp.Header.Set(HeaderResultsCount, strconv.FormatInt(l.TotalCount, 10))
	}

	for _, link := range pageLinks(l) {
		resp.Header.Add(HeaderLink, link)
	}

	return resp
}

func AssembleEntityResponse(entity CompactedEntity, p Pagination, q Query) Response {
	return newResponse([]CompactedEntity{entity}, p, q)
}

func newResponse(entities []CompactedEntity, p Pagination, q Query) Response {
	resp := Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{},
		Entities:   entities,
	}

	if p.Range != nil {
		resp.StatusCode = http.StatusPartialContent
		resp.Header.Set(HeaderContentRange, p.Range.ContentRange(q.LastN))
	}

	return resp
}

func pageLinks(l Listing) []string {
	links := []string{}

	if l.Page.Limit <= 0 {
		return links
	}

	if l.Page.Offset > 0 {
		links = append(links, pageLink(l, max(l.Page.Offset-l.Page.Limit, 0), "prev"))
	}

	if int64(l.Page.Offset+l.Page.Limit) < l.TotalCount {
		links = append(links, pageLink(l, l.Page.Offset+l.Page.Limit, "next"))
	}

	return links
}

func pageLink(l Listing, offset int, rel string) string {
	params := url.Values{}
	for k, v := range l.Params {
		if k != "limit" && k != "offset" {
			params[k] = v
		}
	}

	params.Set("limit", strconv.Itoa(l.Page.Limit))
	params.Set("offset", strconv.Itoa(offset))

	return fmt.Sprintf("<%s?%s>;rel=\"%s\";type=\"application/ld+json\"", l.Resource, params.Encode(), rel)
}
