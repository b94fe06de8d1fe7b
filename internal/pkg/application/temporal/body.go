package temporal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
)

type entitySelectorBody struct {
	ID        string `json:"id"`
	IDPattern string `json:"idPattern"`
	Type      string `json:"type"`
}

type temporalQBody struct {
	Timerel      string `json:"timerel"`
	TimeAt       string `json:"timeAt"`
	EndTimeAt    string `json:"endTimeAt"`
	LastN        *int   `json:"lastN"`
	TimeProperty string `json:"timeproperty"`
}

type queryBody struct {
	Type               string               `json:"type"`
	Entities           []entitySelectorBody `json:"entities"`
	Attrs              []string             `json:"attrs"`
	TemporalQ          *temporalQBody       `json:"temporalQ"`
	AggrMethods        []string             `json:"aggrMethods"`
	AggrPeriodDuration string               `json:"aggrPeriodDuration"`
}

// QueryParamsFromBody converts the body of a temporal query operation into the
// equivalent query parameters. Parameters given in the request url, such as
// limit, offset, count and options, are kept.
func QueryParamsFromBody(body []byte, params url.Values) (url.Values, error) {
	qb := queryBody{}
	if err := json.Unmarshal(body, &qb); err != nil {
		return nil, errors.NewInvalidRequestError(fmt.Sprintf("failed to parse query body: %s", err.Error()))
	}

	if qb.Type != "" && qb.Type != "Query" {
		return nil, errors.NewBadRequestDataError(fmt.Sprintf("the type of the query body must be 'Query', not '%s'", qb.Type))
	}

	result := url.Values{}
	for k, v := range params {
		result[k] = slices.Clone(v)
	}

	ids, types := []string{}, []string{}
	for _, e := range qb.Entities {
		if e.ID != "" && !slices.Contains(ids, e.ID) {
			ids = append(ids, e.ID)
		}
		if e.Type != "" && !slices.Contains(types, e.Type) {
			types = append(types, e.Type)
		}
		if e.IDPattern != "" && result.Get("idPattern") == "" {
			result.Set("idPattern", e.IDPattern)
		}
	}

	setList(result, "id", ids)
	setList(result, "type", types)
	setList(result, "attrs", qb.Attrs)
	setList(result, "aggrMethods", qb.AggrMethods)
	setValue(result, "aggrPeriodDuration", qb.AggrPeriodDuration)

	if tq := qb.TemporalQ; tq != nil {
		setValue(result, "timerel", tq.Timerel)
		setValue(result, "timeAt", tq.TimeAt)
		setValue(result, "endTimeAt", tq.EndTimeAt)
		setValue(result, "timeproperty", tq.TimeProperty)
		if tq.LastN != nil {
			result.Set("lastN", strconv.Itoa(*tq.LastN))
		}
	}

	return result, nil
}

func setList(params url.Values, key string, values []string) {
	if len(values) > 0 {
		params.Set(key, strings.Join(values, ","))
	}
}

func setValue(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}
