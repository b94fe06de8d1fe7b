package temporal

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/sosodev/duration"
)

type Timerel string

const (
	TimerelNone    Timerel = ""
	TimerelBefore  Timerel = "before"
	TimerelAfter   Timerel = "after"
	TimerelBetween Timerel = "between"
)

type TimeProperty string

const (
	ObservedAt TimeProperty = "observedAt"
	CreatedAt  TimeProperty = "createdAt"
	ModifiedAt TimeProperty = "modifiedAt"
)

type AggregationMethod string

const (
	AggregatedTotalCount    AggregationMethod = "totalCount"
	AggregatedDistinctCount AggregationMethod = "distinctCount"
	AggregatedSum           AggregationMethod = "sum"
	AggregatedAverage       AggregationMethod = "avg"
	AggregatedMin           AggregationMethod = "min"
	AggregatedMax           AggregationMethod = "max"
	AggregatedStdDev        AggregationMethod = "stddev"
	AggregatedSumOfSquares  AggregationMethod = "sumsq"
)

var supportedAggregationMethods = []AggregationMethod{
	AggregatedTotalCount, AggregatedDistinctCount, AggregatedSum, AggregatedAverage,
	AggregatedMin, AggregatedMax, AggregatedStdDev, AggregatedSumOfSquares,
}

type Representation int

const (
	Normalized Representation = iota
	TemporalValues
	AggregatedValues
)

func (r Representation) String() string {
	switch r {
	case TemporalValues:
		return "temporalValues"
	case AggregatedValues:
		return "aggregatedValues"
	default:
		return "normalized"
	}
}

// Query is the validated temporal part of a request. It is created once per
// request and never modified afterwards.
type Query struct {
	Timerel   Timerel
	TimeAt    *time.Time
	EndTimeAt *time.Time

	// LastN is zero when the client did not ask for the most recent instances
	LastN int
	// InstanceLimit is the effective cap on instances per attribute and is always set
	InstanceLimit int

	TimeProperty   TimeProperty
	Aggregate      []AggregationMethod
	BucketDuration string

	Attrs []string
}

func (q Query) HasLastN() bool {
	return q.LastN > 0
}

func (q Query) IsAggregated() bool {
	return len(q.Aggregate) > 0
}

type Options struct {
	Representation Representation
	WithAudit      bool
	WithSysAttrs   bool
}

type Page struct {
	Limit  int
	Offset int
	Count  bool
}

type EntitySelector struct {
	IDs       []string
	IDPattern string
	Types     []string
}

func (s EntitySelector) IsEmpty() bool {
	return len(s.IDs) == 0 && s.IDPattern == "" && len(s.Types) == 0
}

type Request struct {
	Entities EntitySelector
	Query    Query
	Options  Options
	Page     Page
}

// Limits holds the process wide pagination configuration
type Limits struct {
	InstanceLimitDefault int `yaml:"instanceLimitDefault"`
	InstanceLimitMax     int `yaml:"instanceLimitMax"`
	EntityLimitDefault   int `yaml:"entityLimitDefault"`
	EntityLimitMax       int `yaml:"entityLimitMax"`
}

func DefaultLimits() Limits {
	return Limits{
		InstanceLimitDefault: 100,
		InstanceLimitMax:     100,
		EntityLimitDefault:   30,
		EntityLimitMax:       100,
	}
}

// InstanceLimit resolves the effective number of instances that may be
// returned per attribute. Non positive values of lastN are ignored.
func (l Limits) InstanceLimit(lastN int) int {
	limit := l.InstanceLimitDefault
	if limit <= 0 || limit > l.InstanceLimitMax {
		limit = l.InstanceLimitMax
	}

	if lastN > 0 {
		limit = lastN
	}

	return min(limit, l.InstanceLimitMax)
}

// ParseQueryRequest validates the parameters of a query for the temporal
// evolution of several entities
func ParseQueryRequest(params url.Values, limits Limits) (*Request, error) {
	req, err := parseRequest(params, limits)
	if err != nil {
		return nil, err
	}

	if req.Entities.IsEmpty() && len(req.Query.Attrs) == 0 {
		return nil, errors.NewBadRequestDataError(
			"at least one among type, id, idPattern, or attrs must be present in a request for temporal entities",
		)
	}

	return req, nil
}

// ParseRetrieveRequest validates the parameters of a request for the temporal
// evolution of a single entity
func ParseRetrieveRequest(entityID string, params url.Values, limits Limits) (*Request, error) {
	if entityID == "" {
		return nil, errors.NewBadRequestDataError("missing entity id")
	}

	req, err := parseRequest(params, limits)
	if err != nil {
		return nil, err
	}

	req.Entities = EntitySelector{IDs: []string{entityID}}
	req.Page = Page{Limit: 1}

	return req, nil
}

func parseRequest(params url.Values, limits Limits) (*Request, error) {
	q, err := parseQuery(params, limits)
	if err != nil {
		return nil, err
	}

	opts, err := parseOptions(params, q)
	if err != nil {
		return nil, err
	}

	page, err := parsePage(params, limits)
	if err != nil {
		return nil, err
	}

	return &Request{
		Entities: EntitySelector{
			IDs:       splitList(params.Get("id")),
			IDPattern: params.Get("idPattern"),
			Types:     splitList(params.Get("type")),
		},
		Query:   *q,
		Options: *opts,
		Page:    *page,
	}, nil
}

func parseQuery(params url.Values, limits Limits) (*Query, error) {
	q := &Query{
		TimeProperty: ObservedAt,
		Attrs:        splitList(params.Get("attrs")),
	}

	timerel := params.Get("timerel")
	timeAtName, timeAt := firstOf(params, "timeAt", "time")
	endTimeAtName, endTimeAt := firstOf(params, "endTimeAt", "endTime")

	if (timerel == "") != (timeAt == "") {
		return nil, errors.NewBadRequestDataError("'timerel' and 'time' must be used in conjunction")
	}

	switch Timerel(timerel) {
	case TimerelNone, TimerelBefore, TimerelAfter, TimerelBetween:
		q.Timerel = Timerel(timerel)
	default:
		return nil, errors.NewBadRequestDataError(
			fmt.Sprintf("'%s' is not a valid value for 'timerel', it should be one of 'before', 'after', or 'between'", timerel),
		)
	}

	if q.Timerel == TimerelBetween && endTimeAt == "" {
		return nil, errors.NewBadRequestDataError("'endTime' request parameter is mandatory if 'timerel' is 'between'")
	}

	if timeAt != "" {
		t, err := parseDateTime(timeAtName, timeAt)
		if err != nil {
			return nil, err
		}
		q.TimeAt = &t
	}

	if endTimeAt != "" {
		t, err := parseDateTime(endTimeAtName, endTimeAt)
		if err != nil {
			return nil, err
		}
		q.EndTimeAt = &t
	}

	// a malformed or non positive lastN is silently ignored
	if lastN, err := strconv.Atoi(params.Get("lastN")); err == nil && lastN > 0 {
		q.LastN = lastN
	}
	q.InstanceLimit = limits.InstanceLimit(q.LastN)

	methods := splitList(params.Get("aggrMethods"))
	bucketDuration := params.Get("aggrPeriodDuration")

	if (len(methods) == 0) != (bucketDuration == "") {
		return nil, errors.NewBadRequestDataError("'aggrPeriodDuration' and 'aggrMethods' must be used in conjunction")
	}

	for _, m := range methods {
		method := AggregationMethod(m)
		if !slices.Contains(supportedAggregationMethods, method) {
			return nil, errors.NewBadRequestDataError(
				fmt.Sprintf("'%s' is not a recognized aggregation method for 'aggrMethods' parameter", m),
			)
		}
		if !slices.Contains(q.Aggregate, method) {
			q.Aggregate = append(q.Aggregate, method)
		}
	}

	if bucketDuration != "" {
		d, err := duration.Parse(bucketDuration)
		if err != nil {
			return nil, errors.NewBadRequestDataError(
				fmt.Sprintf("'aggrPeriodDuration' is not a valid ISO 8601 duration: %s", bucketDuration),
			)
		}
		if d.Negative {
			return nil, errors.NewBadRequestDataError("'aggrPeriodDuration' may not be negative")
		}
		q.BucketDuration = bucketDuration
	}

	if tp := params.Get("timeproperty"); tp != "" {
		switch TimeProperty(tp) {
		case ObservedAt, CreatedAt, ModifiedAt:
			q.TimeProperty = TimeProperty(tp)
		default:
			return nil, errors.NewBadRequestDataError(
				fmt.Sprintf("'%s' is not a valid temporal property, it should be one of 'observedAt', 'createdAt', or 'modifiedAt'", tp),
			)
		}
	}

	return q, nil
}

func parseOptions(params url.Values, q *Query) (*Options, error) {
	opts := &Options{Representation: Normalized}

	options := splitList(strings.Join(params["options"], ","))

	withTemporalValues := slices.Contains(options, "temporalValues")
	withAggregatedValues := slices.Contains(options, "aggregatedValues")

	if withTemporalValues && (withAggregatedValues || q.IsAggregated()) {
		return nil, errors.NewBadRequestDataError("only one temporal representation can be present")
	}

	if withAggregatedValues && !q.IsAggregated() {
		return nil, errors.NewBadRequestDataError("'aggrMethods' is mandatory if 'aggregatedValues' option is specified")
	}

	switch {
	case withTemporalValues:
		opts.Representation = TemporalValues
	case q.IsAggregated():
		opts.Representation = AggregatedValues
	}

	opts.WithAudit = slices.Contains(options, "audit")
	opts.WithSysAttrs = slices.Contains(options, "sysAttrs")

	return opts, nil
}

func parsePage(params url.Values, limits Limits) (*Page, error) {
	page := &Page{
		Limit: limits.EntityLimitDefault,
		Count: params.Get("count") == "true",
	}

	if limit := params.Get("limit"); limit != "" {
		l, err := strconv.Atoi(limit)
		if err != nil || l < 0 {
			return nil, errors.NewBadRequestDataError("'limit' must be a positive integer")
		}
		page.Limit = l
	}

	if offset := params.Get("offset"); offset != "" {
		o, err := strconv.Atoi(offset)
		if err != nil || o < 0 {
			return nil, errors.NewBadRequestDataError("'offset' must be a positive integer")
		}
		page.Offset = o
	}

	if page.Limit == 0 && !page.Count {
		return nil, errors.NewBadRequestDataError("'limit' may only be zero when 'count' is requested")
	}

	if page.Limit > limits.EntityLimitMax {
		return nil, errors.NewTooManyResultsError(
			fmt.Sprintf("You asked for %d results, but the supported maximum limit is %d", page.Limit, limits.EntityLimitMax),
		)
	}

	return page, nil
}

func parseDateTime(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, errors.NewBadRequestDataError(
			fmt.Sprintf("'%s' parameter is not a valid date-time: %s", name, value),
		)
	}
	return t.UTC(), nil
}

func firstOf(params url.Values, names ...string) (string, string) {
	for _, n := range names {
		if v := params.Get(n); v != "" {
			return n, v
		}
	}
	return names[0], ""
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}

	items := []string{}
	for item := range strings.SplitSeq(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
