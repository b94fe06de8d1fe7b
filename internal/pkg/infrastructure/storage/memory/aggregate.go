package memory

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// aggregate splits the points into consecutive buckets of one period each,
// starting at the beginning of the requested time window. Empty buckets are
// left out.
func aggregate(points []point, at temporal.AttributeType, q temporal.Query, period temporal.Period) []temporal.AggregatedInstance {
	if len(points) == 0 {
		return nil
	}

	origin := points[0].t
	if q.TimeAt != nil && (q.Timerel == temporal.TimerelAfter || q.Timerel == temporal.TimerelBetween) {
		origin = *q.TimeAt
	}

	if period.IsZero() {
		end := points[len(points)-1].t
		switch q.Timerel {
		case temporal.TimerelBefore:
			end = *q.TimeAt
		case temporal.TimerelBetween:
			end = *q.EndTimeAt
		}
		return []temporal.AggregatedInstance{bucketOf(points, at, q.Aggregate, origin, end)}
	}

	buckets := []temporal.AggregatedInstance{}

	start := origin
	for len(points) > 0 {
		end := period.AddTo(start)

		// skip ahead over empty buckets when the period has a fixed length
		if step := end.Sub(start); !period.HasCalendarUnits() && points[0].t.Sub(start) >= step {
			start = start.Add(points[0].t.Sub(start) / step * step)
			end = period.AddTo(start)
		}

		n := 0
		for n < len(points) && points[n].t.Before(end) {
			n++
		}

		if n > 0 {
			buckets = append(buckets, bucketOf(points[:n], at, q.Aggregate, start, end))
			points = points[n:]
		}

		start = end
	}

	return buckets
}

func bucketOf(points []point, at temporal.AttributeType, methods []temporal.AggregationMethod, start, end time.Time) temporal.AggregatedInstance {
	numbers := []float64{}
	distinct := map[string]bool{}

	for _, p := range points {
		v, ok := valueOf(p.instance.Payload, at)
		if !ok {
			continue
		}

		compacted := &bytes.Buffer{}
		if err := json.Compact(compacted, v); err == nil {
			distinct[compacted.String()] = true
		}

		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			numbers = append(numbers, f)
		}
	}

	bucket := temporal.AggregatedInstance{Values: make([]temporal.AggregateValue, 0, len(methods))}

	for _, m := range methods {
		value := json.RawMessage("null")

		switch m {
		case temporal.AggregatedTotalCount:
			value = json.RawMessage(strconv.Itoa(len(points)))
		case temporal.AggregatedDistinctCount:
			value = json.RawMessage(strconv.Itoa(len(distinct)))
		case temporal.AggregatedSum:
			value = statistic(numbers, 1, floats.Sum)
		case temporal.AggregatedAverage:
			value = statistic(numbers, 1, func(x []float64) float64 { return stat.Mean(x, nil) })
		case temporal.AggregatedMin:
			value = statistic(numbers, 1, floats.Min)
		case temporal.AggregatedMax:
			value = statistic(numbers, 1, floats.Max)
		case temporal.AggregatedStdDev:
			value = statistic(numbers, 2, func(x []float64) float64 { return stat.StdDev(x, nil) })
		case temporal.AggregatedSumOfSquares:
			value = statistic(numbers, 1, func(x []float64) float64 { return floats.Dot(x, x) })
		}

		bucket.Values = append(bucket.Values, temporal.AggregateValue{
			Method:     m,
			Value:      value,
			RangeStart: start,
			RangeEnd:   end,
		})
	}

	return bucket
}

// statistic applies fn to the numbers, or yields null when there are fewer
// numbers than the statistic needs
func statistic(numbers []float64, atLeast int, fn func([]float64) float64) json.RawMessage {
	if len(numbers) < atLeast {
		return json.RawMessage("null")
	}
	return json.RawMessage(strconv.FormatFloat(fn(numbers), 'f', -1, 64))
}
