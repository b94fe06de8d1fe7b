package temporal

import (
	"fmt"
	"time"
)

// Range is a closed time interval. Start may be after End, as is the case for
// windows computed from most recent instances.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) Contains(t time.Time) bool {
	lo, hi := r.Start, r.End
	if hi.Before(lo) {
		lo, hi = hi, lo
	}
	return !t.Before(lo) && !t.After(hi)
}

// ContentRange formats the range as the value of a Content-Range header
func (r Range) ContentRange(lastN int) string {
	size := "*"
	if lastN > 0 {
		size = fmt.Sprintf("%d", lastN)
	}
	return fmt.Sprintf("date-time %s-%s/%s", formatTime(r.Start), formatTime(r.End), size)
}

// Boundary holds the timestamps of the first and of the instanceLimit:th
// instance of a truncated series, counted in scan order. A forward scan starts
// at the oldest instance while a lastN scan starts at the most recent one.
type Boundary struct {
	First time.Time
	Limit time.Time
}

// ReconcileRange computes the single window that every truncated series is
// complete for. It returns false if there are no boundaries to reconcile.
func ReconcileRange(q Query, bounds []Boundary) (Range, bool) {
	if len(bounds) == 0 {
		return Range{}, false
	}

	first, limit := bounds[0].First, bounds[0].Limit

	if q.HasLastN() {
		for _, b := range bounds[1:] {
			if b.First.After(first) {
				first = b.First
			}
			if b.Limit.After(limit) {
				limit = b.Limit
			}
		}

		start := limit
		switch q.Timerel {
		case TimerelBefore:
			start = valueOr(q.TimeAt, limit)
		case TimerelBetween:
			start = valueOr(q.EndTimeAt, limit)
		}

		return Range{Start: start, End: first}, true
	}

	for _, b := range bounds[1:] {
		if b.First.Before(first) {
			first = b.First
		}
		if b.Limit.Before(limit) {
			limit = b.Limit
		}
	}

	start := first
	switch q.Timerel {
	case TimerelAfter, TimerelBetween:
		start = valueOr(q.TimeAt, first)
	}

	return Range{Start: start, End: limit}, true
}

// TruncatedSeries returns the boundaries of every series whose instance count
// reached the instance limit of the query
func TruncatedSeries(entities []CompactedEntity, q Query) []Boundary {
	bounds := []Boundary{}

	if q.InstanceLimit <= 0 {
		return bounds
	}

	for _, e := range entities {
		for _, s := range e.Series {
			if s.Len() < q.InstanceLimit {
				continue
			}
			bounds = append(bounds, boundaryOf(s, q))
		}
	}

	return bounds
}

// DetectRange returns the window the response has to be restricted to, or nil
// if no series was truncated
func DetectRange(entities []CompactedEntity, q Query) *Range {
	r, ok := ReconcileRange(q, TruncatedSeries(entities, q))
	if !ok {
		return nil
	}
	return &r
}

// FilterEntity keeps the instances of every series that fall within r.
// Series left without instances are kept, and rendered as empty lists.
func FilterEntity(e CompactedEntity, r Range) CompactedEntity {
	filtered := e
	filtered.Series = make([]Series, 0, len(e.Series))

	for _, s := range e.Series {
		instances := make([]InstanceResult, 0, s.Len())
		for _, ir := range s.Instances {
			if r.Contains(InstanceTime(ir)) {
				instances = append(instances, ir)
			}
		}

		s.Instances = instances
		s.windowed = true
		filtered.Series = append(filtered.Series, s)
	}

	return filtered
}

type Pagination struct {
	Range     *Range
	Truncated int
}

// Paginate detects truncated series and, when there are any, restricts all
// entities to the reconciled window
func Paginate(entities []CompactedEntity, q Query) ([]CompactedEntity, Pagination) {
	bounds := TruncatedSeries(entities, q)

	r, ok := ReconcileRange(q, bounds)
	if !ok {
		return entities, Pagination{}
	}

	result := make([]CompactedEntity, 0, len(entities))
	for _, e := range entities {
		result = append(result, FilterEntity(e, r))
	}

	return result, Pagination{Range: &r, Truncated: len(bounds)}
}

func boundaryOf(s Series, q Query) Boundary {
	n := s.Len()

	if q.HasLastN() {
		return Boundary{
			First: InstanceTime(s.Instances[n-1]),
			Limit: InstanceTime(s.Instances[n-q.InstanceLimit]),
		}
	}

	return Boundary{
		First: InstanceTime(s.Instances[0]),
		Limit: InstanceTime(s.Instances[q.InstanceLimit-1]),
	}
}

func valueOr(t *time.Time, def time.Time) time.Time {
	if t == nil {
		return def
	}
	return *t
}
