package temporal

import (
	"context"
	"encoding/json"
	"time"
)

type AttributeType string

const (
	Property         AttributeType = "Property"
	Relationship     AttributeType = "Relationship"
	GeoProperty      AttributeType = "GeoProperty"
	JsonProperty     AttributeType = "JsonProperty"
	LanguageProperty AttributeType = "LanguageProperty"
	VocabProperty    AttributeType = "VocabProperty"
	ListProperty     AttributeType = "ListProperty"
	ListRelationship AttributeType = "ListRelationship"
)

// Attribute identifies one attribute of one entity. An empty DatasetID denotes
// the default instance.
type Attribute struct {
	EntityID  string
	Name      string
	Type      AttributeType
	ValueType string
	DatasetID string
}

// InstanceResult is one retrieved element of an attribute history. The set of
// implementations is closed, see FullInstance, SimplifiedInstance and
// AggregatedInstance.
type InstanceResult interface {
	instanceResult()
}

// FullInstance carries the complete serialized attribute instance as stored,
// e.g. {"type":"Property","value":12,"observedAt":"..."}
type FullInstance struct {
	Payload      json.RawMessage
	Time         time.Time
	TimeProperty TimeProperty
	Sub          string
}

type SimplifiedInstance struct {
	Value json.RawMessage
	Time  time.Time
}

type AggregateValue struct {
	Method     AggregationMethod
	Value      json.RawMessage
	RangeStart time.Time
	RangeEnd   time.Time
}

// AggregatedInstance holds the values of every requested method for one time bucket
type AggregatedInstance struct {
	Values []AggregateValue
}

func (FullInstance) instanceResult()       {}
func (SimplifiedInstance) instanceResult() {}
func (AggregatedInstance) instanceResult() {}

// InstanceTime returns the timestamp a pagination window is matched against.
// Aggregated buckets are located by the start of their first range.
func InstanceTime(ir InstanceResult) time.Time {
	switch i := ir.(type) {
	case FullInstance:
		return i.Time
	case SimplifiedInstance:
		return i.Time
	case AggregatedInstance:
		if len(i.Values) == 0 {
			return time.Time{}
		}
		return i.Values[0].RangeStart
	default:
		panic("unknown instance result type")
	}
}

type AttributeHistory struct {
	Attribute Attribute
	Instances []InstanceResult
}

type EntityCore struct {
	ID         string
	Types      []string
	CreatedAt  time.Time
	ModifiedAt *time.Time
	Payload    json.RawMessage
}

type EntityTemporalResult struct {
	Entity       EntityCore
	ScopeHistory []InstanceResult
	Attributes   []AttributeHistory
}

// AttributeInstanceStore retrieves the temporal evolution of the entities that
// match a request, with the instance limit already applied per attribute and
// instances ordered by ascending time. The returned count is the total number
// of matching entities, regardless of paging.
type AttributeInstanceStore interface {
	QueryTemporalEntities(ctx context.Context, tenant string, req Request) ([]EntityTemporalResult, int64, error)
}
