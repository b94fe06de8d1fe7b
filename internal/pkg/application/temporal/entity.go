package temporal

import (
	"encoding/json"
	"fmt"
	"time"
)

const ScopeAttributeName string = "scope"

// Series is the ordered history of one attribute instance, i.e. one attribute
// name and one dataset id.
type Series struct {
	Name      string
	Type      AttributeType
	DatasetID string
	Instances []InstanceResult

	// windowed is set once the series has been restricted to a pagination
	// range, in which case an empty series is still rendered
	windowed bool
}

func (s Series) Len() int {
	return len(s.Instances)
}

// CompactedEntity is the temporal representation of one entity. Attribute
// names are kept in the form they were retrieved in until Rename is applied.
type CompactedEntity struct {
	ID         string
	Types      []string
	CreatedAt  *time.Time
	ModifiedAt *time.Time
	Context    []string

	Representation Representation
	TimeProperty   TimeProperty
	WithAudit      bool

	Series []Series
}

// Rename maps attribute names and entity types through fn. The scope member is
// reserved and never renamed.
func (e *CompactedEntity) Rename(fn func(string) string) {
	for i := range e.Types {
		e.Types[i] = fn(e.Types[i])
	}

	for i := range e.Series {
		if e.Series[i].Name != ScopeAttributeName {
			e.Series[i].Name = fn(e.Series[i].Name)
		}
	}
}

// AttributeNames returns the distinct attribute names in order of appearance
func (e CompactedEntity) AttributeNames() []string {
	names := []string{}
	seen := map[string]bool{}

	for _, s := range e.Series {
		if !seen[s.Name] {
			seen[s.Name] = true
			names = append(names, s.Name)
		}
	}

	return names
}

// LatestValue returns the value of the most recent instance of the named
// attribute, preferring the default dataset
func (e CompactedEntity) LatestValue(name string) (json.RawMessage, bool) {
	var candidate *Series

	for i := range e.Series {
		s := &e.Series[i]
		if s.Name != name || s.Len() == 0 {
			continue
		}
		if candidate == nil || s.DatasetID == "" {
			candidate = s
		}
	}

	if candidate == nil {
		return nil, false
	}

	switch i := candidate.Instances[candidate.Len()-1].(type) {
	case FullInstance:
		return payloadValue(i.Payload, candidate.Type)
	case SimplifiedInstance:
		return i.Value, true
	case AggregatedInstance:
		return nil, false
	default:
		panic("unknown instance result type")
	}
}

// Members renders every attribute of the entity in the entity's representation
func (e CompactedEntity) Members() map[string]any {
	members := map[string]any{}

	for _, name := range e.AttributeNames() {
		series := []Series{}
		for _, s := range e.Series {
			if s.Name == name {
				series = append(series, s)
			}
		}

		if m, ok := e.renderAttribute(series); ok {
			members[name] = m
		}
	}

	return members
}

func (e CompactedEntity) MarshalJSON() ([]byte, error) {
	doc := e.Members()

	doc["id"] = e.ID

	if len(e.Types) == 1 {
		doc["type"] = e.Types[0]
	} else {
		doc["type"] = e.Types
	}

	if e.CreatedAt != nil && e.Representation != TemporalValues {
		doc["createdAt"] = formatTime(*e.CreatedAt)
		if e.ModifiedAt != nil {
			doc["modifiedAt"] = formatTime(*e.ModifiedAt)
		}
	}

	if len(e.Context) == 1 {
		doc["@context"] = e.Context[0]
	} else if len(e.Context) > 1 {
		doc["@context"] = e.Context
	}

	return json.Marshal(doc)
}

func (e CompactedEntity) renderAttribute(series []Series) (any, bool) {
	total := 0
	windowed := false
	for _, s := range series {
		total += s.Len()
		windowed = windowed || s.windowed
	}

	if total == 0 {
		if windowed {
			return []any{}, true
		}
		return nil, false
	}

	switch e.Representation {
	case Normalized:
		instances := []any{}
		for _, s := range series {
			for _, ir := range s.Instances {
				if m, ok := e.normalizedInstance(s, ir); ok {
					instances = append(instances, m)
				}
			}
		}

		if len(instances) == 1 && len(series) == 1 {
			return instances[0], true
		}
		return instances, true

	case TemporalValues:
		return renderPerDataset(series, e.simplifiedSeries), true

	case AggregatedValues:
		return renderPerDataset(series, e.aggregatedSeries), true

	default:
		panic(fmt.Sprintf("unknown representation %d", e.Representation))
	}
}

// renderPerDataset emits one object per dataset id. A single series is
// emitted unwrapped.
func renderPerDataset(series []Series, render func(Series) map[string]any) any {
	if len(series) == 1 {
		return render(series[0])
	}

	objects := []any{}
	for _, s := range series {
		objects = append(objects, render(s))
	}
	return objects
}

func (e CompactedEntity) normalizedInstance(s Series, ir InstanceResult) (map[string]any, bool) {
	switch i := ir.(type) {
	case FullInstance:
		m := map[string]any{}
		if len(i.Payload) > 0 {
			fields := map[string]json.RawMessage{}
			if err := json.Unmarshal(i.Payload, &fields); err != nil {
				return nil, false
			}
			for k, v := range fields {
				m[k] = v
			}
		}

		delete(m, "sub")

		if _, ok := m["type"]; !ok {
			m["type"] = s.Type
		}
		if s.DatasetID != "" {
			m["datasetId"] = s.DatasetID
		}

		tp := i.TimeProperty
		if tp == "" {
			tp = e.TimeProperty
		}
		m[string(tp)] = formatTime(i.Time)

		if e.WithAudit && i.Sub != "" {
			m["sub"] = i.Sub
		}
		return m, true

	case SimplifiedInstance:
		m := map[string]any{
			"type":                 s.Type,
			ValueKey(s.Type):       i.Value,
			string(e.TimeProperty): formatTime(i.Time),
		}
		if s.DatasetID != "" {
			m["datasetId"] = s.DatasetID
		}
		return m, true

	case AggregatedInstance:
		return nil, false

	default:
		panic("unknown instance result type")
	}
}

func (e CompactedEntity) simplifiedSeries(s Series) map[string]any {
	values := []any{}

	for _, ir := range s.Instances {
		switch i := ir.(type) {
		case FullInstance:
			if v, ok := payloadValue(i.Payload, s.Type); ok {
				values = append(values, []any{v, formatTime(i.Time)})
			}
		case SimplifiedInstance:
			values = append(values, []any{i.Value, formatTime(i.Time)})
		case AggregatedInstance:
		default:
			panic("unknown instance result type")
		}
	}

	m := map[string]any{
		"type":                    s.Type,
		TemporalValuesKey(s.Type): values,
	}
	if s.DatasetID != "" {
		m["datasetId"] = s.DatasetID
	}
	return m
}

func (e CompactedEntity) aggregatedSeries(s Series) map[string]any {
	m := map[string]any{
		"type": s.Type,
	}

	for _, ir := range s.Instances {
		switch i := ir.(type) {
		case AggregatedInstance:
			for _, v := range i.Values {
				triples, _ := m[string(v.Method)].([]any)
				m[string(v.Method)] = append(triples, []any{v.Value, formatTime(v.RangeStart), formatTime(v.RangeEnd)})
			}
		case FullInstance, SimplifiedInstance:
		default:
			panic("unknown instance result type")
		}
	}

	if s.DatasetID != "" {
		m["datasetId"] = s.DatasetID
	}
	return m
}

// ValueKey names the member that carries the value of an attribute
// in its normalized form
func ValueKey(t AttributeType) string {
	switch t {
	case Relationship:
		return "object"
	case JsonProperty:
		return "json"
	case LanguageProperty:
		return "languageMap"
	case VocabProperty:
		return "vocab"
	case ListProperty:
		return "valueList"
	case ListRelationship:
		return "objectList"
	case Property, GeoProperty:
		return "value"
	default:
		return "value"
	}
}

// TemporalValuesKey names the member that carries the [value, time] pairs of
// an attribute in the temporalValues representation
func TemporalValuesKey(t AttributeType) string {
	switch t {
	case Relationship:
		return "objects"
	case JsonProperty:
		return "jsons"
	case LanguageProperty:
		return "languageMaps"
	case VocabProperty:
		return "vocabs"
	case ListProperty:
		return "valueLists"
	case ListRelationship:
		return "objectLists"
	case Property, GeoProperty:
		return "values"
	default:
		return "values"
	}
}

func payloadValue(payload json.RawMessage, t AttributeType) (json.RawMessage, bool) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, false
	}

	v, ok := fields[ValueKey(t)]
	return v, ok
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
