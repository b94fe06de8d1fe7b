package ngsild

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TemporalEntity is a temporal entity as returned by a broker, with every
// member kept in its serialized form until it is asked for
type TemporalEntity map[string]json.RawMessage

func (e TemporalEntity) ID() string {
	id := ""
	json.Unmarshal(e["id"], &id)
	return id
}

// Types returns the entity types, regardless of if the broker sent a single
// type or a list of types
func (e TemporalEntity) Types() []string {
	raw, ok := e["type"]
	if !ok {
		return []string{}
	}

	t := ""
	if json.Unmarshal(raw, &t) == nil {
		return []string{t}
	}

	types := []string{}
	json.Unmarshal(raw, &types)
	return types
}

// AttributeInstance is one normalized instance of an attribute
type AttributeInstance struct {
	Type       string          `json:"type"`
	Value      json.RawMessage `json:"value,omitempty"`
	Object     json.RawMessage `json:"object,omitempty"`
	DatasetID  string          `json:"datasetId,omitempty"`
	ObservedAt *time.Time      `json:"observedAt,omitempty"`
	CreatedAt  *time.Time      `json:"createdAt,omitempty"`
	ModifiedAt *time.Time      `json:"modifiedAt,omitempty"`
}

// Instances decodes the normalized history of an attribute. A single instance
// is sent as an object and several instances as an array.
func (e TemporalEntity) Instances(attributeName string) ([]AttributeInstance, error) {
	raw, ok := e[attributeName]
	if !ok {
		return []AttributeInstance{}, nil
	}

	instances := []AttributeInstance{}
	if err := json.Unmarshal(raw, &instances); err == nil {
		return instances, nil
	}

	instance := AttributeInstance{}
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fmt.Errorf("failed to decode instances of %s: %w", attributeName, err)
	}

	return []AttributeInstance{instance}, nil
}

type TemporalValue struct {
	Value json.RawMessage
	At    time.Time
}

// TemporalValues decodes an attribute that was retrieved with the
// temporalValues option, i.e. {"type":"Property","values":[[v, t], ...]}
func (e TemporalEntity) TemporalValues(attributeName string) ([]TemporalValue, error) {
	raw, ok := e[attributeName]
	if !ok {
		return []TemporalValue{}, nil
	}

	attr := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &attr); err != nil {
		return nil, fmt.Errorf("failed to decode temporal values of %s: %w", attributeName, err)
	}

	var pairs []json.RawMessage
	for _, key := range []string{"values", "objects", "languageMaps", "vocabs", "valueLists", "objectLists"} {
		if v, ok := attr[key]; ok {
			if err := json.Unmarshal(v, &pairs); err != nil {
				return nil, fmt.Errorf("failed to decode temporal values of %s: %w", attributeName, err)
			}
			break
		}
	}

	values := make([]TemporalValue, 0, len(pairs))

	for _, p := range pairs {
		pair := []json.RawMessage{}
		if err := json.Unmarshal(p, &pair); err != nil || len(pair) != 2 {
			return nil, fmt.Errorf("malformed temporal value %s in %s", string(p), attributeName)
		}

		tv := TemporalValue{Value: pair[0]}
		if err := json.Unmarshal(pair[1], &tv.At); err != nil {
			return nil, fmt.Errorf("malformed timestamp in temporal value of %s: %w", attributeName, err)
		}

		values = append(values, tv)
	}

	return values, nil
}

type QueryTemporalEntitiesResult struct {
	Found      chan (TemporalEntity)
	TotalCount int64
	Range      *ContentRange
}

func NewQueryTemporalEntitiesResult() *QueryTemporalEntitiesResult {
	return &QueryTemporalEntitiesResult{
		Found:      make(chan TemporalEntity),
		TotalCount: -1,
	}
}

// IsPartial reports whether the broker truncated the attribute histories
func (r QueryTemporalEntitiesResult) IsPartial() bool {
	return r.Range != nil
}

type RetrieveTemporalEntityResult struct {
	Entity TemporalEntity
	Range  *ContentRange
}

func (r RetrieveTemporalEntityResult) IsPartial() bool {
	return r.Range != nil
}

// ContentRange is the time range of the instances in a partial temporal
// response. Size is only known when the request used lastN.
type ContentRange struct {
	Start time.Time
	End   time.Time
	Size  int
}

func (cr ContentRange) HasSize() bool {
	return cr.Size > 0
}

// ParseContentRange parses a header on the form "date-time <start>-<end>/<size>"
// where size is either a number or *
func ParseContentRange(header string) (*ContentRange, error) {
	unit, rng, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || unit != "date-time" {
		return nil, fmt.Errorf("unsupported content range %q", header)
	}

	idx := strings.LastIndex(rng, "/")
	if idx < 0 {
		return nil, fmt.Errorf("content range %q has no size", header)
	}

	interval, size := rng[:idx], rng[idx+1:]

	// both timestamps are in UTC, so the separator is the dash after the first Z
	start, end, ok := strings.Cut(interval, "Z-")
	if !ok {
		return nil, fmt.Errorf("malformed interval in content range %q", header)
	}

	var err error
	cr := &ContentRange{}

	if cr.Start, err = time.Parse(time.RFC3339Nano, start+"Z"); err != nil {
		return nil, fmt.Errorf("malformed start in content range %q: %w", header, err)
	}

	if cr.End, err = time.Parse(time.RFC3339Nano, end); err != nil {
		return nil, fmt.Errorf("malformed end in content range %q: %w", header, err)
	}

	if size != "*" {
		if cr.Size, err = strconv.Atoi(size); err != nil {
			return nil, fmt.Errorf("malformed size in content range %q: %w", header, err)
		}
	}

	return cr, nil
}
