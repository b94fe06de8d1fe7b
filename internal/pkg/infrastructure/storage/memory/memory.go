package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("temporal-context-broker/storage/memory")

// Instance is one stored value of an attribute. Payload holds the attribute
// instance without its temporal members.
type Instance struct {
	ID         string
	ObservedAt *time.Time
	CreatedAt  time.Time
	ModifiedAt time.Time
	Payload    json.RawMessage
	Sub        string
}

func (i Instance) timeOf(tp temporal.TimeProperty) (time.Time, bool) {
	switch tp {
	case temporal.ObservedAt:
		if i.ObservedAt == nil {
			return time.Time{}, false
		}
		return *i.ObservedAt, true
	case temporal.CreatedAt:
		return i.CreatedAt, true
	case temporal.ModifiedAt:
		return i.ModifiedAt, true
	}
	return time.Time{}, false
}

type scopeInstance struct {
	scope json.RawMessage
	at    time.Time
}

type attributeHistory struct {
	attribute temporal.Attribute
	instances []Instance
}

type entity struct {
	id         string
	types      []string
	createdAt  time.Time
	modifiedAt *time.Time
	scopes     []scopeInstance
	attributes []*attributeHistory
}

type Store struct {
	mu      sync.RWMutex
	tenants map[string]map[string]*entity
}

func New() *Store {
	return &Store{
		tenants: map[string]map[string]*entity{},
	}
}

func (s *Store) CreateEntity(ctx context.Context, tenant, entityID string, types []string, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entities, ok := s.tenants[tenant]
	if !ok {
		entities = map[string]*entity{}
		s.tenants[tenant] = entities
	}

	if _, exists := entities[entityID]; exists {
		return errors.NewAlreadyExistsError(fmt.Sprintf("entity %s already exists", entityID))
	}

	entities[entityID] = &entity{
		id:        entityID,
		types:     slices.Clone(types),
		createdAt: createdAt.UTC(),
	}

	return nil
}

// AddInstance appends an instance to the history of an attribute of an
// existing entity
func (s *Store) AddInstance(ctx context.Context, tenant string, attr temporal.Attribute, instance Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entity(tenant, attr.EntityID)
	if err != nil {
		return err
	}

	if instance.ID == "" {
		instance.ID = uuid.NewString()
	}
	if instance.CreatedAt.IsZero() {
		instance.CreatedAt = time.Now().UTC()
	}
	if instance.ModifiedAt.IsZero() {
		instance.ModifiedAt = instance.CreatedAt
	}

	e.touch(instance.ModifiedAt)

	for _, h := range e.attributes {
		if h.attribute.Name == attr.Name && h.attribute.DatasetID == attr.DatasetID {
			h.attribute.Type = attr.Type
			h.instances = append(h.instances, instance)
			return nil
		}
	}

	e.attributes = append(e.attributes, &attributeHistory{
		attribute: attr,
		instances: []Instance{instance},
	})

	return nil
}

func (s *Store) AddScope(ctx context.Context, tenant, entityID string, scope json.RawMessage, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.entity(tenant, entityID)
	if err != nil {
		return err
	}

	e.touch(at)
	e.scopes = append(e.scopes, scopeInstance{scope: scope, at: at.UTC()})

	return nil
}

func (s *Store) entity(tenant, entityID string) (*entity, error) {
	e, ok := s.tenants[tenant][entityID]
	if !ok {
		return nil, errors.NewNotFoundError(fmt.Sprintf("entity %s does not exist", entityID))
	}
	return e, nil
}

func (e *entity) touch(t time.Time) {
	t = t.UTC()
	if e.modifiedAt == nil || t.After(*e.modifiedAt) {
		e.modifiedAt = &t
	}
}

func (s *Store) QueryTemporalEntities(ctx context.Context, tenant string, req temporal.Request) ([]temporal.EntityTemporalResult, int64, error) {
	var err error

	_, span := tracer.Start(ctx, "query-temporal-entities",
		trace.WithAttributes(attribute.String("ngsild.tenant", tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	var idPattern *regexp.Regexp
	if req.Entities.IDPattern != "" {
		idPattern, err = regexp.Compile(req.Entities.IDPattern)
		if err != nil {
			err = errors.NewBadRequestDataError(fmt.Sprintf("invalid idPattern: %s", err.Error()))
			return nil, 0, err
		}
	}

	period, err := temporal.ParsePeriod(req.Query.BucketDuration)
	if err != nil {
		err = errors.NewBadRequestDataError(fmt.Sprintf("invalid aggrPeriodDuration: %s", err.Error()))
		return nil, 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matching := []*entity{}
	for _, e := range s.tenants[tenant] {
		if matches(e, req, idPattern) {
			matching = append(matching, e)
		}
	}

	sort.Slice(matching, func(i, j int) bool { return matching[i].id < matching[j].id })

	total := int64(len(matching))

	start := min(req.Page.Offset, len(matching))
	end := min(start+req.Page.Limit, len(matching))

	results := make([]temporal.EntityTemporalResult, 0, end-start)
	for _, e := range matching[start:end] {
		results = append(results, e.temporalResult(req, period))
	}

	return results, total, nil
}

func matches(e *entity, req temporal.Request, idPattern *regexp.Regexp) bool {
	sel := req.Entities

	if len(sel.IDs) > 0 && !slices.Contains(sel.IDs, e.id) {
		return false
	}

	if idPattern != nil && !idPattern.MatchString(e.id) {
		return false
	}

	if len(sel.Types) > 0 && !slices.ContainsFunc(e.types, func(t string) bool { return slices.Contains(sel.Types, t) }) {
		return false
	}

	if len(req.Query.Attrs) > 0 {
		for _, attr := range req.Query.Attrs {
			if attr == temporal.ScopeAttributeName && len(e.scopes) > 0 {
				return true
			}
			if slices.ContainsFunc(e.attributes, func(h *attributeHistory) bool { return h.attribute.Name == attr }) {
				return true
			}
		}
		return false
	}

	return true
}

func (e *entity) temporalResult(req temporal.Request, period temporal.Period) temporal.EntityTemporalResult {
	q := req.Query

	result := temporal.EntityTemporalResult{
		Entity: temporal.EntityCore{
			ID:         e.id,
			Types:      slices.Clone(e.types),
			CreatedAt:  e.createdAt,
			ModifiedAt: e.modifiedAt,
		},
		Attributes: []temporal.AttributeHistory{},
	}

	for _, h := range e.attributes {
		if len(q.Attrs) > 0 && !slices.Contains(q.Attrs, h.attribute.Name) {
			continue
		}

		points := []point{}
		for _, i := range h.instances {
			t, ok := i.timeOf(q.TimeProperty)
			if ok && withinTimerel(q, t) {
				points = append(points, point{t: t, instance: i})
			}
		}

		result.Attributes = append(result.Attributes, temporal.AttributeHistory{
			Attribute: h.attribute,
			Instances: instancesOf(points, h.attribute.Type, req, period),
		})
	}

	if len(q.Attrs) == 0 || slices.Contains(q.Attrs, temporal.ScopeAttributeName) {
		points := []point{}
		for _, sc := range e.scopes {
			if withinTimerel(q, sc.at) {
				payload, _ := json.Marshal(map[string]any{"type": temporal.Property, "value": sc.scope})
				points = append(points, point{t: sc.at, instance: Instance{Payload: payload, CreatedAt: sc.at, ModifiedAt: sc.at}})
			}
		}
		result.ScopeHistory = instancesOf(points, temporal.Property, req, period)
	}

	return result
}

type point struct {
	t        time.Time
	instance Instance
}

// instancesOf orders the points chronologically and applies the instance limit,
// keeping the most recent instances when lastN is requested
func instancesOf(points []point, at temporal.AttributeType, req temporal.Request, period temporal.Period) []temporal.InstanceResult {
	q := req.Query

	sort.SliceStable(points, func(i, j int) bool { return points[i].t.Before(points[j].t) })

	results := []temporal.InstanceResult{}

	if q.IsAggregated() {
		for _, b := range aggregate(points, at, q, period) {
			results = append(results, b)
		}
	} else {
		for _, p := range points {
			switch req.Options.Representation {
			case temporal.TemporalValues:
				v, _ := valueOf(p.instance.Payload, at)
				results = append(results, temporal.SimplifiedInstance{Value: v, Time: p.t})
			default:
				results = append(results, temporal.FullInstance{
					Payload:      p.instance.Payload,
					Time:         p.t,
					TimeProperty: q.TimeProperty,
					Sub:          p.instance.Sub,
				})
			}
		}
	}

	limit := q.InstanceLimit
	if limit <= 0 || len(results) <= limit {
		return results
	}

	if q.HasLastN() {
		return results[len(results)-limit:]
	}

	return results[:limit]
}

func withinTimerel(q temporal.Query, t time.Time) bool {
	switch q.Timerel {
	case temporal.TimerelBefore:
		return q.TimeAt == nil || t.Before(*q.TimeAt)
	case temporal.TimerelAfter:
		return q.TimeAt == nil || t.After(*q.TimeAt)
	case temporal.TimerelBetween:
		return (q.TimeAt == nil || t.After(*q.TimeAt)) && (q.EndTimeAt == nil || t.Before(*q.EndTimeAt))
	}
	return true
}

func valueOf(payload json.RawMessage, at temporal.AttributeType) (json.RawMessage, bool) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, false
	}

	v, ok := fields[temporal.ValueKey(at)]
	return v, ok
}
