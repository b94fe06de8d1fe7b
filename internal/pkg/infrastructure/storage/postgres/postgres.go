package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/env"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	ngsierrors "github.com/diwise/temporal-context-broker/pkg/ngsild/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("temporal-context-broker/storage/postgres")

type Config struct {
	host     string
	user     string
	password string
	port     string
	dbname   string
	sslmode  string
}

func LoadConfiguration(ctx context.Context) Config {
	return Config{
		host:     env.GetVariableOrDefault(ctx, "POSTGRES_HOST", ""),
		user:     env.GetVariableOrDefault(ctx, "POSTGRES_USER", ""),
		password: env.GetVariableOrDefault(ctx, "POSTGRES_PASSWORD", ""),
		port:     env.GetVariableOrDefault(ctx, "POSTGRES_PORT", "5432"),
		dbname:   env.GetVariableOrDefault(ctx, "POSTGRES_DBNAME", "diwise"),
		sslmode:  env.GetVariableOrDefault(ctx, "POSTGRES_SSLMODE", "disable"),
	}
}

// IsConfigured reports whether a database host has been set
func (c Config) IsConfigured() bool {
	return c.host != ""
}

func (c Config) ConnStr() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", c.user, c.password, c.host, c.port, c.dbname, c.sslmode)
}

func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	conn, err := pgxpool.New(ctx, cfg.ConnStr())
	if err != nil {
		return nil, err
	}

	err = conn.Ping(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) QueryTemporalEntities(ctx context.Context, tenant string, req temporal.Request) (results []temporal.EntityTemporalResult, total int64, err error) {
	ctx, span := tracer.Start(ctx, "query-temporal-entities",
		trace.WithAttributes(attribute.String("ngsild.tenant", tenant)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	period, err := temporal.ParsePeriod(req.Query.BucketDuration)
	if err != nil {
		err = ngsierrors.NewBadRequestDataError(fmt.Sprintf("invalid aggrPeriodDuration: %s", err.Error()))
		return nil, 0, err
	}

	if period.HasCalendarUnits() {
		err = ngsierrors.NewBadRequestDataError("aggrPeriodDuration with years or months is not supported")
		return nil, 0, err
	}

	count := countEntities(tenant, req)
	if err = s.pool.QueryRow(ctx, count.sql, count.args...).Scan(&total); err != nil {
		if isInvalidRegex(err) {
			err = ngsierrors.NewBadRequestDataError(fmt.Sprintf("invalid idPattern: %s", req.Entities.IDPattern))
			return nil, 0, err
		}
		err = fmt.Errorf("failed to count temporal entities: %w", err)
		return nil, 0, err
	}

	results, err = s.entities(ctx, tenant, req)
	if err != nil || len(results) == 0 {
		return results, total, err
	}

	entityIDs := make([]string, 0, len(results))
	for _, r := range results {
		entityIDs = append(entityIDs, r.Entity.ID)
	}

	var histories map[string][]temporal.AttributeHistory
	if req.Query.IsAggregated() {
		histories, err = s.aggregates(ctx, selectAggregates(tenant, entityIDs, req.Query, period), req.Query)
	} else {
		histories, err = s.instances(ctx, selectInstances(tenant, entityIDs, req.Query), req)
	}
	if err != nil {
		return nil, 0, err
	}

	var scopes map[string][]temporal.InstanceResult
	withScope := len(req.Query.Attrs) == 0 || slices.Contains(req.Query.Attrs, temporal.ScopeAttributeName)
	if withScope && !req.Query.IsAggregated() {
		scopes, err = s.scopes(ctx, selectScopes(tenant, entityIDs, req.Query), req)
		if err != nil {
			return nil, 0, err
		}
	}

	for i := range results {
		id := results[i].Entity.ID
		results[i].Attributes = histories[id]
		results[i].ScopeHistory = scopes[id]
	}

	return results, total, nil
}

func (s *Store) entities(ctx context.Context, tenant string, req temporal.Request) ([]temporal.EntityTemporalResult, error) {
	stmt := selectEntities(tenant, req)

	rows, err := s.pool.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query temporal entities: %w", err)
	}
	defer rows.Close()

	results := []temporal.EntityTemporalResult{}

	for rows.Next() {
		var (
			id         string
			types      []string
			createdAt  time.Time
			modifiedAt time.Time
		)

		if err := rows.Scan(&id, &types, &createdAt, &modifiedAt); err != nil {
			return nil, err
		}

		modifiedAt = modifiedAt.UTC()

		results = append(results, temporal.EntityTemporalResult{
			Entity: temporal.EntityCore{
				ID:         id,
				Types:      types,
				CreatedAt:  createdAt.UTC(),
				ModifiedAt: &modifiedAt,
			},
			Attributes: []temporal.AttributeHistory{},
		})
	}

	return results, rows.Err()
}

// histories groups attribute instances per entity, keeping the order in which
// each attribute and dataset first appeared
type histories struct {
	byEntity map[string][]temporal.AttributeHistory
	index    map[string]int
}

func newHistories() *histories {
	return &histories{
		byEntity: map[string][]temporal.AttributeHistory{},
		index:    map[string]int{},
	}
}

func (h *histories) add(attr temporal.Attribute, ir temporal.InstanceResult) {
	key := attr.EntityID + "\x00" + attr.Name + "\x00" + attr.DatasetID

	i, ok := h.index[key]
	if !ok {
		i = len(h.byEntity[attr.EntityID])
		h.index[key] = i
		h.byEntity[attr.EntityID] = append(h.byEntity[attr.EntityID], temporal.AttributeHistory{Attribute: attr})
	}

	h.byEntity[attr.EntityID][i].Instances = append(h.byEntity[attr.EntityID][i].Instances, ir)
}

func (s *Store) instances(ctx context.Context, stmt statement, req temporal.Request) (map[string][]temporal.AttributeHistory, error) {
	rows, err := s.pool.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query attribute instances: %w", err)
	}
	defer rows.Close()

	h := newHistories()

	for rows.Next() {
		var (
			attr    temporal.Attribute
			t       time.Time
			payload []byte
			sub     *string
		)

		if err := rows.Scan(&attr.EntityID, &attr.Name, &attr.Type, &attr.DatasetID, &t, &payload, &sub); err != nil {
			return nil, err
		}

		h.add(attr, instanceOf(attr.Type, t.UTC(), payload, sub, req))
	}

	return h.byEntity, rows.Err()
}

func instanceOf(at temporal.AttributeType, t time.Time, payload []byte, sub *string, req temporal.Request) temporal.InstanceResult {
	if req.Options.Representation == temporal.TemporalValues {
		fields := map[string]json.RawMessage{}
		json.Unmarshal(payload, &fields)
		return temporal.SimplifiedInstance{Value: fields[temporal.ValueKey(at)], Time: t}
	}

	instance := temporal.FullInstance{
		Payload:      payload,
		Time:         t,
		TimeProperty: req.Query.TimeProperty,
	}
	if sub != nil {
		instance.Sub = *sub
	}

	return instance
}

func (s *Store) aggregates(ctx context.Context, stmt statement, q temporal.Query) (map[string][]temporal.AttributeHistory, error) {
	rows, err := s.pool.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate attribute instances: %w", err)
	}
	defer rows.Close()

	h := newHistories()

	for rows.Next() {
		var (
			attr                        temporal.Attribute
			start, end                  time.Time
			totalCount, distinctCount   int64
			sum, avg, mn, mx, sd, sumsq *float64
		)

		err := rows.Scan(&attr.EntityID, &attr.Name, &attr.Type, &attr.DatasetID, &start, &end,
			&totalCount, &distinctCount, &sum, &avg, &mn, &mx, &sd, &sumsq)
		if err != nil {
			return nil, err
		}

		bucket := temporal.AggregatedInstance{Values: make([]temporal.AggregateValue, 0, len(q.Aggregate))}

		for _, m := range q.Aggregate {
			var value json.RawMessage

			switch m {
			case temporal.AggregatedTotalCount:
				value = json.RawMessage(strconv.FormatInt(totalCount, 10))
			case temporal.AggregatedDistinctCount:
				value = json.RawMessage(strconv.FormatInt(distinctCount, 10))
			case temporal.AggregatedSum:
				value = numberOrNull(sum)
			case temporal.AggregatedAverage:
				value = numberOrNull(avg)
			case temporal.AggregatedMin:
				value = numberOrNull(mn)
			case temporal.AggregatedMax:
				value = numberOrNull(mx)
			case temporal.AggregatedStdDev:
				value = numberOrNull(sd)
			case temporal.AggregatedSumOfSquares:
				value = numberOrNull(sumsq)
			default:
				value = json.RawMessage("null")
			}

			bucket.Values = append(bucket.Values, temporal.AggregateValue{
				Method:     m,
				Value:      value,
				RangeStart: start.UTC(),
				RangeEnd:   end.UTC(),
			})
		}

		h.add(attr, bucket)
	}

	return h.byEntity, rows.Err()
}

func (s *Store) scopes(ctx context.Context, stmt statement, req temporal.Request) (map[string][]temporal.InstanceResult, error) {
	rows, err := s.pool.Query(ctx, stmt.sql, stmt.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scope history: %w", err)
	}
	defer rows.Close()

	scopes := map[string][]temporal.InstanceResult{}

	for rows.Next() {
		var (
			id    string
			scope []byte
			ts    time.Time
		)

		if err := rows.Scan(&id, &scope, &ts); err != nil {
			return nil, err
		}

		payload, _ := json.Marshal(map[string]any{"type": temporal.Property, "value": json.RawMessage(scope)})
		scopes[id] = append(scopes[id], instanceOf(temporal.Property, ts.UTC(), payload, nil, req))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	limit := req.Query.InstanceLimit
	for id, instances := range scopes {
		if limit <= 0 || len(instances) <= limit {
			continue
		}

		if req.Query.HasLastN() {
			scopes[id] = instances[len(instances)-limit:]
		} else {
			scopes[id] = instances[:limit]
		}
	}

	return scopes, nil
}

func numberOrNull(f *float64) json.RawMessage {
	if f == nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(strconv.FormatFloat(*f, 'f', -1, 64))
}

// isInvalidRegex reports whether postgres rejected a regular expression
func isInvalidRegex(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "2201B"
}
