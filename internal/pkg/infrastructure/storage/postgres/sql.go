package postgres

import (
	"fmt"
	"strings"
	"time"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
)

type statement struct {
	sql  string
	args []any
}

type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func timeColumn(tp temporal.TimeProperty) string {
	switch tp {
	case temporal.CreatedAt:
		return "createdat"
	case temporal.ModifiedAt:
		return "modifiedat"
	default:
		return "observedat"
	}
}

const latestEntities string = `WITH e AS (
	SELECT DISTINCT ON (id) id, types,
		min(ts) OVER (PARTITION BY id) AS createdat,
		max(ts) OVER (PARTITION BY id) AS modifiedat
	FROM entities
	WHERE tenant = $1
	ORDER BY id, ts DESC
)`

// entityFilter selects the entities that match the request. The tenant is
// always the first argument.
func entityFilter(b *builder, tenant string, req temporal.Request) string {
	b.arg(tenant)

	conditions := []string{"TRUE"}

	if len(req.Entities.IDs) > 0 {
		conditions = append(conditions, "e.id = ANY("+b.arg(req.Entities.IDs)+")")
	}

	if req.Entities.IDPattern != "" {
		conditions = append(conditions, "e.id ~ "+b.arg(req.Entities.IDPattern))
	}

	if len(req.Entities.Types) > 0 {
		conditions = append(conditions, "e.types && "+b.arg(req.Entities.Types))
	}

	if len(req.Query.Attrs) > 0 {
		attrs := b.arg(req.Query.Attrs)
		conditions = append(conditions, fmt.Sprintf(
			"(EXISTS (SELECT 1 FROM attributes a WHERE a.tenant = $1 AND a.entityid = e.id AND a.id = ANY(%s))"+
				" OR ('%s' = ANY(%s) AND EXISTS (SELECT 1 FROM entities s WHERE s.tenant = $1 AND s.id = e.id AND s.scope IS NOT NULL)))",
			attrs, temporal.ScopeAttributeName, attrs,
		))
	}

	return strings.Join(conditions, " AND ")
}

func selectEntities(tenant string, req temporal.Request) statement {
	b := &builder{}
	where := entityFilter(b, tenant, req)

	sql := fmt.Sprintf("%s\nSELECT e.id, e.types, e.createdat, e.modifiedat FROM e WHERE %s ORDER BY e.id LIMIT %s OFFSET %s",
		latestEntities, where, b.arg(req.Page.Limit), b.arg(req.Page.Offset),
	)

	return statement{sql: sql, args: b.args}
}

func countEntities(tenant string, req temporal.Request) statement {
	b := &builder{}
	where := entityFilter(b, tenant, req)

	return statement{
		sql:  fmt.Sprintf("%s\nSELECT count(*) FROM e WHERE %s", latestEntities, where),
		args: b.args,
	}
}

// timerelFilter restricts column to the requested time window, excluding the
// boundaries themselves
func timerelFilter(b *builder, column string, q temporal.Query) string {
	switch q.Timerel {
	case temporal.TimerelBefore:
		return fmt.Sprintf(" AND %s < %s", column, b.arg(*q.TimeAt))
	case temporal.TimerelAfter:
		return fmt.Sprintf(" AND %s > %s", column, b.arg(*q.TimeAt))
	case temporal.TimerelBetween:
		return fmt.Sprintf(" AND %s > %s AND %s < %s", column, b.arg(*q.TimeAt), column, b.arg(*q.EndTimeAt))
	}
	return ""
}

func scanOrder(q temporal.Query) string {
	if q.HasLastN() {
		return "DESC"
	}
	return "ASC"
}

func attributeFilter(b *builder, tenant string, entityIDs []string, q temporal.Query, column string) string {
	where := fmt.Sprintf("tenant = %s AND entityid = ANY(%s) AND %s IS NOT NULL", b.arg(tenant), b.arg(entityIDs), column)

	if len(q.Attrs) > 0 {
		where += " AND id = ANY(" + b.arg(q.Attrs) + ")"
	}

	return where + timerelFilter(b, column, q)
}

// selectInstances returns at most InstanceLimit instances per attribute and
// dataset, always in ascending time order
func selectInstances(tenant string, entityIDs []string, q temporal.Query) statement {
	b := &builder{}
	column := timeColumn(q.TimeProperty)
	where := attributeFilter(b, tenant, entityIDs, q, column)

	sql := fmt.Sprintf(`SELECT entityid, id, attrtype, datasetid, t, payload, sub FROM (
	SELECT entityid, id, attrtype, datasetid, %[1]s AS t, payload, sub,
		row_number() OVER (PARTITION BY entityid, id, datasetid ORDER BY %[1]s %[2]s) AS rn
	FROM attributes
	WHERE %[3]s
) a
WHERE rn <= %[4]s
ORDER BY entityid, id, datasetid, t ASC`, column, scanOrder(q), where, b.arg(q.InstanceLimit))

	return statement{sql: sql, args: b.args}
}

const distinctValue string = "coalesce(payload->'value', payload->'object', payload->'json', payload->'languageMap', payload->'vocab', payload->'valueList', payload->'objectList')"

// selectAggregates computes every aggregation method for each time bucket of
// each attribute and dataset. Buckets start at the beginning of the requested
// time window, or at the first instance of the series.
func selectAggregates(tenant string, entityIDs []string, q temporal.Query, period temporal.Period) statement {
	b := &builder{}
	column := timeColumn(q.TimeProperty)
	where := attributeFilter(b, tenant, entityIDs, q, column)

	var origin *time.Time
	if q.Timerel == temporal.TimerelAfter || q.Timerel == temporal.TimerelBetween {
		origin = q.TimeAt
	}

	source := "attributes WHERE " + where
	bucket, bucketEnd := "bucket", ""
	groupBy := "entityid, id, attrtype, datasetid"

	if period.IsZero() {
		var end *time.Time
		switch q.Timerel {
		case temporal.TimerelBefore:
			end = q.TimeAt
		case temporal.TimerelBetween:
			end = q.EndTimeAt
		}

		bucket = fmt.Sprintf("coalesce(%s::timestamptz, min(%s))", b.arg(origin), column)
		bucketEnd = fmt.Sprintf("coalesce(%s::timestamptz, max(%s))", b.arg(end), column)
	} else {
		interval := b.arg(period.String())
		source = fmt.Sprintf(`(
		SELECT entityid, id, attrtype, datasetid, number, payload,
			date_bin(%[1]s::interval, %[2]s, coalesce(%[3]s::timestamptz, min(%[2]s) OVER (PARTITION BY entityid, id, datasetid))) AS bucket
		FROM attributes
		WHERE %[4]s
	) b`, interval, column, b.arg(origin), where)
		bucketEnd = fmt.Sprintf("bucket + %s::interval", interval)
		groupBy += ", bucket"
	}

	sql := fmt.Sprintf(`SELECT entityid, id, attrtype, datasetid, rangestart, rangeend,
	totalcount, distinctcount, sum, avg, min, max, stddev, sumsq FROM (
	SELECT entityid, id, attrtype, datasetid, %[1]s AS rangestart, %[2]s AS rangeend,
		count(*) AS totalcount,
		count(DISTINCT %[3]s) AS distinctcount,
		sum(number) AS sum, avg(number) AS avg, min(number) AS min, max(number) AS max,
		stddev_samp(number) AS stddev, sum(number * number) AS sumsq,
		row_number() OVER (PARTITION BY entityid, id, datasetid ORDER BY %[1]s %[4]s) AS rn
	FROM %[5]s
	GROUP BY %[6]s
) a
WHERE rn <= %[7]s
ORDER BY entityid, id, datasetid, rangestart ASC`,
		bucket, bucketEnd, distinctValue, scanOrder(q), source, groupBy, b.arg(q.InstanceLimit))

	return statement{sql: sql, args: b.args}
}

func selectScopes(tenant string, entityIDs []string, q temporal.Query) statement {
	b := &builder{}

	where := fmt.Sprintf("tenant = %s AND id = ANY(%s) AND scope IS NOT NULL", b.arg(tenant), b.arg(entityIDs))
	where += timerelFilter(b, "ts", q)

	return statement{
		sql:  "SELECT id, scope, ts FROM entities WHERE " + where + " ORDER BY id, ts ASC",
		args: b.args,
	}
}
