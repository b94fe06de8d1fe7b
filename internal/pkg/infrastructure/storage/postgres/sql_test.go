package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/matryer/is"
)

func TestSelectEntitiesWithTypesAndAttrs(t *testing.T) {
	is := is.New(t)

	req := temporal.Request{
		Entities: temporal.EntitySelector{Types: []string{"https://uri.fiware.org/ns/dataModels#Vehicle"}},
		Query:    temporal.Query{Attrs: []string{"https://uri.etsi.org/ngsi-ld/default-context/speed"}},
		Page:     temporal.Page{Limit: 30, Offset: 60},
	}

	stmt := selectEntities("default", req)

	is.True(strings.Contains(stmt.sql, "e.types && $2"))
	is.True(strings.Contains(stmt.sql, "a.id = ANY($3)"))
	is.True(strings.Contains(stmt.sql, "'scope' = ANY($3)"))
	is.True(strings.HasSuffix(stmt.sql, "ORDER BY e.id LIMIT $4 OFFSET $5"))
	is.Equal(len(stmt.args), 5)
	is.Equal(stmt.args[0], "default")
	is.Equal(stmt.args[3], 30)
	is.Equal(stmt.args[4], 60)
}

func TestCountEntitiesSharesTheFilterWithoutPaging(t *testing.T) {
	is := is.New(t)

	req := temporal.Request{
		Entities: temporal.EntitySelector{IDs: []string{"urn:ngsi-ld:Vehicle:A1"}, IDPattern: "^urn:ngsi-ld:Vehicle:.*"},
		Page:     temporal.Page{Limit: 30},
	}

	stmt := countEntities("tenant1", req)

	is.True(strings.Contains(stmt.sql, "SELECT count(*) FROM e WHERE TRUE AND e.id = ANY($2) AND e.id ~ $3"))
	is.True(!strings.Contains(stmt.sql, "LIMIT"))
	is.Equal(stmt.args, []any{"tenant1", []string{"urn:ngsi-ld:Vehicle:A1"}, "^urn:ngsi-ld:Vehicle:.*"})
}

func TestSelectInstancesScansBackwardsForLastN(t *testing.T) {
	is := is.New(t)

	timeAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := temporal.Query{
		Timerel:       temporal.TimerelBefore,
		TimeAt:        &timeAt,
		LastN:         5,
		InstanceLimit: 5,
		TimeProperty:  temporal.ObservedAt,
	}

	stmt := selectInstances("default", []string{"urn:ngsi-ld:Vehicle:A1"}, q)

	is.True(strings.Contains(stmt.sql, "ORDER BY observedat DESC"))
	is.True(strings.Contains(stmt.sql, "observedat < $3"))
	is.True(strings.Contains(stmt.sql, "rn <= $4"))
	is.True(strings.HasSuffix(stmt.sql, "ORDER BY entityid, id, datasetid, t ASC"))
	is.Equal(stmt.args[2], timeAt)
	is.Equal(stmt.args[3], 5)
}

func TestSelectInstancesByModifiedAtBetween(t *testing.T) {
	is := is.New(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	q := temporal.Query{
		Timerel:       temporal.TimerelBetween,
		TimeAt:        &start,
		EndTimeAt:     &end,
		InstanceLimit: 100,
		TimeProperty:  temporal.ModifiedAt,
		Attrs:         []string{"speed"},
	}

	stmt := selectInstances("default", []string{"urn:ngsi-ld:Vehicle:A1"}, q)

	is.True(strings.Contains(stmt.sql, "ORDER BY modifiedat ASC"))
	is.True(strings.Contains(stmt.sql, "id = ANY($3) AND modifiedat > $4 AND modifiedat < $5"))
	is.Equal(len(stmt.args), 6)
}

func TestSelectAggregatesWithPeriod(t *testing.T) {
	is := is.New(t)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	period, err := temporal.ParsePeriod("PT1H")
	is.NoErr(err)

	q := temporal.Query{
		Timerel:        temporal.TimerelAfter,
		TimeAt:         &start,
		InstanceLimit:  100,
		TimeProperty:   temporal.ObservedAt,
		Aggregate:      []temporal.AggregationMethod{temporal.AggregatedSum},
		BucketDuration: "PT1H",
	}

	stmt := selectAggregates("default", []string{"urn:ngsi-ld:Vehicle:A1"}, q, period)

	is.True(strings.Contains(stmt.sql, "date_bin($4::interval, observedat, coalesce($5::timestamptz"))
	is.True(strings.Contains(stmt.sql, "bucket + $4::interval AS rangeend"))
	is.True(strings.Contains(stmt.sql, "GROUP BY entityid, id, attrtype, datasetid, bucket"))
	is.Equal(stmt.args[3], period.String())
	is.Equal(stmt.args[4], &start)
}

func TestSelectAggregatesWithoutPeriodUsesASingleBucket(t *testing.T) {
	is := is.New(t)

	q := temporal.Query{
		InstanceLimit: 100,
		TimeProperty:  temporal.ObservedAt,
		Aggregate:     []temporal.AggregationMethod{temporal.AggregatedMax},
	}

	stmt := selectAggregates("default", []string{"urn:ngsi-ld:Vehicle:A1"}, q, temporal.Period{})

	is.True(strings.Contains(stmt.sql, "coalesce($3::timestamptz, min(observedat)) AS rangestart"))
	is.True(strings.Contains(stmt.sql, "coalesce($4::timestamptz, max(observedat)) AS rangeend"))
	is.True(!strings.Contains(stmt.sql, "date_bin"))
	is.True(strings.Contains(stmt.sql, "GROUP BY entityid, id, attrtype, datasetid\n"))
}

func TestSelectScopesIsRestrictedByTimerel(t *testing.T) {
	is := is.New(t)

	timeAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	q := temporal.Query{Timerel: temporal.TimerelAfter, TimeAt: &timeAt}

	stmt := selectScopes("default", []string{"a", "b"}, q)

	is.Equal(stmt.sql, "SELECT id, scope, ts FROM entities WHERE tenant = $1 AND id = ANY($2) AND scope IS NOT NULL AND ts > $3 ORDER BY id, ts ASC")
	is.Equal(stmt.args, []any{"default", []string{"a", "b"}, timeAt})
}
