package main

import (
	"context"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	appName string = "troe-cleaner"
)

func main() {
	appVersion := buildinfo.SourceVersion()

	ctx, log, cleanup := o11y.Init(context.Background(), appName, appVersion, "json")
	defer cleanup()

	log.Debug("begin clean troe")

	p, err := postgres.Connect(ctx, postgres.LoadConfiguration(ctx))
	if err != nil {
		log.Error("failed to connect to database", "err", err.Error())
		os.Exit(1)
	}
	defer p.Close()

	entities, err := getEntites(ctx, p)
	if err != nil {
		log.Error("failed to get entities", "err", err.Error())
		os.Exit(1)
	}

	log.Debug("number of total entities", "count", len(entities))

	var totalCount int64 = 0

	for _, entity := range entities {
		l := log.With(slog.String("tenant", entity.tenant), slog.String("entity_id", entity.id))

		l.Debug("find duplicates for entity", slog.Time("start_time", time.Now()))

		dups, err := findDuplicates(ctx, p, entity)
		if err != nil {
			l.Error("failed to get duplicates", "err", err.Error())
			os.Exit(1)
		}

		if len(dups) == 0 {
			l.Debug("found no duplicates", slog.Time("end_time", time.Now()))
			continue
		}

		totalCount += int64(len(dups))

		err = deleteDuplicates(ctx, p, dups)
		if err != nil {
			l.Error("failed to delete duplicates", "err", err.Error())
			os.Exit(1)
		}

		l.Debug("done cleaning duplicates", slog.Int("count", len(dups)), slog.Time("end_time", time.Now()))
	}

	log.Debug("vacuum")

	err = vacuum(ctx, p)
	if err != nil {
		log.Error("failed to vacuum table", "err", err.Error())
		os.Exit(1)
	}

	log.Info("done cleaning", slog.Int64("total", totalCount))
}

type entity struct {
	tenant string
	id     string
}

func getEntites(ctx context.Context, p *pgxpool.Pool) ([]entity, error) {
	sql := `SELECT DISTINCT tenant, entityid FROM attributes ORDER BY tenant, entityid;`

	rows, err := p.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entities := make([]entity, 0)

	for rows.Next() {
		var e entity
		err := rows.Scan(&e.tenant, &e.id)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}

	return entities, rows.Err()
}

// findDuplicates returns every instance that repeats the value of another
// instance of the same attribute at the same time, except the most recently
// modified one
func findDuplicates(ctx context.Context, p *pgxpool.Pool, e entity) ([]string, error) {
	sql := `
		SELECT DISTINCT instanceid::text FROM (
			SELECT instanceid, ROW_NUMBER() OVER(PARTITION BY entityid, id, datasetid, observedat, number ORDER BY modifiedat DESC) AS rn
			FROM attributes
			WHERE tenant=$1 AND entityid=$2 AND valuetype = 'Number' AND observedat IS NOT NULL
		) dups
		WHERE dups.rn > 1;`

	nDups, err := queryDuplicates(ctx, p, e, sql)
	if err != nil {
		return nil, err
	}

	sql = `
		SELECT DISTINCT instanceid::text FROM (
			SELECT instanceid, ROW_NUMBER() OVER(PARTITION BY entityid, id, datasetid, text ORDER BY modifiedat DESC) AS rn
			FROM attributes
			WHERE tenant=$1 AND entityid=$2
			AND observedat IS NULL
			AND valuetype = 'String'
		) dups
		WHERE dups.rn > 1;`

	sDups, err := queryDuplicates(ctx, p, e, sql)
	if err != nil {
		return nil, err
	}

	return slices.Concat(nDups, sDups), nil
}

func queryDuplicates(ctx context.Context, p *pgxpool.Pool, e entity, sql string) ([]string, error) {
	rows, err := p.Query(ctx, sql, e.tenant, e.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instances := make([]string, 0)

	for rows.Next() {
		var i string
		err := rows.Scan(&i)
		if err != nil {
			return nil, err
		}
		instances = append(instances, i)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return instances, nil
}

func deleteDuplicates(ctx context.Context, p *pgxpool.Pool, dups []string) error {
	if len(dups) == 0 {
		return nil
	}

	tx, err := p.Begin(ctx)
	if err != nil {
		return err
	}

	for _, d := range dups {
		sql := `DELETE FROM attributes WHERE instanceid=$1::uuid;`

		_, err := tx.Exec(ctx, sql, d)
		if err != nil {
			tx.Rollback(ctx)
			return err
		}
	}

	return tx.Commit(ctx)
}

func vacuum(ctx context.Context, p *pgxpool.Pool) error {
	_, err := p.Exec(ctx, "VACUUM ANALYZE attributes;")
	if err != nil {
		return err
	}

	return nil
}
