package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/diwise/service-chassis/pkg/infrastructure/buildinfo"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	contextbroker "github.com/diwise/temporal-context-broker/internal/pkg/application/context-broker"
	"github.com/diwise/temporal-context-broker/internal/pkg/application/temporal"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/jsonld"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/router"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/storage/memory"
	"github.com/diwise/temporal-context-broker/internal/pkg/infrastructure/storage/postgres"
	ngsild "github.com/diwise/temporal-context-broker/internal/pkg/presentation/api/ngsi-ld"
)

const serviceName string = "temporal-context-broker"

func main() {
	serviceVersion := buildinfo.SourceVersion()

	flags := parseExternalConfig(context.Background(), DefaultFlags())

	ctx, logger, cleanup := o11y.Init(context.Background(), serviceName, serviceVersion, flags[logFormat])
	defer cleanup()

	brokerConfig, err := os.Open(flags[configPath])
	if err != nil {
		logger.Error("failed to open broker configuration", "path", flags[configPath], "err", err.Error())
		os.Exit(1)
	}

	policies, err := os.Open(flags[opaPath])
	if err != nil {
		logger.Error("failed to open authorization policies", "path", flags[opaPath], "err", err.Error())
		os.Exit(1)
	}

	handler, closeStore, err := initialize(ctx, brokerConfig, policies, postgres.LoadConfiguration(ctx))
	brokerConfig.Close()
	policies.Close()

	if err != nil {
		logger.Error("failed to initialize service", "err", err.Error())
		os.Exit(1)
	}
	defer closeStore()

	addr := flags[listenAddress] + ":" + flags[servicePort]
	logger.Info("starting to listen for connections", "addr", addr)

	err = http.ListenAndServe(addr, handler)
	if err != nil {
		logger.Error("failed to listen for connections", "err", err.Error())
	}
}

func initialize(ctx context.Context, brokerConfig, policies io.Reader, dbConfig postgres.Config) (http.Handler, func(), error) {
	cfg, err := contextbroker.LoadConfiguration(brokerConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load broker configuration: %w", err)
	}

	resolver := jsonld.New(cfg.JSONLD)

	store, closeStore, err := newStore(ctx, *cfg, dbConfig, resolver)
	if err != nil {
		return nil, nil, err
	}

	app, err := contextbroker.New(ctx, *cfg, store, resolver)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	contextDocument, err := resolver.ContextDocument()
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("failed to render the default context: %w", err)
	}

	r := router.New(serviceName)

	err = ngsild.RegisterHandlers(ctx, r, policies, app, contextDocument)
	if err != nil {
		closeStore()
		return nil, nil, err
	}

	return r, closeStore, nil
}

// newStore connects to postgres when a database host is configured and falls
// back to an in-memory store, seeded from the tenant configuration, otherwise
func newStore(ctx context.Context, cfg contextbroker.Config, dbConfig postgres.Config, resolver *jsonld.Resolver) (temporal.AttributeInstanceStore, func(), error) {
	log := logging.GetFromContext(ctx)

	if dbConfig.IsConfigured() {
		pool, err := postgres.Connect(ctx, dbConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		store := postgres.New(pool)

		if err = store.Migrate(ctx); err != nil {
			store.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}

		return store, store.Close, nil
	}

	log.Info("no database configured, using an in-memory store")

	store := memory.New()

	for _, tenant := range cfg.Tenants {
		if tenant.Seed == "" {
			continue
		}

		f, err := os.Open(tenant.Seed)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open seed file for tenant %s: %w", tenant.ID, err)
		}

		count, err := store.Load(ctx, tenant.ID, f, resolver.Expand)
		f.Close()

		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed tenant %s: %w", tenant.ID, err)
		}

		log.Info("seeded tenant", "tenant", tenant.ID, "entities", count)
	}

	return store, func() {}, nil
}
