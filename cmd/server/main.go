// Command server wires configuration, stores, services, and the HTTP router,
// and runs the process lifecycle. Business logic lives in internal services.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	eligibilitysvc "tessera/internal/eligibility/service"
	commitmentstore "tessera/internal/eligibility/store/commitment"
	"tessera/internal/eligibility/verifier"
	"tessera/internal/oracle/attestation"
	oraclemetrics "tessera/internal/oracle/metrics"
	oraclesvc "tessera/internal/oracle/service"
	snapshotstore "tessera/internal/oracle/store/snapshot"
	"tessera/internal/platform/config"
	"tessera/internal/platform/httpserver"
	"tessera/internal/platform/logger"
	platformmetrics "tessera/internal/platform/metrics"
	platformredis "tessera/internal/platform/redis"
	registrymetrics "tessera/internal/registry/metrics"
	registrysvc "tessera/internal/registry/service"
	assetstore "tessera/internal/registry/store/asset"
	balancestore "tessera/internal/registry/store/balance"
	"tessera/internal/transfer"
	specstore "tessera/internal/transfer/store/spec"
	httptransport "tessera/internal/transport/http"
	valuationsvc "tessera/internal/valuation/service"
	"tessera/pkg/domain"
	"tessera/pkg/platform/events"
	kafkapub "tessera/pkg/platform/events/publishers/kafka"
	eventsmemory "tessera/pkg/platform/events/store/memory"
	eventspostgres "tessera/pkg/platform/events/store/postgres"
	"tessera/pkg/platform/events/worker"
	"tessera/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	admin := domain.NewAdminCapability(cfg.AdminKey)
	if cfg.AdminKey == "" {
		log.Warn("no admin key configured, authority endpoints are disabled")
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Durable stores when postgres is configured, memory otherwise.
	var (
		db          *sql.DB
		runner      tx.Runner = tx.NoopRunner{}
		assets      registrysvc.AssetStore
		balances    registrysvc.BalanceStore
		commitments eligibilitysvc.CommitmentStore
		specs       transfer.SpecStore
		eventStore  events.Store
	)
	if cfg.Postgres.DSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		runner = tx.NewSQLRunner(db)
		assets = assetstore.NewPostgres(db)
		balances = balancestore.NewPostgres(db)
		commitments = commitmentstore.NewPostgres(db)
		specs = specstore.NewPostgres(db)
		eventStore = eventspostgres.New(db)
		log.Info("using postgres stores")
	} else {
		assets = assetstore.NewInMemoryStore()
		balances = balancestore.NewInMemoryStore()
		commitments = commitmentstore.NewInMemoryStore()
		specs = specstore.NewInMemoryStore()
		eventStore = eventsmemory.NewInMemoryStore()
		log.Info("using in-memory stores")
	}

	// Shared snapshot cache when redis is configured.
	var snapshots oraclesvc.SnapshotStore = snapshotstore.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		snapshots = snapshotstore.NewRedisStore(redisClient.Client)
		log.Info("using redis snapshot store")
	}

	// Events: the store is the sink of record; Kafka is a best-effort mirror
	// drained by a background worker.
	publisher := events.Fanout{events.NewStorePublisher(eventStore, log)}
	g, ctx := errgroup.WithContext(ctx)
	if len(cfg.Kafka.Brokers) > 0 {
		mirror, err := kafkapub.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer mirror.Close()
		channel := events.NewChannelPublisher(1024, log)
		publisher = append(publisher, channel)
		g.Go(func() error {
			err := worker.NewWorker(mirror, channel.Events(), log).Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
		log.Info("mirroring events to kafka", "topic", cfg.Kafka.Topic)
	}

	feedSecrets := make(map[domain.FeedID][]byte, len(cfg.Oracle.FeedSecrets))
	supportedFeeds := make([]domain.FeedID, 0, len(cfg.Oracle.FeedSecrets))
	for feed, secret := range cfg.Oracle.FeedSecrets {
		feedSecrets[domain.FeedID(feed)] = []byte(secret)
		supportedFeeds = append(supportedFeeds, domain.FeedID(feed))
	}

	oracle := oraclesvc.New(snapshots, attestation.NewJWTVerifier(feedSecrets), admin, supportedFeeds,
		oraclesvc.WithLogger(log),
		oraclesvc.WithPublisher(publisher),
		oraclesvc.WithMetrics(oraclemetrics.New(promReg)),
		oraclesvc.WithFeeCalculator(oraclesvc.FlatFee(cfg.Oracle.UpdateFeeMinor)),
		oraclesvc.WithStalenessThreshold(cfg.Oracle.StalenessThreshold),
	)

	eligibility := eligibilitysvc.New(commitments, verifier.NewGroth16Verifier(), admin,
		eligibilitysvc.WithLogger(log),
		eligibilitysvc.WithPublisher(publisher),
	)

	policy := transfer.NewValidator(specs, admin)

	registry := registrysvc.New(assets, balances, eligibility, oracle, policy,
		registrysvc.WithLogger(log),
		registrysvc.WithPublisher(publisher),
		registrysvc.WithMetrics(registrymetrics.New(promReg)),
		registrysvc.WithTxRunner(runner),
	)

	valuation := valuationsvc.New(assets, oracle, admin, valuationsvc.WithLogger(log))

	router := httptransport.NewRouter(httptransport.Deps{
		Registry:    registry,
		Eligibility: eligibility,
		Oracle:      oracle,
		Valuation:   valuation,
		Policy:      policy,
		Admin:       admin,
		Logger:      log,
		Gatherer:    promReg,
		Metrics:     platformmetrics.NewHTTP(promReg),
		Health: func(r *http.Request) error {
			if db != nil {
				if err := db.PingContext(r.Context()); err != nil {
					return err
				}
			}
			if redisClient != nil {
				return redisClient.Health(r.Context())
			}
			return nil
		},
	})

	srv := httpserver.New(cfg.Addr, router)
	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
