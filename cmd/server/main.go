// Server entry point: wiring and lifecycle only. Business logic lives in the
// internal service packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	dirsynchandler "hive/internal/dirsync/handler"
	"hive/internal/dirsync/runlock"
	dirsyncservice "hive/internal/dirsync/service"
	dirsyncstore "hive/internal/dirsync/store"
	dirsyncmemory "hive/internal/dirsync/store/memory"
	dirsyncpostgres "hive/internal/dirsync/store/postgres"

	"hive/internal/directory"
	"hive/internal/org/scope"
	orgstore "hive/internal/org/store"
	employeestore "hive/internal/org/store/employee"
	groupstore "hive/internal/org/store/group"
	membershipstore "hive/internal/org/store/membership"
	"hive/internal/platform/config"
	"hive/internal/platform/database"
	"hive/internal/platform/httpserver"
	"hive/internal/platform/logger"
	platformredis "hive/internal/platform/redis"
	httptransport "hive/internal/transport/http"
	validationhandler "hive/internal/validation/handler"
	validationservice "hive/internal/validation/service"
	validationstore "hive/internal/validation/store"
	validationmemory "hive/internal/validation/store/memory"
	validationpostgres "hive/internal/validation/store/postgres"
	"hive/pkg/platform/audit"
	kafkapublisher "hive/pkg/platform/audit/publishers/kafka"
	auditmemory "hive/pkg/platform/audit/store/memory"
	auditpostgres "hive/pkg/platform/audit/store/postgres"
	auditworker "hive/pkg/platform/audit/worker"
	"hive/pkg/platform/middleware/auth"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage. Without a database URL everything runs on in-memory stores,
	// which is enough for local development against a fake directory.
	var (
		employees   orgstore.EmployeeStore
		groups      orgstore.GroupStore
		memberships orgstore.MembershipStore
		runs        dirsyncstore.SyncRunStore
		requests    validationstore.RequestStore
		auditStore  audit.Store
	)
	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		var err error
		sqlDB, err = database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("database open failed", "error", err)
			os.Exit(1)
		}
		defer sqlDB.Close()
		employees = employeestore.NewPostgres(sqlDB)
		groups = groupstore.NewPostgres(sqlDB)
		memberships = membershipstore.NewPostgres(sqlDB)
		runs = dirsyncpostgres.New(sqlDB)
		requests = validationpostgres.New(sqlDB)
		auditStore = auditpostgres.New(sqlDB)
	} else {
		log.Warn("no database configured, using in-memory stores")
		employees = employeestore.NewInMemory()
		groups = groupstore.NewInMemory()
		memberships = membershipstore.NewInMemory()
		runs = dirsyncmemory.New()
		requests = validationmemory.New()
		auditStore = auditmemory.New()
	}

	// Run lock: cross-instance via redis when configured, process-local
	// otherwise. The ledger constraint backs it up either way.
	var lock runlock.Lock = runlock.NewMemory()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		lock = runlock.NewRedis(redisClient.Client, cfg.Sync.LockTTL)
	}

	// Audit trail: store append is synchronous, Kafka broadcast drains
	// through a background worker.
	recorderOpts := []audit.RecorderOption{audit.WithLogger(log)}
	var sink chan audit.Event
	var publisher *kafkapublisher.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher, err = kafkapublisher.New(cfg.KafkaBrokers)
		if err != nil {
			log.Error("kafka connect failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		if err := publisher.EnsureTopic(ctx); err != nil {
			log.Error("kafka topic setup failed", "error", err)
			os.Exit(1)
		}
		sink = audit.NewSinkChannel()
		recorderOpts = append(recorderOpts, audit.WithSinkChannel(sink))
	}
	recorder := audit.NewRecorder(auditStore, recorderOpts...)

	// Directory provider and the sync engine.
	directoryClient := directory.NewHTTPClient(
		cfg.Directory.BaseURL, cfg.Directory.Token, cfg.Directory.Namespace, cfg.Directory.Timeout)
	approvers := scope.NewStaticDirectory()
	resolver := scope.NewResolver(groups, approvers)

	fetcher := dirsyncservice.NewFetcher(directoryClient, cfg.Sync.FetchConcurrency, log)
	differ := dirsyncservice.NewDiffer(employees, groups, memberships, log)
	router := dirsyncservice.NewRouter(employees, groups, memberships, requests, resolver, recorder, log)
	syncService := dirsyncservice.NewService(runs, fetcher, differ, router, lock, recorder,
		dirsyncservice.WithLogger(log))
	scheduler := dirsyncservice.NewScheduler(syncService, cfg.Sync.Interval, log)

	validationService := validationservice.NewService(requests, employees, groups, memberships, resolver, recorder,
		validationservice.WithLogger(log))

	handler := httptransport.NewRouter(httptransport.Deps{
		Sync:       dirsynchandler.New(syncService, log),
		Validation: validationhandler.New(validationService, log),
		Auth:       auth.NewHMACValidator(cfg.JWTSigningKey),
		DB:         sqlDB,
		Logger:     log,
	})
	srv := httpserver.New(cfg.Addr, handler)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	group.Go(func() error {
		return scheduler.Run(groupCtx)
	})
	if sink != nil {
		group.Go(func() error {
			err := auditworker.New(publisher, sink, log).Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if err := group.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
