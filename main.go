package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crosspost/domain/repository"
	"crosspost/infrastructure/cache"
	facebookclient "crosspost/infrastructure/clients/facebook"
	instagramclient "crosspost/infrastructure/clients/instagram"
	pinterestclient "crosspost/infrastructure/clients/pinterest"
	snapchatclient "crosspost/infrastructure/clients/snapchat"
	"crosspost/infrastructure/clients/social"
	tiktokclient "crosspost/infrastructure/clients/tiktok"
	twitterclient "crosspost/infrastructure/clients/twitter"
	youtubeclient "crosspost/infrastructure/clients/youtube"
	"crosspost/infrastructure/configuration"
	"crosspost/infrastructure/logger"
	"crosspost/infrastructure/persistence"
	"crosspost/infrastructure/pubsub"
	"crosspost/infrastructure/realtime"
	"crosspost/infrastructure/servicebus"
	httpHandler "crosspost/interfaces/http"
	"crosspost/server"
	"crosspost/usecase"

	"golang.org/x/sync/errgroup"
)

var httpServer *http.Server

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	g, ctx := errgroup.WithContext(ctx)

	// Load env from files (non-destructive; OS env still has precedence)
	configuration.LoadEnvFromFile("config.env", ".env")

	app := configuration.C.App

	db, targetRepo, credRepo, err := InitiateDatabase()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Database initialization failed")
		os.Exit(1)
	}
	defer db.Close()

	mongoDb, err := persistence.NewMongoDb(
		configuration.C.Database.Mongo.Host,
		configuration.C.Database.Mongo.Port,
		configuration.C.Database.Mongo.User,
		configuration.C.Database.Mongo.Password,
		configuration.C.Database.Mongo.Name,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB not available - audit log disabled")
		mongoDb = nil
	} else if err := mongoDb.Ping(ctx, nil); err != nil {
		logger.GetLogger().WithField("error", err).Warn("MongoDB ping failed - audit log disabled")
		mongoDb = nil
	}

	pubSubClient, err := pubsub.NewPubSub(ctx, configuration.C.Pubsub.ProjectID)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Pub/Sub not available - audit topic disabled")
		pubSubClient = nil
	}
	azServiceBusClient, err := servicebus.NewServiceBus(ctx, configuration.C.ServiceBus.Namespace)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Azure Service Bus not available - audit queue disabled")
		azServiceBusClient = nil
	}
	redisClient, err := cache.NewCache(
		ctx,
		fmt.Sprintf("%s:%s", configuration.C.RedisClient.Host, configuration.C.RedisClient.Port),
		configuration.C.RedisClient.Username,
		configuration.C.RedisClient.Password,
	)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - destination cache disabled")
		redisClient = nil
	}

	httpClient := social.NewClient(nil)
	resolver := social.NewStaticURLResolver(configuration.C.Media.PublicBaseURL)
	registry := buildRegistry(httpClient, resolver)

	targetHub := realtime.NewTargetHub()
	auditRepo := persistence.NewAuditRepository(mongoDb)
	auditTopic := pubsub.NewAuditPubSub(pubSubClient, configuration.C.Pubsub.AuditTopic)
	auditQueue := servicebus.NewAuditServiceBus(azServiceBusClient, configuration.C.ServiceBus.AuditQueue)
	destinationCache := cache.NewDestinationCache(redisClient)

	reporter := usecase.NewStatusReporter(targetRepo, auditRepo, auditTopic, auditQueue, targetHub)
	tokens := usecase.NewTokenManager(credRepo, httpClient, configuration.C.Platforms, configuration.C.Simulation.SentinelToken)
	enhancer := usecase.NewMetadataEnhancer(nil)
	dispatcher := usecase.NewDispatcher(configuration.C.Dispatcher, registry, targetRepo, credRepo, tokens, reporter, enhancer)
	publishUsecase := usecase.NewPublishUsecase(targetRepo, credRepo, registry, dispatcher, destinationCache)

	publishHandler := httpHandler.NewPublishHandler(publishUsecase)
	router := server.InitiateRouter(publishHandler, targetHub, app.SecretKey)

	g.Go(func() error {
		return dispatcher.Start(ctx)
	})

	logger.GetLogger().WithFields(map[string]interface{}{"port": app.Port, "tls": app.TLSEnabled}).Info("Starting application")
	g.Go(func() error {
		httpServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", app.Port),
			Handler: router,
		}
		if app.TLSEnabled && app.TLSCertFile != "" && app.TLSKeyFile != "" {
			if err := httpServer.ListenAndServeTLS(app.TLSCertFile, app.TLSKeyFile); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateDatabase connects the relational store and returns vendor-matched
// repositories: MSSQL in production (or DB_VENDOR=mssql), PostgreSQL otherwise.
func InitiateDatabase() (*sql.DB, repository.ITarget, repository.ICredential, error) {
	env := os.Getenv("ENV")
	useMssql := os.Getenv("DB_VENDOR") == "mssql" || env == "production" || env == "prod"

	if useMssql {
		db, err := persistence.NewMSSQLDB()
		if err != nil {
			logger.GetLogger().WithField("error", err).Error("Cannot connect to MSSQL")
			return nil, nil, nil, err
		}
		if err := persistence.EnsurePublishSchemaMSSQL(db); err != nil {
			logger.GetLogger().WithField("error", err).Error("Failed ensuring publish schema (mssql)")
		}
		return db, persistence.NewTargetRepositoryMSSQL(db), persistence.NewCredentialRepositoryMSSQL(db), nil
	}

	db, err := persistence.NewPostgreSQLDB()
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Cannot connect to PostgreSQL")
		return nil, nil, nil, err
	}
	if err := persistence.EnsurePublishSchema(db); err != nil {
		logger.GetLogger().WithField("error", err).Error("Failed ensuring publish schema")
	}
	return db, persistence.NewTargetRepository(db), persistence.NewCredentialRepository(db), nil
}

// buildRegistry wires one adapter per platform, each wrapped in the
// sentinel-token simulation seam.
func buildRegistry(httpClient *social.Client, resolver repository.IMediaURLResolver) *social.Registry {
	platforms := configuration.C.Platforms
	simulation := configuration.C.Simulation
	delay := time.Duration(simulation.DelayMillis) * time.Millisecond

	registry := social.NewRegistry()
	adapters := []repository.IPlatformPublisher{
		youtubeclient.NewYouTubeClient(platforms.YouTube),
		instagramclient.NewInstagramClient(platforms.Instagram, httpClient, resolver),
		tiktokclient.NewTikTokClient(platforms.TikTok, httpClient),
		facebookclient.NewFacebookClient(platforms.Facebook, httpClient, resolver),
		twitterclient.NewTwitterClient(platforms.X, httpClient),
		snapchatclient.NewSnapchatClient(platforms.Snapchat, httpClient, resolver),
		pinterestclient.NewPinterestClient(platforms.Pinterest, httpClient, resolver),
	}
	for _, adapter := range adapters {
		registry.Register(social.WithSimulation(adapter, simulation.SentinelToken, delay))
	}
	return registry
}
