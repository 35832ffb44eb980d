// api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"nmafoods/api/batch"
	"nmafoods/api/catalog"
	"nmafoods/api/config"
	"nmafoods/api/database"
	"nmafoods/api/geo"
	"nmafoods/api/handlers"
	"nmafoods/api/ingest"
	"nmafoods/api/logging"
	"nmafoods/api/mail"
	"nmafoods/api/middleware"
	"nmafoods/api/models"
	"nmafoods/api/perf"
	"nmafoods/api/session"
	"nmafoods/api/sitemap"
	"nmafoods/api/store"
	"nmafoods/api/tracing"
	"nmafoods/api/tracker"
	"nmafoods/api/utils"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("failed to load config")
	}
	log := logging.New(cfg.AppEnv)

	if cfg.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTel, "nmafoods-api")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}

	// --- PostgreSQL (users, sessions, content, subscriptions, SEO) ---
	dbClient, err := database.NewPostgresDB(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PostgreSQL")
	}
	if err := database.EnsurePostgresSchema(ctx, dbClient.DB); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap PostgreSQL schema")
	}

	// --- ClickHouse (events, conversions, performance) ---
	chClient, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize ClickHouse")
	}
	if err := chClient.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to bootstrap ClickHouse schema")
	}

	userStore := store.NewUserStore(dbClient.DB)
	sessionStore := store.NewSessionStore(dbClient.DB)
	contentStore := store.NewContentStore(dbClient.DB)
	subscriptionStore := store.NewSubscriptionStore(dbClient.DB)
	seoStore := store.NewSEOStore(dbClient.DB)
	analyticsStore := store.NewAnalyticsStore(chClient.Conn, log)

	// --- Batching pipeline ---
	sinks := newSinks(cfg, analyticsStore, log)
	batchOpts := []batch.Option{batch.WithLogger(log)}

	events := batch.New[models.AnalyticsEvent](batch.Config{
		Name:        "analytics_events",
		Size:        cfg.Analytics.BatchSize,
		Timeout:     cfg.Analytics.BatchTimeout,
		MaxQueue:    cfg.Analytics.MaxQueue,
		SendTimeout: cfg.Analytics.SendTimeout,
	}, sinks.events, batchOpts...)
	conversions := batch.New[models.Conversion](batch.Config{
		Name:        "conversion_events",
		Size:        cfg.Analytics.BatchSize,
		Timeout:     cfg.Analytics.BatchTimeout,
		MaxQueue:    cfg.Analytics.MaxQueue,
		SendTimeout: cfg.Analytics.SendTimeout,
	}, sinks.conversions, batchOpts...)
	metrics := batch.New[models.PerformanceMetric](batch.Config{
		Name:        "performance_metrics",
		Size:        cfg.Performance.BatchSize,
		Timeout:     cfg.Performance.BatchTimeout,
		MaxQueue:    cfg.Analytics.MaxQueue,
		SendTimeout: cfg.Analytics.SendTimeout,
	}, sinks.metrics, batchOpts...)

	trackerOpts := []tracker.Option{
		tracker.WithCurrency(cfg.Analytics.DefaultCurrency),
		tracker.WithLogger(log),
	}

	var tags *batch.Batcher[tracker.TagEvent]
	if cfg.GA4.MeasurementID != "" {
		ga4, err := tracker.NewGA4(cfg.GA4, nil)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid GA4 configuration")
		}
		tags = batch.New[tracker.TagEvent](batch.Config{
			Name:        "ga4",
			Size:        tracker.GA4MaxEvents,
			Timeout:     cfg.Analytics.BatchTimeout,
			MaxQueue:    cfg.Analytics.MaxQueue,
			SendTimeout: cfg.Analytics.SendTimeout,
		}, ga4, batchOpts...)
		trackerOpts = append(trackerOpts, tracker.WithTag(tags))
	} else {
		log.Info().Msg("GA4 measurement id not set, tag mirroring disabled")
	}

	resolver, err := geo.NewResolver(cfg.GeoIPDBPath, log)
	if err != nil {
		log.Warn().Err(err).Msg("geoip database unavailable, locations will be empty")
	}
	if resolver != nil {
		trackerOpts = append(trackerOpts, tracker.WithLocator(resolver))
	}

	track := tracker.New(events, conversions, trackerOpts...)
	monitor := perf.NewMonitor(metrics, log)

	sessions := session.NewManager(sessionStore,
		session.WithWindow(cfg.Analytics.SessionIdle),
		session.WithSampler(perf.NewSampler(cfg.Performance.SampleRate, uint64(time.Now().UnixNano()))),
		session.WithLogger(log),
	)
	visitor := handlers.Visitor{Sessions: sessions, SecureCookie: cfg.AppEnv == "production", CookieKey: []byte(cfg.JWTSecret)}

	// --- Catalog, mail, sitemap ---
	var source catalog.Source
	if cfg.ShopifyConfigured() {
		source = catalog.NewShopify(cfg.Shopify, nil)
	} else {
		log.Info().Msg("Shopify not configured, serving the built-in catalog")
	}
	cat := catalog.New(source, log)

	var mailer handlers.Mailer
	if cfg.Resend.APIKey != "" {
		mailer = mail.NewMailer(mail.NewResend(cfg.Resend, cfg.FromEmail(), nil), subscriptionStore, cfg.SiteBaseURL, log)
	} else {
		log.Info().Msg("RESEND_API_KEY not set, outgoing mail disabled")
	}

	siteMap := sitemap.NewGenerator(cfg.SiteBaseURL, seoStore, cat, log)

	// --- Handlers ---
	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authHandlers := handlers.NewAuthHandlers(userStore, issuer, cfg.JWTTTL, track, visitor, log)
	trackHandlers := handlers.NewTrackHandlers(track, monitor, visitor, log)
	statsHandlers := handlers.NewStatsHandlers(analyticsStore, sessionStore, log)
	catalogHandlers := handlers.NewCatalogHandlers(cat, track, visitor, log)
	newsletterHandlers := handlers.NewNewsletterHandlers(subscriptionStore, mailer, track, visitor, log)
	contentHandlers := handlers.NewContentHandlers(contentStore, log)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORSMiddleware(cfg.FrontendOrigin))
	r.Use(middleware.OptionalAuth(issuer))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/sitemap.xml", handlers.Sitemap(siteMap, log))

	api := r.Group("/api")
	{
		api.POST("/signup", authHandlers.Signup)
		api.POST("/login", authHandlers.Login)
		api.POST("/logout", authHandlers.Logout)

		// Beacons from the storefront; the visitor needs no account.
		api.POST("/track", trackHandlers.TrackEvents)
		api.POST("/track/pageview", trackHandlers.TrackPageView)
		api.POST("/track/conversion", trackHandlers.TrackConversion)
		api.POST("/track/ecommerce", trackHandlers.TrackEcommerce)
		api.POST("/track/engagement", trackHandlers.TrackEngagement)
		api.POST("/track/performance", trackHandlers.TrackPerformance)
		api.POST("/sessions/start", trackHandlers.StartSession)
		api.POST("/sessions/end", trackHandlers.EndSession)

		api.GET("/products", catalogHandlers.Products)
		api.GET("/products/:handle", catalogHandlers.Product)
		api.GET("/products/:handle/reviews", contentHandlers.Reviews)
		api.POST("/products/:handle/reviews", contentHandlers.CreateReview)
		api.GET("/collections", catalogHandlers.Collections)
		api.GET("/search", catalogHandlers.Search)

		api.GET("/recipes", contentHandlers.Recipes)
		api.POST("/recipes", contentHandlers.CreateRecipe)
		api.GET("/community", contentHandlers.Community)
		api.POST("/community", contentHandlers.CreateCommunityPost)

		api.POST("/newsletter/subscribe", newsletterHandlers.Subscribe)
		api.POST("/newsletter/unsubscribe", newsletterHandlers.Unsubscribe)

		protected := api.Group("/")
		protected.Use(middleware.AuthRequired(issuer, cfg.AuthDefault, log))
		{
			protected.GET("/profile", authHandlers.Profile)
			protected.POST("/newsletter/campaigns", newsletterHandlers.SendCampaign)

			stats := protected.Group("/stats")
			{
				stats.GET("/event-counts", statsHandlers.EventCounts())
				stats.GET("/unique-users", statsHandlers.UniqueUsers())
				stats.GET("/average-custom-param", statsHandlers.AverageCustomParam())
				stats.GET("/top-paths", statsHandlers.TopPaths())
				stats.GET("/top-events", statsHandlers.TopEvents())
				stats.GET("/funnel", statsHandlers.Funnel())
				stats.GET("/performance", statsHandlers.Performance())
				stats.GET("/session-duration", statsHandlers.SessionDuration())
				stats.GET("/devices", statsHandlers.Devices())
				stats.GET("/traffic-sources", statsHandlers.TrafficSources())
			}
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("event_sink", cfg.EventSink).Msg("API server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}

	// Requests are drained; flush what they queued before closing the sinks.
	closers := []closer{
		{"analytics_events", events.Close},
		{"conversion_events", conversions.Close},
		{"performance_metrics", metrics.Close},
		{"sessions", sessions.Close},
	}
	if tags != nil {
		closers = append(closers, closer{"ga4", tags.Close})
	}
	for _, c := range closers {
		if err := c.close(ctx); err != nil {
			log.Error().Err(err).Str("component", c.name).Msg("shutdown incomplete")
		}
	}

	if err := sinks.close(); err != nil {
		log.Error().Err(err).Msg("failed to close event sinks")
	}
	if resolver != nil {
		_ = resolver.Close()
	}
	chClient.Close()
	dbClient.Close()
	if err := shutdownTracing(ctx); err != nil {
		log.Error().Err(err).Msg("tracing shutdown failed")
	}

	log.Info().Msg("server exited")
}

type closer struct {
	name  string
	close func(context.Context) error
}

type eventSinks struct {
	events      batch.Sink[models.AnalyticsEvent]
	conversions batch.Sink[models.Conversion]
	metrics     batch.Sink[models.PerformanceMetric]
	close       func() error
}

// newSinks picks where flushed batches go. With EVENT_SINK=kafka the API
// only publishes and cmd/worker writes to ClickHouse.
func newSinks(cfg *config.Config, analytics *store.AnalyticsStore, log zerolog.Logger) eventSinks {
	if cfg.EventSink == "kafka" {
		eventsWriter := ingest.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.EventsTopic)
		conversionsWriter := ingest.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.ConversionsTopic)
		metricsWriter := ingest.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.PerformanceTopic)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Msg("publishing analytics to Kafka")

		return eventSinks{
			events:      ingest.NewProducer(eventsWriter, func(e models.AnalyticsEvent) string { return e.SessionID }),
			conversions: ingest.NewProducer(conversionsWriter, func(c models.Conversion) string { return c.SessionID }),
			metrics:     ingest.NewProducer(metricsWriter, func(m models.PerformanceMetric) string { return m.SessionID }),
			close: func() error {
				return errors.Join(eventsWriter.Close(), conversionsWriter.Close(), metricsWriter.Close())
			},
		}
	}

	return eventSinks{
		events:      batch.SinkFunc[models.AnalyticsEvent](analytics.InsertEvents),
		conversions: batch.SinkFunc[models.Conversion](analytics.InsertConversions),
		metrics:     batch.SinkFunc[models.PerformanceMetric](analytics.InsertPerformance),
		close:       func() error { return nil },
	}
}
