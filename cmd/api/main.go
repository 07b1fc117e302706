package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/uplay-sg/api/internal/handlers"
	"github.com/uplay-sg/api/internal/payments"
	"github.com/uplay-sg/api/internal/platform/auth"
	"github.com/uplay-sg/api/internal/platform/config"
	pfirestore "github.com/uplay-sg/api/internal/platform/firestore"
	"github.com/uplay-sg/api/internal/platform/idempotency"
	"github.com/uplay-sg/api/internal/platform/jobs"
	"github.com/uplay-sg/api/internal/platform/observability"
	"github.com/uplay-sg/api/internal/platform/secrets"
	firestoreRepo "github.com/uplay-sg/api/internal/repositories/firestore"
	"github.com/uplay-sg/api/internal/services"
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := secrets.NewFetcher(ctx,
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithDefaultProject(defaultSecretProject()),
	)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(config.SecretResolverFunc(fetcher.Resolve)),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	buildInfo := buildInfoFromEnv(startedAt)

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := firestoreProvider.Close(closeCtx); err != nil {
			logger.Warn("firestore close error", zap.Error(err))
		}
	}()

	registry, err := firestoreRepo.NewRegistry(firestoreProvider)
	if err != nil {
		logger.Fatal("failed to initialise firestore repositories", zap.Error(err))
	}

	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		logger.Fatal("failed to initialise firestore client", zap.Error(err))
	}

	idempotencyStore := idempotency.NewFirestoreStore(firestoreClient)
	idempotencyMiddleware := idempotency.Middleware(
		idempotencyStore,
		idempotency.WithTTL(cfg.Checkout.IdempotencyTTL),
		idempotency.WithLogger(observability.NewPrintfAdapter(logger.Named("idempotency"))),
	)

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier,
		auth.WithUserGetter(firebaseVerifier),
		auth.WithFallbackRole(auth.RoleUser),
	)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.Firestore.ProjectID)
	if err != nil {
		logger.Fatal("failed to initialise pubsub client", zap.Error(err))
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}()
	reconcileTopic := pubsubClient.Topic(cfg.Jobs.ReconcileTopic)
	defer reconcileTopic.Stop()

	escalations, err := jobs.NewPubSubReconciliationPublisher(reconcileTopic)
	if err != nil {
		logger.Fatal("failed to initialise escalation publisher", zap.Error(err))
	}

	stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
		APIKey:        cfg.Stripe.APIKey,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        zapEventLogger(logger.Named("payments")),
		Clock:         time.Now,
	})
	if err != nil {
		logger.Fatal("failed to initialise stripe provider", zap.Error(err))
	}

	pricingEngine, err := services.NewPricingEngine(services.PricingEngineDeps{
		Logger: zapEventLogger(logger.Named("pricing")),
	})
	if err != nil {
		logger.Fatal("failed to initialise pricing engine", zap.Error(err))
	}

	redemptionService, err := services.NewVoucherRedemptionService(services.VoucherRedemptionServiceDeps{
		Vouchers: registry.Vouchers(),
		Perks:    registry.Perks(),
		Pricing:  pricingEngine,
		Logger:   zapEventLogger(logger.Named("vouchers")),
	})
	if err != nil {
		logger.Fatal("failed to initialise voucher redemption service", zap.Error(err))
	}

	checkoutInitiator, err := services.NewCheckoutSessionInitiator(services.CheckoutSessionInitiatorDeps{
		Redemption:     redemptionService,
		Payments:       stripeProvider,
		Currency:       cfg.Checkout.Currency,
		SuccessURL:     cfg.Checkout.SuccessURL,
		CancelURL:      cfg.Checkout.CancelURL,
		PaymentMethods: cfg.Checkout.PaymentMethods,
		Clock:          time.Now,
		Logger:         zapEventLogger(logger.Named("checkout")),
	})
	if err != nil {
		logger.Fatal("failed to initialise checkout initiator", zap.Error(err))
	}

	fulfillmentService, err := services.NewOrderFulfillmentService(services.OrderFulfillmentServiceDeps{
		IDGenerator: func() string { return ulid.Make().String() },
		Clock:       time.Now,
		Logger:      zapEventLogger(logger.Named("fulfillment")),
	})
	if err != nil {
		logger.Fatal("failed to initialise fulfillment service", zap.Error(err))
	}

	tierEngine, err := services.NewTierProgressionEngine(services.TierProgressionEngineDeps{
		Logger: zapEventLogger(logger.Named("tiers")),
	})
	if err != nil {
		logger.Fatal("failed to initialise tier progression engine", zap.Error(err))
	}

	tierService, err := services.NewTierService(services.TierServiceDeps{
		Tiers:       registry.Tiers(),
		IDGenerator: func() string { return ulid.Make().String() },
		Clock:       time.Now,
		Logger:      zapEventLogger(logger.Named("tiers")),
	})
	if err != nil {
		logger.Fatal("failed to initialise tier service", zap.Error(err))
	}

	eventProcessor, err := services.NewPaymentEventProcessor(services.PaymentEventProcessorDeps{
		Verifier:    stripeProvider,
		Store:       registry.Fulfillment(),
		Fulfillment: fulfillmentService,
		Tiers:       tierEngine,
		Escalations: escalations,
		Clock:       time.Now,
		Logger:      zapEventLogger(logger.Named("payment_events")),
	})
	if err != nil {
		logger.Fatal("failed to initialise payment event processor", zap.Error(err))
	}

	meHandlers := handlers.NewMeHandlers(authenticator, registry.Users(), registry.Carts(), registry.Orders(), registry.Tiers())
	checkoutHandlers := handlers.NewCheckoutHandlers(authenticator, checkoutInitiator, registry.Carts(), cfg.Checkout.SessionRatePerMinute)
	tierHandlers := handlers.NewTierHandlers(authenticator, tierService)
	webhookHandlers := handlers.NewWebhookHandlers(eventProcessor)

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfo),
		handlers.WithHealthRepository(registry.Health()),
	)

	projectID := cfg.Firestore.ProjectID
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	router := handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithMeRoutes(meHandlers.Routes),
		handlers.WithCheckoutRoutes(func(r chi.Router) {
			checkoutHandlers.Routes(r)
			webhookHandlers.Routes(r)
		}),
		handlers.WithCheckoutMiddlewares(idempotencyMiddleware),
		handlers.WithTierRoutes(tierHandlers.Routes),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(router, "uplay-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("uplay api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// zapEventLogger adapts the services' event logger hook to zap.
func zapEventLogger(logger *zap.Logger) func(ctx context.Context, event string, fields map[string]any) {
	return func(_ context.Context, event string, fields map[string]any) {
		zFields := make([]zap.Field, 0, len(fields)+1)
		zFields = append(zFields, zap.String("event", event))
		for k, v := range fields {
			zFields = append(zFields, zap.Any(k, v))
		}
		logger.Debug("service event", zFields...)
	}
}

func buildInfoFromEnv(started time.Time) handlers.BuildInfo {
	return handlers.BuildInfo{
		Version:     strings.TrimSpace(os.Getenv("API_BUILD_VERSION")),
		CommitSHA:   strings.TrimSpace(os.Getenv("API_BUILD_COMMIT")),
		Environment: strings.TrimSpace(os.Getenv("API_ENVIRONMENT")),
		StartedAt:   started,
	}
}

func defaultSecretProject() string {
	for _, key := range []string{"API_SECRETS_PROJECT_ID", "API_FIRESTORE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"} {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}
