package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourbook/config"
	"tourbook/cron"
	"tourbook/database"
	"tourbook/handlers"
	"tourbook/middleware"
	"tourbook/routes"
	"tourbook/services/booking"
	"tourbook/services/inventory"
	"tourbook/services/notification"
	"tourbook/services/payment"
	"tourbook/services/pricing"
	"tourbook/services/reconcile"
	"tourbook/services/voucher"
	"tourbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()
	defer logger.Sync()
	cfg := config.AppConfig

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	store, err := database.OpenStore(ctx)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to open store: %v", err)
	}
	cache := utils.GetCacheClient()

	redisOpts := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisQueueDB,
	}
	queue := asynq.NewClient(redisOpts)
	defer queue.Close()

	// notifications.
	var sender notification.Sender = &notification.LogSender{Logger: logger}
	fcm, err := utils.FirebaseMessaging(ctx)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize firebase: %v", err)
	}
	if fcm != nil {
		sender = &notification.FCMSender{Client: fcm, Logger: logger}
	}
	dispatcher := &notification.AsynqDispatcher{Client: queue, Logger: logger}

	// gateways.
	var gateways []payment.Gateway
	var vnpay *payment.VNPay
	var stripeGateway *payment.Stripe
	if cfg.VNPayEnabled() {
		vnpay = payment.NewVNPay(payment.VNPayConfig{
			TmnCode:    cfg.VNPayTmnCode,
			HashSecret: cfg.VNPayHashSecret,
			PayURL:     cfg.VNPayPayURL,
			ReturnURL:  cfg.VNPayReturnURL,
			Currency:   cfg.Currency,
		})
		gateways = append(gateways, vnpay)
	}
	if cfg.StripeEnabled() {
		stripe.Key = cfg.StripeKey
		stripeGateway = payment.NewStripe(payment.StripeConfig{
			WebhookSecret: cfg.StripeWebhookSecret,
			SuccessURL:    cfg.StripeSuccessURL,
			CancelURL:     cfg.StripeCancelURL,
		})
		gateways = append(gateways, stripeGateway)
	}

	// services.
	ledger := &inventory.DefaultLedger{Logger: logger}
	reconciler := &reconcile.DefaultReconciler{
		Store:    store,
		Ledger:   ledger,
		Notifier: dispatcher,
		Logger:   logger,
	}
	workflow := &booking.DefaultWorkflow{
		Store:      store,
		Ledger:     ledger,
		Pricing:    &pricing.DefaultCalculator{},
		Vouchers:   &voucher.DefaultEvaluator{Logger: logger},
		Gateways:   payment.NewRegistry(gateways...),
		Redirects:  &payment.RedisRedirectCache{Client: cache},
		Reconciler: reconciler,
		Notifier:   dispatcher,
		Validate:   booking.NewValidator(),
		Logger:     logger,
		Currency:   cfg.Currency,
		PendingTTL: cfg.BookingPendingTTL,
	}

	worker, err := cron.NewWorker(redisOpts, workflow, sender, cfg.ExpirySweepCron, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to set up worker: %v", err)
	}
	worker.Start()
	utils.StartHealthMonitor(ctx, store, cache, 30*time.Second)

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.RateLimitMiddleware(cfg.MaxRequestsPerMin))

	handlerBundle := &handlers.HandlerBundle{
		Bookings: handlers.NewBookingHandler(workflow, logger),
		Payments: handlers.NewPaymentHandler(reconciler, vnpay, stripeGateway, logger),
	}
	routes.RegisterRoutes(router, handlerBundle, cfg.CORSOrigins)

	// Start the HTTP server.
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting server",
		zap.String("addr", srv.Addr),
		zap.String("store", cfg.StoreDriver),
		zap.Bool("vnpay", vnpay != nil),
		zap.Bool("stripe", stripeGateway != nil))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Errorf("main: server forced to shutdown: %v", err)
	}
	worker.Shutdown()
	database.Close(shutdownCtx)

	logger.Sugar().Info("main: server stopped gracefully")
}
