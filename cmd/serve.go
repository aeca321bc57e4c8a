package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"food-order/config"
	"food-order/events"
	"food-order/handlers"
	"food-order/middleware"
	"food-order/payments"
	"food-order/policy"
	"food-order/repository"
	"food-order/routes"
	"food-order/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Examples:
  food-order serve
  food-order serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log := bootstrap()
			if addr == "" {
				addr = ":" + cfg.Port
			}
			return runServe(cmd.Context(), cfg, log, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to :$PORT)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, log zerolog.Logger, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	store := repository.NewStore(db)

	var pub events.Publisher = events.NewLogPublisher(log)
	if len(cfg.KafkaBrokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic))
		defer kp.Close()
		pub = kp
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("publishing lifecycle events to kafka")
	}

	var seen services.SeenCache
	if cfg.RedisAddr != "" {
		rdb := events.NewRedis(cfg.RedisAddr)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unavailable, webhook replays fall back to the database")
		} else {
			seen = events.NewRedisSeenCache(rdb, cfg.SeenTTL)
		}
	}

	if cfg.StripeSecretKey == "" {
		log.Warn().Msg("STRIPE_SECRET_KEY is empty, payment calls will fail")
	}
	provider := payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret)

	orders := services.NewOrderService(store, pub, log)
	deliveries := services.NewDeliveryService(store, orders, pub, log)
	paymentSvc := services.NewPaymentService(store, orders, provider, seen, pub, log, cfg.Currency)

	tokens := policy.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	h := handlers.New(store, tokens, orders, deliveries, paymentSvc, log)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 10*time.Minute)
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log), middleware.CORS(), middleware.RateLimit(limiter))
	routes.SetupRoutes(r, h, policy.NewVerifier(tokens, store.Repos().Users))

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("db", cfg.DBDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
