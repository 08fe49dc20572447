package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loiphan2202/BAT/access"
	"github.com/loiphan2202/BAT/assets"
	"github.com/loiphan2202/BAT/booking"
	"github.com/loiphan2202/BAT/config"
	"github.com/loiphan2202/BAT/db"
	"github.com/loiphan2202/BAT/destinations"
	"github.com/loiphan2202/BAT/ledger"
	"github.com/loiphan2202/BAT/middleware"
	"github.com/loiphan2202/BAT/notify"
	"github.com/loiphan2202/BAT/payment"
	"github.com/loiphan2202/BAT/ratelim"
	"github.com/loiphan2202/BAT/rdx"
	"github.com/loiphan2202/BAT/requests"
	"github.com/loiphan2202/BAT/routes"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// dispatcher is the notification transport plus how to stop it.
type dispatcher struct {
	notify.Dispatcher
	stop func(ctx context.Context) error
}

func newDispatcher(cfg *config.Config, conn *redis.Client, log *logrus.Logger) dispatcher {
	var sender notify.Sender = notify.LogSender{Log: log}
	if cfg.SMTPHost != "" {
		sender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	} else {
		log.Warn("SMTP_HOST not set; emails are only logged")
	}

	if cfg.NotifyTransport == "redis" {
		// request path → in-process queue → LPUSH; RunWorker → sender
		rq := notify.NewRedisQueue(conn, notify.DefaultRedisKey)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			rq.RunWorker(ctx, sender, log.WithField("component", "notify"))
		}()
		q := notify.NewQueue(rq, log.WithField("component", "notify-push"), cfg.NotifyWorkers, cfg.NotifyQueueSize)
		q.Start()
		return dispatcher{Dispatcher: q, stop: func(stopCtx context.Context) error {
			err := q.Stop(stopCtx)
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return err
		}}
	}

	q := notify.NewQueue(sender, log.WithField("component", "notify"), cfg.NotifyWorkers, cfg.NotifyQueueSize)
	q.Start()
	return dispatcher{Dispatcher: q, stop: q.Stop}
}

func newPayments(cfg *config.Config, log *logrus.Logger) (payment.Gateway, payment.Verifier) {
	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set; using the local stub gateway")
		return payment.StubGateway{}, payment.ClientAssertedVerifier{}
	}
	gw := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeAPIBase, cfg.GatewayTimeout, log.WithField("component", "stripe"))
	if cfg.PaymentVerification == "gateway" {
		return gw, payment.NewStripeVerifier(gw)
	}
	return gw, payment.ClientAssertedVerifier{}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := cfg.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	client, database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		cancel()
		log.WithError(err).Fatal("MongoDB unavailable")
	}
	store := ledger.NewMongoStore(database)
	if err := store.EnsureIndexes(ctx); err != nil {
		cancel()
		log.WithError(err).Fatal("could not create ledger indexes")
	}

	var (
		conn   *redis.Client
		locker booking.Locker
	)
	if cfg.RedisAddr != "" {
		conn, err = rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		switch {
		case err != nil && cfg.NotifyTransport == "redis":
			cancel()
			log.WithError(err).Fatal("Redis unavailable")
		case err != nil:
			log.WithError(err).Warn("Redis unavailable; reconciliation relies on the paymentRef index alone")
		default:
			locker = rdx.NewLocker(conn, "travel:")
		}
	}
	cancel()

	notes := newDispatcher(cfg, conn, log)
	gateway, verifier := newPayments(cfg, log)
	hub := booking.NewHub(log.WithField("component", "ws"))
	images := assets.NewStore(cfg.UploadDir, cfg.PublicBaseURL)

	bookings := booking.NewService(booking.Deps{
		Store:         store,
		Notifier:      notes,
		Gateway:       gateway,
		Verifier:      verifier,
		Locker:        locker,
		Publisher:     hub,
		Log:           log.WithField("component", "booking"),
		FrontendURL:   cfg.FrontendURL,
		VoucherSecret: []byte(cfg.VoucherSecret),
	})
	reqs := requests.NewService(requests.Deps{
		Store:    store,
		Notifier: notes,
		Images:   images,
		Log:      log.WithField("component", "requests"),
	})

	rateLimiter := ratelim.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	router := routes.New(routes.Handlers{
		Bookings:     booking.NewHandlers(bookings, log),
		Hub:          hub,
		Requests:     requests.NewHandlers(reqs, log),
		Destinations: destinations.NewHandlers(store, log),
	}, access.NewJWTResolver([]byte(cfg.JWTSecret)), rateLimiter, images.Dir())

	// apply middleware: logging → recover → security headers → CORS → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)
	handler := middleware.Logging(log)(middleware.Recover(log)(middleware.SecurityHeaders(corsHandler)))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Info("closing websocket subscribers")
		hub.Close()
		rateLimiter.Stop()
	})

	go func() {
		log.WithField("addr", cfg.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("ListenAndServe failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received; shutting down gracefully")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if err := notes.stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("pending notifications dropped")
	}
	if conn != nil {
		conn.Close()
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		log.WithError(err).Warn("MongoDB disconnect failed")
	}
	log.Info("server stopped cleanly")
}
