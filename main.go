package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"festival-ticketing/internal/auth"
	"festival-ticketing/internal/cart"
	"festival-ticketing/internal/cart/cart_api"
	"festival-ticketing/internal/checkout"
	"festival-ticketing/internal/config"
	"festival-ticketing/internal/database/migrations"
	kafkaprod "festival-ticketing/internal/kafka"
	"festival-ticketing/internal/logger"
	"festival-ticketing/internal/payment"
	"festival-ticketing/internal/promo"
	"festival-ticketing/internal/promo/promo_api"
	"festival-ticketing/internal/quota"
	"festival-ticketing/internal/scanner"
	"festival-ticketing/internal/tickets"
	ticketdb "festival-ticketing/internal/tickets/db"
	"festival-ticketing/internal/tickets/qr"
	"festival-ticketing/internal/tickets/ticket_api"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	// Postgres via bun.
	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open postgres: %v", err))
	}
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	log.Info("DATABASE", "Postgres connection established")

	if cfg.Database.AutoMigrate {
		if err := migrations.NewRunner(bunDB, cfg.Database.MigrationsDir).Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		log.Info("DATABASE", "Migrations applied")
	}

	// Redis for cart persistence.
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to redis: %v", err))
	}
	log.Info("REDIS", "Redis connection established")

	// Kafka lifecycle events.
	var producer *kafkaprod.Producer
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.TicketsIssued,
			cfg.Kafka.Topics.TicketScanned,
			cfg.Kafka.Topics.TicketCancelled,
		}
		if err := kafkaprod.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation failed (continuing): %v", err))
		}
		producer = kafkaprod.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()
		log.Info("KAFKA", "Producer initialized")
	} else {
		log.Warn("KAFKA", "Kafka disabled, lifecycle events will not be published")
	}

	// Wiring.
	quotaDB := &quota.DB{Bun: bunDB}
	quotaSvc := quota.NewService(quotaDB)
	tDB := &ticketdb.DB{Bun: bunDB}
	qrGen := qr.NewGenerator(cfg.QR.SecretKey)

	promoSvc := promo.NewService(bunDB)
	cartStore := cart.NewRedisStore(rdb)
	cartSvc := cart.NewService(cartStore, quotaDB, promoSvc)

	paymentStore := &payment.Store{Bun: bunDB}
	verifier := payment.NewVerifier(paymentStore, cfg.Stripe.SecretKey, log)

	ticketSvc := tickets.NewService(tDB, quotaSvc, quotaDB, eventsOrNil(producer), log)
	scanSvc := scanner.NewService(tDB, qrGen, scanEventsOrNil(producer), log)
	checkoutSvc := &checkout.Service{
		Quota:      quotaSvc,
		Categories: quotaDB,
		Tickets:    tDB,
		Tokens:     qrGen,
		Payments:   verifier,
		Carts:      cartStore,
		Promos:     promoSvc,
		Events:     issueEventsOrNil(producer),
		Logger:     log,
		Now:        time.Now,
	}

	ticketHandler := &ticket_api.Handler{
		Tickets:    ticketSvc,
		Checkout:   checkoutSvc,
		Scanner:    scanSvc,
		Categories: quotaDB,
		QR:         qrGen,
		Logger:     log,
	}
	cartHandler := &cart_api.Handler{Carts: cartSvc}
	promoHandler := &promo_api.Handler{Promos: promoSvc}
	webhookHandler := payment.NewHandler(paymentStore, cfg.Stripe.WebhookSecret, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	authn := auth.Middleware(cfg.Auth.OIDCIssuer, cfg.Auth.JWTSecret)
	staffOnly := auth.RequireRole(auth.RoleStaff, auth.RoleSecurity, auth.RoleAdmin)

	r.Group(func(r chi.Router) {
		r.Use(authn)

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/purchase", ticketHandler.Purchase)
			r.Get("/", ticketHandler.List)
			r.Get("/{ticketID}", ticketHandler.Get)
			r.Delete("/{ticketID}", ticketHandler.Cancel)
			r.Get("/{ticketID}/qr", ticketHandler.QRImage)
			r.Post("/validate", ticketHandler.Validate)
			r.With(staffOnly).Post("/scan", ticketHandler.Scan)
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.Get)
			r.Delete("/", cartHandler.Clear)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{categoryID}", cartHandler.UpdateItem)
			r.Delete("/items/{categoryID}", cartHandler.RemoveItem)
			r.Post("/promo", cartHandler.ApplyPromo)
		})

		r.Post("/promo-codes/validate", promoHandler.Validate)
	})

	// Stripe calls this; its auth is the webhook signature.
	r.Mount("/payments", http.StripPrefix("/payments", webhookHandler.Router()))

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Listening on %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("Server failed: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("SERVER", "Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("SERVER", fmt.Sprintf("Graceful shutdown failed: %v", err))
	}
}

func eventsOrNil(p *kafkaprod.Producer) tickets.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func scanEventsOrNil(p *kafkaprod.Producer) scanner.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func issueEventsOrNil(p *kafkaprod.Producer) checkout.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
