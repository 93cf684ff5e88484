package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/beacon/internal/app"
	"github.com/zhouzirui/beacon/internal/config"
	"github.com/zhouzirui/beacon/internal/handler"
	"github.com/zhouzirui/beacon/internal/observe"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	personas, err := app.LoadPersonas(cfg.Personas)
	if err != nil {
		log.Fatalf("failed to load personas: %v", err)
	}

	var (
		metrics *observe.Metrics
		opts    handler.Options
	)
	if cfg.Server.MetricsEnabled {
		mp, shutdown, err := observe.InitProvider(ctx)
		if err != nil {
			log.Fatalf("failed to initialize metrics: %v", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Printf("warning: metrics shutdown: %v", err)
			}
		}()

		metrics, err = observe.NewMetrics(mp)
		if err != nil {
			log.Fatalf("failed to create metrics: %v", err)
		}
		opts = handler.Options{Metrics: metrics, MetricsHandler: promhttp.Handler()}
		log.Println("metrics exposed at /metrics")
	} else {
		log.Println("metrics disabled by configuration")
	}

	chatService, err := app.NewChatService(ctx, cfg, personas, metrics)
	if err != nil {
		log.Fatalf("failed to initialize chat service: %v", err)
	}
	log.Printf("chat service ready provider=%s default_persona=%s", cfg.AI.Provider, chatService.DefaultPersona())

	router := handler.NewRouter(personas, chatService, opts)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Beacon crisis support listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Printf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
