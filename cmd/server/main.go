package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"senat/internal/blob"
	"senat/internal/chat"
	"senat/internal/config"
	"senat/internal/group"
	myMiddleware "senat/internal/middleware"
	"senat/internal/social"
	"senat/internal/store"
	"senat/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func main() {
	// 1. Config & Flags
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	addr := flag.String("addr", cfg.Addr, "http service address")
	flag.Parse()

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		log.Fatalf("❌ Cannot create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if cfg.GeneratedSecret {
		sugar.Warn("JWT_SECRET is not set, remember-me tokens will not survive a restart")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (Platform Layer)
	backend, err := openBackend(ctx, cfg)
	if err != nil {
		sugar.Fatalw("Cannot open store", "backend", cfg.Store, "error", err)
	}
	docs := store.New(sugar, backend)
	defer docs.Close()
	sugar.Infow("Store is ready", "backend", cfg.Store)

	blobs, err := blob.NewDir(cfg.BlobDir, "/blobs")
	if err != nil {
		sugar.Fatalw("Cannot create blob directory", "dir", cfg.BlobDir, "error", err)
	}

	// 3. User Feature
	userService := user.NewService(ctx, sugar, docs, cfg.TokenSecret,
		user.TokenTTL(cfg.TokenTTL),
		user.BcryptCost(cfg.BcryptCost),
		user.Admins(cfg.Admins...),
		user.Blobs(blobs),
	)
	userHandler := user.NewHandler(userService)

	// 4. Chat Feature
	socialService := social.NewService(ctx, sugar, docs, userService)
	groupRegistry := group.NewRegistry(ctx, sugar, docs, userService)
	history := chat.NewRepository(ctx, sugar, docs)

	hub := chat.NewHub(sugar, userService, socialService, groupRegistry, history, chat.Blobs(blobs))
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	chatHandler := chat.NewHandler(hub, cfg.MaxFrameBytes)
	authMiddleware := myMiddleware.NewAuthMiddleware(userService)

	// 5. Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ws", chatHandler.ServeWs)
	r.Post("/api/register", userHandler.Register)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/blobs/*", http.StripPrefix("/blobs/", http.FileServer(http.Dir(blobs.Root()))))

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", userHandler.SearchUsers)
	})

	srv := &http.Server{
		Addr:              *addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		<-ctx.Done()
		sugar.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			sugar.Errorf("srv.Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	sugar.Infof("🚀 Server starting on %s", *addr)
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		sugar.Fatalf("ListenAndServe: %v", err)
	}

	<-idleConnsClosed
	<-hubDone
	sugar.Info("Server is stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func openBackend(ctx context.Context, cfg *config.Config) (store.Backend, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := store.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return db, db.AutoMigrate(ctx)
	case config.StorePostgres:
		db, err := store.OpenPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		return db, db.AutoMigrate(ctx)
	case config.StoreRedis:
		return store.NewRedis(ctx, cfg.RedisAddr)
	default:
		return store.NewFile(cfg.DataDir)
	}
}
