package main

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/restkit/scaffold/internal/cache"
	"github.com/restkit/scaffold/internal/config"
	httphandler "github.com/restkit/scaffold/internal/http"
	"github.com/restkit/scaffold/internal/lifecycle"
	"github.com/restkit/scaffold/internal/models"
	"github.com/restkit/scaffold/internal/observability"
	"github.com/restkit/scaffold/internal/resource"
)

//go:embed templates
var templateFS embed.FS

// loadTemplates parses the embedded template tree, naming each template
// by its path under templates/ without extension ("articles/index").
func loadTemplates() (*template.Template, error) {
	root := template.New("")
	err := fs.WalkDir(templateFS, "templates", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".gohtml") {
			return nil
		}
		raw, err := templateFS.ReadFile(path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(path, "templates/"), ".gohtml")
		if _, err := root.New(name).Parse(string(raw)); err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// controllerActions maps the configured action names to resource actions.
// An empty list enables every action.
func controllerActions(names []string) ([]resource.Action, error) {
	if len(names) == 0 {
		return nil, nil
	}
	known := make(map[string]resource.Action, len(resource.AllActions))
	for _, a := range resource.AllActions {
		known[string(a)] = a
	}
	actions := make([]resource.Action, 0, len(names))
	for _, name := range names {
		a, ok := known[strings.TrimSpace(strings.ToLower(name))]
		if !ok {
			return nil, fmt.Errorf("unknown action %q", name)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	templates, err := loadTemplates()
	if err != nil {
		logger.Fatal("templates", zap.Error(err))
	}

	var reprCache cache.Cache
	var memcacheCloser *cache.MemcachedCache
	if cfg.CacheEnabled {
		switch cfg.CacheBackend {
		case "memcached":
			mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
			if err != nil {
				logger.Fatal("memcached cache", zap.Error(err))
			}
			memcacheCloser = mc
			reprCache = mc
			logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
		default:
			reprCache = cache.NewInMemoryCache()
			logger.Info("cache backend: in_memory")
		}
	}

	store := models.NewArticleStore()

	opts := []resource.Option{}
	if cfg.ArticlesRole != "" {
		opts = append(opts, resource.WithRole(cfg.ArticlesRole))
	}
	if cfg.ArticlesUnprotected {
		opts = append(opts, resource.WithoutProtection())
	}
	if actions, err := controllerActions(cfg.ArticlesActions); err != nil {
		logger.Fatal("articles actions", zap.Error(err))
	} else if actions != nil {
		opts = append(opts, resource.WithActions(actions...))
	}
	if reprCache != nil {
		opts = append(opts, resource.WithCache(reprCache, cfg.CacheTTL))
	}

	articles := resource.NewController(
		resource.Name{Singular: "article", Plural: "articles", Human: "Article"},
		store, templates, logger, opts...,
	)

	health := httphandler.NewHealthHandler(logger)
	if memcacheCloser != nil {
		health.CachePing = memcacheCloser.Ping
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	router := mux.NewRouter()
	router.Use(httphandler.CorrelationIDMiddleware(logger))
	router.Use(httphandler.MetricsMiddleware)
	router.HandleFunc("/health", health.GetHealth).Methods("GET")
	router.Handle("/metrics", observability.MetricsHandler())
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/articles", http.StatusFound)
	}).Methods("GET")

	resources := router.PathPrefix("/").Subrouter()
	resources.Use(httphandler.RateLimitMiddleware(limiter))
	resources.Use(httphandler.TimeoutMiddleware(cfg.RequestTimeout))
	articles.Mount(resources)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      httphandler.MethodOverride(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}
