package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/gatehouse/internal/auth"
	"github.com/dropDatabas3/gatehouse/internal/cache"
	"github.com/dropDatabas3/gatehouse/internal/config"
	"github.com/dropDatabas3/gatehouse/internal/httpapi"
	"github.com/dropDatabas3/gatehouse/internal/metrics"
	"github.com/dropDatabas3/gatehouse/internal/oauth"
	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
	"github.com/dropDatabas3/gatehouse/internal/security/password"
	"github.com/dropDatabas3/gatehouse/internal/store"
	"github.com/dropDatabas3/gatehouse/internal/store/pg"
	"github.com/dropDatabas3/gatehouse/internal/token"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatehouse:", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta al config.yaml")
	flag.Parse()

	// .env es opcional; en prod las vars vienen del entorno
	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: cfg.App.Name})
	defer logger.Sync()
	log := logger.L()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := store.Open(ctx, storeConfig(cfg))
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if pgRepo, ok := repo.(*pg.Repo); ok {
		defer pgRepo.Close()
		if cfg.Storage.Postgres.Migrate {
			n, err := pgRepo.Migrate(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			log.Info("migrations applied", zap.Int("count", n), logger.Driver("postgres"))
		}
	}

	c, err := cache.New(cacheConfig(cfg))
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer c.Close()

	stateTTL, err := cfg.StateTTL()
	if err != nil {
		return err
	}
	states := oauth.NewStateStore(c, stateTTL)

	providers := make(map[oauth.Provider]oauth.Config, len(cfg.OAuth.Providers))
	for name, p := range cfg.OAuth.Providers {
		prov, err := oauth.ParseProvider(name)
		if err != nil {
			return err
		}
		providers[prov] = oauth.Config{
			ClientID:            p.ClientID,
			ClientSecret:        p.ClientSecret,
			RedirectURI:         p.RedirectURI,
			FrontendRedirectURI: p.FrontendRedirectURI,
			AdditionalScopes:    p.AdditionalScopes,
			UserAgent:           p.UserAgent,
		}
	}
	bridge := oauth.NewManager(providers, states)

	accessTTL, _ := cfg.AccessTTL()
	refreshTTL, _ := cfg.RefreshTTL()
	tokens, err := token.NewJWT(cfg.Token.Secret, cfg.Token.Issuer, accessTTL, refreshTTL)
	if err != nil {
		return err
	}

	policy := password.Policy{
		MinLength:     cfg.Password.MinLength,
		RequireUpper:  cfg.Password.RequireUpper,
		RequireLower:  cfg.Password.RequireLower,
		RequireDigit:  cfg.Password.RequireDigit,
		RequireSymbol: cfg.Password.RequireSymbol,
	}
	svc, err := auth.New(repo, password.NewArgon2id(password.Params{}), policy, tokens, bridge)
	if err != nil {
		return err
	}

	if err := metrics.Register(nil); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", httpapi.New(svc, states).Router())

	readTimeout, _ := time.ParseDuration(cfg.Server.ReadTimeout)
	writeTimeout, _ := time.ParseDuration(cfg.Server.WriteTimeout)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr), zap.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownTimeout, _ := time.ParseDuration(cfg.Server.ShutdownTimeout)
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

func storeConfig(cfg *config.Config) store.Config {
	var sc store.Config
	sc.Driver = cfg.Storage.Driver
	sc.DSN = cfg.Storage.DSN
	sc.Postgres.MaxConns = cfg.Storage.Postgres.MaxConns
	sc.Postgres.ConnMaxLifetime = cfg.Storage.Postgres.ConnMaxLifetime
	return sc
}

func cacheConfig(cfg *config.Config) cache.Config {
	var cc cache.Config
	cc.Kind = cfg.Cache.Kind
	cc.Prefix = cfg.Cache.Prefix
	cc.Redis.Addr = cfg.Cache.Redis.Addr
	cc.Redis.Password = cfg.Cache.Redis.Password
	cc.Redis.DB = cfg.Cache.Redis.DB
	if d, err := time.ParseDuration(cfg.Cache.Memory.DefaultTTL); err == nil {
		cc.Memory.DefaultTTL = d
	}
	return cc
}
