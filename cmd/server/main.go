package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/org/credvault/internal/api"
	"github.com/org/credvault/internal/auth"
	"github.com/org/credvault/internal/policy"
	"github.com/org/credvault/internal/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type config struct {
	ListenAddr    string            `yaml:"listen_addr"`
	TLSCertFile   string            `yaml:"tls_cert"`
	TLSKeyFile    string            `yaml:"tls_key"`
	DBUrl         string            `yaml:"db_url"`
	MasterSecret  string            `yaml:"master_secret"`
	MasterSalt    string            `yaml:"master_salt"`
	MigrationsDir string            `yaml:"migrations_dir"`
	LogLevel      string            `yaml:"log_level"`
	APITokens     map[string]string `yaml:"api_tokens"` // token hash (hex) → owner id
	Policy        policy.Policy     `yaml:"rotation_policy"`
}

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Load config
	cfgFile := "config.yaml"
	if v := os.Getenv("CREDVAULT_CONFIG"); v != "" {
		cfgFile = v
	}

	cfg := config{
		ListenAddr:    ":8300",
		MigrationsDir: "migrations",
		LogLevel:      "info",
		Policy:        policy.Default(),
	}

	if data, err := os.ReadFile(cfgFile); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatal().Err(err).Msg("failed to parse config")
		}
	} else {
		log.Warn().Str("file", cfgFile).Msg("config file not found, using defaults")
	}

	// Env overrides
	if v := os.Getenv("CREDVAULT_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DBUrl = v
	}
	if v := os.Getenv("CREDVAULT_MASTER_SECRET"); v != "" {
		cfg.MasterSecret = v
	}
	if v := os.Getenv("CREDVAULT_MASTER_SALT"); v != "" {
		cfg.MasterSalt = v
	}

	// Set log level
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.DBUrl == "" {
		log.Fatal().Msg("db_url must be configured (or DATABASE_URL env var)")
	}
	if cfg.MasterSecret == "" || cfg.MasterSalt == "" {
		log.Fatal().Msg("master_secret and master_salt must be configured (or CREDVAULT_MASTER_SECRET / CREDVAULT_MASTER_SALT env vars)")
	}
	if len(cfg.APITokens) == 0 {
		log.Warn().Msg("no api_tokens configured - all requests will be rejected")
	}

	ctx := context.Background()

	// Connect to database
	store, err := storage.NewPostgresStore(ctx, cfg.DBUrl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer store.Close()

	// Run migrations
	if err := storage.RunMigrations(cfg.DBUrl, cfg.MigrationsDir); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Msg("migrations applied")

	authn := auth.NewTokenAuthenticator(cfg.APITokens)

	// Create server
	srv, err := api.NewServer(store, authn, api.Config{
		ListenAddr:    cfg.ListenAddr,
		TLSCertFile:   cfg.TLSCertFile,
		TLSKeyFile:    cfg.TLSKeyFile,
		MasterSecret:  cfg.MasterSecret,
		MasterSalt:    cfg.MasterSalt,
		Policy:        cfg.Policy,
		MigrationsDir: cfg.MigrationsDir,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create server")
	}

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	log.Info().Str("addr", cfg.ListenAddr).Msg("server started")
	<-quit

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
	log.Info().Msg("server stopped")
}
