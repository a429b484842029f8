package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harborline/storefront/internal/auth"
	"github.com/harborline/storefront/internal/catalog"
	"github.com/harborline/storefront/internal/commerce"
	"github.com/harborline/storefront/internal/config"
	"github.com/harborline/storefront/internal/database"
	"github.com/harborline/storefront/internal/identity"
	"github.com/harborline/storefront/internal/logging"
	"github.com/harborline/storefront/internal/mailer"
	"github.com/harborline/storefront/internal/server"
	"github.com/harborline/storefront/internal/webhook"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "storefront-api",
		Short: "Storefront identity and commerce-state service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-driver", defaults.GetString("database.driver"), "Database driver (sqlite, postgres)")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("database-dsn", "", "Postgres connection string")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("google-client-id", defaults.GetString("google.client_id"), "Google OAuth client ID")
	cmd.PersistentFlags().String("google-jwks-url", defaults.GetString("google.jwks_url"), "Google JWKS URL")
	cmd.PersistentFlags().String("catalog-base-url", defaults.GetString("catalog.base_url"), "Catalog service base URL")
	cmd.PersistentFlags().Int("session-ttl-minutes", defaults.GetInt("session.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().Int("magiclink-ttl-minutes", defaults.GetInt("magiclink.ttl_minutes"), "Magic link TTL in minutes")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.driver", "database-driver")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.dsn", "database-dsn")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "google.client_id", "google-client-id")
	bindFlag(cmd, "google.jwks_url", "google-jwks-url")
	bindFlag(cmd, "catalog.base_url", "catalog-base-url")
	bindFlag(cmd, "session.ttl_minutes", "session-ttl-minutes")
	bindFlag(cmd, "magiclink.ttl_minutes", "magiclink-ttl-minutes")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	// Secrets commonly arrive through a .env file in development.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.Open(database.Config{
		Driver: appConfig.DatabaseDriver,
		Path:   appConfig.DatabasePath,
		DSN:    appConfig.DatabaseDSN,
	}, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	catalogClient, err := buildCatalogClient(appConfig, logger)
	if err != nil {
		return err
	}

	commerceService, err := commerce.NewService(commerce.ServiceConfig{
		Database: db,
		Catalog:  catalogClient,
		Clock:    time.Now,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	identityService, err := identity.NewService(identity.ServiceConfig{
		Database: db,
		Clock:    time.Now,
		Logger:   logger,
		OnCreate: func(tx *gorm.DB, user *identity.User) error {
			return commerceService.SeedDefaultWishlist(tx, user.ID)
		},
	})
	if err != nil {
		return err
	}

	magicLink, err := identity.NewMagicLink(identity.MagicLinkConfig{
		Identity:      identityService,
		Sender:        buildMailSender(appConfig, logger),
		TTL:           appConfig.MagicLinkTTL,
		VerifyBaseURL: appConfig.FrontendBaseURL,
		Clock:         time.Now,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	sessionIssuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(appConfig.SessionSigningSecret),
		TTL:           appConfig.SessionTTL,
	})
	if err != nil {
		return err
	}

	var oauthVerifier *auth.OAuthVerifier
	if appConfig.GoogleClientID != "" {
		oauthVerifier, err = auth.NewOAuthVerifier(auth.OAuthVerifierConfig{
			Audience:  appConfig.GoogleClientID,
			KeySetURL: appConfig.GoogleJWKSURL,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
	}

	webhookVerifier, err := webhook.NewVerifier(webhook.VerifierConfig{
		Secret: appConfig.WebhookSigningSecret,
	})
	if err != nil {
		return err
	}

	webhookProcessor, err := webhook.NewProcessor(webhook.ProcessorConfig{
		Reconciler: identityService,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Identity:       identityService,
		MagicLink:      magicLink,
		Commerce:       commerceService,
		SessionIssuer:  sessionIssuer,
		OAuthVerifier:  oauthVerifier,
		WebhookVerify:  webhookVerifier,
		WebhookProcess: webhookProcessor,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildCatalogClient(appConfig config.AppConfig, logger *zap.Logger) (catalog.Client, error) {
	if appConfig.CatalogBaseURL != "" {
		return catalog.NewHTTPClient(catalog.HTTPClientConfig{BaseURL: appConfig.CatalogBaseURL})
	}
	logger.Warn("catalog.base_url unset, serving an empty fixture catalog")
	return catalog.NewFixtureClient(), nil
}

func buildMailSender(appConfig config.AppConfig, logger *zap.Logger) mailer.Sender {
	sender, err := mailer.NewSMTPSender(mailer.SMTPConfig{
		Host:     appConfig.SMTPHost,
		Port:     appConfig.SMTPPort,
		Username: appConfig.SMTPUsername,
		Password: appConfig.SMTPPassword,
		From:     appConfig.SMTPFrom,
	})
	if err != nil {
		logger.Warn("smtp unconfigured, magic links will be logged only", zap.Error(err))
		return mailer.NewLogSender(logger)
	}
	return sender
}
