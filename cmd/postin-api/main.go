package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/postinlab/postin-api/internal/ai"
	"github.com/postinlab/postin-api/internal/auth"
	"github.com/postinlab/postin-api/internal/comments"
	"github.com/postinlab/postin-api/internal/communities"
	"github.com/postinlab/postin-api/internal/config"
	"github.com/postinlab/postin-api/internal/database"
	"github.com/postinlab/postin-api/internal/ids"
	"github.com/postinlab/postin-api/internal/logging"
	"github.com/postinlab/postin-api/internal/notify"
	"github.com/postinlab/postin-api/internal/posts"
	"github.com/postinlab/postin-api/internal/server"
	"github.com/postinlab/postin-api/internal/users"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "postin-api",
		Short: "Post.in social platform backend service",
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
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("auth.token_ttl_minutes"), "Bearer token TTL in minutes")
	cmd.PersistentFlags().String("signing-secret", "", "Token signing secret (overrides env)")
	cmd.PersistentFlags().String("ai-api-key", "", "Generation service API key (overrides env)")
	cmd.PersistentFlags().StringSlice("ai-models", defaults.GetStringSlice("ai.models"), "Ordered candidate model list")
	cmd.PersistentFlags().Int("ai-retry-backoff-ms", defaults.GetInt("ai.retry_backoff_ms"), "Generation retry backoff in milliseconds")
	cmd.PersistentFlags().Int("ai-max-context-comments", defaults.GetInt("ai.max_context_comments"), "Max prior comments included in generation context")
	cmd.PersistentFlags().String("redis-address", defaults.GetString("redis.address"), "Redis address for cross-process notifications (optional)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.token_ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "ai.api_key", "ai-api-key")
	bindFlag(cmd, "ai.models", "ai-models")
	bindFlag(cmd, "ai.retry_backoff_ms", "ai-retry-backoff-ms")
	bindFlag(cmd, "ai.max_context_comments", "ai-max-context-comments")
	bindFlag(cmd, "redis.address", "redis-address")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
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

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	idProvider := ids.NewUUIDProvider()

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		Issuer:        "postin-auth",
		Audience:      "postin-api",
		TokenTTL:      appConfig.TokenTTL,
	})

	userService, err := users.NewService(users.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	botManager := users.NewBotManager(userService, logger)

	broker := notify.NewBroker()
	publishers := []notify.Publisher{broker}
	if appConfig.RedisAddress != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddress})
		defer redisClient.Close()
		publishers = append(publishers, notify.NewRedisPublisher(redisClient))
		logger.Info("redis notification publisher enabled", zap.String("address", appConfig.RedisAddress))
	}
	dispatcher, err := notify.NewDispatcher(notify.DispatcherConfig{
		Database:   db,
		IDProvider: idProvider,
		Publishers: publishers,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	notificationService, err := notify.NewService(db)
	if err != nil {
		return err
	}

	postService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
		Notifier:   dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	var completionClient ai.CompletionClient = ai.UnconfiguredClient{}
	if appConfig.AIAPIKey != "" {
		genaiClient, err := ai.NewGenAIClient(ctx, appConfig.AIAPIKey)
		if err != nil {
			return err
		}
		completionClient = genaiClient
	} else {
		logger.Warn("no generation api key configured, assistant replies degrade to canned fallbacks")
	}
	generator, err := ai.NewGenerator(ai.GeneratorConfig{
		Client:           completionClient,
		Models:           appConfig.AIModels,
		RetryBackoff:     appConfig.AIRetryBackoff,
		FallbackMessages: appConfig.FallbackMessages,
		Logger:           logger,
	})
	if err != nil {
		return err
	}

	pipeline, err := comments.NewPipeline(comments.PipelineConfig{
		Database:           db,
		IDProvider:         idProvider,
		Generator:          generator,
		Bots:               botManager,
		Notifier:           dispatcher,
		MentionMarkers:     appConfig.MentionMarkers,
		MaxContextComments: appConfig.MaxContextComments,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	communityService, err := communities.NewService(communities.ServiceConfig{
		Database:   db,
		IDProvider: idProvider,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Tokens:        tokenManager,
		Users:         userService,
		Posts:         postService,
		Comments:      pipeline,
		Communities:   communityService,
		Notifications: notificationService,
		Broker:        broker,
		Logger:        logger,
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
