package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/viewtube/viewtube/internal/media"
	"github.com/viewtube/viewtube/internal/sessionkit"
	"github.com/viewtube/viewtube/internal/store"
	"github.com/viewtube/viewtube/internal/storepg"
	"github.com/viewtube/viewtube/internal/web"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "viewtube",
		Short:   "Video-hosting backend with JWT sessions and rotating refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("cookie_domain", "", "Cookie domain; empty for host-only cookies")
	rootCmd.Flags().String("access_token_secret", "", "HS256 signing secret for access tokens")
	rootCmd.Flags().String("refresh_token_secret", "", "HS256 signing secret for refresh tokens")
	rootCmd.Flags().Duration("access_ttl", 15*time.Minute, "Access token lifetime")
	rootCmd.Flags().Duration("refresh_ttl", 7*24*time.Hour, "Refresh token lifetime")
	rootCmd.Flags().Bool("dev_insecure_http", false, "Allow cookies over plain HTTP for local development")
	rootCmd.Flags().String("database_url", "", "Database URL (postgres:// or sqlite://); empty selects in-memory stores")
	rootCmd.Flags().String("database_engine", "gorm", "Database access layer: gorm or pgx")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for cross-origin browser clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled")
	rootCmd.Flags().String("media_endpoint", "", "S3-compatible media storage endpoint")
	rootCmd.Flags().String("media_region", "us-east-1", "Media storage region")
	rootCmd.Flags().String("media_bucket", "", "Media bucket; empty selects the in-memory uploader")
	rootCmd.Flags().String("media_access_key", "", "Media storage access key")
	rootCmd.Flags().String("media_secret_key", "", "Media storage secret key")
	rootCmd.Flags().String("media_public_base_url", "", "Public base URL for uploaded media objects")

	for _, settingName := range []string{
		"listen_addr",
		"cookie_domain",
		"access_token_secret",
		"refresh_token_secret",
		"access_ttl",
		"refresh_ttl",
		"dev_insecure_http",
		"database_url",
		"database_engine",
		"enable_cors",
		"cors_allowed_origins",
		"media_endpoint",
		"media_region",
		"media_bucket",
		"media_access_key",
		"media_secret_key",
		"media_public_base_url",
	} {
		_ = viper.BindPFlag(settingName, rootCmd.Flags().Lookup(settingName))
	}

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	accessCookieName  = "access_token"
	refreshCookieName = "refresh_token"

	configCodeMissingAccessSecret  = "config.missing_access_token_secret"
	configCodeMissingRefreshSecret = "config.missing_refresh_token_secret"
	configCodeIdenticalSecrets     = "config.identical_token_secrets"
	configCodeInvalidAccessTTL     = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL    = "config.invalid_refresh_ttl"
	configCodeInvalidEngine        = "config.invalid_database_engine"
	configCodeUninitializedConfig  = "config.uninitialized_server_config"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code string, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

// LoadServerConfig validates the viper-bound settings into a session ServerConfig.
func LoadServerConfig() (sessionkit.ServerConfig, error) {
	accessSecret := viper.GetString("access_token_secret")
	if accessSecret == "" {
		return sessionkit.ServerConfig{}, configError(configCodeMissingAccessSecret, "access_token_secret must be provided")
	}

	refreshSecret := viper.GetString("refresh_token_secret")
	if refreshSecret == "" {
		return sessionkit.ServerConfig{}, configError(configCodeMissingRefreshSecret, "refresh_token_secret must be provided")
	}

	if subtle.ConstantTimeCompare([]byte(accessSecret), []byte(refreshSecret)) == 1 {
		return sessionkit.ServerConfig{}, configError(configCodeIdenticalSecrets, "access and refresh token secrets must differ")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return sessionkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	serverConfig := sessionkit.ServerConfig{
		AccessTokenSecret:  []byte(accessSecret),
		RefreshTokenSecret: []byte(refreshSecret),
		TokenIssuer:        "viewtube-auth",
		CookieDomain:       viper.GetString("cookie_domain"),
		AccessCookieName:   accessCookieName,
		RefreshCookieName:  refreshCookieName,
		AccessTTL:          accessTTL,
		RefreshTTL:         refreshTTL,
		AllowInsecureHTTP:  viper.GetBool("dev_insecure_http"),
		SameSiteMode:       http.SameSiteStrictMode,
	}
	if viper.GetBool("enable_cors") {
		serverConfig.SameSiteMode = http.SameSiteNoneMode
	}
	return serverConfig, nil
}

func buildStores(ctx context.Context, logger *zap.Logger) (sessionkit.UserStore, store.VideoStore, error) {
	databaseURL := viper.GetString("database_url")
	if databaseURL == "" {
		logger.Info("using in-memory stores")
		return sessionkit.NewMemoryUserStore(), store.NewMemoryVideoStore(), nil
	}

	switch strings.ToLower(viper.GetString("database_engine")) {
	case "", "gorm":
		userStore, storeErr := store.NewDatabaseUserStore(ctx, databaseURL)
		if storeErr != nil {
			return nil, nil, storeErr
		}
		logger.Info("using persistent stores", zap.String("driver", userStore.Driver()))
		return userStore, store.NewDatabaseVideoStore(userStore), nil
	case "pgx":
		pool, poolErr := storepg.BuildPool(ctx, databaseURL)
		if poolErr != nil {
			return nil, nil, poolErr
		}
		if schemaErr := storepg.EnsureSchema(ctx, pool); schemaErr != nil {
			return nil, nil, schemaErr
		}
		logger.Info("using persistent stores", zap.String("driver", "pgx"))
		return storepg.NewPostgresUserStore(pool), storepg.NewPostgresVideoStore(pool), nil
	default:
		return nil, nil, configError(configCodeInvalidEngine, "database_engine must be gorm or pgx")
	}
}

func buildUploader(ctx context.Context, logger *zap.Logger) (media.Uploader, error) {
	mediaBucket := viper.GetString("media_bucket")
	if mediaBucket == "" {
		logger.Info("using in-memory media uploader")
		return media.NewMemoryUploader(viper.GetString("media_public_base_url")), nil
	}
	uploader, uploaderErr := media.NewS3Uploader(ctx, media.Config{
		Endpoint:      viper.GetString("media_endpoint"),
		Region:        viper.GetString("media_region"),
		Bucket:        mediaBucket,
		AccessKey:     viper.GetString("media_access_key"),
		SecretKey:     viper.GetString("media_secret_key"),
		PublicBaseURL: viper.GetString("media_public_base_url"),
	})
	if uploaderErr != nil {
		return nil, uploaderErr
	}
	logger.Info("using media storage uploader", zap.String("bucket", mediaBucket))
	return uploader, nil
}

func buildRouter(serverConfig sessionkit.ServerConfig, userStore sessionkit.UserStore, videoStore store.VideoStore, uploader media.Uploader, logger *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if viper.GetBool("enable_cors") {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, viper.GetStringSlice("cors_allowed_origins"))
		if corsErr != nil {
			return nil, corsErr
		}
		router.Use(corsMiddleware)
	}

	clock := sessionkit.NewSystemClock()
	metricsRecorder := sessionkit.NewCounterMetrics()
	hasher := sessionkit.NewBcryptHasher(0)
	manager := sessionkit.NewManager(userStore, hasher, serverConfig, logger, metricsRecorder, clock)

	web.MountAuthRoutes(router, manager, logger)

	protected := router.Group("/api")
	protected.Use(sessionkit.RequireSession(serverConfig, clock))
	protected.GET("/me", web.HandleMe(userStore, logger))
	protected.PATCH("/account", web.HandleUpdateAccount(userStore))
	protected.PATCH("/avatar", web.HandleUpdateAvatar(userStore, uploader, logger))
	protected.PATCH("/cover", web.HandleUpdateCover(userStore, uploader, logger))
	protected.POST("/videos", web.HandleCreateVideo(videoStore, uploader, logger))
	protected.GET("/videos", web.HandleListVideos(videoStore))
	protected.GET("/videos/:id", web.HandleGetVideo(videoStore))
	protected.PATCH("/videos/:id/publish", web.HandlePublishVideo(videoStore))

	return router, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	var contextValue any
	if commandContext := command.Context(); commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(sessionkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedConfig, "server configuration was not prepared before run")
	}

	gin.SetMode(gin.ReleaseMode)

	userStore, videoStore, storesErr := buildStores(context.Background(), logger)
	if storesErr != nil {
		return storesErr
	}
	uploader, uploaderErr := buildUploader(context.Background(), logger)
	if uploaderErr != nil {
		return uploaderErr
	}

	router, routerErr := buildRouter(serverConfig, userStore, videoStore, uploader, logger)
	if routerErr != nil {
		return routerErr
	}

	listenAddr := viper.GetString("listen_addr")
	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		<-stopSignals
		graceCtx, graceCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer graceCancel()
		if shutdownErr := server.Shutdown(graceCtx); shutdownErr != nil {
			logger.Error("server shutdown error", zap.Error(shutdownErr))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if serveErr := serveHTTP(server); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", serveErr)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		logger.Info("http request",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("client_ip", contextGin.ClientIP()),
			zap.Duration("elapsed", time.Since(startTime)),
		)
	}
}
