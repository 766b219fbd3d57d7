package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linkup/auth"
	"linkup/contract"
	"linkup/domain"
	grpcserver "linkup/infrastructure/grpc"
	httpserver "linkup/infrastructure/http"
	"linkup/infrastructure/realtime"
	"linkup/internal"
	"linkup/observability"
	"linkup/repositories"
	"linkup/runtime"
	"linkup/runtime/workers"
	"linkup/services"
	"linkup/storage"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkup terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning instead of exiting lets every defer (Badger, Bluge) run before the process ends.
func run() (int, error) {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return exitConfig, fmt.Errorf("unable to read .env: %w", err)
	}
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	imagePolicy, err := config.ImagePolicy()
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		database.StartDebugServer(db, config.DebugPort, endpoint, inspectMapper)
	}

	// 3. Search index (Bluge), rebuilt from the users on every start
	index, err := repositories.NewUserIndex(config.BlugeFilepath, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = index.Close()
	}()

	userRepository := repositories.NewUserRepository(db)
	messageRepository := repositories.NewMessageRepository(db, logger)
	users, err := userRepository.ListUsers()
	if err != nil {
		return exitRuntime, fmt.Errorf("unable to list users: %w", err)
	}
	if err := index.Reindex(lo.Map(users, func(u repositories.User, _ int) domain.User {
		return u.ToDomain()
	})); err != nil {
		return exitRuntime, err
	}

	// 4. Object storage
	store, err := buildImageStore(config, logger)
	if err != nil {
		return exitConfig, err
	}

	// 5. Runtime (presence, workers) and services
	monitoring := observability.NewMonitoringManager(logger)
	healthServer := grpcserver.NewHealthServer(logger)
	probe := repositories.Probe(db)
	orchestrator := runtime.NewOrchestrator(logger, workers.NewSupervisor(logger), runtime.NewRegistry(),
		monitoring, healthServer.Status(), probe,
		config.BufferSize, config.SinkTimeout, config.MetricInterval)
	censor, err := orchestrator.LoadModerator(config.ModerationEnabled, charReplacement)
	if err != nil {
		return exitConfig, err
	}

	imageService := services.NewImageService(logger, store, imagePolicy, monitoring)
	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(logger, userRepository, index, imageService, tokens)
	messageService := services.NewMessageService(logger, userRepository, messageRepository, imageService,
		orchestrator, censor, monitoring, config.SinkTimeout)
	directoryService := services.NewDirectoryService(logger, userRepository, messageRepository, index)

	// 6. Transports
	realtimeHandler := realtime.NewHandler(logger, authService, orchestrator, monitoring, realtime.Config{
		BufferSize:         config.ConnectionBufferSize,
		PingInterval:       config.PingInterval,
		TrustQueryIdentity: config.TrustQueryIdentity,
		AllowedOrigins:     config.AllowedOrigins(),
	})
	if config.TrustQueryIdentity {
		logger.Warn("Websocket identity is taken from the userId query parameter without verification")
	}

	uploadDir := ""
	if disk, ok := store.(*storage.DiskStore); ok {
		uploadDir = disk.Root()
	}
	router := httpserver.NewRouter(logger, httpserver.Config{
		AllowedOrigins: config.AllowedOrigins(),
		TokenDuration:  config.AuthTokenDuration,
		SecureCookies:  config.SecureCookies,
		MaxImageBytes:  config.MaxImageBytes,
		UploadDir:      uploadDir,
	}, httpserver.Dependencies{
		AuthService:      authService,
		MessageService:   messageService,
		DirectoryService: directoryService,
		Monitoring:       monitoring,
		Probe:            probe,
		Realtime:         realtimeHandler,
	})
	httpServer := httpserver.NewServer(logger, router)

	httpListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.Host, config.Port))
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on HTTP port %d: %w", config.Port, err)
	}
	grpcListener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", config.Host, config.GRPCPort))
	if err != nil {
		_ = httpListener.Close()
		return exitRuntime, fmt.Errorf("failed to listen on gRPC port %d: %w", config.GRPCPort, err)
	}

	// 7. Start everything, the first failure stops the process
	errChan := make(chan error, 2)
	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		orchestrator.Start(ctx)
	}()
	go func() {
		if err := httpServer.Serve(httpListener); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := healthServer.Serve(grpcListener); err != nil {
			errChan <- err
		}
	}()

	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful shutdown: stop accepting, release connections, then drain the workers
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	realtimeHandler.Shutdown(shutdownCtx)
	healthServer.Stop(shutdownCtx)
	orchestrator.Stop()
	<-orchestratorDone
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}

	return options
}

// buildImageStore picks Cloudinary when it is configured and the local disk otherwise.
func buildImageStore(config internal.Config, logger *slog.Logger) (contract.ImageStore, error) {
	if config.CloudinaryURL != "" {
		store, err := storage.NewCloudinaryStore(config.CloudinaryURL, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("Images are stored on Cloudinary")
		return store, nil
	}
	store, err := storage.NewDiskStore(config.UploadDir, config.PublicBaseURL+"/uploads", logger)
	if err != nil {
		return nil, err
	}
	logger.Info("Images are stored on disk", "dir", config.UploadDir)
	return store, nil
}

func inspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	record := repositories.Describe(key, val)
	row.Type = record.Type
	row.Detail = record.Detail
	return row
}
