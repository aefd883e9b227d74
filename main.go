package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/example/signkit/internal/auth"
	"github.com/example/signkit/internal/config"
	"github.com/example/signkit/internal/gemini"
	"github.com/example/signkit/internal/handlers"
	"github.com/example/signkit/internal/logging"
	"github.com/example/signkit/internal/usecase"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := config.LoadDotEnv(); err != nil {
		logger.Debug("no .env file loaded", zap.Error(err))
	}
	cfg := config.Load()

	client, err := gemini.NewClient(cfg.Gemini, nil, logger)
	if err != nil {
		logger.Fatal("failed to configure gemini client", zap.Error(err))
	}
	uc := usecase.NewRecognitionUseCase(client, logger)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestLogger(logger))
	r.MaxMultipartMemory = handlers.MaxUploadSize

	authMiddleware := auth.BearerAuth(cfg.Server.JWTSecret, cfg.Server.JWTAudience)
	handlers.RegisterRoutes(r, uc, authMiddleware, handlers.Options{
		Timeout:   cfg.Server.RecognizeTimeout,
		StaticDir: cfg.Server.StaticDir,
		Logger:    logger,
	})

	server := &http.Server{
		Handler:           newCORS(cfg.Server.FrontendURL).Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := listenWithFallback(cfg.Server.Port, logger)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	logStartup(logger, listener.Addr().String(), client)
	if err := serveHTTPServerWithListener(server, 15*time.Second, logger, listener); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// logStartup records where the server listens and which model endpoint it
// calls. The endpoint never carries the API key.
func logStartup(logger *zap.Logger, addr string, client *gemini.Client) {
	logger.Info("recognition server listening",
		zap.String("addr", addr),
		zap.String("endpoint", "/api/recognize-sign"),
		zap.String("gemini_endpoint", client.Endpoint()))
}

func newCORS(frontendURL string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})
}

// listenWithFallback binds port, or port+1 once if port is taken.
func listenWithFallback(port int, logger *zap.Logger) (net.Listener, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err == nil {
		return listener, nil
	}
	if !errors.Is(err, syscall.EADDRINUSE) {
		return nil, err
	}
	logger.Warn("port already in use, trying next port", zap.Int("port", port), zap.Int("next", port+1))
	return net.Listen("tcp", fmt.Sprintf(":%d", port+1))
}

func serveHTTPServerWithListener(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, listener, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
