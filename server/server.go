package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/customeros/replydesk/api"
	"github.com/customeros/replydesk/config"
	"github.com/customeros/replydesk/internal/cron"
	"github.com/customeros/replydesk/internal/logger"
	"github.com/customeros/replydesk/internal/tracing"
	"github.com/customeros/replydesk/services"
)

const shutdownTimeout = 15 * time.Second

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

// NewServer initializes logging, tracing and every service. It does not start anything.
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	appLogger := logger.NewAppLogger(cfg.Logger)
	appLogger.InitLogger()

	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, appLogger)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize jaeger tracer")
	}
	opentracing.SetGlobalTracer(tracer)

	svcs, err := services.InitServices(ctx, cfg, appLogger)
	if err != nil {
		closer.Close()
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          appLogger,
		router:       router,
		services:     svcs,
		cronManager:  cron.NewCronManager(cfg.CronConfig, appLogger, svcs.ThreadCache),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:              ":" + cfg.AppConfig.APIPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *Server) Services() *services.Services {
	return s.services
}

func (s *Server) Logger() logger.Logger {
	return s.log
}

// Run serves HTTP and runs the refresh schedule until SIGINT or SIGTERM.
func (s *Server) Run() error {
	api.RegisterRoutes(s.router, s.services, s.log, s.config.AppConfig.APIKey)

	if err := s.cronManager.Start(); err != nil {
		return errors.Wrap(err, "failed to start cron manager")
	}

	serverErr := make(chan error, 1)
	go func() {
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.log.Infof("Starting HTTP server on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	s.log.Info("replydesk is now running. Press Ctrl+C to exit.")

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-stop:
		s.log.Info("Shutting down...")
	case runErr = <-serverErr:
		s.log.Errorf("HTTP server error: %v", runErr)
	}

	s.shutdown()
	return runErr
}

func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	} else {
		s.log.Info("HTTP server shut down successfully")
	}

	// waits for a running refresh to finish
	s.cronManager.Stop()

	s.Close()
}

func (s *Server) Close() {
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}
	_ = s.log.Sync()
}
