package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/scpiconsole/internal/config"
	"github.com/berfenger/scpiconsole/internal/core/service"
	"github.com/berfenger/scpiconsole/pkg/scpi"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type Server struct {
	port           uint
	httpLog        bool
	requestTimeout time.Duration
	catalog        *scpi.Configuration
	resolver       *service.CommandResolver
	metrics        http.Handler
	rootContext    *actor.RootContext
	masterActor    *actor.PID
	logger         *zap.Logger
}

func NewServer(cfg config.Config, catalog *scpi.Configuration, metrics http.Handler, rootContext *actor.RootContext, masterActor *actor.PID, logger *zap.Logger) *http.Server {
	NewServer := newServer(cfg, catalog, metrics, rootContext, masterActor, logger)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, catalog *scpi.Configuration, metrics http.Handler, rootContext *actor.RootContext, masterActor *actor.PID, logger *zap.Logger) *Server {
	return &Server{
		port:    cfg.Port,
		httpLog: cfg.HttpLog,
		// requests wait behind at most a few queued session operations
		requestTimeout: 4 * cfg.Session.OperationTimeout(),
		catalog:        catalog,
		resolver:       service.NewCommandResolver(catalog),
		metrics:        metrics,
		rootContext:    rootContext,
		masterActor:    masterActor,
		logger:         logger.Named("http"),
	}
}
