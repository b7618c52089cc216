// Package server provides the generic gin API server shared by conclave
// binaries: engine setup, healthz, and graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mellis-dev/conclave/pkg/logger"
)

// Config is the configuration for the generic API server.
type Config struct {
	Mode        string
	BindAddress string
	BindPort    int
	Healthz     bool
	Middlewares []string
}

// NewConfig returns a Config with sane defaults.
func NewConfig() *Config {
	return &Config{
		Mode:        gin.ReleaseMode,
		BindAddress: "127.0.0.1",
		BindPort:    10888,
		Healthz:     true,
	}
}

// CompletedConfig is the completed configuration for GenericAPIServer.
type CompletedConfig struct {
	*Config
}

// Complete fills in any fields not set that are required to have valid data.
func (c *Config) Complete() CompletedConfig {
	if c.Mode == "" {
		c.Mode = gin.ReleaseMode
	}
	if c.BindAddress == "" {
		c.BindAddress = "127.0.0.1"
	}
	if c.BindPort == 0 {
		c.BindPort = 10888
	}
	return CompletedConfig{c}
}

// New returns a new instance of GenericAPIServer from the completed config.
func (c CompletedConfig) New() (*GenericAPIServer, error) {
	gin.SetMode(c.Mode)

	s := &GenericAPIServer{
		Engine:  gin.New(),
		address: fmt.Sprintf("%s:%d", c.BindAddress, c.BindPort),
		healthz: c.Healthz,
	}
	s.setup()

	return s, nil
}

// GenericAPIServer wraps a gin engine with an http.Server lifecycle.
type GenericAPIServer struct {
	*gin.Engine

	address string
	healthz bool

	srv *http.Server
}

func (s *GenericAPIServer) setup() {
	s.Use(gin.Recovery())

	if s.healthz {
		s.GET("/healthz", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}
}

// Address returns the listen address.
func (s *GenericAPIServer) Address() string { return s.address }

// Run spins up the server. It blocks until the listener fails or Close
// is called.
func (s *GenericAPIServer) Run() error {
	s.srv = &http.Server{
		Addr:    s.address,
		Handler: s,
	}

	logger.Info("[Server] start to listening on %s", s.address)

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	logger.Info("[Server] server on %s stopped", s.address)

	return nil
}

// Close gracefully shuts down the server, waiting up to 10s for in-flight
// requests.
func (s *GenericAPIServer) Close() {
	if s.srv == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.srv.Shutdown(ctx); err != nil {
		logger.Warn("[Server] shutdown failed: %v", err)
	}
}
