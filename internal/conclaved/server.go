package conclaved

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mellis-dev/conclave/internal/conclaved/config"
	v1 "github.com/mellis-dev/conclave/internal/conclaved/handler/v1"
	"github.com/mellis-dev/conclave/internal/conclaved/service/modelhub"
	"github.com/mellis-dev/conclave/internal/conclaved/service/orchestra"
	"github.com/mellis-dev/conclave/internal/conclaved/service/runner"
	genericoptions "github.com/mellis-dev/conclave/internal/pkg/options"
	genericapiserver "github.com/mellis-dev/conclave/internal/pkg/server"
	"github.com/mellis-dev/conclave/pkg/logger"
)

type apiServer struct {
	genericAPIServer *genericapiserver.GenericAPIServer

	modelHub        *modelhub.Module
	orchestraModule *orchestra.Module
	hub             *v1.EventHub
}

type preparedAPIServer struct {
	*apiServer
}

func createAPIServer(cfg *config.Config) (*apiServer, error) {
	genericConfig, err := buildGenericConfig(cfg)
	if err != nil {
		return nil, err
	}

	genericServer, err := genericConfig.Complete().New()
	if err != nil {
		return nil, err
	}

	// Initialize ModelHub module (K8S-style: Config → Complete → New).
	hubCfg := &modelhub.Config{
		Judge:   toModelConfig(cfg.ModelOptions.Judge),
		Preface: toModelConfig(cfg.ModelOptions.Preface),
	}
	modelHub, err := hubCfg.Complete().New(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ModelHub module: %w", err)
	}

	// The engine needs an execution model even without supervision or
	// prefaces; the judge endpoint doubles as the runner's model.
	execModel := modelHub.Judge
	if execModel == nil {
		execModel = modelHub.Preface
	}
	if execModel == nil {
		return nil, fmt.Errorf("no chat model configured: set models.judge or models.preface")
	}

	orchestraCfg := &orchestra.Config{
		MaxConcurrent:         cfg.OrchestraOptions.MaxConcurrent,
		MaxDepth:              cfg.OrchestraOptions.MaxDepth,
		TerminalTTL:           cfg.OrchestraOptions.TerminalTTL,
		SessionIdleTTL:        cfg.OrchestraOptions.SessionIdleTTL,
		SweepInterval:         cfg.OrchestraOptions.SweepInterval,
		ApprovalTimeoutSec:    cfg.OrchestraOptions.ApprovalTimeoutSec,
		ExtraReadOnlyPatterns: cfg.OrchestraOptions.ExtraReadOnlyPatterns,
		StoreType:             cfg.OrchestraOptions.StoreType,
		BoltDBPath:            cfg.OrchestraOptions.BoltDBPath,
	}
	orchestraModule, err := orchestraCfg.Complete().New(context.Background(), orchestra.Dependencies{
		Runner:       runner.NewModelRunner(execModel),
		JudgeModel:   modelHub.Judge,
		PrefaceModel: modelHub.Preface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Orchestra module: %w", err)
	}
	logger.Info("[Conclaved] Orchestra module initialized successfully")

	return &apiServer{
		genericAPIServer: genericServer,
		modelHub:         modelHub,
		orchestraModule:  orchestraModule,
		hub:              v1.NewEventHub(),
	}, nil
}

func (s *apiServer) PrepareRun() preparedAPIServer {
	initRouter(s.genericAPIServer.Engine, &routerDeps{
		orchestra: s.orchestraModule,
		hub:       s.hub,
	})

	return preparedAPIServer{s}
}

func (s preparedAPIServer) Run() error {
	// Shut down on SIGINT/SIGTERM: stop the listener first, then tear
	// down the engine (evicts every session's agents, closes BoltDB).
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		logger.Info("[Conclaved] received signal %s, shutting down", sig)
		s.genericAPIServer.Close()
	}()

	err := s.genericAPIServer.Run()

	if closeErr := s.orchestraModule.Close(); closeErr != nil {
		logger.Warn("[Conclaved] orchestra module close failed: %v", closeErr)
	}

	return err
}

func buildGenericConfig(cfg *config.Config) (*genericapiserver.Config, error) {
	genericConfig := genericapiserver.NewConfig()
	if err := cfg.GenericServerRunOptions.ApplyTo(genericConfig); err != nil {
		return nil, err
	}

	return genericConfig, nil
}

func toModelConfig(e *genericoptions.ModelEndpoint) *modelhub.ModelConfig {
	if e == nil {
		return nil
	}
	return &modelhub.ModelConfig{
		Provider:    e.Provider,
		Model:       e.Model,
		APIKey:      e.APIKey,
		BaseURL:     e.BaseURL,
		MaxTokens:   e.MaxTokens,
		Temperature: e.Temperature,
		TopP:        e.TopP,
	}
}
