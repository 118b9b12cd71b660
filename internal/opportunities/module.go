// Package opportunities provides the opportunity pipeline bounded context.
// This file defines the module that encapsulates pipeline setup and route registration.
package opportunities

import (
	"fmt"
	"os"

	"salescrm_backend/internal/adapters/storage"
	"salescrm_backend/internal/events"
	apphttp "salescrm_backend/internal/http"
	"salescrm_backend/internal/opportunities/domain"
	"salescrm_backend/internal/opportunities/handler"
	"salescrm_backend/internal/opportunities/repository"
	"salescrm_backend/internal/opportunities/service"
	"salescrm_backend/platform/config"
	"salescrm_backend/platform/logger"
	"salescrm_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ModuleConfig combines the config interfaces the module reads.
type ModuleConfig interface {
	config.PipelineConfig
	GetMinioBucketOpportunityAttachments() string
}

// Module is the opportunities bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
}

// NewModule wires the repository, access policy and service. storageSvc may
// be nil when object storage is not configured; presigning is then disabled.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, storageSvc storage.StorageService, val *validator.Validator, cfg ModuleConfig, log *logger.Logger) (*Module, error) {
	policy, err := loadPolicy(cfg.GetPipelinePolicyFile())
	if err != nil {
		return nil, err
	}

	repo := repository.New(pool)
	svc := service.New(repo, eventBus, policy, log)
	if timeout := cfg.GetPipelineTxTimeout(); timeout > 0 {
		svc.SetTxTimeout(timeout)
	}
	if storageSvc != nil {
		svc.SetPresigner(storageSvc, cfg.GetMinioBucketOpportunityAttachments())
	}

	return &Module{
		handler: handler.New(svc, val),
	}, nil
}

// loadPolicy returns the default policy, or the default with the YAML
// overrides at path applied.
func loadPolicy(path string) (*domain.Policy, error) {
	if path == "" {
		return domain.DefaultPolicy(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pipeline policy: %w", err)
	}
	defer f.Close()

	policy, err := domain.LoadPolicyOverrides(f)
	if err != nil {
		return nil, fmt.Errorf("load pipeline policy %s: %w", path, err)
	}
	return policy, nil
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "opportunities"
}

// RegisterRoutes mounts pipeline routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/opportunities"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
