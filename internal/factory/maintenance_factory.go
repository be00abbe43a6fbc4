package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/config"
	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/maintenance"
)

// MaintenanceFactory creates compaction trigger policies based on
// configuration
type MaintenanceFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMaintenanceFactory creates a new maintenance factory
func NewMaintenanceFactory(cfg *config.Config, logger *zap.Logger) *MaintenanceFactory {
	return &MaintenanceFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreatePolicy creates a maintenance policy based on the configuration
func (f *MaintenanceFactory) CreatePolicy() (core.MaintenancePolicy, error) {
	mCfg := f.cfg.GetMaintenance()

	switch mCfg.Policy {
	case "interval":
		return maintenance.NewIntervalPolicy(mCfg.Interval), nil
	case "random":
		return maintenance.NewRandomPolicy(mCfg.Odds, nil), nil
	case "never":
		return maintenance.NeverPolicy{}, nil
	default:
		return nil, fmt.Errorf("unsupported maintenance policy: %s", mCfg.Policy)
	}
}
