package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/adapters/intake"
	"github.com/mikey/comment-spam-gateway/internal/config"
	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/ports"
	"github.com/mikey/comment-spam-gateway/internal/utils"
)

// IntakeFactory creates the host-facing intake adapter
type IntakeFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.GatewayService
}

// NewIntakeFactory creates a new intake factory
func NewIntakeFactory(cfg *config.Config, logger *zap.Logger, service *core.GatewayService) *IntakeFactory {
	return &IntakeFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateIntake creates the HTTP intake from the configuration
func (f *IntakeFactory) CreateIntake(text *utils.TextProcessor) (ports.CommentIntake, error) {
	intakeCfg := f.cfg.GetIntake()
	spamCfg, err := f.cfg.GetSpam()
	if err != nil {
		return nil, err
	}

	return intake.NewHTTPIntake(
		f.service,
		f.logger,
		intakeCfg.ListenAddress,
		intakeCfg.AdminToken,
		text,
		spamCfg.MaxCommentSize,
	), nil
}

// TextProcessorFactory creates the text processor used by the intake
type TextProcessorFactory struct {
	logger *zap.Logger
}

// NewTextProcessorFactory creates a new text processor factory
func NewTextProcessorFactory(cfg *config.Config, logger *zap.Logger) *TextProcessorFactory {
	return &TextProcessorFactory{logger: logger}
}

// CreateTextProcessor creates a text processor
func (f *TextProcessorFactory) CreateTextProcessor() *utils.TextProcessor {
	return utils.NewTextProcessor(f.logger)
}
