package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/config"
	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/events"
	"github.com/mikey/comment-spam-gateway/internal/factory"
	"github.com/mikey/comment-spam-gateway/internal/logging"
	"github.com/mikey/comment-spam-gateway/internal/ports"
	"github.com/mikey/comment-spam-gateway/internal/utils"
	"github.com/mikey/comment-spam-gateway/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewStoreFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewMaintenanceFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return nil, err
	}

	// Register the comment and post stores
	if err := container.Provide(func(f *factory.StoreFactory) (core.CommentStore, core.PostStore, error) {
		return f.CreateStores()
	}); err != nil {
		return nil, err
	}

	// Register the protocol client
	if err := container.Provide(func(f *factory.ClassifierFactory, comments core.CommentStore) (core.Classifier, error) {
		return f.CreateClassifier(comments)
	}); err != nil {
		return nil, err
	}

	// Register the maintenance policy
	if err := container.Provide(func(f *factory.MaintenanceFactory) (core.MaintenancePolicy, error) {
		return f.CreatePolicy()
	}); err != nil {
		return nil, err
	}

	// Register the whitelist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		return whitelist.NewChecker(cfg.GetStringSlice("spam.whitelisted_domains"), logger)
	}); err != nil {
		return nil, err
	}

	// Register the event sink
	if err := container.Provide(func(logger *zap.Logger) core.EventSink {
		return events.NewLogSink(logger)
	}); err != nil {
		return nil, err
	}

	// Register the gateway service
	if err := container.Provide(func(
		classifier core.Classifier,
		comments core.CommentStore,
		posts core.PostStore,
		sink core.EventSink,
		policy core.MaintenancePolicy,
		wl *whitelist.Checker,
		logger *zap.Logger,
		cfg *config.Config,
	) (*core.GatewayService, error) {
		spamCfg, err := cfg.GetSpam()
		if err != nil {
			return nil, err
		}
		return core.NewGatewayService(
			classifier,
			comments,
			posts,
			sink,
			policy,
			wl,
			logger,
			spamCfg.DiscardOldPostSpam,
			spamCfg.DiscardAge,
			spamCfg.Retention,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register the text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return nil, err
	}

	// Register the intake factory and intake
	if err := container.Provide(factory.NewIntakeFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.IntakeFactory, text *utils.TextProcessor) (ports.CommentIntake, error) {
		return f.CreateIntake(text)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
