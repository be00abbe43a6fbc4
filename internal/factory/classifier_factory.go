package factory

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/antispam"
	"github.com/mikey/comment-spam-gateway/internal/config"
	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/transport"
)

// ClassifierFactory creates the protocol client for the remote
// classification service.
type ClassifierFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// ResolveCredential returns the active credential: the configured key
// when one is hardcoded, otherwise the one stored in the option table.
// An empty result means the pipeline must not run.
func (f *ClassifierFactory) ResolveCredential(comments core.CommentStore) (string, error) {
	svcCfg, err := f.cfg.GetService()
	if err != nil {
		return "", err
	}
	if key := core.NormalizeCredential(svcCfg.APIKey); key != "" {
		return key, nil
	}

	stored, err := comments.GetOption(context.Background(), core.OptionAPIKey)
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return core.NormalizeCredential(stored), nil
}

// CreateClassifier creates the protocol client. The client is built
// even without a credential so verify-key can run during setup; the
// daemon gates the pipeline separately.
func (f *ClassifierFactory) CreateClassifier(comments core.CommentStore) (core.Classifier, error) {
	svcCfg, err := f.cfg.GetService()
	if err != nil {
		return nil, err
	}
	site := f.cfg.GetSite()

	key, err := f.ResolveCredential(comments)
	if err != nil {
		return nil, err
	}

	tc := transport.NewClient(svcCfg.Port, svcCfg.ConnectTimeout, site.UserAgent(), site.Charset, f.logger)
	return antispam.NewClient(tc, key, svcCfg.Domain, svcCfg.ProtocolVersion, site.URL, f.logger), nil
}
