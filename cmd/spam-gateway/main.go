package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/comment-spam-gateway/internal/core"
	"github.com/mikey/comment-spam-gateway/internal/di"
	"github.com/mikey/comment-spam-gateway/internal/factory"
	"github.com/mikey/comment-spam-gateway/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	intake ports.CommentIntake,
	comments core.CommentStore,
	classifierFactory *factory.ClassifierFactory,
) error {
	defer logger.Sync()

	// The pipeline must not run without a credential.
	key, err := classifierFactory.ResolveCredential(comments)
	if err != nil {
		logger.Fatal("Failed to resolve credential", zap.Error(err))
		return err
	}
	if key == "" {
		logger.Fatal("No credential configured; set service.api_key or verify one via the intake before starting")
		return core.ErrNoCredential
	}

	// Start the intake
	if err := intake.Start(); err != nil {
		logger.Fatal("Failed to start intake", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the intake
	if err := intake.Stop(); err != nil {
		logger.Error("Failed to stop intake", zap.Error(err))
	}

	// Close the store if it holds external resources
	if closer, ok := comments.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close comment store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
