package storage

import (
	"context"
	"fmt"
	"time"

	"agmark-sync/config"
	"agmark-sync/utils"
)

// Open connects the backend named by cfg.StoreBackend. It is called once at
// process start; the returned Store is shared by every pipeline run.
func Open(ctx context.Context, cfg *config.Config, logger *utils.Logger) (Store, error) {
	retry := &utils.RetryConfig{
		MaxAttempts: cfg.StoreConnectRetries,
		BaseDelay:   2 * time.Second,
		Logger:      logger,
	}

	switch cfg.StoreBackend {
	case config.BackendFirebase:
		fs, err := NewFirebaseStore(FirebaseOptions{
			DatabaseURL: cfg.FirebaseDatabaseURL,
			AuthToken:   cfg.FirebaseAuthToken,
			Timeout:     cfg.StoreTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := retry.Do(ctx, "firebase-ping", fs.Ping); err != nil {
			return nil, fmt.Errorf("firebase: %w", err)
		}
		return fs, nil

	case config.BackendPostgres:
		return NewPostgresStore(ctx, cfg.DSN(), retry, logger)

	case config.BackendMemory:
		return NewMemoryStore(), nil

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StoreBackend)
	}
}
